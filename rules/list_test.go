package rules

import (
	"testing"

	"github.com/wudi/pdfstudio/document"
)

func TestListValidateFailFast(t *testing.T) {
	list := NewList(
		ExtractPages{Start: 1, End: 5}, // fails on a 3-page document
		RotatePages{Pages: []int{1}, Angle: 17},
	)
	errs := list.Validate(meta3(), nil)
	if len(errs) == 0 {
		t.Fatal("expected validation errors")
	}
	for _, e := range errs {
		if e.RuleIndex != 0 {
			t.Fatalf("fail-fast should stop at rule 0, got error for rule %d", e.RuleIndex)
		}
	}
}

func TestListValidateTracksRunningState(t *testing.T) {
	// After removing page 2 of 3 the document has 2 pages, so rotating page 3
	// must fail even though 3 was valid against the original document.
	list := NewList(
		RemovePages{Pages: []int{2}},
		RotatePages{Pages: []int{3}, Angle: 90},
	)
	errs := list.Validate(meta3(), nil)
	if len(errs) != 1 || errs[0].RuleIndex != 1 || errs[0].Code != CodePageOutOfRange {
		t.Fatalf("expected page-out-of-range at rule 1, got %v", errs)
	}
}

func TestListValidateAfterMerge(t *testing.T) {
	// Merging a 7-page document into a 3-page one yields 10 pages, so a rule
	// referencing page 10 after the merge must pass.
	lookup := func(id string) (document.Meta, bool) {
		if id == "docB" {
			return document.UniformMeta(7, document.A4, 0), true
		}
		return document.Meta{}, false
	}
	list := NewList(
		MergeDocuments{Sources: []string{"docB"}},
		RotatePages{Pages: []int{10}, Angle: 90},
	)
	if errs := list.Validate(meta3(), lookup); len(errs) != 0 {
		t.Fatalf("post-merge validation should pass, got %v", errs)
	}
}

func TestListValidateUnknownSource(t *testing.T) {
	list := NewList(MergeDocuments{Sources: []string{"ghost"}})
	errs := list.Validate(meta3(), func(string) (document.Meta, bool) {
		return document.Meta{}, false
	})
	if len(errs) != 1 || errs[0].Code != CodeUnknownSource {
		t.Fatalf("expected unknown-source, got %v", errs)
	}
}

func TestNewListAssignsIDs(t *testing.T) {
	list := NewList(Compress{Level: LevelLow}, Compress{Level: LevelHigh})
	if list[0].ID == "" || list[1].ID == "" || list[0].ID == list[1].ID {
		t.Fatalf("expected distinct non-empty ids, got %q and %q", list[0].ID, list[1].ID)
	}
}

func TestFingerprintIgnoresIDs(t *testing.T) {
	a := NewList(RotatePages{Pages: []int{1}, Angle: 90})
	b := NewList(RotatePages{Pages: []int{1}, Angle: 90})
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatal("fingerprint should not depend on item ids")
	}
}

func TestFingerprintOrderSensitive(t *testing.T) {
	a := NewList(RemovePages{Pages: []int{1}}, RotatePages{Pages: []int{1}, Angle: 90})
	b := NewList(RotatePages{Pages: []int{1}, Angle: 90}, RemovePages{Pages: []int{1}})
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatal("fingerprint should depend on rule order")
	}
}

func TestFingerprintParamSensitive(t *testing.T) {
	a := NewList(RotatePages{Pages: []int{1}, Angle: 90})
	b := NewList(RotatePages{Pages: []int{1}, Angle: 180})
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatal("fingerprint should depend on rule parameters")
	}
}
