package rules

import (
	"reflect"
	"testing"

	"github.com/wudi/pdfstudio/coords"
	"github.com/wudi/pdfstudio/document"
)

func meta3() document.Meta { return document.UniformMeta(3, document.A4, 10_000) }

func hasCode(errs []ValidationError, code string) bool {
	for _, e := range errs {
		if e.Code == code {
			return true
		}
	}
	return false
}

func TestValidateIsPure(t *testing.T) {
	r := RotatePages{Pages: []int{1, 5}, Angle: 45}
	m := meta3()
	first := Validate(m, r)
	second := Validate(m, r)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("validation not idempotent: %v vs %v", first, second)
	}
}

func TestPageOutOfRangeReported(t *testing.T) {
	errs := Validate(meta3(), RemovePages{Pages: []int{2, 4}})
	if !hasCode(errs, CodePageOutOfRange) {
		t.Fatalf("expected page-out-of-range, got %v", errs)
	}
}

func TestDuplicatePagesAreNotErrors(t *testing.T) {
	if errs := Validate(meta3(), RotatePages{Pages: []int{2, 2, 2}, Angle: 90}); len(errs) != 0 {
		t.Fatalf("duplicates should de-duplicate, got %v", errs)
	}
}

func TestRemoveAllPagesRejected(t *testing.T) {
	errs := Validate(meta3(), RemovePages{Pages: []int{1, 2, 3}})
	if !hasCode(errs, CodeRemovesAllPages) {
		t.Fatalf("expected removes-all-pages, got %v", errs)
	}
}

func TestRotateAngleEnum(t *testing.T) {
	for _, angle := range []int{90, 180, 270, -90} {
		if errs := Validate(meta3(), RotatePages{Pages: []int{1}, Angle: angle}); len(errs) != 0 {
			t.Errorf("angle %d should be valid: %v", angle, errs)
		}
	}
	if errs := Validate(meta3(), RotatePages{Pages: []int{1}, Angle: 45}); !hasCode(errs, CodeBadEnum) {
		t.Errorf("angle 45 should fail with bad-enum, got %v", errs)
	}
}

func TestExtractRangeBeyondDocument(t *testing.T) {
	// extract-pages(1,5) on a 3-page document must name the end index.
	errs := Validate(meta3(), ExtractPages{Start: 1, End: 5})
	if len(errs) != 1 || errs[0].Code != CodePageOutOfRange || errs[0].Field != "end" {
		t.Fatalf("expected one page-out-of-range on field end, got %v", errs)
	}
}

func TestExtractBadOrder(t *testing.T) {
	errs := Validate(meta3(), ExtractPages{Start: 3, End: 1})
	if !hasCode(errs, CodeBadRange) {
		t.Fatalf("expected bad-range, got %v", errs)
	}
}

func TestRearrangeReportsMissingAndDuplicated(t *testing.T) {
	errs := Validate(meta3(), RearrangePages{Order: []int{1, 1, 3}})
	var missing, duplicated bool
	for _, e := range errs {
		if e.Code != CodeNotPermutation {
			continue
		}
		switch {
		case e.Reason == "page 2 is missing from the new order":
			missing = true
		case e.Reason == "page 1 appears 2 times in the new order":
			duplicated = true
		}
	}
	if !missing || !duplicated {
		t.Fatalf("expected named missing and duplicated indices, got %v", errs)
	}
}

func TestOpacityAndFontSizeBounds(t *testing.T) {
	errs := Validate(meta3(), AddWatermark{Text: "DRAFT", Opacity: 1.5, FontSize: 80})
	if !hasCode(errs, CodeBadValue) {
		t.Fatalf("expected bad-value for opacity/font size, got %v", errs)
	}
	if n := len(errs); n != 2 {
		t.Fatalf("expected 2 errors (opacity, font size), got %d: %v", n, errs)
	}
}

func TestScaleBounds(t *testing.T) {
	if errs := Validate(meta3(), ResizePages{Scale: 0.05}); !hasCode(errs, CodeBadValue) {
		t.Errorf("scale 0.05 should fail, got %v", errs)
	}
	if errs := Validate(meta3(), ResizePages{Scale: 3.0}); len(errs) != 0 {
		t.Errorf("scale 3.0 should pass, got %v", errs)
	}
}

func TestCompressLevelEnum(t *testing.T) {
	if errs := Validate(meta3(), Compress{Level: "extreme"}); !hasCode(errs, CodeBadEnum) {
		t.Errorf("unknown level should fail, got %v", errs)
	}
	// A custom target is never judged for reachability.
	if errs := Validate(meta3(), Compress{Level: LevelCustom, TargetBytes: 1}); len(errs) != 0 {
		t.Errorf("tiny custom target should still validate, got %v", errs)
	}
}

func TestPasswordRulesNoOp(t *testing.T) {
	if errs := Validate(meta3(), PasswordProtect{}); !hasCode(errs, CodeNoOpRule) {
		t.Errorf("empty password-protect should be a no-op rule error, got %v", errs)
	}
	if errs := Validate(meta3(), RemovePassword{}); !hasCode(errs, CodeNoOpRule) {
		t.Errorf("empty remove-password should be a no-op rule error, got %v", errs)
	}
	if errs := Validate(meta3(), RemovePassword{Owner: true}); len(errs) != 0 {
		t.Errorf("owner-only removal should validate, got %v", errs)
	}
}

func TestCropBoxMustFitPage(t *testing.T) {
	errs := Validate(meta3(), CropPages{Pages: []int{1}, Box: coords.Rect{X: 0, Y: 0, W: 1000, H: 100}})
	if !hasCode(errs, CodeOutOfBounds) {
		t.Fatalf("expected out-of-bounds crop box, got %v", errs)
	}
}

func TestOverlayElementValidation(t *testing.T) {
	r := ApplyOverlay{Elements: []OverlayElement{
		{Type: ElementText, Page: 1, Position: coords.Point{X: 10, Y: 10}, Text: "hi"},
		{Type: "scribble", Page: 1},
	}}
	errs := Validate(meta3(), r)
	if !hasCode(errs, CodeBadEnum) {
		t.Fatalf("expected bad-enum for unknown element type, got %v", errs)
	}
}

func TestOverlayElementPageBounds(t *testing.T) {
	r := ApplyOverlay{Elements: []OverlayElement{
		{Type: ElementHighlight, Page: 9, Position: coords.Point{X: 1, Y: 1}, Width: 10, Height: 10},
	}}
	errs := Validate(meta3(), r)
	if !hasCode(errs, CodePageOutOfRange) {
		t.Fatalf("expected page-out-of-range, got %v", errs)
	}
}

func TestProjectRemoveThenRotate(t *testing.T) {
	m := meta3()
	afterRemove, err := RemovePages{Pages: []int{2}}.Project(m, nil)
	if err != nil {
		t.Fatalf("Project(remove) error: %v", err)
	}
	if afterRemove.PageCount != 2 {
		t.Fatalf("page count after remove = %d, want 2", afterRemove.PageCount)
	}
	afterRotate, err := RotatePages{Pages: []int{1}, Angle: 90}.Project(afterRemove, nil)
	if err != nil {
		t.Fatalf("Project(rotate) error: %v", err)
	}
	if got := afterRotate.Page(1); got.Width != document.A4.Height || got.Height != document.A4.Width {
		t.Fatalf("page 1 not rotated: %+v", got)
	}
}

func TestProjectMergeUsesLookup(t *testing.T) {
	lookup := func(id string) (document.Meta, bool) {
		if id == "docB" {
			return document.UniformMeta(7, document.A4, 5000), true
		}
		return document.Meta{}, false
	}
	out, err := MergeDocuments{Sources: []string{"docB"}}.Project(meta3(), lookup)
	if err != nil {
		t.Fatalf("Project(merge) error: %v", err)
	}
	if out.PageCount != 10 {
		t.Fatalf("post-merge page count = %d, want 10", out.PageCount)
	}

	if _, err := (MergeDocuments{Sources: []string{"nope"}}).Project(meta3(), lookup); err == nil {
		t.Fatal("expected unknown source error")
	}
}

func TestProjectSplitConcatenatesRanges(t *testing.T) {
	m := document.UniformMeta(10, document.A4, 0)
	out, err := SplitDocument{Ranges: []PageRange{{Start: 1, End: 3}, {Start: 8, End: 10}}}.Project(m, nil)
	if err != nil {
		t.Fatalf("Project(split) error: %v", err)
	}
	if out.PageCount != 6 {
		t.Fatalf("post-split page count = %d, want 6", out.PageCount)
	}
}

func TestProjectPasswordLifecycle(t *testing.T) {
	perms := document.Permissions{Print: true}
	protected, err := PasswordProtect{UserPassword: "secret", Permissions: &perms}.Project(meta3(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !protected.Security.HasUserPassword || protected.Security.Permissions != perms {
		t.Fatalf("protect projection wrong: %+v", protected.Security)
	}
	open, err := RemovePassword{User: true, Password: "secret"}.Project(protected, nil)
	if err != nil {
		t.Fatal(err)
	}
	if open.Security.Encrypted() {
		t.Fatalf("document still encrypted after removal: %+v", open.Security)
	}
	if open.Security.Permissions != document.AllPermissions() {
		t.Fatalf("permissions not restored: %+v", open.Security.Permissions)
	}
}
