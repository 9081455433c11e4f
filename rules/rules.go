// Package rules models the closed set of declarative transformation rules the
// pipeline executes, their validation against document state, and the stable
// fingerprint of an ordered rule list.
//
// Every rule kind is an explicit variant carrying only its own parameters.
// Unknown kinds and unknown fields are rejected at the decoding boundary;
// there is no dynamically shaped rule object anywhere in the model.
package rules

import (
	"fmt"
	"sort"

	"github.com/wudi/pdfstudio/document"
)

// Kind tags one rule variant.
type Kind string

const (
	KindRemovePages       Kind = "remove-pages"
	KindRotatePages       Kind = "rotate-pages"
	KindExtractPages      Kind = "extract-pages"
	KindRearrangePages    Kind = "rearrange-pages"
	KindAddBlankPages     Kind = "add-blank-pages"
	KindCropPages         Kind = "crop-pages"
	KindResizePages       Kind = "resize-pages"
	KindMergeDocuments    Kind = "merge-documents"
	KindSplitDocument     Kind = "split-document"
	KindCompress          Kind = "compress"
	KindAddWatermark      Kind = "add-watermark"
	KindAddImage          Kind = "add-image"
	KindAddHeaderFooter   Kind = "add-header-footer"
	KindAddPageNumbers    Kind = "add-page-numbers"
	KindAddTextAnnotation Kind = "add-text-annotation"
	KindAddBackground     Kind = "add-background"
	KindAddBorder         Kind = "add-border"
	KindRedactText        Kind = "redact-text"
	KindPasswordProtect   Kind = "password-protect"
	KindRemovePassword    Kind = "remove-password"
	KindApplyOverlay      Kind = "apply-overlay"
	KindConvertFormat     Kind = "convert-format"
)

// MetaLookup resolves the metadata of a referenced source document, e.g. a
// merge source. It returns false when the identity is unknown.
type MetaLookup func(id string) (document.Meta, bool)

// Rule is one declarative, validated operation against a document.
//
// Validate reports structural problems independent of any document state
// (bad enum values, empty parameter sets, no-op rules). ValidateAgainst
// reports problems relative to the document state the rule would execute on
// (page bounds, geometry fit). Project returns the metadata of the document
// after the rule applies; it assumes the rule already validated.
type Rule interface {
	Kind() Kind
	Validate() []ValidationError
	ValidateAgainst(meta document.Meta) []ValidationError
	Project(meta document.Meta, lookup MetaLookup) (document.Meta, error)
}

// Validate runs the full validation contract for a single rule against a
// document state. It is pure: same inputs, same result, no side effects.
func Validate(meta document.Meta, r Rule) ValidationErrors {
	errs := append(ValidationErrors(nil), r.Validate()...)
	return append(errs, r.ValidateAgainst(meta)...)
}

// UnknownSourceError reports a merge source that no lookup could resolve.
type UnknownSourceError struct {
	ID string
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("unknown source document %q", e.ID)
}

// Color is an RGB color with components in [0, 1].
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

func (c Color) inRange() bool {
	ok := func(v float64) bool { return v >= 0 && v <= 1 }
	return ok(c.R) && ok(c.G) && ok(c.B)
}

// uniquePages de-duplicates and sorts a 1-based page set. Duplicates are not
// validation errors; they collapse to one reference.
func uniquePages(pages []int) []int {
	seen := make(map[int]bool, len(pages))
	out := make([]int, 0, len(pages))
	for _, p := range pages {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Ints(out)
	return out
}

// checkPages reports one error per out-of-range page reference.
func checkPages(k Kind, field string, pages []int, meta document.Meta) []ValidationError {
	var errs []ValidationError
	for _, p := range uniquePages(pages) {
		if !meta.ValidPage(p) {
			errs = append(errs, verr(k, field, CodePageOutOfRange,
				fmt.Sprintf("page %d is outside [1, %d]", p, meta.PageCount)))
		}
	}
	return errs
}

// fontSizeValid treats zero as unset (renderer default applies).
func fontSizeValid(size float64) bool {
	return size == 0 || (size >= 8 && size <= 72)
}

func opacityValid(v float64) bool { return v >= 0 && v <= 1 }
