package rules

import (
	"fmt"

	"github.com/wudi/pdfstudio/coords"
	"github.com/wudi/pdfstudio/document"
)

// RemovePages deletes the referenced pages. Later rules observe the
// renumbered document.
type RemovePages struct {
	Pages []int `json:"pages"`
}

func (r RemovePages) Kind() Kind { return KindRemovePages }

func (r RemovePages) Validate() []ValidationError {
	if len(r.Pages) == 0 {
		return []ValidationError{verr(r.Kind(), "pages", CodeEmpty, "no pages to remove")}
	}
	return nil
}

func (r RemovePages) ValidateAgainst(meta document.Meta) []ValidationError {
	errs := checkPages(r.Kind(), "pages", r.Pages, meta)
	if len(errs) == 0 && len(uniquePages(r.Pages)) >= meta.PageCount {
		errs = append(errs, verr(r.Kind(), "pages", CodeRemovesAllPages,
			"removing every page would leave an empty document"))
	}
	return errs
}

func (r RemovePages) Project(meta document.Meta, _ MetaLookup) (document.Meta, error) {
	drop := make(map[int]bool)
	for _, p := range r.Pages {
		drop[p] = true
	}
	out := meta.Clone()
	out.Pages = out.Pages[:0]
	for i, size := range meta.Pages {
		if !drop[i+1] {
			out.Pages = append(out.Pages, size)
		}
	}
	out.PageCount = len(out.Pages)
	return out, nil
}

// RotatePages rotates the referenced pages by a right-angle multiple.
type RotatePages struct {
	Pages []int `json:"pages"`
	Angle int   `json:"angle"`
}

func (r RotatePages) Kind() Kind { return KindRotatePages }

func (r RotatePages) Validate() []ValidationError {
	var errs []ValidationError
	if len(r.Pages) == 0 {
		errs = append(errs, verr(r.Kind(), "pages", CodeEmpty, "no pages to rotate"))
	}
	switch r.Angle {
	case 90, 180, 270, -90:
	default:
		errs = append(errs, verr(r.Kind(), "angle", CodeBadEnum,
			fmt.Sprintf("angle %d not in {90, 180, 270, -90}", r.Angle)))
	}
	return errs
}

func (r RotatePages) ValidateAgainst(meta document.Meta) []ValidationError {
	return checkPages(r.Kind(), "pages", r.Pages, meta)
}

func (r RotatePages) Project(meta document.Meta, _ MetaLookup) (document.Meta, error) {
	out := meta.Clone()
	if r.Angle == 180 {
		return out, nil
	}
	for _, p := range uniquePages(r.Pages) {
		if p >= 1 && p <= len(out.Pages) {
			s := out.Pages[p-1]
			out.Pages[p-1] = document.PageSize{Width: s.Height, Height: s.Width}
		}
	}
	return out, nil
}

// ExtractPages keeps only the inclusive 1-based range [Start, End].
type ExtractPages struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r ExtractPages) Kind() Kind { return KindExtractPages }

func (r ExtractPages) Validate() []ValidationError {
	var errs []ValidationError
	if r.Start < 1 {
		errs = append(errs, verr(r.Kind(), "start", CodeBadRange,
			fmt.Sprintf("start index %d must be at least 1", r.Start)))
	}
	if r.End < r.Start {
		errs = append(errs, verr(r.Kind(), "end", CodeBadRange,
			fmt.Sprintf("range end %d precedes start %d", r.End, r.Start)))
	}
	return errs
}

func (r ExtractPages) ValidateAgainst(meta document.Meta) []ValidationError {
	if r.End >= r.Start && r.End > meta.PageCount {
		return []ValidationError{verr(r.Kind(), "end", CodePageOutOfRange,
			fmt.Sprintf("range end %d exceeds page count %d", r.End, meta.PageCount))}
	}
	return nil
}

func (r ExtractPages) Project(meta document.Meta, _ MetaLookup) (document.Meta, error) {
	out := meta.Clone()
	out.Pages = append([]document.PageSize(nil), meta.Pages[r.Start-1:r.End]...)
	out.PageCount = len(out.Pages)
	return out, nil
}

// RearrangePages reorders the document. Order must be a permutation of
// [1..pageCount]; the validator names missing and duplicated indices.
type RearrangePages struct {
	Order []int `json:"order"`
}

func (r RearrangePages) Kind() Kind { return KindRearrangePages }

func (r RearrangePages) Validate() []ValidationError {
	if len(r.Order) == 0 {
		return []ValidationError{verr(r.Kind(), "order", CodeEmpty, "no page order supplied")}
	}
	return nil
}

func (r RearrangePages) ValidateAgainst(meta document.Meta) []ValidationError {
	var errs []ValidationError
	count := make(map[int]int, len(r.Order))
	for _, p := range r.Order {
		if !meta.ValidPage(p) {
			errs = append(errs, verr(r.Kind(), "order", CodePageOutOfRange,
				fmt.Sprintf("page %d is outside [1, %d]", p, meta.PageCount)))
			continue
		}
		count[p]++
	}
	for p := 1; p <= meta.PageCount; p++ {
		switch {
		case count[p] == 0:
			errs = append(errs, verr(r.Kind(), "order", CodeNotPermutation,
				fmt.Sprintf("page %d is missing from the new order", p)))
		case count[p] > 1:
			errs = append(errs, verr(r.Kind(), "order", CodeNotPermutation,
				fmt.Sprintf("page %d appears %d times in the new order", p, count[p])))
		}
	}
	return errs
}

func (r RearrangePages) Project(meta document.Meta, _ MetaLookup) (document.Meta, error) {
	out := meta.Clone()
	out.Pages = out.Pages[:0]
	for _, p := range r.Order {
		out.Pages = append(out.Pages, meta.Page(p))
	}
	out.PageCount = len(out.Pages)
	return out, nil
}

// AddBlankPages inserts Count blank pages after the 1-based page After.
// After 0 inserts at the front. Size nil matches the preceding page, or A4
// when inserting at the front of the document.
type AddBlankPages struct {
	After int                `json:"after"`
	Count int                `json:"count"`
	Size  *document.PageSize `json:"size,omitempty"`
}

func (r AddBlankPages) Kind() Kind { return KindAddBlankPages }

func (r AddBlankPages) Validate() []ValidationError {
	var errs []ValidationError
	if r.Count < 1 {
		errs = append(errs, verr(r.Kind(), "count", CodeBadValue,
			fmt.Sprintf("count %d must be at least 1", r.Count)))
	}
	if r.After < 0 {
		errs = append(errs, verr(r.Kind(), "after", CodeBadValue,
			fmt.Sprintf("after %d must not be negative", r.After)))
	}
	if r.Size != nil && (r.Size.Width <= 0 || r.Size.Height <= 0) {
		errs = append(errs, verr(r.Kind(), "size", CodeBadValue, "blank page size must be positive"))
	}
	return errs
}

func (r AddBlankPages) ValidateAgainst(meta document.Meta) []ValidationError {
	if r.After > meta.PageCount {
		return []ValidationError{verr(r.Kind(), "after", CodePageOutOfRange,
			fmt.Sprintf("insertion point %d exceeds page count %d", r.After, meta.PageCount))}
	}
	return nil
}

func (r AddBlankPages) Project(meta document.Meta, _ MetaLookup) (document.Meta, error) {
	size := document.A4
	if r.Size != nil {
		size = *r.Size
	} else if r.After >= 1 && r.After <= meta.PageCount {
		size = meta.Page(r.After)
	}
	out := meta.Clone()
	out.Pages = append([]document.PageSize(nil), meta.Pages[:r.After]...)
	for i := 0; i < r.Count; i++ {
		out.Pages = append(out.Pages, size)
	}
	out.Pages = append(out.Pages, meta.Pages[r.After:]...)
	out.PageCount = len(out.Pages)
	return out, nil
}

// CropPages clips the referenced pages (all pages when Pages is empty) to Box.
type CropPages struct {
	Pages []int       `json:"pages,omitempty"`
	Box   coords.Rect `json:"box"`
}

func (r CropPages) Kind() Kind { return KindCropPages }

func (r CropPages) Validate() []ValidationError {
	if r.Box.IsEmpty() {
		return []ValidationError{verr(r.Kind(), "box", CodeBadValue, "crop box must have positive extent")}
	}
	return nil
}

func (r CropPages) ValidateAgainst(meta document.Meta) []ValidationError {
	errs := checkPages(r.Kind(), "pages", r.Pages, meta)
	for _, p := range targetPages(r.Pages, meta) {
		size := meta.Page(p)
		if r.Box.X < 0 || r.Box.Y < 0 || r.Box.X+r.Box.W > size.Width || r.Box.Y+r.Box.H > size.Height {
			errs = append(errs, verr(r.Kind(), "box", CodeOutOfBounds,
				fmt.Sprintf("crop box exceeds page %d bounds (%gx%g)", p, size.Width, size.Height)))
		}
	}
	return errs
}

func (r CropPages) Project(meta document.Meta, _ MetaLookup) (document.Meta, error) {
	out := meta.Clone()
	for _, p := range targetPages(r.Pages, meta) {
		if p >= 1 && p <= len(out.Pages) {
			out.Pages[p-1] = document.PageSize{Width: r.Box.W, Height: r.Box.H}
		}
	}
	return out, nil
}

// ResizePages scales the referenced pages (all pages when Pages is empty) by
// Scale, or sets them to an explicit Size. Exactly one of the two applies.
type ResizePages struct {
	Pages []int              `json:"pages,omitempty"`
	Scale float64            `json:"scale,omitempty"`
	Size  *document.PageSize `json:"size,omitempty"`
}

func (r ResizePages) Kind() Kind { return KindResizePages }

func (r ResizePages) Validate() []ValidationError {
	var errs []ValidationError
	switch {
	case r.Scale != 0 && r.Size != nil:
		errs = append(errs, verr(r.Kind(), "scale", CodeBadValue, "scale and size are mutually exclusive"))
	case r.Scale == 0 && r.Size == nil:
		errs = append(errs, verr(r.Kind(), "scale", CodeMissingField, "either scale or size is required"))
	case r.Size != nil && (r.Size.Width <= 0 || r.Size.Height <= 0):
		errs = append(errs, verr(r.Kind(), "size", CodeBadValue, "target size must be positive"))
	case r.Scale != 0 && (r.Scale < 0.1 || r.Scale > 3.0):
		errs = append(errs, verr(r.Kind(), "scale", CodeBadValue,
			fmt.Sprintf("scale %g outside [0.1, 3.0]", r.Scale)))
	}
	return errs
}

func (r ResizePages) ValidateAgainst(meta document.Meta) []ValidationError {
	return checkPages(r.Kind(), "pages", r.Pages, meta)
}

func (r ResizePages) Project(meta document.Meta, _ MetaLookup) (document.Meta, error) {
	out := meta.Clone()
	for _, p := range targetPages(r.Pages, meta) {
		if p < 1 || p > len(out.Pages) {
			continue
		}
		if r.Size != nil {
			out.Pages[p-1] = *r.Size
		} else {
			s := out.Pages[p-1]
			out.Pages[p-1] = document.PageSize{Width: s.Width * r.Scale, Height: s.Height * r.Scale}
		}
	}
	return out, nil
}

// targetPages expands an empty page set to every page in the document.
func targetPages(pages []int, meta document.Meta) []int {
	if len(pages) > 0 {
		return uniquePages(pages)
	}
	all := make([]int, meta.PageCount)
	for i := range all {
		all[i] = i + 1
	}
	return all
}
