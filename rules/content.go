package rules

import (
	"fmt"
	"strings"

	"github.com/wudi/pdfstudio/coords"
	"github.com/wudi/pdfstudio/document"
)

// AddWatermark stamps diagonal text across the referenced pages (all pages
// when Pages is empty).
type AddWatermark struct {
	Text     string  `json:"text"`
	Pages    []int   `json:"pages,omitempty"`
	Angle    float64 `json:"angle,omitempty"`
	Opacity  float64 `json:"opacity,omitempty"`
	FontSize float64 `json:"font_size,omitempty"`
	Color    Color   `json:"color,omitempty"`
}

func (r AddWatermark) Kind() Kind { return KindAddWatermark }

func (r AddWatermark) Validate() []ValidationError {
	var errs []ValidationError
	if strings.TrimSpace(r.Text) == "" {
		errs = append(errs, verr(r.Kind(), "text", CodeMissingField, "watermark text is required"))
	}
	if !opacityValid(r.Opacity) {
		errs = append(errs, verr(r.Kind(), "opacity", CodeBadValue,
			fmt.Sprintf("opacity %g outside [0, 1]", r.Opacity)))
	}
	if !fontSizeValid(r.FontSize) {
		errs = append(errs, verr(r.Kind(), "font_size", CodeBadValue,
			fmt.Sprintf("font size %g outside [8, 72]", r.FontSize)))
	}
	if !r.Color.inRange() {
		errs = append(errs, verr(r.Kind(), "color", CodeBadValue, "color components outside [0, 1]"))
	}
	return errs
}

func (r AddWatermark) ValidateAgainst(meta document.Meta) []ValidationError {
	return checkPages(r.Kind(), "pages", r.Pages, meta)
}

func (r AddWatermark) Project(meta document.Meta, _ MetaLookup) (document.Meta, error) {
	return meta.Clone(), nil
}

// AddImage places a stored image onto the referenced pages at Box.
type AddImage struct {
	Pages    []int       `json:"pages"`
	ImageRef string      `json:"image_ref"`
	Box      coords.Rect `json:"box"`
	Opacity  float64     `json:"opacity,omitempty"`
}

func (r AddImage) Kind() Kind { return KindAddImage }

func (r AddImage) Validate() []ValidationError {
	var errs []ValidationError
	if r.ImageRef == "" {
		errs = append(errs, verr(r.Kind(), "image_ref", CodeMissingField, "image reference is required"))
	}
	if len(r.Pages) == 0 {
		errs = append(errs, verr(r.Kind(), "pages", CodeEmpty, "no target pages"))
	}
	if r.Box.IsEmpty() {
		errs = append(errs, verr(r.Kind(), "box", CodeBadValue, "image box must have positive extent"))
	}
	if !opacityValid(r.Opacity) {
		errs = append(errs, verr(r.Kind(), "opacity", CodeBadValue,
			fmt.Sprintf("opacity %g outside [0, 1]", r.Opacity)))
	}
	return errs
}

func (r AddImage) ValidateAgainst(meta document.Meta) []ValidationError {
	errs := checkPages(r.Kind(), "pages", r.Pages, meta)
	for _, p := range uniquePages(r.Pages) {
		if !meta.ValidPage(p) {
			continue
		}
		size := meta.Page(p)
		if r.Box.X+r.Box.W > size.Width || r.Box.Y+r.Box.H > size.Height || r.Box.X < 0 || r.Box.Y < 0 {
			errs = append(errs, verr(r.Kind(), "box", CodeOutOfBounds,
				fmt.Sprintf("image box exceeds page %d bounds (%gx%g)", p, size.Width, size.Height)))
		}
	}
	return errs
}

func (r AddImage) Project(meta document.Meta, _ MetaLookup) (document.Meta, error) {
	return meta.Clone(), nil
}

// AddHeaderFooter draws running header and footer lines. At least one of the
// two texts must be present; both empty is a no-op rule.
type AddHeaderFooter struct {
	Header   string  `json:"header,omitempty"`
	Footer   string  `json:"footer,omitempty"`
	FontSize float64 `json:"font_size,omitempty"`
	Margin   float64 `json:"margin,omitempty"`
	Pages    []int   `json:"pages,omitempty"`
}

func (r AddHeaderFooter) Kind() Kind { return KindAddHeaderFooter }

func (r AddHeaderFooter) Validate() []ValidationError {
	var errs []ValidationError
	if strings.TrimSpace(r.Header) == "" && strings.TrimSpace(r.Footer) == "" {
		errs = append(errs, verr(r.Kind(), "", CodeNoOpRule, "neither header nor footer text set"))
	}
	if !fontSizeValid(r.FontSize) {
		errs = append(errs, verr(r.Kind(), "font_size", CodeBadValue,
			fmt.Sprintf("font size %g outside [8, 72]", r.FontSize)))
	}
	if r.Margin < 0 {
		errs = append(errs, verr(r.Kind(), "margin", CodeBadValue, "margin must not be negative"))
	}
	return errs
}

func (r AddHeaderFooter) ValidateAgainst(meta document.Meta) []ValidationError {
	return checkPages(r.Kind(), "pages", r.Pages, meta)
}

func (r AddHeaderFooter) Project(meta document.Meta, _ MetaLookup) (document.Meta, error) {
	return meta.Clone(), nil
}

// NumberPosition locates page numbers on the page.
type NumberPosition string

const (
	PosTopLeft      NumberPosition = "top-left"
	PosTopCenter    NumberPosition = "top-center"
	PosTopRight     NumberPosition = "top-right"
	PosBottomLeft   NumberPosition = "bottom-left"
	PosBottomCenter NumberPosition = "bottom-center"
	PosBottomRight  NumberPosition = "bottom-right"
)

// AddPageNumbers stamps a page counter. Template supports {n} (current page)
// and {total}; empty means "{n}". StartAt zero counts from 1.
type AddPageNumbers struct {
	StartAt  int            `json:"start_at,omitempty"`
	Position NumberPosition `json:"position,omitempty"`
	FontSize float64        `json:"font_size,omitempty"`
	Template string         `json:"template,omitempty"`
}

func (r AddPageNumbers) Kind() Kind { return KindAddPageNumbers }

func (r AddPageNumbers) Validate() []ValidationError {
	var errs []ValidationError
	if r.StartAt < 0 {
		errs = append(errs, verr(r.Kind(), "start_at", CodeBadValue, "start_at must not be negative"))
	}
	switch r.Position {
	case "", PosTopLeft, PosTopCenter, PosTopRight, PosBottomLeft, PosBottomCenter, PosBottomRight:
	default:
		errs = append(errs, verr(r.Kind(), "position", CodeBadEnum,
			fmt.Sprintf("unknown position %q", r.Position)))
	}
	if !fontSizeValid(r.FontSize) {
		errs = append(errs, verr(r.Kind(), "font_size", CodeBadValue,
			fmt.Sprintf("font size %g outside [8, 72]", r.FontSize)))
	}
	if r.Template != "" && !strings.Contains(r.Template, "{n}") {
		errs = append(errs, verr(r.Kind(), "template", CodeBadValue,
			"template must contain the {n} placeholder"))
	}
	return errs
}

func (r AddPageNumbers) ValidateAgainst(document.Meta) []ValidationError { return nil }

func (r AddPageNumbers) Project(meta document.Meta, _ MetaLookup) (document.Meta, error) {
	return meta.Clone(), nil
}

// AddTextAnnotation places one free-standing text note at a page-space point.
type AddTextAnnotation struct {
	Page     int          `json:"page"`
	Text     string       `json:"text"`
	At       coords.Point `json:"at"`
	FontSize float64      `json:"font_size,omitempty"`
	Color    Color        `json:"color,omitempty"`
}

func (r AddTextAnnotation) Kind() Kind { return KindAddTextAnnotation }

func (r AddTextAnnotation) Validate() []ValidationError {
	var errs []ValidationError
	if strings.TrimSpace(r.Text) == "" {
		errs = append(errs, verr(r.Kind(), "text", CodeMissingField, "annotation text is required"))
	}
	if !fontSizeValid(r.FontSize) {
		errs = append(errs, verr(r.Kind(), "font_size", CodeBadValue,
			fmt.Sprintf("font size %g outside [8, 72]", r.FontSize)))
	}
	if !r.Color.inRange() {
		errs = append(errs, verr(r.Kind(), "color", CodeBadValue, "color components outside [0, 1]"))
	}
	return errs
}

func (r AddTextAnnotation) ValidateAgainst(meta document.Meta) []ValidationError {
	errs := checkPages(r.Kind(), "page", []int{r.Page}, meta)
	if len(errs) == 0 {
		size := meta.Page(r.Page)
		if !(coords.Rect{W: size.Width, H: size.Height}).Contains(r.At) {
			errs = append(errs, verr(r.Kind(), "at", CodeOutOfBounds,
				fmt.Sprintf("point (%g, %g) outside page %d bounds (%gx%g)",
					r.At.X, r.At.Y, r.Page, size.Width, size.Height)))
		}
	}
	return errs
}

func (r AddTextAnnotation) Project(meta document.Meta, _ MetaLookup) (document.Meta, error) {
	return meta.Clone(), nil
}

// AddBackground fills the referenced pages with a flat color behind content.
type AddBackground struct {
	Color   Color   `json:"color"`
	Opacity float64 `json:"opacity,omitempty"`
	Pages   []int   `json:"pages,omitempty"`
}

func (r AddBackground) Kind() Kind { return KindAddBackground }

func (r AddBackground) Validate() []ValidationError {
	var errs []ValidationError
	if !r.Color.inRange() {
		errs = append(errs, verr(r.Kind(), "color", CodeBadValue, "color components outside [0, 1]"))
	}
	if !opacityValid(r.Opacity) {
		errs = append(errs, verr(r.Kind(), "opacity", CodeBadValue,
			fmt.Sprintf("opacity %g outside [0, 1]", r.Opacity)))
	}
	return errs
}

func (r AddBackground) ValidateAgainst(meta document.Meta) []ValidationError {
	return checkPages(r.Kind(), "pages", r.Pages, meta)
}

func (r AddBackground) Project(meta document.Meta, _ MetaLookup) (document.Meta, error) {
	return meta.Clone(), nil
}

// AddBorder strokes a rectangular border inside the referenced pages' edges.
type AddBorder struct {
	Pages []int   `json:"pages,omitempty"`
	Width float64 `json:"width"`
	Color Color   `json:"color,omitempty"`
}

func (r AddBorder) Kind() Kind { return KindAddBorder }

func (r AddBorder) Validate() []ValidationError {
	var errs []ValidationError
	if r.Width <= 0 {
		errs = append(errs, verr(r.Kind(), "width", CodeBadValue,
			fmt.Sprintf("border width %g must be positive", r.Width)))
	}
	if !r.Color.inRange() {
		errs = append(errs, verr(r.Kind(), "color", CodeBadValue, "color components outside [0, 1]"))
	}
	return errs
}

func (r AddBorder) ValidateAgainst(meta document.Meta) []ValidationError {
	return checkPages(r.Kind(), "pages", r.Pages, meta)
}

func (r AddBorder) Project(meta document.Meta, _ MetaLookup) (document.Meta, error) {
	return meta.Clone(), nil
}
