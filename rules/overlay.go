package rules

import (
	"fmt"

	"github.com/wudi/pdfstudio/coords"
	"github.com/wudi/pdfstudio/document"
)

// ElementType tags one overlay element variant.
type ElementType string

const (
	ElementText         ElementType = "text"
	ElementImage        ElementType = "image"
	ElementHighlight    ElementType = "highlight"
	ElementStickyNote   ElementType = "sticky-note"
	ElementShape        ElementType = "shape"
	ElementRedactionBox ElementType = "redaction-box"
)

// TextSpan is one styled run of compiled rich text.
type TextSpan struct {
	Text    string `json:"text"`
	Bold    bool   `json:"bold,omitempty"`
	Italic  bool   `json:"italic,omitempty"`
	Heading int    `json:"heading,omitempty"`
}

// OverlayElement is one user-authored edit object, addressed in page-space
// coordinates so compiled overlays apply correctly regardless of the zoom at
// which they were authored. Only the fields relevant to Type are meaningful.
type OverlayElement struct {
	ID       string       `json:"id,omitempty"`
	Type     ElementType  `json:"type"`
	Page     int          `json:"page"`
	Position coords.Point `json:"position"`
	Width    float64      `json:"width,omitempty"`
	Height   float64      `json:"height,omitempty"`

	// Text and sticky-note elements.
	Text   string     `json:"text,omitempty"`
	Markup string     `json:"markup,omitempty"` // "", "markdown" or "html"
	Spans  []TextSpan `json:"spans,omitempty"`  // compiled from Text at compile time

	// Image elements.
	ImageRef string `json:"image_ref,omitempty"`

	// Shape elements.
	Shape string `json:"shape,omitempty"` // "rect", "ellipse" or "line"

	FontSize float64 `json:"font_size,omitempty"`
	Color    Color   `json:"color,omitempty"`
	Opacity  float64 `json:"opacity,omitempty"`
}

// Bounds returns the element's page-space extent.
func (e OverlayElement) Bounds() coords.Rect {
	return coords.Rect{X: e.Position.X, Y: e.Position.Y, W: e.Width, H: e.Height}
}

// Validate reports structural problems with the element itself.
func (e OverlayElement) Validate() []ValidationError {
	var errs []ValidationError
	add := func(field, code, reason string) {
		errs = append(errs, verr(KindApplyOverlay, field, code, reason))
	}
	if e.Page < 1 {
		add("page", CodeBadValue, fmt.Sprintf("element page %d must be at least 1", e.Page))
	}
	if !opacityValid(e.Opacity) {
		add("opacity", CodeBadValue, fmt.Sprintf("opacity %g outside [0, 1]", e.Opacity))
	}
	if !fontSizeValid(e.FontSize) {
		add("font_size", CodeBadValue, fmt.Sprintf("font size %g outside [8, 72]", e.FontSize))
	}
	switch e.Markup {
	case "", "markdown", "html":
	default:
		add("markup", CodeBadEnum, fmt.Sprintf("unknown markup %q", e.Markup))
	}
	switch e.Type {
	case ElementText, ElementStickyNote:
		if e.Text == "" && len(e.Spans) == 0 {
			add("text", CodeMissingField, fmt.Sprintf("%s element needs text", e.Type))
		}
	case ElementImage:
		if e.ImageRef == "" {
			add("image_ref", CodeMissingField, "image element needs an image reference")
		}
		if e.Width <= 0 || e.Height <= 0 {
			add("width", CodeBadValue, "image element needs a positive extent")
		}
	case ElementHighlight, ElementRedactionBox:
		if e.Width <= 0 || e.Height <= 0 {
			add("width", CodeBadValue, fmt.Sprintf("%s element needs a positive extent", e.Type))
		}
	case ElementShape:
		switch e.Shape {
		case "rect", "ellipse", "line":
		default:
			add("shape", CodeBadEnum, fmt.Sprintf("unknown shape %q", e.Shape))
		}
		if e.Width <= 0 && e.Height <= 0 {
			add("width", CodeBadValue, "shape element needs a positive extent")
		}
	default:
		add("type", CodeBadEnum, fmt.Sprintf("unknown element type %q", e.Type))
	}
	return errs
}

// ApplyOverlay carries the full compiled element set of an authoring session.
// The renderer applies it as one atomic step; partial overlay application is
// never observable.
type ApplyOverlay struct {
	Elements []OverlayElement `json:"elements"`
}

func (r ApplyOverlay) Kind() Kind { return KindApplyOverlay }

func (r ApplyOverlay) Validate() []ValidationError {
	if len(r.Elements) == 0 {
		return []ValidationError{verr(r.Kind(), "elements", CodeEmpty, "overlay has no elements")}
	}
	var errs []ValidationError
	for i, el := range r.Elements {
		for _, e := range el.Validate() {
			e.Field = fmt.Sprintf("elements[%d].%s", i, e.Field)
			errs = append(errs, e)
		}
	}
	return errs
}

func (r ApplyOverlay) ValidateAgainst(meta document.Meta) []ValidationError {
	var errs []ValidationError
	for i, el := range r.Elements {
		if !meta.ValidPage(el.Page) {
			errs = append(errs, verr(r.Kind(), fmt.Sprintf("elements[%d].page", i), CodePageOutOfRange,
				fmt.Sprintf("page %d is outside [1, %d]", el.Page, meta.PageCount)))
			continue
		}
		size := meta.Page(el.Page)
		if !(coords.Rect{W: size.Width, H: size.Height}).Contains(el.Position) {
			errs = append(errs, verr(r.Kind(), fmt.Sprintf("elements[%d].position", i), CodeOutOfBounds,
				fmt.Sprintf("position (%g, %g) outside page %d bounds (%gx%g)",
					el.Position.X, el.Position.Y, el.Page, size.Width, size.Height)))
		}
	}
	return errs
}

func (r ApplyOverlay) Project(meta document.Meta, _ MetaLookup) (document.Meta, error) {
	return meta.Clone(), nil
}
