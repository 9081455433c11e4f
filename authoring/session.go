// Package authoring holds the client-local overlay editing model: an
// in-memory element store with snapshot-based undo/redo whose element set
// compiles into a single apply-overlay rule for the pipeline. Elements live
// in page-space coordinates, so a compiled overlay applies identically
// regardless of the zoom it was authored at.
package authoring

import (
	"errors"
	"fmt"
	"sync"

	"github.com/wudi/pdfstudio/coords"
	"github.com/wudi/pdfstudio/document"
	"github.com/wudi/pdfstudio/observability"
	"github.com/wudi/pdfstudio/rules"
)

var (
	ErrNothingToUndo   = errors.New("authoring: nothing to undo")
	ErrNothingToRedo   = errors.New("authoring: nothing to redo")
	ErrElementNotFound = errors.New("authoring: element not found")
	ErrNoElements      = errors.New("authoring: session has no elements to compile")
)

// Session is one document's authoring state. Safe for concurrent use.
type Session struct {
	meta   document.Meta
	logger observability.Logger

	mu       sync.Mutex
	elements []rules.OverlayElement
	undo     [][]rules.OverlayElement
	redo     [][]rules.OverlayElement
}

// NewSession opens an empty session against a document. The handle's
// metadata pins the page bounds elements are validated against.
func NewSession(doc document.Handle, logger observability.Logger) *Session {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Session{meta: doc.Meta(), logger: logger}
}

// Patch updates individual element fields; nil fields are left untouched.
type Patch struct {
	Position *coords.Point
	Width    *float64
	Height   *float64
	Text     *string
	Markup   *string
	ImageRef *string
	Shape    *string
	FontSize *float64
	Color    *rules.Color
	Opacity  *float64
}

// AddElement validates and stores a new element, returning its assigned id.
func (s *Session) AddElement(el rules.OverlayElement) (string, error) {
	if el.ID == "" {
		el.ID = document.NewID()
	}
	if err := s.checkElement(el); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot()
	s.elements = append(s.elements, el)
	s.logger.Debug("element added",
		observability.String("element", el.ID),
		observability.String("type", string(el.Type)),
	)
	return el.ID, nil
}

// UpdateElement applies a patch to one element. The patched element is
// validated before the session state changes; an invalid patch leaves the
// session and its history untouched.
func (s *Session) UpdateElement(id string, p Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrElementNotFound, id)
	}
	patched := cloneElement(s.elements[idx])
	applyPatch(&patched, p)
	if err := s.checkElement(patched); err != nil {
		return err
	}
	s.snapshot()
	s.elements[idx] = patched
	return nil
}

// RemoveElement deletes one element by id.
func (s *Session) RemoveElement(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrElementNotFound, id)
	}
	s.snapshot()
	s.elements = append(s.elements[:idx:idx], s.elements[idx+1:]...)
	return nil
}

// Elements returns a copy of the current element list.
func (s *Session) Elements() []rules.OverlayElement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneElements(s.elements)
}

// Undo restores the state before the most recent edit.
func (s *Session) Undo() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.undo) == 0 {
		return ErrNothingToUndo
	}
	s.redo = append(s.redo, s.elements)
	s.elements = s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	return nil
}

// Redo reverses the most recent undo.
func (s *Session) Redo() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.redo) == 0 {
		return ErrNothingToRedo
	}
	s.undo = append(s.undo, s.elements)
	s.elements = s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	return nil
}

// CompileToRule projects the element set into one apply-overlay rule,
// compiling rich-text sources into styled spans. It is a pure projection:
// the session, including its history, is left untouched and further edits
// remain possible.
func (s *Session) CompileToRule() (rules.ApplyOverlay, error) {
	s.mu.Lock()
	elements := cloneElements(s.elements)
	s.mu.Unlock()

	if len(elements) == 0 {
		return rules.ApplyOverlay{}, ErrNoElements
	}
	for i := range elements {
		el := &elements[i]
		if el.Markup == "" || (el.Type != rules.ElementText && el.Type != rules.ElementStickyNote) {
			continue
		}
		spans, err := compileRichText(el.Markup, el.Text)
		if err != nil {
			return rules.ApplyOverlay{}, fmt.Errorf("element %s: %w", el.ID, err)
		}
		el.Spans = spans
	}
	return rules.ApplyOverlay{Elements: elements}, nil
}

// snapshot pushes the pre-mutation element list and clears the redo stack.
// Callers hold s.mu.
func (s *Session) snapshot() {
	s.undo = append(s.undo, cloneElements(s.elements))
	s.redo = nil
}

func (s *Session) indexLocked(id string) int {
	for i, el := range s.elements {
		if el.ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) checkElement(el rules.OverlayElement) error {
	errs := rules.ValidationErrors(el.Validate())
	if len(errs) == 0 {
		probe := rules.ApplyOverlay{Elements: []rules.OverlayElement{el}}
		errs = probe.ValidateAgainst(s.meta)
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func applyPatch(el *rules.OverlayElement, p Patch) {
	if p.Position != nil {
		el.Position = *p.Position
	}
	if p.Width != nil {
		el.Width = *p.Width
	}
	if p.Height != nil {
		el.Height = *p.Height
	}
	if p.Text != nil {
		el.Text = *p.Text
	}
	if p.Markup != nil {
		el.Markup = *p.Markup
	}
	if p.ImageRef != nil {
		el.ImageRef = *p.ImageRef
	}
	if p.Shape != nil {
		el.Shape = *p.Shape
	}
	if p.FontSize != nil {
		el.FontSize = *p.FontSize
	}
	if p.Color != nil {
		el.Color = *p.Color
	}
	if p.Opacity != nil {
		el.Opacity = *p.Opacity
	}
}

func cloneElement(el rules.OverlayElement) rules.OverlayElement {
	out := el
	out.Spans = append([]rules.TextSpan(nil), el.Spans...)
	return out
}

func cloneElements(els []rules.OverlayElement) []rules.OverlayElement {
	out := make([]rules.OverlayElement, len(els))
	for i, el := range els {
		out[i] = cloneElement(el)
	}
	return out
}
