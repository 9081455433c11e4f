// Package render provides the in-memory reference implementation of the
// rendering capability the pipeline folds over. It maintains a lightweight
// page model (dimensions, rotation, content marks, security state) rather
// than real PDF object streams; the production engine remains an external
// collaborator behind the same interface.
package render

import (
	"context"
	"fmt"
	"sync"

	"github.com/wudi/pdfstudio/document"
	"github.com/wudi/pdfstudio/observability"
	"github.com/wudi/pdfstudio/redact"
	"github.com/wudi/pdfstudio/rules"
)

// BlobSource resolves stored payloads referenced by add-image rules and
// image overlay elements.
type BlobSource interface {
	Has(ref string) bool
}

// Config carries the engine's collaborators.
type Config struct {
	// Locator finds redaction term occurrences on rasterized pages. Nil uses
	// the process default (noop unless a recognition engine is linked in).
	Locator redact.Locator
	// LocatorOptions are applied to every page image submitted to the
	// locator (languages, DPI, engine knobs).
	LocatorOptions []redact.Option
	// Blobs resolves image references. Nil skips reference resolution and
	// accepts any ref.
	Blobs  BlobSource
	Logger observability.Logger
}

// mark is one recorded content operation on a page.
type mark struct {
	op     rules.Kind
	detail string
}

// pageState is the engine's model of one page.
type pageState struct {
	size     document.PageSize
	rotation int // degrees clockwise, multiple of 90
	marks    []mark
}

// docState is one immutable document version. Every applied rule produces a
// new state under a new handle; states are never mutated in place.
type docState struct {
	meta   document.Meta
	pages  []pageState
	format rules.OutputFormat
	encKey []byte
	salt   []byte
}

// Engine implements the pipeline's Renderer and DocumentSource capabilities.
type Engine struct {
	locator     redact.Locator
	locatorOpts []redact.Option
	blobs       BlobSource
	logger      observability.Logger

	mu   sync.RWMutex
	docs map[string]*docState
}

// New builds an engine.
func New(cfg Config) *Engine {
	locator := cfg.Locator
	if locator == nil {
		locator = redact.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Engine{
		locator:     locator,
		locatorOpts: cfg.LocatorOptions,
		blobs:       cfg.Blobs,
		logger:      logger,
		docs:        make(map[string]*docState),
	}
}

// Load registers an uploaded document and returns its handle.
func (e *Engine) Load(data []byte, pages []document.PageSize) document.Handle {
	meta := document.Meta{
		PageCount: len(pages),
		Pages:     append([]document.PageSize(nil), pages...),
		ByteSize:  int64(len(data)),
	}
	meta.Security.Permissions = document.AllPermissions()
	states := make([]pageState, len(pages))
	for i, size := range pages {
		states[i] = pageState{size: size}
	}
	h := document.NewHandle(meta)
	e.mu.Lock()
	e.docs[h.ID()] = &docState{meta: meta, pages: states, format: rules.FormatPDF}
	e.mu.Unlock()
	e.logger.Debug("document loaded",
		observability.String("document", h.ID()),
		observability.Int("pages", len(pages)),
		observability.Int64("bytes", int64(len(data))),
	)
	return h
}

// Resolve implements pipeline.DocumentSource.
func (e *Engine) Resolve(id string) (document.Handle, bool) {
	e.mu.RLock()
	state, ok := e.docs[id]
	e.mu.RUnlock()
	if !ok {
		return document.Handle{}, false
	}
	return document.NewHandleWithID(id, state.meta), true
}

// RenderRule applies one already-validated rule and returns the handle of
// the new document version.
func (e *Engine) RenderRule(ctx context.Context, h document.Handle, r rules.Rule) (document.Handle, error) {
	if err := ctx.Err(); err != nil {
		return document.Handle{}, err
	}
	e.mu.RLock()
	state, ok := e.docs[h.ID()]
	e.mu.RUnlock()
	if !ok {
		return document.Handle{}, fmt.Errorf("render: unknown document %s", h.ID())
	}

	next, err := e.apply(ctx, h.ID(), state, r)
	if err != nil {
		return document.Handle{}, err
	}
	if len(next.pages) != next.meta.PageCount {
		return document.Handle{}, fmt.Errorf("render: %s left %d page states for %d pages",
			r.Kind(), len(next.pages), next.meta.PageCount)
	}

	out := document.NewHandle(next.meta)
	e.mu.Lock()
	e.docs[out.ID()] = next
	e.mu.Unlock()
	return out, nil
}

func (e *Engine) lookup() rules.MetaLookup {
	return func(id string) (document.Meta, bool) {
		e.mu.RLock()
		defer e.mu.RUnlock()
		state, ok := e.docs[id]
		if !ok {
			return document.Meta{}, false
		}
		return state.meta, true
	}
}

// state fetches a document's model for rasterization and export.
func (e *Engine) state(id string) (*docState, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	state, ok := e.docs[id]
	if !ok {
		return nil, fmt.Errorf("render: unknown document %s", id)
	}
	return state, nil
}

// Forget drops a document version from the engine. Intermediate fold states
// can be released once an execution finishes.
func (e *Engine) Forget(id string) {
	e.mu.Lock()
	delete(e.docs, id)
	e.mu.Unlock()
}
