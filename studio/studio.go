// Package studio wires the document pipeline into one facade: uploads, rule
// list validation, preview generation, commits, and overlay authoring
// sessions.
package studio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wudi/pdfstudio/authoring"
	"github.com/wudi/pdfstudio/document"
	"github.com/wudi/pdfstudio/observability"
	"github.com/wudi/pdfstudio/pipeline"
	"github.com/wudi/pdfstudio/preview"
	"github.com/wudi/pdfstudio/redact"
	"github.com/wudi/pdfstudio/render"
	"github.com/wudi/pdfstudio/rules"
	"github.com/wudi/pdfstudio/store"
)

// Config tunes a studio instance.
type Config struct {
	// DataDir is where blobs and the artifact index live. Empty uses a
	// temporary directory, which suits tests and one-shot CLI runs.
	DataDir string
	// PreviewTTL bounds how long settled previews stay reusable.
	PreviewTTL time.Duration
	// Locator resolves redaction terms; nil uses the process default.
	Locator redact.Locator
	Logger  observability.Logger
	Tracer  observability.Tracer
}

// Studio is the full document-editing core.
type Studio struct {
	engine    *render.Engine
	blobs     store.BlobStore
	index     *store.Index
	artifacts *store.Artifacts
	executor  *pipeline.Executor
	previews  *preview.Cache
	logger    observability.Logger
}

// New wires a studio.
func New(cfg Config) (*Studio, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger{}
	}

	dataDir := cfg.DataDir
	if dataDir == "" {
		tmp, err := os.MkdirTemp("", "pdfstudio-")
		if err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		dataDir = tmp
	}
	blobs, err := store.NewFS(filepath.Join(dataDir, "blobs"))
	if err != nil {
		return nil, err
	}
	index, err := store.OpenIndex(dataDir)
	if err != nil {
		return nil, err
	}

	engine := render.New(render.Config{
		Locator: cfg.Locator,
		Blobs:   blobs,
		Logger:  logger,
	})
	artifacts := store.NewArtifacts(blobs, index, engine, logger)
	executor := pipeline.NewExecutor(engine, engine, artifacts, pipeline.Config{
		Logger: logger,
		Tracer: cfg.Tracer,
	})
	previews := preview.New(executor, preview.Config{
		TTL:    cfg.PreviewTTL,
		Logger: logger,
	})

	return &Studio{
		engine:    engine,
		blobs:     blobs,
		index:     index,
		artifacts: artifacts,
		executor:  executor,
		previews:  previews,
		logger:    logger,
	}, nil
}

// Upload registers a document and returns its handle.
func (s *Studio) Upload(data []byte, pages []document.PageSize) document.Handle {
	return s.engine.Load(data, pages)
}

// PutBlob stores an image payload for add-image rules and image overlay
// elements, returning the reference to use in rules.
func (s *Studio) PutBlob(data []byte) (string, error) {
	return s.blobs.Put(data)
}

// SubmitRuleList validates a plan against the document without running it.
func (s *Studio) SubmitRuleList(doc document.Handle, list rules.List) error {
	return s.executor.Preflight(doc, list)
}

// RequestPreview starts (or reuses) the preview generation for the plan.
func (s *Studio) RequestPreview(doc document.Handle, list rules.List) *preview.Generation {
	return s.previews.Request(doc, list)
}

// CancelPreview drops a preview generation.
func (s *Studio) CancelPreview(g *preview.Generation) {
	s.previews.Cancel(g)
}

// Commit runs the plan to completion and persists the artifact.
func (s *Studio) Commit(ctx context.Context, doc document.Handle, list rules.List) (*pipeline.Result, error) {
	return s.executor.Execute(ctx, doc, list, pipeline.ModeCommit)
}

// Rasterize renders one page of a document version to PNG, for preview
// serving.
func (s *Studio) Rasterize(ctx context.Context, doc document.Handle, page int, scale float64) ([]byte, error) {
	return s.engine.Rasterize(ctx, doc, page, scale)
}

// OpenSession starts an overlay authoring session for the document.
func (s *Studio) OpenSession(doc document.Handle) *authoring.Session {
	return authoring.NewSession(doc, s.logger)
}

// OpenArtifact returns the stored bytes of a committed artifact.
func (s *Studio) OpenArtifact(ref string) ([]byte, error) {
	return s.artifacts.Open(ref)
}

// Artifacts lists a document's committed artifacts, newest first.
func (s *Studio) Artifacts(documentID string) ([]store.Artifact, error) {
	return s.index.ByDocument(documentID)
}

// Close releases the preview cache and the artifact index.
func (s *Studio) Close() error {
	s.previews.Close()
	return s.index.Close()
}
