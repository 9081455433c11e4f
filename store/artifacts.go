package store

import (
	"context"
	"fmt"
	"time"

	"github.com/wudi/pdfstudio/document"
	"github.com/wudi/pdfstudio/observability"
	"github.com/wudi/pdfstudio/pipeline"
)

var now = time.Now

// Exporter serializes a final document version to its artifact bytes. The
// rendering engine provides this.
type Exporter interface {
	Export(ctx context.Context, h document.Handle) ([]byte, error)
}

// Artifacts persists committed pipeline results: exported bytes into a blob
// store, the reference record into the index. Implements
// pipeline.ArtifactStore.
type Artifacts struct {
	blobs    BlobStore
	index    *Index
	exporter Exporter
	logger   observability.Logger
}

// NewArtifacts wires an artifact store.
func NewArtifacts(blobs BlobStore, index *Index, exporter Exporter, logger observability.Logger) *Artifacts {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Artifacts{blobs: blobs, index: index, exporter: exporter, logger: logger}
}

// Persist exports the document, stores the payload, and records the artifact.
func (s *Artifacts) Persist(ctx context.Context, h document.Handle, fingerprint string) (pipeline.ArtifactRef, error) {
	data, err := s.exporter.Export(ctx, h)
	if err != nil {
		return pipeline.ArtifactRef{}, fmt.Errorf("export document %s: %w", h.ID(), err)
	}
	addr, err := s.blobs.Put(data)
	if err != nil {
		return pipeline.ArtifactRef{}, fmt.Errorf("store artifact blob: %w", err)
	}

	ref := pipeline.ArtifactRef{
		ID:          document.NewID(),
		DocumentID:  h.ID(),
		Fingerprint: fingerprint,
		ByteSize:    h.Meta().ByteSize,
		CreatedAt:   now(),
	}
	record := Artifact{
		Ref:         ref.ID,
		DocumentID:  ref.DocumentID,
		Fingerprint: ref.Fingerprint,
		BlobAddr:    addr,
		ByteSize:    ref.ByteSize,
		CreatedAt:   ref.CreatedAt,
	}
	if err := s.index.Record(record); err != nil {
		return pipeline.ArtifactRef{}, err
	}

	s.logger.Info("artifact persisted",
		observability.String("artifact", ref.ID),
		observability.String("document", ref.DocumentID),
		observability.String("fingerprint", fingerprint),
		observability.Int64(observability.MetricArtifactBytes, ref.ByteSize),
	)
	return ref, nil
}

// Open returns the stored bytes for an artifact reference.
func (s *Artifacts) Open(ref string) ([]byte, error) {
	record, err := s.index.Lookup(ref)
	if err != nil {
		return nil, err
	}
	return s.blobs.Get(record.BlobAddr)
}
