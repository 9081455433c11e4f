// Package pipeline folds an ordered rule list over a document handle,
// delegating content mutation to an external rendering capability. Execution
// is all-or-nothing: either every rule applies and a new handle (plus, in
// commit mode, a durable artifact reference) is produced, or the first
// failure aborts the whole run with nothing persisted.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wudi/pdfstudio/document"
	"github.com/wudi/pdfstudio/rules"
)

// Mode selects between a cheap, cancellable preview run and a durable commit.
type Mode int

const (
	ModePreview Mode = iota
	ModeCommit
)

func (m Mode) String() string {
	if m == ModeCommit {
		return "commit"
	}
	return "preview"
}

// Renderer is the external rendering capability: it applies one
// already-validated rule and returns a new immutable handle, and rasterizes a
// page for preview serving.
type Renderer interface {
	RenderRule(ctx context.Context, h document.Handle, r rules.Rule) (document.Handle, error)
	Rasterize(ctx context.Context, h document.Handle, page int, scale float64) ([]byte, error)
}

// DocumentSource resolves referenced documents such as merge sources. It
// replaces any process-wide registry: the executor only sees what is
// injected here.
type DocumentSource interface {
	Resolve(id string) (document.Handle, bool)
}

// ArtifactRef is a durable reference to a committed output.
type ArtifactRef struct {
	ID          string    `json:"id"`
	DocumentID  string    `json:"document_id"`
	Fingerprint string    `json:"fingerprint"`
	ByteSize    int64     `json:"byte_size"`
	CreatedAt   time.Time `json:"created_at"`
}

// ArtifactStore persists the final document of a commit run.
type ArtifactStore interface {
	Persist(ctx context.Context, final document.Handle, fingerprint string) (ArtifactRef, error)
}

// Advisory is a non-fatal observation surfaced alongside a successful run,
// e.g. a compression target that could not be met.
type Advisory struct {
	RuleIndex int        `json:"rule_index"`
	RuleKind  rules.Kind `json:"rule_kind"`
	Code      string     `json:"code"`
	Message   string     `json:"message"`
}

const (
	AdvisoryTargetNotMet = "compression-target-not-met"
	AdvisorySizeIncrease = "compression-size-increase"
)

// Result is the outcome of a successful execution. Artifact is nil in
// preview mode; the document handle there is only guaranteed to outlive the
// preview cache entry that requested it.
type Result struct {
	Document   document.Handle
	Artifact   *ArtifactRef
	Advisories []Advisory
	Mode       Mode
}

// ErrEmptyRuleList rejects execution plans with no rules.
var ErrEmptyRuleList = errors.New("pipeline: empty rule list")

// ErrCommitInFlight is the conflict error returned when a commit is requested
// for a document that already has one committing execution in flight. Callers
// should retry; commits are rejected rather than queued.
var ErrCommitInFlight = errors.New("pipeline: commit already in flight for this document")

// StepError identifies the first rule that failed, either structurally
// (Validation set, the renderer was never called for it) or during rendering
// (Err set).
type StepError struct {
	RuleIndex  int
	RuleKind   rules.Kind
	Validation rules.ValidationErrors
	Err        error
}

func (e *StepError) Error() string {
	if len(e.Validation) > 0 {
		return fmt.Sprintf("rule %d (%s) invalid: %s", e.RuleIndex, e.RuleKind, e.Validation.Error())
	}
	return fmt.Sprintf("rule %d (%s) failed: %v", e.RuleIndex, e.RuleKind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
