package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wudi/pdfstudio/document"
	"github.com/wudi/pdfstudio/observability"
	"github.com/wudi/pdfstudio/rules"
)

// Config carries optional executor collaborators.
type Config struct {
	Logger observability.Logger
	Tracer observability.Tracer
}

// Executor runs execution plans. Executions for different documents proceed
// fully in parallel; per document, at most one committing execution is in
// flight at a time.
type Executor struct {
	renderer Renderer
	source   DocumentSource
	store    ArtifactStore
	logger   observability.Logger
	tracer   observability.Tracer

	mu         sync.Mutex
	committing map[string]struct{}
}

// NewExecutor wires an executor. source and store may be nil when merge rules
// and commits, respectively, are not used.
func NewExecutor(renderer Renderer, source DocumentSource, store ArtifactStore, cfg Config) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger{}
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	return &Executor{
		renderer:   renderer,
		source:     source,
		store:      store,
		logger:     logger,
		tracer:     tracer,
		committing: make(map[string]struct{}),
	}
}

func (e *Executor) lookup() rules.MetaLookup {
	if e.source == nil {
		return nil
	}
	return func(id string) (document.Meta, bool) {
		h, ok := e.source.Resolve(id)
		if !ok {
			return document.Meta{}, false
		}
		return h.Meta(), true
	}
}

// Preflight validates the whole plan against the projected document state
// without touching the renderer. A nil return means the plan is executable as
// of the document's current state.
func (e *Executor) Preflight(doc document.Handle, list rules.List) error {
	if len(list) == 0 {
		return ErrEmptyRuleList
	}
	if errs := list.Validate(doc.Meta(), e.lookup()); len(errs) > 0 {
		return &StepError{
			RuleIndex:  errs[0].RuleIndex,
			RuleKind:   errs[0].Kind,
			Validation: errs,
		}
	}
	return nil
}

// Execute folds the plan over the source document. Validation errors never
// reach the renderer; a render error aborts the remaining steps with no
// partial artifact. Preview runs honor ctx cancellation between steps; a
// commit, once past preflight, runs to completion or failure as a unit.
func (e *Executor) Execute(ctx context.Context, doc document.Handle, list rules.List, mode Mode) (*Result, error) {
	ctx, span := e.tracer.StartSpan(ctx, "pipeline.execute")
	defer span.Finish()
	span.SetTag("document", doc.ID())
	span.SetTag("mode", mode.String())

	if len(list) == 0 {
		return nil, ErrEmptyRuleList
	}
	if mode == ModeCommit {
		if !e.beginCommit(doc.ID()) {
			span.SetError(ErrCommitInFlight)
			return nil, ErrCommitInFlight
		}
		defer e.endCommit(doc.ID())
	}

	if err := e.Preflight(doc, list); err != nil {
		span.SetError(err)
		return nil, err
	}

	log := e.logger.With(
		observability.String("document", doc.ID()),
		observability.String("mode", mode.String()),
	)
	start := time.Now()

	cur := doc
	var advisories []Advisory
	for i, item := range list {
		if mode == ModePreview {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		r := item.Rule

		// Prior rules may have changed page count or security state, so the
		// running document is re-checked right before each application.
		if errs := rules.Validate(cur.Meta(), r); len(errs) > 0 {
			for j := range errs {
				errs[j].RuleIndex = i
			}
			err := &StepError{RuleIndex: i, RuleKind: r.Kind(), Validation: errs}
			span.SetError(err)
			return nil, err
		}

		before := cur.Meta()
		stepStart := time.Now()
		next, err := e.renderer.RenderRule(ctx, cur, r)
		if err != nil {
			stepErr := &StepError{RuleIndex: i, RuleKind: r.Kind(), Err: err}
			span.SetError(stepErr)
			log.Error("rule failed",
				observability.Int("rule_index", i),
				observability.String("rule_kind", string(r.Kind())),
				observability.Error("error", err),
			)
			return nil, stepErr
		}
		log.Debug("rule applied",
			observability.Int("rule_index", i),
			observability.String("rule_kind", string(r.Kind())),
			observability.Int("pages", next.Meta().PageCount),
			observability.Int64(observability.MetricStepTime, time.Since(stepStart).Milliseconds()),
		)
		advisories = append(advisories, compressAdvisories(i, r, before, next.Meta())...)
		cur = next
	}

	res := &Result{Document: cur, Advisories: advisories, Mode: mode}
	if mode == ModeCommit {
		if e.store == nil {
			return nil, fmt.Errorf("pipeline: commit requested without an artifact store")
		}
		ref, err := e.store.Persist(ctx, cur, list.Fingerprint())
		if err != nil {
			span.SetError(err)
			return nil, fmt.Errorf("persist artifact: %w", err)
		}
		res.Artifact = &ref
	}

	log.Info("execution finished",
		observability.Int(observability.MetricRuleCount, len(list)),
		observability.Int(observability.MetricPageCount, cur.Meta().PageCount),
		observability.Int64(observability.MetricArtifactBytes, cur.Meta().ByteSize),
		observability.Int64(observability.MetricExecuteTime, time.Since(start).Milliseconds()),
	)
	return res, nil
}

func (e *Executor) beginCommit(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.committing[id]; busy {
		return false
	}
	e.committing[id] = struct{}{}
	return true
}

func (e *Executor) endCommit(id string) {
	e.mu.Lock()
	delete(e.committing, id)
	e.mu.Unlock()
}

// compressAdvisories reports a compress step whose custom target was missed
// or exceeded the original size. Never an error: the achieved size is the
// source of truth and the caller only gets a heads-up.
func compressAdvisories(index int, r rules.Rule, before, after document.Meta) []Advisory {
	var c rules.Compress
	switch v := r.(type) {
	case rules.Compress:
		c = v
	case *rules.Compress:
		c = *v
	default:
		return nil
	}
	if c.TargetBytes <= 0 {
		return nil
	}
	var out []Advisory
	if c.TargetBytes > before.ByteSize {
		out = append(out, Advisory{
			RuleIndex: index,
			RuleKind:  c.Kind(),
			Code:      AdvisorySizeIncrease,
			Message: fmt.Sprintf("requested target %d exceeds original size %d",
				c.TargetBytes, before.ByteSize),
		})
	}
	if after.ByteSize > c.TargetBytes {
		out = append(out, Advisory{
			RuleIndex: index,
			RuleKind:  c.Kind(),
			Code:      AdvisoryTargetNotMet,
			Message: fmt.Sprintf("achieved size %d does not meet requested target %d",
				after.ByteSize, c.TargetBytes),
		})
	}
	return out
}
