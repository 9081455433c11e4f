// Package preview caches transient pipeline runs keyed by the content
// fingerprint of the requested rule list. Re-requesting an identical plan
// reuses the retained generation; requesting a different plan for the same
// document supersedes the old one: its execution is cancelled and a late
// result is discarded rather than served. At most one generation per
// document is retained, which bounds resource usage while a user is rapidly
// tweaking a plan.
package preview

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wudi/pdfstudio/document"
	"github.com/wudi/pdfstudio/observability"
	"github.com/wudi/pdfstudio/pipeline"
	"github.com/wudi/pdfstudio/rules"
)

// ErrSuperseded reports that a newer request replaced this generation. Not a
// user-facing failure: there is simply no result for this generation and a
// newer one exists.
var ErrSuperseded = errors.New("preview: superseded by a newer request")

// Runner executes one preview plan. *pipeline.Executor satisfies it.
type Runner interface {
	Execute(ctx context.Context, doc document.Handle, list rules.List, mode pipeline.Mode) (*pipeline.Result, error)
}

// Generation is a handle to one asynchronous preview computation.
type Generation struct {
	docID       string
	fingerprint string

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu          sync.Mutex
	result      *pipeline.Result
	err         error
	completedAt time.Time
}

// Fingerprint identifies the plan this generation renders.
func (g *Generation) Fingerprint() string { return g.fingerprint }

// Done is closed when the generation has a result, an error, or was
// superseded.
func (g *Generation) Done() <-chan struct{} { return g.done }

// Result blocks until the generation settles or ctx expires.
func (g *Generation) Result(ctx context.Context) (*pipeline.Result, error) {
	select {
	case <-g.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.result, g.err
}

func (g *Generation) settle(res *pipeline.Result, err error) {
	g.once.Do(func() {
		g.mu.Lock()
		g.result = res
		g.err = err
		g.completedAt = time.Now()
		g.mu.Unlock()
		close(g.done)
	})
}

func (g *Generation) settled() bool {
	select {
	case <-g.done:
		return true
	default:
		return false
	}
}

// Config tunes the cache.
type Config struct {
	// TTL is how long a settled generation stays reusable. Zero means 2m.
	TTL    time.Duration
	Logger observability.Logger
}

// Cache retains at most one preview generation per document.
type Cache struct {
	run    Runner
	ttl    time.Duration
	logger observability.Logger

	mu    sync.Mutex
	byDoc map[string]*Generation

	stopJanitor chan struct{}
	stopOnce    sync.Once
}

// New builds a cache and starts its eviction janitor.
func New(run Runner, cfg Config) *Cache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger{}
	}
	c := &Cache{
		run:         run,
		ttl:         ttl,
		logger:      logger,
		byDoc:       make(map[string]*Generation),
		stopJanitor: make(chan struct{}),
	}
	go c.janitor()
	return c
}

// Request returns the generation rendering the given plan for the document.
// An identical in-flight or fresh settled generation is reused, including
// cached failures, so repeated identical requests never re-fail expensively.
// A different fingerprint supersedes and cancels the retained generation.
func (c *Cache) Request(doc document.Handle, list rules.List) *Generation {
	fp := list.Fingerprint()

	c.mu.Lock()
	if g, ok := c.byDoc[doc.ID()]; ok {
		if g.fingerprint == fp && !c.expired(g) {
			c.mu.Unlock()
			c.logger.Debug("preview cache hit",
				observability.String("document", doc.ID()),
				observability.String("fingerprint", fp),
			)
			return g
		}
		c.supersedeLocked(g)
	}

	ctx, cancel := context.WithCancel(context.Background())
	g := &Generation{
		docID:       doc.ID(),
		fingerprint: fp,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	c.byDoc[doc.ID()] = g
	c.mu.Unlock()

	go c.generate(ctx, g, doc, list)
	return g
}

// Cancel drops the generation if it is still the retained one for its
// document and signals its execution to stop.
func (c *Cache) Cancel(g *Generation) {
	if g == nil {
		return
	}
	c.mu.Lock()
	if c.byDoc[g.docID] == g {
		delete(c.byDoc, g.docID)
	}
	c.supersedeLocked(g)
	c.mu.Unlock()
}

// Close stops the janitor and cancels every retained in-flight generation.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stopJanitor) })
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, g := range c.byDoc {
		delete(c.byDoc, id)
		c.supersedeLocked(g)
	}
}

func (c *Cache) generate(ctx context.Context, g *Generation, doc document.Handle, list rules.List) {
	res, err := c.run.Execute(ctx, doc, list, pipeline.ModePreview)

	c.mu.Lock()
	retained := c.byDoc[g.docID] == g
	c.mu.Unlock()
	if !retained {
		// A newer request won while we were rendering; the result, even a
		// successful one, is discarded rather than served.
		g.settle(nil, ErrSuperseded)
		return
	}
	if err != nil {
		c.logger.Debug("preview generation failed",
			observability.String("document", g.docID),
			observability.Error("error", err),
		)
	}
	g.settle(res, err)
}

// supersedeLocked cancels a generation and settles any waiters that have not
// already seen a result. Callers hold c.mu.
func (c *Cache) supersedeLocked(g *Generation) {
	g.cancel()
	if !g.settled() {
		g.settle(nil, ErrSuperseded)
	}
}

func (c *Cache) expired(g *Generation) bool {
	if !g.settled() {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return time.Since(g.completedAt) > c.ttl
}

func (c *Cache) janitor() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopJanitor:
			return
		case <-ticker.C:
			c.mu.Lock()
			for id, g := range c.byDoc {
				if c.expired(g) {
					delete(c.byDoc, id)
				}
			}
			c.mu.Unlock()
		}
	}
}
