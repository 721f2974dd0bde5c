package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
)

var (
	// ErrClosed is returned by Get when the cache was closed before any generation was built.
	ErrClosed = errors.New("retrieval cache closed")
	// ErrModelMismatch is returned by Seed for a generation embedded with another model.
	ErrModelMismatch = errors.New("generation embedded with a different model")

	// ErrInvalidGeneration is returned by Seed for a generation holding a vector
	// that could never be ranked.
	ErrInvalidGeneration = errors.New("generation holds an invalid vector")
)

// Config holds the cache timing parameters.
type Config struct {
	// TTL is the age after which a generation is stale. Zero disables expiry.
	TTL time.Duration
	// RebuildTimeout bounds one rebuild. Zero means no bound beyond Close.
	RebuildTimeout time.Duration
	// RebuildBackoff is the wait after a failed rebuild before Get starts another.
	// Invalidate clears it.
	RebuildBackoff time.Duration
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for rebuild events.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	State         State
	GenerationID  string
	Model         string
	Documents     int
	Chunks        int
	Dimensions    int
	CreatedAt     time.Time
	Age           time.Duration
	Rebuilds      int64
	Failures      int64
	LastError     string
	LastRebuildAt time.Time
}

// flight is one running rebuild. done is closed after gen and err are set.
type flight struct {
	done chan struct{}
	seq  uint64
	gen  *Generation
	err  error
}

// Cache holds the current Generation and rebuilds it from a DocumentSource.
//
// At most one rebuild runs at a time. A stale generation keeps being served
// while its replacement is built; callers only wait when no generation has
// ever been built. A failed rebuild leaves the current generation in place.
// The lock is held only to decide whether to start a rebuild and to swap its
// result in, never while documents are fetched or embedded.
type Cache struct {
	source  DocumentSource
	builder Builder
	cfg     Config
	now     func() time.Time
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.RWMutex
	current       *Generation
	invalidated   bool
	invalidateSeq uint64
	inflight      *flight
	closed        bool
	lastErr       error
	lastFailure   time.Time
	lastRebuild   time.Time
	rebuilds      int64
	failures      int64
}

// New creates an empty cache. No rebuild starts until Get or Warm is called.
func New(source DocumentSource, builder Builder, cfg Config, opts ...Option) *Cache {
	c := &Cache{
		source:  source,
		builder: builder,
		cfg:     cfg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = utils.OrNop(c.logger)
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Get returns the current generation. A fresh generation is returned without
// blocking. A stale one is returned immediately and a rebuild is started in the
// background if none is running. With no generation at all, Get waits for the
// running rebuild or ctx, whichever ends first; a failed first build surfaces
// as ErrRetrievalUnavailable wrapping the cause.
func (c *Cache) Get(ctx context.Context) (*Generation, error) {
	c.mu.RLock()
	if c.freshLocked() {
		g := c.current
		c.mu.RUnlock()
		return g, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	if c.freshLocked() {
		g := c.current
		c.mu.Unlock()
		return g, nil
	}
	f := c.inflight
	if f == nil && !c.closed && !c.backingOffLocked() {
		f = c.startLocked()
	}
	if g := c.current; g != nil {
		c.mu.Unlock()
		return g, nil
	}
	if f == nil {
		err := c.lastErr
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return nil, fmt.Errorf("%w: %w", models.ErrRetrievalUnavailable, ErrClosed)
		}
		return nil, fmt.Errorf("%w: %w", models.ErrRetrievalUnavailable, err)
	}
	c.mu.Unlock()

	select {
	case <-f.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrRetrievalUnavailable, f.err)
	}
	return f.gen, nil
}

// Warm starts a rebuild if the cache is not fresh and none is running. It does not wait.
func (c *Cache) Warm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.freshLocked() || c.inflight != nil || c.closed {
		return
	}
	c.startLocked()
}

// Invalidate marks the current generation stale without discarding it, so the
// next Get starts exactly one rebuild. A running rebuild is not aborted; its
// result is published but also counts as stale, because the documents it read
// may predate the invalidation. Invalidate also clears the failure backoff.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.invalidateSeq++
	c.invalidated = true
	c.lastFailure = time.Time{}
	c.mu.Unlock()
	c.logger.Info("retrieval cache invalidated")
}

// Refresh invalidates the cache and waits for a rebuild that started after the
// invalidation. The rebuild error is returned unwrapped.
func (c *Cache) Refresh(ctx context.Context) (*Generation, error) {
	c.Invalidate()
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, ErrClosed
		}
		f := c.inflight
		if f == nil {
			f = c.startLocked()
		}
		seq := c.invalidateSeq
		c.mu.Unlock()

		select {
		case <-f.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if f.seq == seq {
			return f.gen, f.err
		}
	}
}

// Seed installs a prebuilt generation, typically one read from an offline
// index. It is rejected when the generation was embedded with a model or a
// vector size other than the builder's, or when any vector is invalid.
// An older generation never replaces a newer one.
func (c *Cache) Seed(g *Generation) error {
	if want := c.builder.ModelName(); g.Model != want {
		return fmt.Errorf("%w: %s, want %s", ErrModelMismatch, g.Model, want)
	}
	if want := c.builder.Dimensions(); want > 0 && len(g.Chunks) > 0 && g.Dimensions != want {
		return fmt.Errorf("%w: generation has %d dimensions, embedder produces %d", ErrModelMismatch, g.Dimensions, want)
	}
	for _, ch := range g.Chunks {
		if err := vector.Check(ch.Vector, g.Dimensions); err != nil {
			return fmt.Errorf("%w: chunk %s: %w", ErrInvalidGeneration, ch.Chunk.Key(), err)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && !g.CreatedAt.After(c.current.CreatedAt) {
		return nil
	}
	c.current = g
	c.invalidated = false
	c.logger.Info("retrieval cache seeded",
		zap.String("generation", g.ID),
		zap.Int("chunks", len(g.Chunks)),
		zap.Time("created_at", g.CreatedAt))
	return nil
}

// State reports the lifecycle state.
func (c *Cache) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stateLocked()
}

// Stats reports the current generation and rebuild counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Stats{
		State:         c.stateLocked(),
		Rebuilds:      c.rebuilds,
		Failures:      c.failures,
		LastRebuildAt: c.lastRebuild,
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	if g := c.current; g != nil {
		s.GenerationID = g.ID
		s.Model = g.Model
		s.Documents = g.Documents
		s.Chunks = len(g.Chunks)
		s.Dimensions = g.Dimensions
		s.CreatedAt = g.CreatedAt
		s.Age = g.Age(c.now())
	}
	return s
}

// Close cancels a running rebuild and waits for it to return. Generations
// already built stay readable through Get.
func (c *Cache) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
	return nil
}

func (c *Cache) freshLocked() bool {
	if c.current == nil || c.invalidated {
		return false
	}
	return c.cfg.TTL <= 0 || c.current.Age(c.now()) < c.cfg.TTL
}

func (c *Cache) backingOffLocked() bool {
	if c.cfg.RebuildBackoff <= 0 || c.lastFailure.IsZero() {
		return false
	}
	return c.now().Sub(c.lastFailure) < c.cfg.RebuildBackoff
}

func (c *Cache) stateLocked() State {
	switch {
	case c.inflight != nil:
		return StatePopulating
	case c.current == nil:
		return StateEmpty
	case c.freshLocked():
		return StateReady
	default:
		return StateStale
	}
}

// startLocked launches a rebuild. c.mu must be held for writing.
func (c *Cache) startLocked() *flight {
	f := &flight{done: make(chan struct{}), seq: c.invalidateSeq}
	c.inflight = f
	c.rebuilds++
	c.lastRebuild = c.now()
	c.wg.Add(1)
	go c.rebuild(f)
	return f
}

func (c *Cache) rebuild(f *flight) {
	defer c.wg.Done()
	defer close(f.done)

	ctx := c.ctx
	if c.cfg.RebuildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RebuildTimeout)
		defer cancel()
	}

	start := time.Now()
	c.logger.Info("rebuilding retrieval cache")
	gen, err := c.build(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight = nil
	f.gen, f.err = gen, err
	if err != nil {
		c.lastErr = err
		c.lastFailure = c.now()
		c.failures++
		kept := ""
		if c.current != nil {
			kept = c.current.ID
		}
		c.logger.Warn("retrieval cache rebuild failed",
			zap.String("kind", models.Kind(err)),
			zap.String("kept_generation", kept),
			zap.Error(err))
		return
	}
	if c.current != nil && c.current.Model != gen.Model {
		c.logger.Info("embedding model changed",
			zap.String("from", c.current.Model),
			zap.String("to", gen.Model))
	}
	c.current = gen
	c.invalidated = c.invalidateSeq != f.seq
	c.lastErr = nil
	c.lastFailure = time.Time{}
	c.logger.Info("retrieval cache rebuilt",
		zap.String("generation", gen.ID),
		zap.Int("documents", gen.Documents),
		zap.Int("chunks", len(gen.Chunks)),
		zap.Int("dimensions", gen.Dimensions),
		zap.Duration("duration", time.Since(start)))
}

func (c *Cache) build(ctx context.Context) (*Generation, error) {
	docs, err := c.source.ListPublishedDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list published documents: %w", err)
	}
	res, err := c.builder.Run(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	return NewGeneration(res, len(docs), c.now()), nil
}
