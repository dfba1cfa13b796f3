// Package conncache holds a lazily established, process-wide database client.
//
// Request handlers cannot assume a previous request left an open connection, so every
// store operation asks the cache for a handle. The first call dials, later calls reuse the
// cached handle until an asynchronous failure invalidates it. Concurrent first calls may
// both dial; the last successful dial wins.
//
// An invalidated handle is retired, not closed: operations already running on it get
// RetireGrace to finish before its client is released. Close releases every retired client
// immediately.
package conncache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PabloGalante/msgboard/internal/domain"
	"github.com/PabloGalante/msgboard/internal/observability"
)

// Dialer opens a new client. h is the handle the client will be cached under, so the
// dialer can bind invalidation hooks (driver monitors, error callbacks) before the client
// exists.
type Dialer[C any] func(ctx context.Context, h *Handle[C]) (C, error)

type Config[C any] struct {
	Backend string
	// Configured is false when the connection settings are absent.
	Configured     bool
	ConnectTimeout time.Duration
	Dial           Dialer[C]
	Classify       func(error) domain.ConnectionCategory
	Close          func(ctx context.Context, client C) error
	// RetireGrace is how long an invalidated client stays open. Defaults to DefaultRetireGrace.
	RetireGrace time.Duration
	Logger      *slog.Logger
}

const (
	DefaultRetireGrace = 30 * time.Second

	releaseTimeout = 10 * time.Second
)

type Cache[C any] struct {
	cfg     Config[C]
	log     *slog.Logger
	current atomic.Pointer[Handle[C]]

	mu      sync.Mutex
	retired map[*Handle[C]]*time.Timer
}

// Handle is one established connection. It stays usable after invalidation; it is only
// no longer handed out.
type Handle[C any] struct {
	Client C
	cache  *Cache[C]
}

func New[C any](cfg Config[C]) *Cache[C] {
	log := cfg.Logger
	if log == nil {
		log = observability.Logger()
	}
	if cfg.Classify == nil {
		cfg.Classify = func(error) domain.ConnectionCategory { return domain.CategoryOther }
	}
	if cfg.RetireGrace <= 0 {
		cfg.RetireGrace = DefaultRetireGrace
	}
	return &Cache[C]{
		cfg:     cfg,
		log:     log.With("backend", cfg.Backend),
		retired: map[*Handle[C]]*time.Timer{},
	}
}

func (c *Cache[C]) Configured() bool {
	return c.cfg.Configured
}

// Connect returns the cached handle or dials a new one.
// It fails with domain.ErrConfigurationMissing when unconfigured and with a
// *domain.ConnectionError when the dial fails.
func (c *Cache[C]) Connect(ctx context.Context) (*Handle[C], error) {
	if h := c.current.Load(); h != nil {
		return h, nil
	}
	if !c.cfg.Configured {
		return nil, domain.ErrConfigurationMissing
	}

	h := &Handle[C]{cache: c}

	dialCtx := ctx
	if c.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
	}

	start := time.Now()
	client, err := c.cfg.Dial(dialCtx, h)
	if err != nil {
		c.current.Store(nil)
		category := c.cfg.Classify(err)
		c.log.Error("database connection failed",
			"category", category,
			"hint", category.Describe(),
			"error", err,
		)
		return nil, &domain.ConnectionError{Backend: c.cfg.Backend, Category: category, Err: err}
	}

	h.Client = client
	c.current.Store(h)
	c.log.Info("database connected", "duration", time.Since(start))
	return h, nil
}

// Invalidate drops h from the cache if it is still the cached handle.
// A stale handle never evicts a newer one.
func (h *Handle[C]) Invalidate(reason string) bool {
	if h == nil || h.cache == nil {
		return false
	}
	if !h.cache.current.CompareAndSwap(h, nil) {
		return false
	}
	h.cache.log.Warn("database connection invalidated", "reason", reason)
	h.cache.retire(h)
	return true
}

// retire schedules the release of an invalidated handle's client.
func (c *Cache[C]) retire(h *Handle[C]) {
	if c.cfg.Close == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retired[h] = time.AfterFunc(c.cfg.RetireGrace, func() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := c.release(ctx, h); err != nil {
			c.log.Warn("closing retired database connection failed", "error", err)
		}
	})
}

// release closes a retired client once. It is a no-op for handles already released.
func (c *Cache[C]) release(ctx context.Context, h *Handle[C]) error {
	c.mu.Lock()
	t, ok := c.retired[h]
	delete(c.retired, h)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	t.Stop()
	return c.cfg.Close(ctx, h.Client)
}

// Retired reports how many invalidated clients are still waiting to be released.
func (c *Cache[C]) Retired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.retired)
}

// Cached reports whether a handle is currently cached.
func (c *Cache[C]) Cached() bool {
	return c.current.Load() != nil
}

// Close releases the cached client and every retired one.
func (c *Cache[C]) Close(ctx context.Context) error {
	if c.cfg.Close == nil {
		c.current.Store(nil)
		return nil
	}

	var errs []error
	if h := c.current.Swap(nil); h != nil {
		c.log.Info("closing database connection")
		errs = append(errs, c.cfg.Close(ctx, h.Client))
	}

	c.mu.Lock()
	pending := make([]*Handle[C], 0, len(c.retired))
	for h := range c.retired {
		pending = append(pending, h)
	}
	c.mu.Unlock()

	for _, h := range pending {
		errs = append(errs, c.release(ctx, h))
	}
	return errors.Join(errs...)
}
