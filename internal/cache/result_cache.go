// Package cache holds detection results keyed by filter set so that API
// requests do not rerun a full cycle each time.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alanyoungcy/oddsarb/internal/arbitrage"
	"github.com/alanyoungcy/oddsarb/internal/domain"
)

// ComputeFunc runs detection for f and reports whether any quote was live.
type ComputeFunc func(ctx context.Context, f domain.Filters) (opps []domain.ArbitrageOpportunity, live bool, err error)

// Config controls freshness and retention.
type Config struct {
	LiveRefresh     time.Duration
	PrematchRefresh time.Duration
	// TTL bounds how long entries are retained locally and in the shared
	// store.
	TTL     time.Duration
	LockTTL time.Duration
}

// Result is what Get hands back to callers.
type Result struct {
	domain.CachedResult
	// Hit is set when no recomputation happened for this call.
	Hit bool `json:"cache_hit"`
	// Stale is set when an out-of-date entry was served because another
	// instance holds the recompute lock.
	Stale bool `json:"stale"`
}

// Option configures a ResultCache.
type Option func(*ResultCache)

// WithStore shares entries between instances.
func WithStore(s domain.ResultStore) Option {
	return func(c *ResultCache) { c.store = s }
}

// WithLock serialises recomputation of a key across instances.
func WithLock(l domain.LockManager) Option {
	return func(c *ResultCache) { c.locks = l }
}

// ResultCache is a filter-keyed cache with single-flight recomputation.
type ResultCache struct {
	cfg    Config
	store  domain.ResultStore
	locks  domain.LockManager
	group  singleflight.Group
	now    func() time.Time
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]domain.CachedResult
}

// NewResultCache creates a ResultCache.
func NewResultCache(cfg Config, logger *slog.Logger, opts ...Option) *ResultCache {
	if cfg.LiveRefresh <= 0 {
		cfg.LiveRefresh = 5 * time.Second
	}
	if cfg.PrematchRefresh <= 0 {
		cfg.PrematchRefresh = 60 * time.Second
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	c := &ResultCache{
		cfg:     cfg,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "result_cache")),
		entries: make(map[string]domain.CachedResult),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns opportunities for f, recomputing through compute when the
// cached entry is missing or stale. Results are refiltered and rescaled to
// f.Bankroll on the way out.
func (c *ResultCache) Get(ctx context.Context, f domain.Filters, compute ComputeFunc) (Result, error) {
	if err := f.Validate(); err != nil {
		return Result{}, fmt.Errorf("cache: get: %w", err)
	}
	key := f.Key()

	if entry, ok := c.fresh(ctx, key); ok {
		return c.view(entry, f, true, false), nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.recompute(ctx, key, f, compute)
	})
	if err != nil {
		return Result{}, err
	}
	out := v.(recomputed)
	return c.view(out.entry, f, false, out.stale), nil
}

// Put stores a result computed elsewhere, such as by a monitor cycle.
func (c *ResultCache) Put(ctx context.Context, f domain.Filters, opps []domain.ArbitrageOpportunity, live bool) {
	entry := domain.CachedResult{
		Key:           f.Key(),
		Opportunities: opps,
		ComputedAt:    c.now(),
		Live:          live,
	}
	c.save(ctx, entry)
}

// Len returns the number of locally held entries.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

type recomputed struct {
	entry domain.CachedResult
	stale bool
}

func (c *ResultCache) recompute(ctx context.Context, key string, f domain.Filters, compute ComputeFunc) (recomputed, error) {
	// Another caller may have finished while this one waited on the group.
	if entry, ok := c.fresh(ctx, key); ok {
		return recomputed{entry: entry}, nil
	}

	if c.locks != nil {
		unlock, err := c.locks.Acquire(ctx, key, c.cfg.LockTTL)
		switch {
		case errors.Is(err, domain.ErrLockHeld):
			if entry, ok := c.any(ctx, key); ok {
				c.logger.DebugContext(ctx, "cache: serving stale entry", slog.String("key", key))
				return recomputed{entry: entry, stale: true}, nil
			}
		case err != nil:
			c.logger.WarnContext(ctx, "cache: lock unavailable, computing anyway",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		default:
			defer unlock()
		}
	}

	// Compute at the default bankroll with no absolute floor; view applies
	// both at the requested bankroll.
	cf := f
	cf.Bankroll = nil
	cf.MinProfit = nil
	opps, live, err := compute(ctx, cf)
	if err != nil {
		return recomputed{}, fmt.Errorf("cache: compute %s: %w", key, err)
	}
	entry := domain.CachedResult{
		Key:           key,
		Opportunities: opps,
		ComputedAt:    c.now(),
		Live:          live,
	}
	c.save(ctx, entry)
	return recomputed{entry: entry}, nil
}

// fresh looks for a non-stale entry locally, then in the shared store.
func (c *ResultCache) fresh(ctx context.Context, key string) (domain.CachedResult, bool) {
	now := c.now()
	if entry, ok := c.local(key); ok && !c.stale(entry, now) {
		return entry, true
	}
	if c.store == nil {
		return domain.CachedResult{}, false
	}
	entry, ok := c.shared(ctx, key)
	if !ok || c.stale(entry, now) {
		return domain.CachedResult{}, false
	}
	c.setLocal(entry)
	return entry, true
}

// any returns the newest entry for key regardless of staleness.
func (c *ResultCache) any(ctx context.Context, key string) (domain.CachedResult, bool) {
	entry, ok := c.local(key)
	if c.store != nil {
		if sh, shOK := c.shared(ctx, key); shOK && (!ok || sh.ComputedAt.After(entry.ComputedAt)) {
			entry, ok = sh, true
		}
	}
	return entry, ok
}

func (c *ResultCache) local(key string) (domain.CachedResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	return entry, ok
}

func (c *ResultCache) shared(ctx context.Context, key string) (domain.CachedResult, bool) {
	entry, err := c.store.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			c.logger.WarnContext(ctx, "cache: shared load failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return domain.CachedResult{}, false
	}
	return entry, true
}

func (c *ResultCache) save(ctx context.Context, entry domain.CachedResult) {
	c.setLocal(entry)
	if c.store == nil {
		return
	}
	if err := c.store.Save(ctx, entry, c.cfg.TTL); err != nil {
		c.logger.WarnContext(ctx, "cache: shared save failed",
			slog.String("key", entry.Key),
			slog.String("error", err.Error()),
		)
	}
}

func (c *ResultCache) setLocal(entry domain.CachedResult) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if now.Sub(e.ComputedAt) > c.cfg.TTL {
			delete(c.entries, k)
		}
	}
	c.entries[entry.Key] = entry
}

func (c *ResultCache) stale(entry domain.CachedResult, now time.Time) bool {
	return entry.Stale(now, c.cfg.LiveRefresh, c.cfg.PrematchRefresh)
}

func (c *ResultCache) view(entry domain.CachedResult, f domain.Filters, hit, stale bool) Result {
	entry.Opportunities = arbitrage.Refilter(entry.Opportunities, f, c.now())
	return Result{CachedResult: entry, Hit: hit, Stale: stale}
}
