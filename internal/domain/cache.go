package domain

import (
	"context"
	"time"
)

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// CachedResult is one cached detection result for a filter key.
type CachedResult struct {
	Key           string                 `json:"key"`
	Opportunities []ArbitrageOpportunity `json:"opportunities"`
	ComputedAt    time.Time              `json:"computed_at"`
	Live          bool                   `json:"live"`
}

// ResultStore shares cached detection results between instances.
type ResultStore interface {
	Load(ctx context.Context, key string) (CachedResult, error)
	Save(ctx context.Context, res CachedResult, ttl time.Duration) error
}

// Stale reports whether the result is older than its refresh interval at
// now. Live results use liveRefresh, pre-match results prematchRefresh.
func (r CachedResult) Stale(now time.Time, liveRefresh, prematchRefresh time.Duration) bool {
	interval := prematchRefresh
	if r.Live {
		interval = liveRefresh
	}
	return now.Sub(r.ComputedAt) >= interval
}
