package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alanyoungcy/oddsarb/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ResultStore implements domain.ResultStore by storing each cached detection
// result as a JSON string with a TTL.
//
// Key schema:
//
//	oddsarb:result:{filter key} - JSON-encoded domain.CachedResult
type ResultStore struct {
	rdb *redis.Client
}

// NewResultStore creates a ResultStore backed by the given Client.
func NewResultStore(c *Client) *ResultStore {
	return &ResultStore{rdb: c.Underlying()}
}

// Load returns the cached result for key, or domain.ErrNotFound.
func (s *ResultStore) Load(ctx context.Context, key string) (domain.CachedResult, error) {
	data, err := s.rdb.Get(ctx, namespacedKey("result", key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.CachedResult{}, domain.ErrNotFound
		}
		return domain.CachedResult{}, fmt.Errorf("redis: load result %s: %w", key, err)
	}

	var res domain.CachedResult
	if err := json.Unmarshal(data, &res); err != nil {
		return domain.CachedResult{}, fmt.Errorf("redis: unmarshal result %s: %w", key, err)
	}
	return res, nil
}

// Save stores res under its key. A non-positive ttl stores without expiry.
func (s *ResultStore) Save(ctx context.Context, res domain.CachedResult, ttl time.Duration) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("redis: marshal result %s: %w", res.Key, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.rdb.Set(ctx, namespacedKey("result", res.Key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: save result %s: %w", res.Key, err)
	}
	return nil
}

var _ domain.ResultStore = (*ResultStore)(nil)
