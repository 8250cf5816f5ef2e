// Package redis backs the shared state of a multi-instance deployment with
// go-redis/v9: cached detection results, the monitor leader lock, API rate
// limits, and the opportunity pub/sub channel with its history stream.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces every key this package writes so that one Redis
// database can be shared with other services.
const keyPrefix = "oddsarb:"

// namespacedKey builds "oddsarb:{kind}:{key}".
func namespacedKey(kind, key string) string {
	return keyPrefix + kind + ":" + key
}

// ClientConfig mirrors the [redis] section of the configuration.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
}

// Client owns the connection pool shared by the result store, lock manager,
// rate limiter and signal bus.
type Client struct {
	rdb *redis.Client
}

// New connects and pings once; startup fails fast when Redis is configured
// but unreachable.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb}, nil
}

// Ping implements the /api/health dependency check.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Underlying returns the raw *redis.Client.
func (c *Client) Underlying() *redis.Client {
	return c.rdb
}
