// Package config defines the top-level configuration for the odds arbitrage
// scanner and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ODDSARB_* environment variables.
type Config struct {
	Matching  MatchingConfig  `toml:"matching"`
	Arbitrage ArbitrageConfig `toml:"arbitrage"`
	Sources   SourcesConfig   `toml:"sources"`
	Cache     CacheConfig     `toml:"cache"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Export    ExportConfig    `toml:"export"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// MatchingConfig controls cross-bookmaker event matching.
type MatchingConfig struct {
	FuzzyThreshold float64  `toml:"fuzzy_threshold"`
	TimeTolerance  duration `toml:"time_tolerance"`
	// NormalizationMap is the path of the JSON alias table. A missing file is
	// tolerated and leaves the normalizer with an empty table.
	NormalizationMap string `toml:"normalization_map"`
}

// ArbitrageConfig holds detection thresholds and engine sizing.
type ArbitrageConfig struct {
	MinProfitPercentage float64  `toml:"min_profit_percentage"`
	DefaultBankroll     float64  `toml:"default_bankroll"`
	LiveMaxAge          duration `toml:"live_max_age"`
	PrematchMaxAge      duration `toml:"prematch_max_age"`
	FreshnessHorizon    duration `toml:"freshness_horizon"`
	Workers             int      `toml:"workers"`
}

// SourcesConfig lists where quotes come from and how they are fetched.
type SourcesConfig struct {
	Concurrency int                `toml:"concurrent_sources"`
	Timeout     duration           `toml:"source_timeout"`
	Files       []string           `toml:"files"`
	Stream      StreamSourceConfig `toml:"stream"`
	Blob        BlobSourceConfig   `toml:"blob"`
	Feed        FeedSourceConfig   `toml:"feed"`
}

// StreamSourceConfig reads quotes pushed by external scrapers into a Redis
// stream.
type StreamSourceConfig struct {
	Enabled   bool   `toml:"enabled"`
	Key       string `toml:"key"`
	BatchSize int    `toml:"batch_size"`
}

// BlobSourceConfig reads the newest quote snapshot under an object storage
// prefix.
type BlobSourceConfig struct {
	Enabled bool   `toml:"enabled"`
	Prefix  string `toml:"prefix"`
}

// FeedSourceConfig keeps WebSocket connections to scraper gateways that push
// quotes. Feeds only run in long-lived modes.
type FeedSourceConfig struct {
	Enabled bool     `toml:"enabled"`
	URLs    []string `toml:"urls"`
	MaxAge  duration `toml:"max_age"`
}

// CacheConfig controls the detection result cache used by the API.
type CacheConfig struct {
	Enabled         bool     `toml:"enabled"`
	LiveRefresh     duration `toml:"live_refresh"`
	PrematchRefresh duration `toml:"prematch_refresh"`
	// Shared stores results in Redis so several instances reuse them.
	Shared  bool     `toml:"shared"`
	TTL     duration `toml:"ttl"`
	LockTTL duration `toml:"lock_ttl"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled        bool   `toml:"enabled"`
	Addr           string `toml:"addr"`
	Password       string `toml:"password"`
	DB             int    `toml:"db"`
	PoolSize       int    `toml:"pool_size"`
	MaxRetries     int    `toml:"max_retries"`
	TLSEnabled     bool   `toml:"tls_enabled"`
	PublishChannel string `toml:"publish_channel"`

	// HistoryStream keeps every detected opportunity in a capped stream.
	// Empty disables it.
	HistoryStream string `toml:"history_stream"`
	StreamMaxLen  int64  `toml:"stream_max_len"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ExportConfig controls CSV exports of each cycle.
type ExportConfig struct {
	Enabled   bool   `toml:"enabled"`
	RawQuotes bool   `toml:"raw_quotes"`
	Prefix    string `toml:"prefix"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled           bool     `toml:"enabled"`
	Port              int      `toml:"port"`
	CORSOrigins       []string `toml:"cors_origins"`
	APIKey            string   `toml:"api_key"`
	RateLimitRequests int      `toml:"rate_limit_requests"`
	RateLimitWindow   duration `toml:"rate_limit_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Matching: MatchingConfig{
			FuzzyThreshold:   94,
			TimeTolerance:    duration{15 * time.Minute},
			NormalizationMap: "configs/normalization_map.json",
		},
		Arbitrage: ArbitrageConfig{
			MinProfitPercentage: 0.5,
			DefaultBankroll:     1000,
			LiveMaxAge:          duration{10 * time.Second},
			PrematchMaxAge:      duration{300 * time.Second},
			FreshnessHorizon:    duration{300 * time.Second},
			Workers:             4,
		},
		Sources: SourcesConfig{
			Concurrency: 6,
			Timeout:     duration{30 * time.Second},
			Files:       []string{"data/quotes.json"},
			Stream: StreamSourceConfig{
				Key:       "quotes:raw",
				BatchSize: 1000,
			},
			Blob: BlobSourceConfig{
				Prefix: "quotes/",
			},
			Feed: FeedSourceConfig{
				MaxAge: duration{2 * time.Minute},
			},
		},
		Cache: CacheConfig{
			Enabled:         true,
			LiveRefresh:     duration{5 * time.Second},
			PrematchRefresh: duration{60 * time.Second},
			TTL:             duration{10 * time.Minute},
			LockTTL:         duration{30 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "oddsarb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:           "localhost:6379",
			PoolSize:       20,
			MaxRetries:     3,
			PublishChannel: "ch:arb",
			HistoryStream:  "arb:history",
			StreamMaxLen:   100000,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "oddsarb-data",
			ForcePathStyle: true,
		},
		Export: ExportConfig{
			RawQuotes: true,
			Prefix:    "exports/",
		},
		Server: ServerConfig{
			Enabled:           true,
			Port:              8000,
			CORSOrigins:       []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimitRequests: 100,
			RateLimitWindow:   duration{60 * time.Second},
		},
		Notify: NotifyConfig{
			Events: []string{"arb_detected", "error"},
		},
		Mode:     "scan",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":    true,
	"monitor": true,
	"server":  true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, monitor, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Matching
	if c.Matching.FuzzyThreshold < 0 || c.Matching.FuzzyThreshold > 100 {
		errs = append(errs, fmt.Sprintf("matching: fuzzy_threshold must be 0-100, got %g", c.Matching.FuzzyThreshold))
	}
	if c.Matching.TimeTolerance.Duration < 0 {
		errs = append(errs, "matching: time_tolerance must be >= 0")
	}

	// Arbitrage
	if c.Arbitrage.MinProfitPercentage < 0 {
		errs = append(errs, "arbitrage: min_profit_percentage must be >= 0")
	}
	if c.Arbitrage.DefaultBankroll <= 0 {
		errs = append(errs, "arbitrage: default_bankroll must be > 0")
	}
	if c.Arbitrage.LiveMaxAge.Duration <= 0 || c.Arbitrage.PrematchMaxAge.Duration <= 0 {
		errs = append(errs, "arbitrage: live_max_age and prematch_max_age must be > 0")
	}
	if c.Arbitrage.FreshnessHorizon.Duration <= 0 {
		errs = append(errs, "arbitrage: freshness_horizon must be > 0")
	}
	if c.Arbitrage.Workers < 1 {
		errs = append(errs, "arbitrage: workers must be >= 1")
	}

	// Sources
	if c.Sources.Concurrency < 1 {
		errs = append(errs, "sources: concurrent_sources must be >= 1")
	}
	if c.Sources.Timeout.Duration <= 0 {
		errs = append(errs, "sources: source_timeout must be > 0")
	}
	if len(c.Sources.Files) == 0 && !c.Sources.Stream.Enabled && !c.Sources.Blob.Enabled && !c.Sources.Feed.Enabled {
		errs = append(errs, "sources: at least one of files, stream, blob or feed must be configured")
	}
	if c.Sources.Stream.Enabled {
		if !c.Redis.Enabled {
			errs = append(errs, "sources: stream source requires redis.enabled")
		}
		if c.Sources.Stream.Key == "" {
			errs = append(errs, "sources: stream.key must not be empty")
		}
		if c.Sources.Stream.BatchSize < 1 {
			errs = append(errs, "sources: stream.batch_size must be >= 1")
		}
	}
	if c.Sources.Blob.Enabled && !c.S3.Enabled {
		errs = append(errs, "sources: blob source requires s3.enabled")
	}
	if c.Sources.Feed.Enabled {
		if len(c.Sources.Feed.URLs) == 0 {
			errs = append(errs, "sources: feed.urls must not be empty")
		}
		for _, u := range c.Sources.Feed.URLs {
			if !strings.HasPrefix(u, "ws://") && !strings.HasPrefix(u, "wss://") {
				errs = append(errs, fmt.Sprintf("sources: feed url %q must use ws:// or wss://", u))
			}
		}
		if c.Sources.Feed.MaxAge.Duration <= 0 {
			errs = append(errs, "sources: feed.max_age must be > 0")
		}
	}

	// Cache
	if c.Cache.Enabled {
		if c.Cache.LiveRefresh.Duration <= 0 || c.Cache.PrematchRefresh.Duration <= 0 {
			errs = append(errs, "cache: live_refresh and prematch_refresh must be > 0")
		}
		if c.Cache.Shared {
			if !c.Redis.Enabled {
				errs = append(errs, "cache: shared cache requires redis.enabled")
			}
			if c.Cache.LockTTL.Duration <= 0 {
				errs = append(errs, "cache: lock_ttl must be > 0")
			}
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}
	if c.Export.Enabled && !c.S3.Enabled {
		errs = append(errs, "export: requires s3.enabled")
	}

	// Server
	needsServer := mode == "server" || mode == "full"
	if needsServer && !c.Server.Enabled {
		errs = append(errs, "server: must be enabled for mode "+c.Mode)
	}
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimitRequests < 0 {
			errs = append(errs, "server: rate_limit_requests must be >= 0")
		}
		if c.Server.RateLimitRequests > 0 && c.Server.RateLimitWindow.Duration <= 0 {
			errs = append(errs, "server: rate_limit_window must be > 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
