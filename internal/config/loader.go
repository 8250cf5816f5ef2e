package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ODDSARB_* environment variable overrides, and
// returns the final Config. An empty path skips the file and starts from the
// defaults. The returned Config has NOT been validated; the caller should
// invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ODDSARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Matching ──
	setFloat64(&cfg.Matching.FuzzyThreshold, "ODDSARB_MATCHING_FUZZY_THRESHOLD")
	setDuration(&cfg.Matching.TimeTolerance, "ODDSARB_MATCHING_TIME_TOLERANCE")
	setStr(&cfg.Matching.NormalizationMap, "ODDSARB_MATCHING_NORMALIZATION_MAP")

	// ── Arbitrage ──
	setFloat64(&cfg.Arbitrage.MinProfitPercentage, "ODDSARB_ARBITRAGE_MIN_PROFIT_PERCENTAGE")
	setFloat64(&cfg.Arbitrage.DefaultBankroll, "ODDSARB_ARBITRAGE_DEFAULT_BANKROLL")
	setDuration(&cfg.Arbitrage.LiveMaxAge, "ODDSARB_ARBITRAGE_LIVE_MAX_AGE")
	setDuration(&cfg.Arbitrage.PrematchMaxAge, "ODDSARB_ARBITRAGE_PREMATCH_MAX_AGE")
	setDuration(&cfg.Arbitrage.FreshnessHorizon, "ODDSARB_ARBITRAGE_FRESHNESS_HORIZON")
	setInt(&cfg.Arbitrage.Workers, "ODDSARB_ARBITRAGE_WORKERS")

	// ── Sources ──
	setInt(&cfg.Sources.Concurrency, "ODDSARB_SOURCES_CONCURRENT_SOURCES")
	setDuration(&cfg.Sources.Timeout, "ODDSARB_SOURCES_SOURCE_TIMEOUT")
	setStringSlice(&cfg.Sources.Files, "ODDSARB_SOURCES_FILES")
	setBool(&cfg.Sources.Stream.Enabled, "ODDSARB_SOURCES_STREAM_ENABLED")
	setStr(&cfg.Sources.Stream.Key, "ODDSARB_SOURCES_STREAM_KEY")
	setInt(&cfg.Sources.Stream.BatchSize, "ODDSARB_SOURCES_STREAM_BATCH_SIZE")
	setBool(&cfg.Sources.Blob.Enabled, "ODDSARB_SOURCES_BLOB_ENABLED")
	setStr(&cfg.Sources.Blob.Prefix, "ODDSARB_SOURCES_BLOB_PREFIX")
	setBool(&cfg.Sources.Feed.Enabled, "ODDSARB_SOURCES_FEED_ENABLED")
	setStringSlice(&cfg.Sources.Feed.URLs, "ODDSARB_SOURCES_FEED_URLS")
	setDuration(&cfg.Sources.Feed.MaxAge, "ODDSARB_SOURCES_FEED_MAX_AGE")

	// ── Cache ──
	setBool(&cfg.Cache.Enabled, "ODDSARB_CACHE_ENABLED")
	setDuration(&cfg.Cache.LiveRefresh, "ODDSARB_CACHE_LIVE_REFRESH")
	setDuration(&cfg.Cache.PrematchRefresh, "ODDSARB_CACHE_PREMATCH_REFRESH")
	setBool(&cfg.Cache.Shared, "ODDSARB_CACHE_SHARED")
	setDuration(&cfg.Cache.TTL, "ODDSARB_CACHE_TTL")
	setDuration(&cfg.Cache.LockTTL, "ODDSARB_CACHE_LOCK_TTL")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "ODDSARB_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "ODDSARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "ODDSARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ODDSARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ODDSARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ODDSARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ODDSARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ODDSARB_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ODDSARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ODDSARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ODDSARB_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "ODDSARB_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ODDSARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ODDSARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ODDSARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ODDSARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ODDSARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ODDSARB_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.PublishChannel, "ODDSARB_REDIS_PUBLISH_CHANNEL")
	setStr(&cfg.Redis.HistoryStream, "ODDSARB_REDIS_HISTORY_STREAM")
	setInt64(&cfg.Redis.StreamMaxLen, "ODDSARB_REDIS_STREAM_MAX_LEN")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "ODDSARB_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ODDSARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ODDSARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "ODDSARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ODDSARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ODDSARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ODDSARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ODDSARB_S3_FORCE_PATH_STYLE")

	// ── Export ──
	setBool(&cfg.Export.Enabled, "ODDSARB_EXPORT_ENABLED")
	setBool(&cfg.Export.RawQuotes, "ODDSARB_EXPORT_RAW_QUOTES")
	setStr(&cfg.Export.Prefix, "ODDSARB_EXPORT_PREFIX")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ODDSARB_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ODDSARB_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ODDSARB_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "ODDSARB_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimitRequests, "ODDSARB_SERVER_RATE_LIMIT_REQUESTS")
	setDuration(&cfg.Server.RateLimitWindow, "ODDSARB_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ODDSARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ODDSARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ODDSARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ODDSARB_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ODDSARB_MODE")
	setStr(&cfg.LogLevel, "ODDSARB_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
