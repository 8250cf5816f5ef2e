package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/oddsarb/internal/arbitrage"
	s3blob "github.com/alanyoungcy/oddsarb/internal/blob/s3"
	"github.com/alanyoungcy/oddsarb/internal/cache"
	"github.com/alanyoungcy/oddsarb/internal/cache/redis"
	"github.com/alanyoungcy/oddsarb/internal/config"
	"github.com/alanyoungcy/oddsarb/internal/domain"
	"github.com/alanyoungcy/oddsarb/internal/feed"
	"github.com/alanyoungcy/oddsarb/internal/match"
	"github.com/alanyoungcy/oddsarb/internal/normalize"
	"github.com/alanyoungcy/oddsarb/internal/notify"
	"github.com/alanyoungcy/oddsarb/internal/server/handler"
	"github.com/alanyoungcy/oddsarb/internal/server/ws"
	"github.com/alanyoungcy/oddsarb/internal/service"
	"github.com/alanyoungcy/oddsarb/internal/source"
	"github.com/alanyoungcy/oddsarb/internal/store/postgres"
)

// Dependencies bundles everything the modes need. It is built by Wire and
// torn down by the returned cleanup function.
type Dependencies struct {
	Detection *service.DetectionService
	Engine    *arbitrage.Engine

	// Optional infrastructure; nil when the backing service is disabled.
	OpportunityStore domain.OpportunityStore
	AuditStore       domain.AuditStore
	SignalBus        domain.SignalBus
	LockManager      domain.LockManager
	RateLimiter      domain.RateLimiter
	ResultStore      domain.ResultStore
	BlobWriter       domain.BlobWriter
	BlobReader       domain.BlobReader
	Exporter         domain.Exporter
	Notifier         *notify.Notifier

	// Cache is nil when cache.enabled is false.
	Cache *cache.ResultCache
	// Hub is nil outside the server and full modes.
	Hub *ws.Hub
	// Feeds are live quote connections; empty in scan mode.
	Feeds []*feed.QuoteFeed
	// Checks are reported by the health endpoint.
	Checks map[string]handler.Pinger
}

// pingFunc adapts a health check to handler.Pinger.
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func servesHTTP(mode string) bool {
	return mode == "server" || mode == "full"
}

// Wire constructs every dependency the configuration enables.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Checks: map[string]handler.Pinger{}}

	// --- Core pipeline ---
	table, err := normalize.LoadTable(cfg.Matching.NormalizationMap, logger)
	if err != nil {
		return fail(fmt.Errorf("wire: normalization map: %w", err))
	}
	matcher := match.New(normalize.New(table), match.Config{
		Threshold:     cfg.Matching.FuzzyThreshold,
		TimeTolerance: cfg.Matching.TimeTolerance.Duration,
	}, logger)

	engine, err := arbitrage.NewEngine(arbitrage.Config{
		MinProfitPercentage: cfg.Arbitrage.MinProfitPercentage,
		DefaultBankroll:     cfg.Arbitrage.DefaultBankroll,
		LiveMaxAge:          cfg.Arbitrage.LiveMaxAge.Duration,
		PrematchMaxAge:      cfg.Arbitrage.PrematchMaxAge.Duration,
		FreshnessHorizon:    cfg.Arbitrage.FreshnessHorizon.Duration,
		Workers:             cfg.Arbitrage.Workers,
	}, logger)
	if err != nil {
		return fail(fmt.Errorf("wire: engine: %w", err))
	}
	deps.Engine = engine

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pg.Close)

		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		deps.OpportunityStore = postgres.NewOpportunityStore(pg.Pool())
		deps.AuditStore = postgres.NewAuditStore(pg.Pool())
		deps.Checks["postgres"] = pg
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = rc.Close() })

		deps.SignalBus = redis.NewSignalBus(rc).WithStreamMaxLen(cfg.Redis.StreamMaxLen)
		deps.LockManager = redis.NewLockManager(rc)
		deps.RateLimiter = redis.NewRateLimiter(rc)
		deps.ResultStore = redis.NewResultStore(rc)
		deps.Checks["redis"] = rc
	}

	// --- S3 ---
	if cfg.S3.Enabled {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.BlobWriter = s3blob.NewWriter(sc)
		deps.BlobReader = s3blob.NewReader(sc)
		deps.Checks["s3"] = pingFunc(sc.Health)

		if cfg.Export.Enabled {
			deps.Exporter = s3blob.NewExporter(deps.BlobWriter, deps.AuditStore, cfg.Export.Prefix, logger)
		}
	}

	// --- Sources ---
	var sources []source.Source
	for _, path := range cfg.Sources.Files {
		sources = append(sources, source.NewFileSource(path))
	}
	if cfg.Sources.Stream.Enabled {
		sources = append(sources, source.NewStreamSource(deps.SignalBus, cfg.Sources.Stream.Key, cfg.Sources.Stream.BatchSize, logger))
	}
	if cfg.Sources.Blob.Enabled {
		sources = append(sources, source.NewBlobSource(deps.BlobReader, cfg.Sources.Blob.Prefix))
	}
	// A single scan would read an empty buffer, so feeds need a long-lived mode.
	if cfg.Sources.Feed.Enabled && cfg.Mode != "scan" {
		for _, u := range cfg.Sources.Feed.URLs {
			qf, err := feed.NewQuoteFeed(u, cfg.Sources.Feed.MaxAge.Duration, logger)
			if err != nil {
				return fail(fmt.Errorf("wire: %w", err))
			}
			closers = append(closers, func() { qf.Close() })
			deps.Feeds = append(deps.Feeds, qf)
			sources = append(sources, qf)
		}
	}
	acquirer := source.NewAcquirer(sources, source.Config{
		Concurrency: cfg.Sources.Concurrency,
		Timeout:     cfg.Sources.Timeout.Duration,
	}, logger)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- WebSocket hub ---
	arbChannel := cfg.Redis.PublishChannel
	if arbChannel == "" {
		arbChannel = service.ChannelArb
	}
	if servesHTTP(cfg.Mode) {
		deps.Hub = ws.NewHub(deps.SignalBus, ws.Config{
			Mode:     cfg.Mode,
			Channels: []string{arbChannel, service.ChannelCycle},
			Sources:  acquirer.Sources(),
		}, logger)
	}

	// --- Detection service ---
	sinks := service.Sinks{
		ArbChannel:   arbChannel,
		ExportQuotes: cfg.Export.RawQuotes,
	}
	if deps.OpportunityStore != nil {
		sinks.Store = deps.OpportunityStore
		sinks.Audit = deps.AuditStore
	}
	// With Redis the hub bridges the bus, so publishing once reaches both
	// other instances and local WebSocket clients.
	switch {
	case deps.SignalBus != nil:
		sinks.Publisher = deps.SignalBus
	case deps.Hub != nil:
		sinks.Publisher = deps.Hub
	}
	if deps.SignalBus != nil && cfg.Redis.HistoryStream != "" {
		sinks.History = deps.SignalBus
		sinks.HistoryStream = cfg.Redis.HistoryStream
	}
	if deps.Notifier.Enabled() {
		sinks.Notifier = deps.Notifier
	}
	if deps.Exporter != nil {
		sinks.Exporter = deps.Exporter
	}
	deps.Detection = service.NewDetectionService(acquirer, matcher, engine, sinks, logger)

	// --- Result cache ---
	if cfg.Cache.Enabled {
		var opts []cache.Option
		if cfg.Cache.Shared && deps.ResultStore != nil {
			opts = append(opts, cache.WithStore(deps.ResultStore), cache.WithLock(deps.LockManager))
		}
		deps.Cache = cache.NewResultCache(cache.Config{
			LiveRefresh:     cfg.Cache.LiveRefresh.Duration,
			PrematchRefresh: cfg.Cache.PrematchRefresh.Duration,
			TTL:             cfg.Cache.TTL.Duration,
			LockTTL:         cfg.Cache.LockTTL.Duration,
		}, logger, opts...)
	}

	logger.InfoContext(ctx, "wire: dependencies ready",
		slog.Any("sources", acquirer.Sources()),
		slog.Bool("postgres", deps.OpportunityStore != nil),
		slog.Bool("redis", deps.SignalBus != nil),
		slog.Bool("s3", deps.BlobWriter != nil),
		slog.Bool("export", deps.Exporter != nil),
		slog.Bool("cache", deps.Cache != nil),
		slog.Int("feeds", len(deps.Feeds)),
	)
	return deps, cleanup, nil
}
