package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/oddsarb/internal/config"
	"github.com/alanyoungcy/oddsarb/internal/domain"
	"github.com/alanyoungcy/oddsarb/internal/server"
	"github.com/alanyoungcy/oddsarb/internal/server/handler"
)

// ScanMode runs one recorded cycle and prints the report as JSON.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	report, err := deps.Detection.RunCycle(ctx, domain.Filters{})
	if err != nil {
		return fmt.Errorf("scan mode: %w", err)
	}
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("scan mode: encode report: %w", err)
	}
	return nil
}

// MonitorMode runs cycles until ctx is cancelled.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "app: starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startFeeds(ctx, g, deps)
	g.Go(func() error {
		return a.monitor(ctx, deps)
	})
	return g.Wait()
}

// ServerMode serves the HTTP API; detection runs on demand per request.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "app: starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startFeeds(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// FullMode runs monitor cycles and the HTTP API side by side. Each cycle
// primes the result cache so unfiltered API requests are served from it.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "app: starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startFeeds(ctx, g, deps)
	g.Go(func() error {
		return a.monitor(ctx, deps)
	})
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// monitor runs a cycle, then waits the live refresh interval if any quote
// was live and the pre-match interval otherwise. Failed cycles are logged
// and retried on the pre-match interval.
func (a *App) monitor(ctx context.Context, deps *Dependencies) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		wait := a.cfg.Cache.PrematchRefresh.Duration
		report, err := deps.Detection.RunCycle(ctx, domain.Filters{})
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			a.logger.ErrorContext(ctx, "app: cycle failed", slog.String("error", err.Error()))
		default:
			if report.Live {
				wait = a.cfg.Cache.LiveRefresh.Duration
			}
			if deps.Cache != nil {
				deps.Cache.Put(ctx, domain.Filters{}, report.Opportunities, report.Live)
			}
		}
		timer.Reset(wait)
	}
}

// startFeeds adds every live quote feed to g. Feeds stop with ctx.
func (a *App) startFeeds(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	for _, qf := range deps.Feeds {
		g.Go(func() error {
			if err := qf.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("feed %s: %w", qf.Name(), err)
			}
			return nil
		})
	}
}

// startHTTPServer adds the WebSocket hub and HTTP server to g. The server
// shuts down gracefully when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	var rc handler.ResultCache
	if deps.Cache != nil {
		rc = deps.Cache
	}
	var clients func() int
	if deps.Hub != nil {
		clients = deps.Hub.ClientCount
		g.Go(func() error {
			if err := deps.Hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(deps.Checks, a.logger),
		Status: handler.NewStatusHandler(handler.StatusInfo{
			Mode:      a.cfg.Mode,
			StartedAt: a.startedAt,
			Settings:  settings(a.cfg),
			Clients:   clients,
		}, deps.Detection),
		Arb:   handler.NewArbHandler(deps.Detection, rc, deps.OpportunityStore, a.logger),
		Audit: handler.NewAuditHandler(deps.AuditStore, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:              a.cfg.Server.Port,
		CORSOrigins:       a.cfg.Server.CORSOrigins,
		APIKey:            a.cfg.Server.APIKey,
		RateLimitRequests: a.cfg.Server.RateLimitRequests,
		RateLimitWindow:   a.cfg.Server.RateLimitWindow.Duration,
	}, handlers, deps.Hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// settings is the configuration summary shown by /api/status.
func settings(cfg *config.Config) map[string]any {
	return map[string]any{
		"fuzzy_threshold":       cfg.Matching.FuzzyThreshold,
		"time_tolerance":        cfg.Matching.TimeTolerance.String(),
		"min_profit_percentage": cfg.Arbitrage.MinProfitPercentage,
		"default_bankroll":      cfg.Arbitrage.DefaultBankroll,
		"live_max_age":          cfg.Arbitrage.LiveMaxAge.String(),
		"prematch_max_age":      cfg.Arbitrage.PrematchMaxAge.String(),
		"cache_enabled":         cfg.Cache.Enabled,
		"live_refresh":          cfg.Cache.LiveRefresh.String(),
		"prematch_refresh":      cfg.Cache.PrematchRefresh.String(),
		"postgres":              cfg.Postgres.Enabled,
		"redis":                 cfg.Redis.Enabled,
		"live_feeds":            cfg.Sources.Feed.Enabled,
		"export":                cfg.Export.Enabled,
		"auth":                  cfg.Server.APIKey != "",
	}
}
