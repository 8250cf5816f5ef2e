// Package arbitrage detects risk-free stake combinations across bookmakers
// in matched events.
package arbitrage

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/oddsarb/internal/domain"
)

// Config holds the engine defaults that filters may override.
type Config struct {
	MinProfitPercentage float64
	DefaultBankroll     float64
	LiveMaxAge          time.Duration
	PrematchMaxAge      time.Duration
	// FreshnessHorizon is the mean leg age at which the freshness score
	// reaches zero.
	FreshnessHorizon time.Duration
	// Workers bounds how many events are evaluated concurrently.
	Workers int
	// Now is the engine clock; nil means time.Now.
	Now func() time.Time
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		MinProfitPercentage: 0.5,
		DefaultBankroll:     1000,
		LiveMaxAge:          10 * time.Second,
		PrematchMaxAge:      300 * time.Second,
		FreshnessHorizon:    300 * time.Second,
		Workers:             4,
	}
}

// Result is the output of one detection run.
type Result struct {
	// Opportunities are sorted by profit percentage, highest first.
	Opportunities []domain.ArbitrageOpportunity
	// Units records the fate of every event and market that was examined.
	Units []domain.UnitResult
}

// Count returns how many units ended with status s.
func (r Result) Count(s domain.UnitStatus) int {
	n := 0
	for _, u := range r.Units {
		if u.Status == s {
			n++
		}
	}
	return n
}

// Engine scans matched events for arbitrages and middles.
type Engine struct {
	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

// NewEngine validates cfg and creates an Engine.
func NewEngine(cfg Config, logger *slog.Logger) (*Engine, error) {
	var errs []string
	if !(cfg.DefaultBankroll > 0) {
		errs = append(errs, "default bankroll must be positive")
	}
	if cfg.LiveMaxAge <= 0 || cfg.PrematchMaxAge <= 0 {
		errs = append(errs, "odds max age must be positive")
	}
	if cfg.FreshnessHorizon <= 0 {
		errs = append(errs, "freshness horizon must be positive")
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("arbitrage: %w: %v", domain.ErrInvalidConfig, errs)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		cfg:    cfg,
		now:    now,
		logger: logger.With(slog.String("component", "arb_engine")),
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// eventResult is what one event contributes to a run.
type eventResult struct {
	opps  []domain.ArbitrageOpportunity
	units []domain.UnitResult
}

// Detect evaluates every event independently on a bounded worker pool.
// Failures are confined to the event or market that raised them and are
// reported in Result.Units. Once ctx is cancelled, events not yet started
// are recorded as skipped.
func (e *Engine) Detect(ctx context.Context, events []*domain.MatchedEvent, f domain.Filters) Result {
	results := make([]eventResult, len(events))

	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)
	for i, ev := range events {
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i].units = []domain.UnitResult{{
					Event:  ev.Event.CanonicalName,
					Status: domain.UnitSkipped,
					Reason: domain.SkipCancelled,
				}}
				return nil
			}
			results[i] = e.detectEvent(ev, f)
			return nil
		})
	}
	_ = g.Wait()

	var out Result
	for _, r := range results {
		out.Opportunities = append(out.Opportunities, r.opps...)
		out.Units = append(out.Units, r.units...)
	}
	slices.SortStableFunc(out.Opportunities, func(a, b domain.ArbitrageOpportunity) int {
		switch {
		case a.ProfitPercentage > b.ProfitPercentage:
			return -1
		case a.ProfitPercentage < b.ProfitPercentage:
			return 1
		}
		return 0
	})

	e.logger.Info("arb_engine: detection completed",
		slog.Int("events", len(events)),
		slog.Int("opportunities", len(out.Opportunities)),
		slog.Int("skipped", out.Count(domain.UnitSkipped)),
		slog.Int("failed", out.Count(domain.UnitFailed)),
	)
	return out
}

// detectEvent runs single-market and middle detection for one event.
func (e *Engine) detectEvent(ev *domain.MatchedEvent, f domain.Filters) (res eventResult) {
	name := ev.Event.CanonicalName
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("arbitrage: event %q: %v", name, r)
			e.logger.Error("arb_engine: event failed", slog.String("event", name), slog.String("error", err.Error()))
			res.units = append(res.units, domain.UnitResult{Event: name, Status: domain.UnitFailed, Err: err})
		}
	}()

	now := e.now()
	if !e.passesEventFilters(ev, f, now) {
		res.units = append(res.units, domain.UnitResult{
			Event:  name,
			Status: domain.UnitSkipped,
			Reason: domain.SkipFilteredEvent,
		})
		return res
	}

	for _, m := range ev.Markets {
		opp, unit := e.detectMarket(ev, m, f, now)
		if opp != nil {
			res.opps = append(res.opps, *opp)
		}
		res.units = append(res.units, unit)
	}

	opps, units := e.detectMiddles(ev, f, now)
	res.opps = append(res.opps, opps...)
	res.units = append(res.units, units...)
	return res
}

func (e *Engine) passesEventFilters(ev *domain.MatchedEvent, f domain.Filters, now time.Time) bool {
	if f.Sport != "" && ev.Event.Sport != f.Sport {
		return false
	}
	if f.LiveOnly != nil && *f.LiveOnly != ev.Event.IsLive {
		return false
	}
	if f.MaxStartHours != nil && *f.MaxStartHours > 0 && ev.Event.StartTime != nil {
		horizon := now.Add(time.Duration(*f.MaxStartHours) * time.Hour)
		if ev.Event.StartTime.After(horizon) {
			return false
		}
	}
	return true
}

// cutoff is the oldest observation time still considered fresh.
func (e *Engine) cutoff(live bool, now time.Time) time.Time {
	if live {
		return now.Add(-e.cfg.LiveMaxAge)
	}
	return now.Add(-e.cfg.PrematchMaxAge)
}

// detectMarket evaluates one market. A panic is converted into a failed
// unit so that sibling markets still run.
func (e *Engine) detectMarket(ev *domain.MatchedEvent, m *domain.Market, f domain.Filters, now time.Time) (opp *domain.ArbitrageOpportunity, unit domain.UnitResult) {
	unit = domain.UnitResult{Event: ev.Event.CanonicalName, Market: m.Key()}
	defer func() {
		if r := recover(); r != nil {
			unit.Status = domain.UnitFailed
			unit.Err = fmt.Errorf("arbitrage: market %s: %v", m.Key(), r)
			opp = nil
			e.logger.Warn("arb_engine: market failed",
				slog.String("event", unit.Event),
				slog.String("market", unit.Market),
				slog.String("error", unit.Err.Error()),
			)
		}
	}()

	if f.MarketType != "" && m.Type != f.MarketType {
		return nil, skip(unit, domain.SkipFilteredMarket)
	}

	legs, freshNames := bestLegs(m, e.cutoff(ev.Event.IsLive, now), f)
	if freshNames < 2 {
		return nil, skip(unit, domain.SkipStale)
	}
	if len(legs) < 2 {
		return nil, skip(unit, domain.SkipInsufficientLegs)
	}

	opp, reason := e.evaluate(ev, legs, f, now)
	if opp == nil {
		return nil, skip(unit, reason)
	}
	opp.Kind = domain.KindSingle
	opp.MarketType = string(m.Type)
	opp.Line = m.Line.String()
	unit.Status = domain.UnitFound
	return opp, unit
}

// evaluate runs the arbitrage math, thresholds and stake sizing over legs.
// It returns nil and the reason when the legs do not qualify.
func (e *Engine) evaluate(ev *domain.MatchedEvent, legs []domain.Outcome, f domain.Filters, now time.Time) (*domain.ArbitrageOpportunity, domain.SkipReason) {
	calc, ok := calculate(legs)
	if !ok {
		return nil, domain.SkipNoArbitrage
	}

	minPct := e.cfg.MinProfitPercentage
	if f.MinProfitPercentage != nil {
		minPct = *f.MinProfitPercentage
	}
	if calc.profitPercentage < minPct || calc.arbPercentage >= 100 {
		return nil, domain.SkipBelowThreshold
	}

	bankroll := e.cfg.DefaultBankroll
	if f.Bankroll != nil && *f.Bankroll > 0 {
		bankroll = *f.Bankroll
	}
	profit := guaranteedProfit(bankroll, calc.profitPercentage)

	// The absolute floor only applies when the caller asks for one.
	if f.MinProfit != nil && profit < *f.MinProfit {
		return nil, domain.SkipBelowMinProfit
	}

	return &domain.ArbitrageOpportunity{
		ID:               uuid.NewString(),
		EventName:        ev.Event.CanonicalName,
		StartTime:        ev.Event.StartTime,
		Sport:            ev.Event.Sport,
		League:           ev.Event.League,
		Outcomes:         slices.Clone(legs),
		ArbPercentage:    calc.arbPercentage,
		ProfitPercentage: calc.profitPercentage,
		GuaranteedProfit: profit,
		Bankroll:         bankroll,
		Stakes:           stakes(legs, calc.total, bankroll),
		FreshnessScore:   freshnessScore(legs, now, e.cfg.FreshnessHorizon),
		IsLive:           ev.Event.IsLive,
		DetectedAt:       now,
	}, ""
}

func skip(u domain.UnitResult, reason domain.SkipReason) domain.UnitResult {
	u.Status = domain.UnitSkipped
	u.Reason = reason
	return u
}
