package arbitrage

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/alanyoungcy/oddsarb/internal/domain"
)

// middleGap is the line distance at which an Over/Under pair can both win.
const middleGap = 1.0

// detectMiddles pairs the Over of a lower totals line with the Under of the
// line exactly one unit above it. Handicap middles are not evaluated; an
// event offering them gets a single skipped unit so the gap is visible.
func (e *Engine) detectMiddles(ev *domain.MatchedEvent, f domain.Filters, now time.Time) ([]domain.ArbitrageOpportunity, []domain.UnitResult) {
	var (
		totals    []*domain.Market
		handicaps int
	)
	for _, m := range ev.Markets {
		if !m.Line.IsNumeric() {
			continue
		}
		switch m.Type {
		case domain.MarketTotals:
			totals = append(totals, m)
		case domain.MarketHandicap:
			handicaps++
		}
	}

	var (
		opps  []domain.ArbitrageOpportunity
		units []domain.UnitResult
	)
	if handicaps >= 2 {
		units = append(units, domain.UnitResult{
			Event:  ev.Event.CanonicalName,
			Market: "handicap_middle",
			Status: domain.UnitSkipped,
			Reason: domain.SkipHandicapMiddle,
		})
	}
	if f.MarketType != "" && f.MarketType != domain.MarketTotals {
		return opps, units
	}

	for i := 0; i < len(totals); i++ {
		for j := i + 1; j < len(totals); j++ {
			a, b := totals[i], totals[j]
			if math.Abs(math.Abs(a.Line.Value()-b.Line.Value())-middleGap) > 1e-9 {
				continue
			}
			lower, higher := a, b
			if b.Line.Value() < a.Line.Value() {
				lower, higher = b, a
			}
			opp, unit := e.detectMiddle(ev, lower, higher, f, now)
			if opp != nil {
				opps = append(opps, *opp)
			}
			units = append(units, unit)
		}
	}
	return opps, units
}

func (e *Engine) detectMiddle(ev *domain.MatchedEvent, lower, higher *domain.Market, f domain.Filters, now time.Time) (opp *domain.ArbitrageOpportunity, unit domain.UnitResult) {
	lo := domain.FormatLineValue(lower.Line.Value())
	hi := domain.FormatLineValue(higher.Line.Value())
	unit = domain.UnitResult{Event: ev.Event.CanonicalName, Market: "middle_" + lo + "_" + hi}
	defer func() {
		if r := recover(); r != nil {
			unit.Status = domain.UnitFailed
			unit.Err = fmt.Errorf("arbitrage: middle %s-%s: %v", lo, hi, r)
			opp = nil
			e.logger.Warn("arb_engine: middle failed",
				slog.String("event", unit.Event),
				slog.String("error", unit.Err.Error()),
			)
		}
	}()

	cutoff := e.cutoff(ev.Event.IsLive, now)
	used := make(map[domain.Bookmaker]bool)

	over, ok := bestSide(lower, "over", cutoff, f, used)
	if !ok {
		return nil, skip(unit, domain.SkipInsufficientLegs)
	}
	used[over.Bookmaker] = true
	under, ok := bestSide(higher, "under", cutoff, f, used)
	if !ok {
		return nil, skip(unit, domain.SkipInsufficientLegs)
	}
	over.Name = "Over " + lo
	under.Name = "Under " + hi

	opp, reason := e.evaluate(ev, []domain.Outcome{over, under}, f, now)
	if opp == nil {
		return nil, skip(unit, reason)
	}
	opp.Kind = domain.KindMiddle
	opp.MarketType = fmt.Sprintf("Middle %s-%s", lo, hi)
	opp.Line = lo + "/" + hi
	unit.Status = domain.UnitFound
	return opp, unit
}

// bestSide returns the best fresh observation among outcome names that
// contain side.
func bestSide(m *domain.Market, side string, cutoff time.Time, f domain.Filters, used map[domain.Bookmaker]bool) (domain.Outcome, bool) {
	var candidates []domain.Outcome
	for _, name := range m.OutcomeNames() {
		if strings.Contains(strings.ToLower(name), side) {
			candidates = append(candidates, freshObservations(m, name, cutoff)...)
		}
	}
	return pick(candidates, f, used)
}
