package service

import (
	"time"

	"github.com/alanyoungcy/oddsarb/internal/arbitrage"
	"github.com/alanyoungcy/oddsarb/internal/domain"
	"github.com/alanyoungcy/oddsarb/internal/match"
	"github.com/alanyoungcy/oddsarb/internal/source"
)

// CycleReport is everything one detection cycle produced.
type CycleReport struct {
	Opportunities []domain.ArbitrageOpportunity `json:"arbitrages"`
	Sources       []source.Result               `json:"sources"`
	Matching      match.Stats                   `json:"matching_stats"`
	Summary       Summary                       `json:"summary"`
	// Live is set when any acquired quote was live.
	Live       bool      `json:"live"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Summary holds the headline numbers of a cycle.
type Summary struct {
	TotalArbitrages      int     `json:"total_arbitrages"`
	TotalEvents          int     `json:"total_events"`
	TotalQuotes          int     `json:"total_quotes"`
	ProcessingTimeMs     int64   `json:"processing_time_ms"`
	AvgArbPercentage     float64 `json:"avg_arb_percentage"`
	AvgProfitPercentage  float64 `json:"avg_profit_percentage"`
	TotalPotentialProfit float64 `json:"total_potential_profit"`
	SourcesOK            int     `json:"sources_ok"`
	SourcesFailed        int     `json:"sources_failed"`
	UnitsFound           int     `json:"units_found"`
	UnitsSkipped         int     `json:"units_skipped"`
	UnitsFailed          int     `json:"units_failed"`
}

func summarize(r CycleReport, quotes []domain.Quote, events []*domain.MatchedEvent, res arbitrage.Result) Summary {
	sum := Summary{
		TotalArbitrages:  len(r.Opportunities),
		TotalEvents:      len(events),
		TotalQuotes:      len(quotes),
		ProcessingTimeMs: r.FinishedAt.Sub(r.StartedAt).Milliseconds(),
		UnitsFound:       res.Count(domain.UnitFound),
		UnitsSkipped:     res.Count(domain.UnitSkipped),
		UnitsFailed:      res.Count(domain.UnitFailed),
	}
	for _, src := range r.Sources {
		if src.Success {
			sum.SourcesOK++
		} else {
			sum.SourcesFailed++
		}
	}
	if len(r.Opportunities) == 0 {
		return sum
	}

	var arbPct, profitPct, profit float64
	for _, o := range r.Opportunities {
		arbPct += o.ArbPercentage
		profitPct += o.ProfitPercentage
		profit += o.GuaranteedProfit
	}
	n := float64(len(r.Opportunities))
	sum.AvgArbPercentage = domain.Round(arbPct/n, 4)
	sum.AvgProfitPercentage = domain.Round(profitPct/n, 4)
	sum.TotalPotentialProfit = domain.Round(profit, 2)
	return sum
}

func (s Summary) auditDetail() map[string]any {
	return map[string]any{
		"total_arbitrages":       s.TotalArbitrages,
		"total_events":           s.TotalEvents,
		"total_quotes":           s.TotalQuotes,
		"processing_time_ms":     s.ProcessingTimeMs,
		"avg_profit_percentage":  s.AvgProfitPercentage,
		"total_potential_profit": s.TotalPotentialProfit,
		"sources_ok":             s.SourcesOK,
		"sources_failed":         s.SourcesFailed,
		"units_failed":           s.UnitsFailed,
	}
}
