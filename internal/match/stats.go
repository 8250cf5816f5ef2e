package match

import (
	"github.com/alanyoungcy/oddsarb/internal/domain"
)

// Stats summarises one matching run.
type Stats struct {
	TotalQuotes              int                      `json:"total_raw_odds"`
	UniqueEventsPerBookmaker map[domain.Bookmaker]int `json:"unique_events_per_bookmaker"`
	MatchedEvents            int                      `json:"matched_events"`
	TotalMarkets             int                      `json:"total_markets"`
	TotalOutcomes            int                      `json:"total_outcomes"`
	AvgMarketsPerEvent       float64                  `json:"average_markets_per_event"`
	// CoverageDistribution maps "bookmakers quoting a market" to the number
	// of markets with that coverage.
	CoverageDistribution  map[int]int `json:"bookmaker_coverage_distribution"`
	MatchingEfficiency    float64     `json:"matching_efficiency"`
	DroppedForCoverage    int         `json:"dropped_for_coverage"`
	RejectedQuotes        int         `json:"rejected_quotes"`
	NormalizationFailures int64       `json:"normalization_failures"`

	uniqueNames int
}

func newStats(quotes []domain.Quote) Stats {
	perBook := make(map[domain.Bookmaker]map[string]struct{})
	all := make(map[string]struct{})
	for _, q := range quotes {
		if perBook[q.Bookmaker] == nil {
			perBook[q.Bookmaker] = make(map[string]struct{})
		}
		perBook[q.Bookmaker][q.EventName] = struct{}{}
		all[q.EventName] = struct{}{}
	}
	unique := make(map[domain.Bookmaker]int, len(perBook))
	for b, names := range perBook {
		unique[b] = len(names)
	}
	return Stats{
		TotalQuotes:              len(quotes),
		UniqueEventsPerBookmaker: unique,
		CoverageDistribution:     make(map[int]int),
		uniqueNames:              len(all),
	}
}

func (s *Stats) finish(events []*domain.MatchedEvent) {
	s.MatchedEvents = len(events)
	for _, ev := range events {
		s.TotalMarkets += len(ev.Markets)
		for _, m := range ev.Markets {
			s.TotalOutcomes += m.OutcomeCount()
			s.CoverageDistribution[len(m.Bookmakers())]++
		}
	}
	if len(events) > 0 {
		s.AvgMarketsPerEvent = domain.Round(float64(s.TotalMarkets)/float64(len(events)), 2)
	}
	if s.uniqueNames > 0 {
		s.MatchingEfficiency = domain.Round(float64(len(events)*100)/float64(s.uniqueNames), 2)
	}
}
