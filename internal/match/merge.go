package match

import (
	"slices"
	"time"

	"github.com/alanyoungcy/oddsarb/internal/domain"
)

// merge folds one cluster into a matched event. Quotes whose odds fall
// outside the accepted range are skipped and counted.
func (m *Matcher) merge(cluster []entry, stats *Stats) *domain.MatchedEvent {
	if len(cluster) == 0 {
		return nil
	}

	names := make([]string, 0, len(cluster))
	sports := make([]string, 0, len(cluster))
	leagues := make([]string, 0, len(cluster))
	var times []time.Time
	live := false
	original := make(map[domain.Bookmaker]string)

	for _, e := range cluster {
		q := e.quote
		names = append(names, q.EventName)
		if q.Sport != "" {
			sports = append(sports, q.Sport)
		}
		if q.League != "" {
			leagues = append(leagues, q.League)
		}
		if q.StartTime != nil {
			times = append(times, *q.StartTime)
		}
		live = live || q.IsLive
		original[q.Bookmaker] = e.rawName
	}

	sport := domain.SportUnknown
	if s, ok := mostCommon(sports); ok {
		sport = domain.ParseSport(s)
	}
	league, _ := mostCommon(leagues)
	canonical, _ := mostCommon(names)

	ev := domain.NewMatchedEvent(domain.CanonicalEvent{
		CanonicalName: canonical,
		StartTime:     medianTime(times),
		Sport:         sport,
		League:        league,
		OriginalNames: original,
		IsLive:        live,
	})

	for _, e := range cluster {
		q := e.quote
		out, err := domain.NewOutcome(q.OutcomeName, q.Odds, q.Bookmaker, q.URL, q.ScrapedAt)
		if err != nil {
			stats.RejectedQuotes++
			continue
		}
		ev.MarketFor(ClassifyMarket(q.MarketName), q.Line).Observe(out)
	}
	if len(ev.Markets) == 0 {
		return nil
	}
	return ev
}

// mostCommon returns the most frequent value, breaking ties by first
// occurrence.
func mostCommon(values []string) (string, bool) {
	if len(values) == 0 {
		return "", false
	}
	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	best := values[0]
	for _, v := range values {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return best, true
}

// medianTime returns the upper median so that a single outlier cannot drag
// the representative start time.
func medianTime(times []time.Time) *time.Time {
	if len(times) == 0 {
		return nil
	}
	sorted := slices.Clone(times)
	slices.SortFunc(sorted, func(a, b time.Time) int { return a.Compare(b) })
	mid := sorted[len(sorted)/2]
	return &mid
}
