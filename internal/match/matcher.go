// Package match clusters quotes from different bookmakers into canonical
// events with their markets.
package match

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/alanyoungcy/oddsarb/internal/domain"
	"github.com/alanyoungcy/oddsarb/internal/normalize"
)

const unknownBucket = "unknown"

// Config tunes clustering.
type Config struct {
	// Threshold is the minimum similarity ratio (0-100) for two event names
	// to be considered the same fixture.
	Threshold float64
	// TimeTolerance is the largest start-time gap accepted between quotes
	// of one event when both sides carry a start time.
	TimeTolerance time.Duration
}

// DefaultConfig returns the default clustering parameters.
func DefaultConfig() Config {
	return Config{Threshold: 94, TimeTolerance: 15 * time.Minute}
}

// Matcher turns a batch of quotes into matched events. It holds no state
// between calls and is safe for concurrent use.
type Matcher struct {
	norm   *normalize.Normalizer
	cfg    Config
	logger *slog.Logger
}

// New creates a Matcher.
func New(norm *normalize.Normalizer, cfg Config, logger *slog.Logger) *Matcher {
	if norm == nil {
		norm = normalize.New(nil)
	}
	return &Matcher{
		norm:   norm,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "matcher")),
	}
}

// entry pairs a normalised quote with the event name it arrived with.
type entry struct {
	quote   domain.Quote
	rawName string
}

// unit is the smallest clustering input: quotes sharing one normalised name
// whose start times are mutually compatible.
type unit struct {
	name    string
	entries []entry
}

type group struct {
	key   string
	items []entry
}

// Match normalises, groups, clusters and merges quotes into events that are
// covered by at least two bookmakers. If ctx is cancelled between groups the
// events finished so far are returned together with ctx.Err().
func (m *Matcher) Match(ctx context.Context, quotes []domain.Quote) ([]*domain.MatchedEvent, Stats, error) {
	stats := newStats(quotes)
	failuresBefore := m.norm.Failures()

	groups := m.groupQuotes(quotes, &stats)

	var (
		events []*domain.MatchedEvent
		err    error
	)
	for _, g := range groups {
		if err = ctx.Err(); err != nil {
			break
		}
		for _, cluster := range m.cluster(g.items) {
			ev := m.merge(cluster, &stats)
			if ev == nil {
				continue
			}
			if len(ev.Bookmakers()) < 2 {
				stats.DroppedForCoverage++
				m.logger.Debug("matcher: dropped event, insufficient bookmaker coverage",
					slog.String("event", ev.Event.CanonicalName),
				)
				continue
			}
			events = append(events, ev)
		}
		m.logger.Debug("matcher: group matched",
			slog.String("group", g.key),
			slog.Int("quotes", len(g.items)),
		)
	}

	stats.NormalizationFailures = m.norm.Failures() - failuresBefore
	stats.finish(events)

	m.logger.Info("matcher: matching completed",
		slog.Int("quotes", len(quotes)),
		slog.Int("events", len(events)),
		slog.Int("dropped_coverage", stats.DroppedForCoverage),
		slog.Int("rejected_quotes", stats.RejectedQuotes),
	)
	if err != nil {
		return events, stats, fmt.Errorf("match: %w", err)
	}
	return events, stats, nil
}

// groupQuotes normalises quotes and partitions them by sport and league in
// first-seen order.
func (m *Matcher) groupQuotes(quotes []domain.Quote, stats *Stats) []*group {
	var (
		order []*group
		index = make(map[string]*group)
	)
	for _, q := range quotes {
		if err := q.Validate(); err != nil {
			stats.RejectedQuotes++
			continue
		}
		nq := m.norm.Quote(q)

		sport := strings.ToLower(strings.TrimSpace(nq.Sport))
		if sport == "" {
			sport = unknownBucket
		}
		league := nq.League
		if league == "" {
			league = unknownBucket
		}
		key := sport + "_" + league

		g, ok := index[key]
		if !ok {
			g = &group{key: key}
			index[key] = g
			order = append(order, g)
		}
		g.items = append(g.items, entry{quote: nq, rawName: q.EventName})
	}
	return order
}

// cluster runs the greedy single pass over the units of one group. Each
// unassigned unit seeds a cluster; every later unassigned unit whose name is
// similar enough and whose start times are compatible with the seed joins
// it. Assignment is final, so the result depends on input order.
func (m *Matcher) cluster(items []entry) [][]entry {
	units := m.buildUnits(items)
	assigned := make([]bool, len(units))

	var clusters [][]entry
	for i, seed := range units {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		members := slices.Clone(seed.entries)

		for j := i + 1; j < len(units); j++ {
			if assigned[j] {
				continue
			}
			cand := units[j]
			if Ratio(seed.name, cand.name) < m.cfg.Threshold {
				continue
			}
			if !m.timesCompatible(seed.entries, cand.entries) {
				continue
			}
			assigned[j] = true
			members = append(members, cand.entries...)
		}
		clusters = append(clusters, members)
	}
	return clusters
}

// buildUnits buckets entries by exact normalised name, splitting a bucket
// whenever a quote's start time is incompatible with every existing unit of
// that name.
func (m *Matcher) buildUnits(items []entry) []*unit {
	var (
		units  []*unit
		byName = make(map[string][]*unit)
	)
	for _, e := range items {
		name := e.quote.EventName
		var target *unit
		for _, u := range byName[name] {
			if m.timesCompatible(u.entries, []entry{e}) {
				target = u
				break
			}
		}
		if target == nil {
			target = &unit{name: name}
			byName[name] = append(byName[name], target)
			units = append(units, target)
		}
		target.entries = append(target.entries, e)
	}
	return units
}

// timesCompatible accepts when either side has no start time, or when some
// pair of start times lies within the tolerance.
func (m *Matcher) timesCompatible(a, b []entry) bool {
	ta, tb := startTimes(a), startTimes(b)
	if len(ta) == 0 || len(tb) == 0 {
		return true
	}
	for _, x := range ta {
		for _, y := range tb {
			d := x.Sub(y)
			if d < 0 {
				d = -d
			}
			if d <= m.cfg.TimeTolerance {
				return true
			}
		}
	}
	return false
}

func startTimes(entries []entry) []time.Time {
	var out []time.Time
	for _, e := range entries {
		if e.quote.StartTime != nil {
			out = append(out, *e.quote.StartTime)
		}
	}
	return out
}
