package arbitrage

import (
	"time"

	"github.com/alanyoungcy/oddsarb/internal/domain"
)

// freshObservations returns the observations of name no older than cutoff.
func freshObservations(m *domain.Market, name string, cutoff time.Time) []domain.Outcome {
	var out []domain.Outcome
	for _, o := range m.Observations(name) {
		if !o.LastSeen.Before(cutoff) {
			out = append(out, o)
		}
	}
	return out
}

// bestLegs picks, for each outcome name in insertion order, the highest
// fresh odds from an allowed bookmaker not already used by an earlier leg.
// Ties keep the first observation.
func bestLegs(m *domain.Market, cutoff time.Time, f domain.Filters) (legs []domain.Outcome, freshNames int) {
	used := make(map[domain.Bookmaker]bool)
	for _, name := range m.OutcomeNames() {
		fresh := freshObservations(m, name, cutoff)
		if len(fresh) == 0 {
			continue
		}
		freshNames++
		if best, ok := pick(fresh, f, used); ok {
			legs = append(legs, best)
			used[best.Bookmaker] = true
		}
	}
	return legs, freshNames
}

// pick returns the highest-odds observation from an allowed, unused
// bookmaker.
func pick(obs []domain.Outcome, f domain.Filters, used map[domain.Bookmaker]bool) (domain.Outcome, bool) {
	var (
		best  domain.Outcome
		found bool
	)
	for _, o := range obs {
		if !f.AllowsBookmaker(o.Bookmaker) || used[o.Bookmaker] {
			continue
		}
		if !found || o.Odds > best.Odds {
			best, found = o, true
		}
	}
	return best, found
}
