package domain

import (
	"slices"
	"strings"
	"time"
)

// MarketType is the closed set of betting market families.
type MarketType string

const (
	MarketMoneyline      MarketType = "moneyline"
	Market1X2            MarketType = "1x2"
	MarketDoubleChance   MarketType = "double_chance"
	MarketTotals         MarketType = "totals"
	MarketHandicap       MarketType = "handicap"
	MarketTeamTotals     MarketType = "team_totals"
	MarketPlayerProps    MarketType = "player_props"
	MarketPeriod         MarketType = "period_markets"
	MarketMapWinner      MarketType = "map_winner"
	MarketTotalMaps      MarketType = "total_maps"
	MarketRoundHandicap  MarketType = "round_handicap"
	MarketFirstBlood     MarketType = "first_blood"
	MarketKillsOverUnder MarketType = "kills_over_under"
)

var knownMarketTypes = []MarketType{
	MarketMoneyline, Market1X2, MarketDoubleChance, MarketTotals, MarketHandicap,
	MarketTeamTotals, MarketPlayerProps, MarketPeriod, MarketMapWinner,
	MarketTotalMaps, MarketRoundHandicap, MarketFirstBlood, MarketKillsOverUnder,
}

// KnownMarketTypes lists every canonical market type.
func KnownMarketTypes() []MarketType { return slices.Clone(knownMarketTypes) }

// ParseMarketType returns the MarketType for a canonical identifier.
func ParseMarketType(raw string) (MarketType, bool) {
	t := MarketType(strings.ToLower(strings.TrimSpace(raw)))
	for _, k := range knownMarketTypes {
		if t == k {
			return k, true
		}
	}
	return "", false
}

// Market groups the outcome observations of one (type, line) pair inside a
// matched event. Every bookmaker keeps its own observation per outcome name;
// a bookmaker's entry is only replaced by a strictly newer one.
type Market struct {
	Type MarketType
	Line Line

	names []string
	obs   map[string][]Outcome
}

// NewMarket creates an empty market.
func NewMarket(t MarketType, line Line) *Market {
	return &Market{Type: t, Line: line, obs: make(map[string][]Outcome)}
}

// MarketKey builds the identity of a market inside an event:
// "{type}" or "{type}_{line}".
func MarketKey(t MarketType, line Line) string {
	if line.IsZero() {
		return string(t)
	}
	return string(t) + "_" + line.String()
}

// Key returns the market identity.
func (m *Market) Key() string {
	return MarketKey(m.Type, m.Line)
}

// Observe records an outcome observation and reports whether it was stored.
func (m *Market) Observe(o Outcome) bool {
	list, seen := m.obs[o.Name]
	if !seen {
		m.names = append(m.names, o.Name)
	}
	for i, cur := range list {
		if cur.Bookmaker != o.Bookmaker {
			continue
		}
		if !o.LastSeen.After(cur.LastSeen) {
			return false
		}
		list[i] = o
		return true
	}
	m.obs[o.Name] = append(list, o)
	return true
}

// OutcomeNames returns outcome names in first-insertion order.
func (m *Market) OutcomeNames() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// Observations returns the per-bookmaker observations for an outcome name in
// insertion order.
func (m *Market) Observations(name string) []Outcome {
	list := m.obs[name]
	out := make([]Outcome, len(list))
	copy(out, list)
	return out
}

// Latest returns the freshest observation for an outcome name across all
// bookmakers.
func (m *Market) Latest(name string) (Outcome, bool) {
	var (
		best  Outcome
		found bool
	)
	for _, o := range m.obs[name] {
		if !found || o.LastSeen.After(best.LastSeen) {
			best, found = o, true
		}
	}
	return best, found
}

// Bookmakers returns the distinct bookmakers contributing to the market.
func (m *Market) Bookmakers() []Bookmaker {
	seen := make(map[Bookmaker]struct{})
	var out []Bookmaker
	for _, name := range m.names {
		for _, o := range m.obs[name] {
			if _, ok := seen[o.Bookmaker]; ok {
				continue
			}
			seen[o.Bookmaker] = struct{}{}
			out = append(out, o.Bookmaker)
		}
	}
	return out
}

// OutcomeCount returns the number of stored observations.
func (m *Market) OutcomeCount() int {
	n := 0
	for _, list := range m.obs {
		n += len(list)
	}
	return n
}

// Outcome is one bookmaker's price for one outcome name.
type Outcome struct {
	Name      string    `json:"name"`
	Odds      float64   `json:"odds"`
	Bookmaker Bookmaker `json:"bookmaker"`
	URL       string    `json:"url"`
	LastSeen  time.Time `json:"last_seen"`
}

const (
	MinOdds = 1.01
	MaxOdds = 1000.0
)

// NewOutcome validates odds and rounds them to three decimals.
func NewOutcome(name string, odds float64, bm Bookmaker, url string, seen time.Time) (Outcome, error) {
	if odds < MinOdds || odds > MaxOdds {
		return Outcome{}, ErrInvalidOdds
	}
	return Outcome{
		Name:      name,
		Odds:      Round(odds, 3),
		Bookmaker: bm,
		URL:       url,
		LastSeen:  seen,
	}, nil
}
