package domain

import "time"

// CanonicalEvent is the deduplicated, cross-bookmaker view of one fixture.
type CanonicalEvent struct {
	CanonicalName string
	StartTime     *time.Time
	Sport         Sport
	League        string
	OriginalNames map[Bookmaker]string
	IsLive        bool
}

// MatchedEvent is a canonical event plus its markets. It is assembled by the
// matcher and treated as read-only afterwards.
type MatchedEvent struct {
	Event   CanonicalEvent
	Markets []*Market

	index map[string]int
}

// NewMatchedEvent creates an event with no markets.
func NewMatchedEvent(ev CanonicalEvent) *MatchedEvent {
	return &MatchedEvent{Event: ev, index: make(map[string]int)}
}

// MarketFor returns the market for (t, line), creating it on first use.
func (e *MatchedEvent) MarketFor(t MarketType, line Line) *Market {
	if e.index == nil {
		e.index = make(map[string]int)
	}
	key := MarketKey(t, line)
	if i, ok := e.index[key]; ok {
		return e.Markets[i]
	}
	m := NewMarket(t, line)
	e.index[key] = len(e.Markets)
	e.Markets = append(e.Markets, m)
	return m
}

// Market looks up a market by key.
func (e *MatchedEvent) Market(key string) (*Market, bool) {
	i, ok := e.index[key]
	if !ok {
		return nil, false
	}
	return e.Markets[i], true
}

// Bookmakers returns the distinct bookmakers across all markets.
func (e *MatchedEvent) Bookmakers() []Bookmaker {
	seen := make(map[Bookmaker]struct{})
	var out []Bookmaker
	for _, m := range e.Markets {
		for _, b := range m.Bookmakers() {
			if _, ok := seen[b]; ok {
				continue
			}
			seen[b] = struct{}{}
			out = append(out, b)
		}
	}
	return out
}

// OutcomeCount returns the number of observations across all markets.
func (e *MatchedEvent) OutcomeCount() int {
	n := 0
	for _, m := range e.Markets {
		n += m.OutcomeCount()
	}
	return n
}
