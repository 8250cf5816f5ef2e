package domain

// UnitStatus is the outcome of detecting over one market or event.
type UnitStatus string

const (
	UnitFound   UnitStatus = "found"
	UnitSkipped UnitStatus = "skipped"
	UnitFailed  UnitStatus = "failed"
)

// SkipReason explains why a unit produced no opportunity.
type SkipReason string

const (
	SkipFilteredEvent    SkipReason = "filtered_event"
	SkipFilteredMarket   SkipReason = "filtered_market"
	SkipStale            SkipReason = "stale_outcomes"
	SkipInsufficientLegs SkipReason = "insufficient_legs"
	SkipNoArbitrage      SkipReason = "no_arbitrage"
	SkipBelowThreshold   SkipReason = "below_threshold"
	SkipBelowMinProfit   SkipReason = "below_min_profit"
	SkipHandicapMiddle   SkipReason = "handicap_middle_unsupported"
	SkipCancelled        SkipReason = "cancelled"
)

// UnitResult records what happened to one event or market during detection.
// Market is empty for event-level results.
type UnitResult struct {
	Event  string
	Market string
	Status UnitStatus
	Reason SkipReason
	Err    error
}
