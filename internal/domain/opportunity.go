package domain

import "time"

// OpportunityKind separates single-market arbitrages from cross-line middles.
type OpportunityKind string

const (
	KindSingle OpportunityKind = "single"
	KindMiddle OpportunityKind = "middle"
)

// Stake is the amount to place on one leg of an opportunity.
type Stake struct {
	OutcomeName     string    `json:"outcome_name"`
	Bookmaker       Bookmaker `json:"bookmaker"`
	Odds            float64   `json:"odds"`
	StakeAmount     float64   `json:"stake_amount"`
	PotentialReturn float64   `json:"potential_return"`
	PotentialProfit float64   `json:"potential_profit"`
	URL             string    `json:"url"`
}

// ArbitrageOpportunity is a self-describing detection result.
type ArbitrageOpportunity struct {
	ID               string          `json:"id"`
	EventName        string          `json:"event_name"`
	StartTime        *time.Time      `json:"start_time,omitempty"`
	Sport            Sport           `json:"sport"`
	League           string          `json:"league,omitempty"`
	Kind             OpportunityKind `json:"kind"`
	MarketType       string          `json:"market_type"`
	Line             string          `json:"line,omitempty"`
	Outcomes         []Outcome       `json:"outcomes"`
	ArbPercentage    float64         `json:"arb_percentage"`
	ProfitPercentage float64         `json:"profit_percentage"`
	GuaranteedProfit float64         `json:"guaranteed_profit"`
	Bankroll         float64         `json:"bankroll"`
	Stakes           []Stake         `json:"stakes"`
	FreshnessScore   float64         `json:"freshness_score"`
	IsLive           bool            `json:"is_live"`
	DetectedAt       time.Time       `json:"detected_at"`
}

// Bookmakers returns the bookmakers of the opportunity's legs.
func (a ArbitrageOpportunity) Bookmakers() []Bookmaker {
	out := make([]Bookmaker, 0, len(a.Outcomes))
	for _, o := range a.Outcomes {
		out = append(out, o.Bookmaker)
	}
	return out
}
