package domain

import "time"

// Quote is one bookmaker's published price for one outcome, as delivered by
// an acquisition source. Quotes are never mutated; normalisation returns a
// modified copy.
type Quote struct {
	EventName   string     `json:"event_name"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	Sport       string     `json:"sport"`
	League      string     `json:"league,omitempty"`
	MarketName  string     `json:"market_name"`
	Line        Line       `json:"line"`
	OutcomeName string     `json:"outcome_name"`
	Odds        float64    `json:"odds"`
	Bookmaker   Bookmaker  `json:"bookmaker"`
	URL         string     `json:"url"`
	ScrapedAt   time.Time  `json:"scraped_at"`
	IsLive      bool       `json:"is_live"`
}

// Validate checks the fields a quote must carry to be matched.
func (q Quote) Validate() error {
	if q.EventName == "" || q.OutcomeName == "" {
		return ErrInvalidQuote
	}
	if q.Odds <= 1.0 {
		return ErrInvalidOdds
	}
	return nil
}
