package arbitrage

import (
	"time"

	"github.com/alanyoungcy/oddsarb/internal/domain"
)

// calculation is the implied-probability summary of a set of legs.
type calculation struct {
	total            float64
	arbPercentage    float64
	profitPercentage float64
}

// calculate sums the implied probabilities of the legs. It reports false
// when fewer than two legs are given, any leg has odds at or below 1, or the
// implied total is at least 1 (no arbitrage).
func calculate(legs []domain.Outcome) (calculation, bool) {
	if len(legs) < 2 {
		return calculation{}, false
	}
	total := 0.0
	for _, l := range legs {
		if l.Odds <= 1.0 {
			return calculation{}, false
		}
		total += 1.0 / l.Odds
	}
	if total >= 1.0 {
		return calculation{}, false
	}
	return calculation{
		total:            total,
		arbPercentage:    domain.Round(total*100, 4),
		profitPercentage: domain.Round((1.0/total-1.0)*100, 4),
	}, true
}

// stakes splits bankroll across legs in proportion to implied probability
// so that every leg returns the same amount.
func stakes(legs []domain.Outcome, total, bankroll float64) []domain.Stake {
	out := make([]domain.Stake, 0, len(legs))
	for _, l := range legs {
		stake := bankroll * (1.0 / l.Odds) / total
		ret := stake * l.Odds
		out = append(out, domain.Stake{
			OutcomeName:     l.Name,
			Bookmaker:       l.Bookmaker,
			Odds:            l.Odds,
			StakeAmount:     domain.Round(stake, 2),
			PotentialReturn: domain.Round(ret, 2),
			PotentialProfit: domain.Round(ret-bankroll, 2),
			URL:             l.URL,
		})
	}
	return out
}

// guaranteedProfit is the profit every leg yields for the bankroll.
func guaranteedProfit(bankroll, profitPercentage float64) float64 {
	return domain.Round(bankroll*profitPercentage/100, 2)
}

// freshnessScore maps the mean age of the legs onto [0, 1], reaching zero
// at horizon.
func freshnessScore(legs []domain.Outcome, now time.Time, horizon time.Duration) float64 {
	if len(legs) == 0 || horizon <= 0 {
		return 0
	}
	var sum float64
	for _, l := range legs {
		sum += now.Sub(l.LastSeen).Seconds()
	}
	avg := sum / float64(len(legs))
	score := 1 - avg/horizon.Seconds()
	switch {
	case score < 0:
		score = 0
	case score > 1:
		score = 1
	}
	return domain.Round(score, 3)
}
