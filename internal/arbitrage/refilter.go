package arbitrage

import (
	"slices"
	"time"

	"github.com/alanyoungcy/oddsarb/internal/domain"
)

// Refilter narrows previously detected opportunities to f and rescales
// them to the requested bankroll. The input slice is not modified.
func Refilter(opps []domain.ArbitrageOpportunity, f domain.Filters, now time.Time) []domain.ArbitrageOpportunity {
	out := make([]domain.ArbitrageOpportunity, 0, len(opps))
	for _, opp := range opps {
		if !Matches(opp, f, now) {
			continue
		}
		if f.Bankroll != nil && *f.Bankroll > 0 && *f.Bankroll != opp.Bankroll {
			opp = Rescale(opp, *f.Bankroll)
		}
		out = append(out, opp)
	}
	return out
}

// Matches reports whether an opportunity satisfies f. Minimum profit is
// judged at the filter's bankroll, falling back to the opportunity's own.
func Matches(opp domain.ArbitrageOpportunity, f domain.Filters, now time.Time) bool {
	if f.Sport != "" && opp.Sport != f.Sport {
		return false
	}
	if f.MarketType != "" && !matchesMarketType(opp, f.MarketType) {
		return false
	}
	if f.MinProfitPercentage != nil && opp.ProfitPercentage < *f.MinProfitPercentage {
		return false
	}
	if f.MinProfit != nil && *f.MinProfit > 0 {
		bankroll := opp.Bankroll
		if f.Bankroll != nil && *f.Bankroll > 0 {
			bankroll = *f.Bankroll
		}
		if guaranteedProfit(bankroll, opp.ProfitPercentage) < *f.MinProfit {
			return false
		}
	}
	if len(f.Bookmakers) > 0 && !slices.ContainsFunc(opp.Outcomes, func(o domain.Outcome) bool {
		return f.AllowsBookmaker(o.Bookmaker)
	}) {
		return false
	}
	if f.LiveOnly != nil && *f.LiveOnly != opp.IsLive {
		return false
	}
	if f.MaxStartHours != nil && *f.MaxStartHours > 0 && opp.StartTime != nil {
		if opp.StartTime.After(now.Add(time.Duration(*f.MaxStartHours) * time.Hour)) {
			return false
		}
	}
	return true
}

func matchesMarketType(opp domain.ArbitrageOpportunity, t domain.MarketType) bool {
	if opp.Kind == domain.KindMiddle {
		return t == domain.MarketTotals
	}
	return opp.MarketType == string(t)
}

// Rescale recomputes stakes and guaranteed profit for a new bankroll.
func Rescale(opp domain.ArbitrageOpportunity, bankroll float64) domain.ArbitrageOpportunity {
	total := 0.0
	for _, o := range opp.Outcomes {
		total += 1.0 / o.Odds
	}
	if total <= 0 {
		return opp
	}
	opp.Outcomes = slices.Clone(opp.Outcomes)
	opp.Bankroll = bankroll
	opp.GuaranteedProfit = guaranteedProfit(bankroll, opp.ProfitPercentage)
	opp.Stakes = stakes(opp.Outcomes, total, bankroll)
	return opp
}
