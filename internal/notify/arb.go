package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/alanyoungcy/oddsarb/internal/domain"
)

// FormatOpportunity renders an opportunity as a notification title and body.
func FormatOpportunity(opp domain.ArbitrageOpportunity) (string, string) {
	market := opp.MarketType
	if opp.Line != "" && opp.Kind != domain.KindMiddle {
		market += " " + opp.Line
	}
	title := fmt.Sprintf("Arb %.2f%%: %s", opp.ProfitPercentage, opp.EventName)
	if opp.IsLive {
		title += " (live)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s | %s\n", opp.Sport, market)
	for _, s := range opp.Stakes {
		fmt.Fprintf(&b, "%s @ %.3f on %s: stake %.2f\n", s.OutcomeName, s.Odds, s.Bookmaker, s.StakeAmount)
	}
	fmt.Fprintf(&b, "Profit %.2f on %.2f", opp.GuaranteedProfit, opp.Bankroll)
	return title, b.String()
}

// NotifyOpportunities sends one arb_detected notification per opportunity
// and returns the first error after attempting all of them.
func (n *Notifier) NotifyOpportunities(ctx context.Context, opps []domain.ArbitrageOpportunity) error {
	if !n.Enabled() {
		return nil
	}
	var first error
	for _, opp := range opps {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		title, msg := FormatOpportunity(opp)
		if err := n.Notify(ctx, EventArbDetected, title, msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}
