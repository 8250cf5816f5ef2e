package arbitrage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oddsarb/internal/domain"
)

func sampleOpportunity() domain.ArbitrageOpportunity {
	start := now.Add(5 * time.Hour)
	legs := []domain.Outcome{
		{Name: "Home", Odds: 2.10, Bookmaker: domain.BookmakerStake},
		{Name: "Away", Odds: 2.20, Bookmaker: domain.BookmakerLeon},
	}
	total := 1/2.10 + 1/2.20
	return domain.ArbitrageOpportunity{
		EventName:        "Alpha vs Beta",
		StartTime:        &start,
		Sport:            domain.SportFootball,
		Kind:             domain.KindSingle,
		MarketType:       "moneyline",
		Outcomes:         legs,
		ArbPercentage:    93.0736,
		ProfitPercentage: 7.4419,
		GuaranteedProfit: 74.42,
		Bankroll:         1000,
		Stakes:           stakes(legs, total, 1000),
	}
}

func TestRescale(t *testing.T) {
	opp := sampleOpportunity()
	scaled := Rescale(opp, 500)

	assert.Equal(t, 500.0, scaled.Bankroll)
	assert.Equal(t, 37.21, scaled.GuaranteedProfit)
	require.Len(t, scaled.Stakes, 2)
	assert.Equal(t, 255.81, scaled.Stakes[0].StakeAmount)
	assert.Equal(t, 244.19, scaled.Stakes[1].StakeAmount)
	assert.Equal(t, 1000.0, opp.Bankroll, "original untouched")
	assert.Equal(t, 511.63, opp.Stakes[0].StakeAmount)
}

func TestMatches(t *testing.T) {
	opp := sampleOpportunity()
	tests := []struct {
		name string
		f    domain.Filters
		want bool
	}{
		{"empty", domain.Filters{}, true},
		{"sport", domain.Filters{Sport: domain.SportTennis}, false},
		{"market type", domain.Filters{MarketType: domain.MarketMoneyline}, true},
		{"other market type", domain.Filters{MarketType: domain.MarketTotals}, false},
		{"min pct", domain.Filters{MinProfitPercentage: ptr(7.5)}, false},
		{"min profit at own bankroll", domain.Filters{MinProfit: ptr(75.0)}, false},
		{"min profit at filter bankroll", domain.Filters{MinProfit: ptr(75.0), Bankroll: ptr(1100.0)}, true},
		{"any leg bookmaker", domain.Filters{Bookmakers: []domain.Bookmaker{domain.BookmakerLeon}}, true},
		{"no leg bookmaker", domain.Filters{Bookmakers: []domain.Bookmaker{domain.Bookmaker1Win}}, false},
		{"live only", domain.Filters{LiveOnly: ptr(true)}, false},
		{"horizon", domain.Filters{MaxStartHours: ptr(4)}, false},
		{"wide horizon", domain.Filters{MaxStartHours: ptr(6)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(opp, tt.f, now))
		})
	}
}

func TestRefilterMiddleCountsAsTotals(t *testing.T) {
	opp := sampleOpportunity()
	opp.Kind = domain.KindMiddle
	opp.MarketType = "Middle 2.5-3.5"

	got := Refilter([]domain.ArbitrageOpportunity{opp}, domain.Filters{MarketType: domain.MarketTotals}, now)
	assert.Len(t, got, 1)

	got = Refilter([]domain.ArbitrageOpportunity{opp}, domain.Filters{MarketType: domain.MarketMoneyline, Bankroll: ptr(10.0)}, now)
	assert.Empty(t, got)
}

func TestRefilterRescalesToFilterBankroll(t *testing.T) {
	opps := []domain.ArbitrageOpportunity{sampleOpportunity()}
	got := Refilter(opps, domain.Filters{Bankroll: ptr(2000.0)}, now)
	require.Len(t, got, 1)
	assert.Equal(t, 2000.0, got[0].Bankroll)
	assert.Equal(t, 148.84, got[0].GuaranteedProfit)
	assert.Equal(t, 1000.0, opps[0].Bankroll)
}
