package match

import (
	"strings"

	"github.com/alanyoungcy/oddsarb/internal/domain"
)

type keyword struct {
	substr string
	typ    domain.MarketType
}

// marketKeywords is scanned in order and the first substring found in the
// lower-cased market name decides the type. Longer, more specific phrases
// come before the generic ones they contain ("team totals" before "total").
var marketKeywords = []keyword{
	{"team totals", domain.MarketTeamTotals},
	{"team total", domain.MarketTeamTotals},
	{"total maps", domain.MarketTotalMaps},
	{"map winner", domain.MarketMapWinner},
	{"round handicap", domain.MarketRoundHandicap},
	{"first blood", domain.MarketFirstBlood},
	{"kills over/under", domain.MarketKillsOverUnder},
	{"total kills", domain.MarketKillsOverUnder},
	{"player props", domain.MarketPlayerProps},
	{"double chance", domain.MarketDoubleChance},
	// Period qualifiers win over totals and handicaps so a half-time line
	// never shares a market with the full-match line of the same value.
	{"1st half", domain.MarketPeriod},
	{"2nd half", domain.MarketPeriod},
	{"quarter", domain.MarketPeriod},
	{"period", domain.MarketPeriod},
	{"match winner", domain.MarketMoneyline},
	{"moneyline", domain.MarketMoneyline},
	{"winner", domain.MarketMoneyline},
	{"full time result", domain.Market1X2},
	{"match result", domain.Market1X2},
	{"1x2", domain.Market1X2},
	{"asian handicap", domain.MarketHandicap},
	{"european handicap", domain.MarketHandicap},
	{"handicap", domain.MarketHandicap},
	{"spread", domain.MarketHandicap},
	{"over/under", domain.MarketTotals},
	{"o/u", domain.MarketTotals},
	{"totals", domain.MarketTotals},
	{"total", domain.MarketTotals},
}

// ClassifyMarket maps a market name to its type. Canonical identifiers such
// as "double_chance" resolve directly; anything unrecognised is a moneyline.
func ClassifyMarket(name string) domain.MarketType {
	if name == "" {
		return domain.MarketMoneyline
	}
	if t, ok := domain.ParseMarketType(name); ok {
		return t
	}
	lower := strings.ToLower(name)
	for _, k := range marketKeywords {
		if strings.Contains(lower, k.substr) {
			return k.typ
		}
	}
	return domain.MarketMoneyline
}
