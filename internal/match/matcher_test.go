package match

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oddsarb/internal/domain"
	"github.com/alanyoungcy/oddsarb/internal/normalize"
)

var (
	kickoff = time.Date(2026, 5, 10, 18, 0, 0, 0, time.UTC)
	scraped = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
)

func newTestMatcher() *Matcher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(normalize.New(nil), DefaultConfig(), logger)
}

func at(t time.Time) *time.Time { return &t }

func quote(event string, bm domain.Bookmaker, start *time.Time, outcome string, odds float64) domain.Quote {
	return domain.Quote{
		EventName:   event,
		StartTime:   start,
		Sport:       "football",
		League:      "Premier League",
		MarketName:  "Match Winner",
		OutcomeName: outcome,
		Odds:        odds,
		Bookmaker:   bm,
		URL:         "https://example.com/" + string(bm),
		ScrapedAt:   scraped,
	}
}

func TestMatchMergesAcrossNamingStyles(t *testing.T) {
	m := newTestMatcher()
	quotes := []domain.Quote{
		quote("Arsenal FC vs Chelsea FC", domain.BookmakerStake, at(kickoff), "Home", 2.10),
		quote("Arsenal - Chelsea", domain.BookmakerLeon, at(kickoff.Add(5*time.Minute)), "Away", 2.20),
	}

	events, stats, err := m.Match(context.Background(), quotes)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "Arsenal vs Chelsea", ev.Event.CanonicalName)
	assert.Equal(t, domain.SportFootball, ev.Event.Sport)
	assert.Equal(t, "Premier League", ev.Event.League)
	assert.Equal(t, "Arsenal FC vs Chelsea FC", ev.Event.OriginalNames[domain.BookmakerStake])
	assert.Equal(t, "Arsenal - Chelsea", ev.Event.OriginalNames[domain.BookmakerLeon])
	require.Len(t, ev.Markets, 1)
	assert.Equal(t, domain.MarketMoneyline, ev.Markets[0].Type)
	assert.Equal(t, []string{"Home", "Away"}, ev.Markets[0].OutcomeNames())
	assert.Equal(t, 1, stats.MatchedEvents)
	assert.Equal(t, 2, stats.TotalOutcomes)
}

func TestMatchRejectsDistantStartTimes(t *testing.T) {
	m := newTestMatcher()
	quotes := []domain.Quote{
		quote("Arsenal FC vs Chelsea FC", domain.BookmakerStake, at(kickoff), "Home", 2.10),
		quote("Arsenal - Chelsea", domain.BookmakerLeon, at(kickoff.Add(3*time.Hour)), "Away", 2.20),
	}

	events, stats, err := m.Match(context.Background(), quotes)
	require.NoError(t, err)
	assert.Empty(t, events, "each side alone has a single bookmaker")
	assert.Equal(t, 2, stats.DroppedForCoverage)
}

func TestMatchFuzzyNames(t *testing.T) {
	m := newTestMatcher()
	quotes := []domain.Quote{
		quote("Borussia Monchengladbach vs Bayer Leverkusen", domain.BookmakerStake, nil, "1", 2.4),
		quote("Borussia Moenchengladbach vs Bayer Leverkusen", domain.BookmakerMostbet, nil, "2", 2.9),
		quote("Borussia Dortmund vs Bayern Munich", domain.BookmakerLeon, nil, "1", 3.1),
	}
	require.GreaterOrEqual(t, Ratio(quotes[0].EventName, quotes[1].EventName), 94.0)

	events, _, err := m.Match(context.Background(), quotes)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.ElementsMatch(t,
		[]domain.Bookmaker{domain.BookmakerStake, domain.BookmakerMostbet},
		events[0].Bookmakers())
}

func TestMatchWithoutStartTimesMergesByName(t *testing.T) {
	m := newTestMatcher()
	quotes := []domain.Quote{
		quote("Lakers vs Celtics", domain.BookmakerStake, nil, "Lakers", 1.9),
		quote("Lakers vs Celtics", domain.Bookmaker1xBet, at(kickoff), "Celtics", 2.0),
	}

	events, _, err := m.Match(context.Background(), quotes)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Event.StartTime)
	assert.True(t, kickoff.Equal(*events[0].Event.StartTime))
}

func TestMatchGroupsBySportAndLeague(t *testing.T) {
	m := newTestMatcher()
	a := quote("Alpha vs Beta", domain.BookmakerStake, nil, "1", 2.0)
	b := quote("Alpha vs Beta", domain.BookmakerLeon, nil, "2", 2.0)
	b.League = "Serie A"

	events, stats, err := m.Match(context.Background(), []domain.Quote{a, b})
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, 2, stats.DroppedForCoverage)
}

func TestMatchCoverageInvariant(t *testing.T) {
	m := newTestMatcher()
	quotes := []domain.Quote{
		quote("Solo vs Event", domain.BookmakerStake, nil, "1", 2.0),
		quote("Solo vs Event", domain.BookmakerStake, nil, "2", 2.0),
		quote("Pair vs Event", domain.BookmakerStake, nil, "1", 2.0),
		quote("Pair vs Event", domain.BookmakerParimatch, nil, "2", 2.0),
	}

	events, _, err := m.Match(context.Background(), quotes)
	require.NoError(t, err)
	require.Len(t, events, 1)
	for _, ev := range events {
		assert.GreaterOrEqual(t, len(ev.Bookmakers()), 2)
	}
}

func TestMatchKeepsNewestObservation(t *testing.T) {
	m := newTestMatcher()
	older := quote("Alpha vs Beta", domain.BookmakerStake, nil, "1", 2.0)
	newer := older
	newer.Odds = 2.2
	newer.ScrapedAt = scraped.Add(time.Minute)
	other := quote("Alpha vs Beta", domain.BookmakerLeon, nil, "1", 1.95)

	events, _, err := m.Match(context.Background(), []domain.Quote{newer, older, other})
	require.NoError(t, err)
	require.Len(t, events, 1)

	obs := events[0].Markets[0].Observations("1")
	require.Len(t, obs, 2, "each bookmaker keeps its own observation")
	assert.Equal(t, 2.2, obs[0].Odds)
	assert.Equal(t, domain.BookmakerLeon, obs[1].Bookmaker)
}

func TestMatchFilesMarketsByTypeAndLine(t *testing.T) {
	m := newTestMatcher()
	over := quote("Alpha vs Beta", domain.BookmakerStake, nil, "Over", 1.9)
	over.MarketName = "Total Goals"
	over.Line = domain.NumericLine(2.5)
	under := quote("Alpha vs Beta", domain.BookmakerLeon, nil, "Under", 1.9)
	under.MarketName = "Over/Under"
	under.Line = domain.NumericLine(2.5)
	higher := quote("Alpha vs Beta", domain.BookmakerLeon, nil, "Under", 1.6)
	higher.MarketName = "Totals"
	higher.Line = domain.NumericLine(3.5)

	events, _, err := m.Match(context.Background(), []domain.Quote{over, under, higher})
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	require.Len(t, ev.Markets, 2)
	mk, ok := ev.Market("totals_2.5")
	require.True(t, ok)
	assert.Equal(t, []string{"Over", "Under"}, mk.OutcomeNames())
	_, ok = ev.Market("totals_3.5")
	assert.True(t, ok)
}

func TestMatchKeepsHalfTimeLinesApart(t *testing.T) {
	m := newTestMatcher()
	over := quote("Alpha vs Beta", domain.BookmakerStake, nil, "Over", 2.4)
	over.MarketName = "1st Half Total"
	over.Line = domain.NumericLine(2.5)
	under := quote("Alpha vs Beta", domain.BookmakerLeon, nil, "Under", 2.4)
	under.MarketName = "Total Goals"
	under.Line = domain.NumericLine(2.5)

	events, _, err := m.Match(context.Background(), []domain.Quote{over, under})
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	require.Len(t, ev.Markets, 2)
	mk, ok := ev.Market("totals_2.5")
	require.True(t, ok)
	assert.Equal(t, []string{"Under"}, mk.OutcomeNames())
	mk, ok = ev.Market("period_markets_2.5")
	require.True(t, ok)
	assert.Equal(t, []string{"Over"}, mk.OutcomeNames())
}

func TestMatchRejectsOutOfRangeOdds(t *testing.T) {
	m := newTestMatcher()
	quotes := []domain.Quote{
		quote("Alpha vs Beta", domain.BookmakerStake, nil, "1", 1.005),
		quote("Alpha vs Beta", domain.BookmakerLeon, nil, "1", 0.9),
		quote("Alpha vs Beta", domain.BookmakerLeon, nil, "2", 1500),
		quote("Alpha vs Beta", domain.BookmakerMostbet, nil, "2", 2.0),
	}

	events, stats, err := m.Match(context.Background(), quotes)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, 3, stats.RejectedQuotes)
}

func TestMatchEmptyInput(t *testing.T) {
	events, stats, err := newTestMatcher().Match(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Zero(t, stats.TotalQuotes)
}

func TestMatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	quotes := []domain.Quote{
		quote("Alpha vs Beta", domain.BookmakerStake, nil, "1", 2.0),
		quote("Alpha vs Beta", domain.BookmakerLeon, nil, "2", 2.0),
	}
	events, _, err := newTestMatcher().Match(ctx, quotes)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, events)
}

func TestClusterIsGreedy(t *testing.T) {
	m := newTestMatcher()
	m.cfg.Threshold = 80
	// "abcdefghij" ~ "abcdefghxy" (80) and "abcdefghxy" ~ "abcdefxyzw" (80)
	// but the first and last are only 60 apart.
	items := []entry{
		{quote: domain.Quote{EventName: "abcdefghij"}},
		{quote: domain.Quote{EventName: "abcdefghxy"}},
		{quote: domain.Quote{EventName: "abcdefxyzw"}},
	}

	clusters := m.cluster(items)
	require.Len(t, clusters, 2)
	assert.Len(t, clusters[0], 2)
	assert.Equal(t, "abcdefxyzw", clusters[1][0].quote.EventName)
}

func TestMostCommonAndMedian(t *testing.T) {
	v, ok := mostCommon([]string{"b", "a", "a", "b", "c"})
	require.True(t, ok)
	assert.Equal(t, "b", v, "ties go to the first occurrence")

	_, ok = mostCommon(nil)
	assert.False(t, ok)

	times := []time.Time{kickoff.Add(2 * time.Hour), kickoff, kickoff.Add(time.Hour), kickoff.Add(3 * time.Hour)}
	med := medianTime(times)
	require.NotNil(t, med)
	assert.True(t, kickoff.Add(2*time.Hour).Equal(*med))
	assert.Nil(t, medianTime(nil))
}
