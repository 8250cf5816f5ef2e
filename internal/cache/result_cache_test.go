package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oddsarb/internal/arbitrage"
	"github.com/alanyoungcy/oddsarb/internal/domain"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memStore struct {
	mu      sync.Mutex
	entries map[string]domain.CachedResult
}

func newMemStore() *memStore { return &memStore{entries: map[string]domain.CachedResult{}} }

func (m *memStore) Load(_ context.Context, key string) (domain.CachedResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return domain.CachedResult{}, domain.ErrNotFound
	}
	return e, nil
}

func (m *memStore) Save(_ context.Context, res domain.CachedResult, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[res.Key] = res
	return nil
}

type heldLock struct{}

func (heldLock) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, domain.ErrLockHeld
}

type brokenLock struct{}

func (brokenLock) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, errors.New("dial tcp: connection refused")
}

func opp(id string, sport domain.Sport, profitPct float64) domain.ArbitrageOpportunity {
	return domain.ArbitrageOpportunity{
		ID:               id,
		Sport:            sport,
		Kind:             domain.KindSingle,
		MarketType:       string(domain.MarketMoneyline),
		ProfitPercentage: profitPct,
		Bankroll:         1000,
		Outcomes: []domain.Outcome{
			{Name: "home", Bookmaker: domain.BookmakerStake, Odds: 2.1},
			{Name: "away", Bookmaker: domain.BookmakerLeon, Odds: 2.1},
		},
	}
}

func countingCompute(calls *atomic.Int32, live bool, opps ...domain.ArbitrageOpportunity) ComputeFunc {
	return func(_ context.Context, f domain.Filters) ([]domain.ArbitrageOpportunity, bool, error) {
		calls.Add(1)
		if f.Bankroll != nil || f.MinProfit != nil {
			return nil, false, errors.New("bankroll and min profit must not reach compute")
		}
		return opps, live, nil
	}
}

func newTestCache(clk *clock, opts ...Option) *ResultCache {
	c := NewResultCache(Config{LiveRefresh: 5 * time.Second, PrematchRefresh: 60 * time.Second}, discard(), opts...)
	c.now = clk.Now
	return c
}

func TestGetCachesUntilStale(t *testing.T) {
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := newTestCache(clk)
	var calls atomic.Int32
	compute := countingCompute(&calls, false, opp("a", domain.SportFootball, 2))
	ctx := context.Background()

	res, err := c.Get(ctx, domain.Filters{}, compute)
	require.NoError(t, err)
	assert.False(t, res.Hit)
	assert.Len(t, res.Opportunities, 1)

	clk.Advance(30 * time.Second)
	res, err = c.Get(ctx, domain.Filters{}, compute)
	require.NoError(t, err)
	assert.True(t, res.Hit)
	assert.Equal(t, int32(1), calls.Load())

	clk.Advance(31 * time.Second)
	res, err = c.Get(ctx, domain.Filters{}, compute)
	require.NoError(t, err)
	assert.False(t, res.Hit)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLiveEntriesRefreshSooner(t *testing.T) {
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := newTestCache(clk)
	var calls atomic.Int32
	compute := countingCompute(&calls, true, opp("a", domain.SportFootball, 2))
	ctx := context.Background()

	_, err := c.Get(ctx, domain.Filters{}, compute)
	require.NoError(t, err)
	clk.Advance(6 * time.Second)
	_, err = c.Get(ctx, domain.Filters{}, compute)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetRescalesWithoutRecompute(t *testing.T) {
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := newTestCache(clk)
	var calls atomic.Int32
	compute := countingCompute(&calls, false, opp("a", domain.SportFootball, 5))
	ctx := context.Background()

	_, err := c.Get(ctx, domain.Filters{}, compute)
	require.NoError(t, err)

	bankroll := 500.0
	res, err := c.Get(ctx, domain.Filters{Bankroll: &bankroll}, compute)
	require.NoError(t, err)
	assert.True(t, res.Hit)
	require.Len(t, res.Opportunities, 1)
	assert.Equal(t, 500.0, res.Opportunities[0].Bankroll)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetAppliesMinProfitAtRequestedBankroll(t *testing.T) {
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	engine, err := arbitrage.NewEngine(func() arbitrage.Config {
		cfg := arbitrage.DefaultConfig()
		cfg.Now = clk.Now
		return cfg
	}(), discard())
	require.NoError(t, err)

	start := clk.Now().Add(2 * time.Hour)
	ev := domain.NewMatchedEvent(domain.CanonicalEvent{
		CanonicalName: "Arsenal vs Chelsea",
		StartTime:     &start,
		Sport:         domain.SportFootball,
	})
	m := ev.MarketFor(domain.MarketMoneyline, domain.Line{})
	for _, o := range []struct {
		name string
		bm   domain.Bookmaker
	}{{"Arsenal", domain.BookmakerStake}, {"Chelsea", domain.BookmakerLeon}} {
		out, err := domain.NewOutcome(o.name, 2.03, o.bm, "", clk.Now())
		require.NoError(t, err)
		m.Observe(out)
	}
	compute := func(ctx context.Context, f domain.Filters) ([]domain.ArbitrageOpportunity, bool, error) {
		return engine.Detect(ctx, []*domain.MatchedEvent{ev}, f).Opportunities, false, nil
	}

	// 1.5% edge: 15.00 at the default 1000, 150.00 at 10000.
	bankroll, minProfit := 10000.0, 20.0
	f := domain.Filters{Bankroll: &bankroll, MinProfit: &minProfit}
	direct, err := compute(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, direct, 1)

	c := newTestCache(clk)
	res, err := c.Get(context.Background(), f, compute)
	require.NoError(t, err)
	require.Len(t, res.Opportunities, 1)
	assert.Equal(t, 10000.0, res.Opportunities[0].Bankroll)
	assert.Equal(t, 150.0, res.Opportunities[0].GuaranteedProfit)

	// Same key at the default bankroll stays below the floor.
	res, err = c.Get(context.Background(), domain.Filters{MinProfit: &minProfit}, compute)
	require.NoError(t, err)
	assert.Empty(t, res.Opportunities)
}

func TestGetSingleFlight(t *testing.T) {
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := newTestCache(clk)
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context, domain.Filters) ([]domain.ArbitrageOpportunity, bool, error) {
		calls.Add(1)
		<-release
		return []domain.ArbitrageOpportunity{opp("a", domain.SportFootball, 2)}, false, nil
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background(), domain.Filters{}, compute)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestGetInvalidFilters(t *testing.T) {
	clk := &clock{now: time.Now()}
	c := newTestCache(clk)
	hours := 500

	_, err := c.Get(context.Background(), domain.Filters{MaxStartHours: &hours}, nil)
	require.ErrorIs(t, err, domain.ErrInvalidFilter)
}

func TestGetComputeError(t *testing.T) {
	clk := &clock{now: time.Now()}
	c := newTestCache(clk)
	boom := errors.New("boom")

	_, err := c.Get(context.Background(), domain.Filters{}, func(context.Context, domain.Filters) ([]domain.ArbitrageOpportunity, bool, error) {
		return nil, false, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Zero(t, c.Len())
}

func TestSharedStoreServesOtherInstances(t *testing.T) {
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := newMemStore()
	first := newTestCache(clk, WithStore(store))
	second := newTestCache(clk, WithStore(store))
	var calls atomic.Int32
	compute := countingCompute(&calls, false, opp("a", domain.SportFootball, 2))
	ctx := context.Background()

	_, err := first.Get(ctx, domain.Filters{}, compute)
	require.NoError(t, err)

	res, err := second.Get(ctx, domain.Filters{}, compute)
	require.NoError(t, err)
	assert.True(t, res.Hit)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHeldLockServesStaleEntry(t *testing.T) {
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := newMemStore()
	c := newTestCache(clk, WithStore(store), WithLock(heldLock{}))
	c.Put(context.Background(), domain.Filters{}, []domain.ArbitrageOpportunity{opp("old", domain.SportFootball, 2)}, false)
	clk.Advance(2 * time.Minute)

	var calls atomic.Int32
	res, err := c.Get(context.Background(), domain.Filters{}, countingCompute(&calls, false, opp("new", domain.SportFootball, 2)))
	require.NoError(t, err)
	assert.True(t, res.Stale)
	require.Len(t, res.Opportunities, 1)
	assert.Equal(t, "old", res.Opportunities[0].ID)
	assert.Zero(t, calls.Load())
}

func TestHeldLockWithoutEntryComputes(t *testing.T) {
	clk := &clock{now: time.Now()}
	c := newTestCache(clk, WithLock(heldLock{}))
	var calls atomic.Int32

	res, err := c.Get(context.Background(), domain.Filters{}, countingCompute(&calls, false, opp("a", domain.SportFootball, 2)))
	require.NoError(t, err)
	assert.False(t, res.Stale)
	assert.Equal(t, int32(1), calls.Load())
}

func TestBrokenLockStillComputes(t *testing.T) {
	clk := &clock{now: time.Now()}
	c := newTestCache(clk, WithLock(brokenLock{}))
	var calls atomic.Int32

	_, err := c.Get(context.Background(), domain.Filters{}, countingCompute(&calls, false))
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEntriesExpireAfterTTL(t *testing.T) {
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := newTestCache(clk)
	ctx := context.Background()

	c.Put(ctx, domain.Filters{Sport: domain.SportFootball}, nil, false)
	clk.Advance(11 * time.Minute)
	c.Put(ctx, domain.Filters{Sport: domain.SportTennis}, nil, false)

	assert.Equal(t, 1, c.Len())
}

func TestCachedResultStale(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	live := domain.CachedResult{ComputedAt: at, Live: true}
	pre := domain.CachedResult{ComputedAt: at}

	assert.False(t, live.Stale(at.Add(4*time.Second), 5*time.Second, time.Minute))
	assert.True(t, live.Stale(at.Add(5*time.Second), 5*time.Second, time.Minute))
	assert.False(t, pre.Stale(at.Add(59*time.Second), 5*time.Second, time.Minute))
	assert.True(t, pre.Stale(at.Add(time.Minute), 5*time.Second, time.Minute))
}
