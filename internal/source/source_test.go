package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alanyoungcy/oddsarb/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

const twoQuotes = `[
  {"event_name":"Arsenal vs Chelsea","sport":"football","market_name":"1x2",
   "outcome_name":"Arsenal","odds":2.1,"bookmaker":"mostbet","scraped_at":"2024-03-01T12:00:00Z"},
  {"event_name":"Arsenal vs Chelsea","sport":"football","market_name":"Total","line":2.5,
   "outcome_name":"Over","odds":1.9,"bookmaker":"somebook","scraped_at":"2024-03-01T12:00:00Z","is_live":true}
]`

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mostbet.json")
	require.NoError(t, os.WriteFile(path, []byte(twoQuotes), 0o644))

	src := NewFileSource(path)
	assert.Equal(t, "file:mostbet", src.Name())

	quotes, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, domain.BookmakerMostbet, quotes[0].Bookmaker)
	assert.Equal(t, domain.BookmakerUnknown, quotes[1].Bookmaker)
	assert.Equal(t, 2.5, quotes[1].Line.Value())
	assert.True(t, quotes[1].IsLive)
}

func TestFileSourceErrors(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "missing.json")).Fetch(context.Background())
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err = NewFileSource(path).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestDecodeQuotesBytes(t *testing.T) {
	qs, err := DecodeQuotes([]byte(`{"event_name":"A vs B","outcome_name":"A","odds":2}`))
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "A vs B", qs[0].EventName)

	qs, err = DecodeQuotes([]byte("   "))
	require.NoError(t, err)
	assert.Empty(t, qs)
}

type memBus struct {
	entries []domain.StreamMessage
	reads   int
	err     error
}

func (b *memBus) add(payload string) {
	b.entries = append(b.entries, domain.StreamMessage{
		ID:      strconv.Itoa(len(b.entries)+1) + "-0",
		Payload: []byte(payload),
	})
}

func (b *memBus) Publish(context.Context, string, []byte) error { return nil }

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) { return nil, nil }

func (b *memBus) StreamAppend(_ context.Context, _ string, payload []byte) error {
	b.add(string(payload))
	return nil
}

func (b *memBus) StreamRead(_ context.Context, _ string, lastID string, count int) ([]domain.StreamMessage, error) {
	b.reads++
	if b.err != nil {
		return nil, b.err
	}
	start := 0
	if lastID != "0" {
		n, _ := strconv.Atoi(strings.TrimSuffix(lastID, "-0"))
		start = n
	}
	end := start + count
	if end > len(b.entries) {
		end = len(b.entries)
	}
	if start >= end {
		return nil, nil
	}
	return append([]domain.StreamMessage(nil), b.entries[start:end]...), nil
}

func TestStreamSource(t *testing.T) {
	bus := &memBus{}
	bus.add(`{"event_name":"A vs B","outcome_name":"A","odds":2,"bookmaker":"leon"}`)
	bus.add(`garbage`)
	bus.add(`[{"event_name":"A vs B","outcome_name":"B","odds":2.2,"bookmaker":"stake"},
	          {"event_name":"C vs D","outcome_name":"C","odds":1.5,"bookmaker":"stake"}]`)

	src := NewStreamSource(bus, "quotes:raw", 2, discard())
	assert.Equal(t, "stream:quotes:raw", src.Name())

	quotes, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, quotes, 3)
	assert.Equal(t, "3-0", src.Cursor())
	assert.Equal(t, 2, bus.reads, "reads until a short batch")

	again, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, again, "entries are delivered once")

	bus.add(`{"event_name":"E vs F","outcome_name":"E","odds":3}`)
	more, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, more, 1)
	assert.Equal(t, "E vs F", more[0].EventName)
}

func TestStreamSourceReadError(t *testing.T) {
	bus := &memBus{err: errors.New("conn refused")}
	_, err := NewStreamSource(bus, "s", 10, discard()).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conn refused")
}

type memReader struct {
	objects map[string]string
	infos   []domain.BlobInfo
}

func (r *memReader) Get(_ context.Context, path string) (io.ReadCloser, error) {
	data, ok := r.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

func (r *memReader) Latest(_ context.Context, prefix, suffix string) (domain.BlobInfo, error) {
	var best domain.BlobInfo
	found := false
	for _, info := range r.infos {
		if !strings.HasPrefix(info.Path, prefix) || !strings.HasSuffix(info.Path, suffix) {
			continue
		}
		if !found || info.NewerThan(best) {
			best, found = info, true
		}
	}
	if !found {
		return domain.BlobInfo{}, domain.ErrNotFound
	}
	return best, nil
}

func TestBlobSourcePicksNewest(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &memReader{
		objects: map[string]string{
			"quotes/old.json": `[{"event_name":"Old","outcome_name":"A","odds":2}]`,
			"quotes/new.json": twoQuotes,
		},
		infos: []domain.BlobInfo{
			{Path: "quotes/old.json", LastModified: t0},
			{Path: "quotes/new.json", LastModified: t0.Add(time.Minute)},
			{Path: "quotes/newer.csv", LastModified: t0.Add(time.Hour)},
		},
	}
	src := NewBlobSource(r, "quotes/")
	assert.Equal(t, "blob:quotes", src.Name())

	quotes, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, quotes, 2)
}

func TestBlobInfoNewerThan(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a := domain.BlobInfo{Path: "quotes/a.json", LastModified: t0}
	b := domain.BlobInfo{Path: "quotes/b.json", LastModified: t0}
	c := domain.BlobInfo{Path: "quotes/0.json", LastModified: t0.Add(time.Second)}
	assert.True(t, b.NewerThan(a))
	assert.False(t, a.NewerThan(b))
	assert.True(t, c.NewerThan(b))
}

func TestBlobSourceEmpty(t *testing.T) {
	quotes, err := NewBlobSource(&memReader{}, "quotes/").Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

type fakeSource struct {
	name   string
	quotes []domain.Quote
	err    error
	delay  time.Duration
	active *atomic.Int32
	peak   *atomic.Int32
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context) ([]domain.Quote, error) {
	if f.active != nil {
		n := f.active.Add(1)
		defer f.active.Add(-1)
		for {
			p := f.peak.Load()
			if n <= p || f.peak.CompareAndSwap(p, n) {
				break
			}
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.quotes, f.err
}

func quote(event, outcome string) domain.Quote {
	return domain.Quote{EventName: event, OutcomeName: outcome, Odds: 2}
}

func TestAcquirerIsolatesFailures(t *testing.T) {
	sources := []Source{
		&fakeSource{name: "a", quotes: []domain.Quote{quote("E1", "x"), quote("E1", "y"), quote("E2", "x")}},
		&fakeSource{name: "b", err: errors.New("blocked")},
		&fakeSource{name: "c", delay: time.Second},
		&fakeSource{name: "d", quotes: []domain.Quote{quote("E3", "x")}},
	}
	acq := NewAcquirer(sources, Config{Concurrency: 4, Timeout: 50 * time.Millisecond}, discard())
	assert.Equal(t, []string{"a", "b", "c", "d"}, acq.Sources())

	quotes, results, err := acq.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, []string{"E1", "E1", "E2", "E3"}, []string{
		quotes[0].EventName, quotes[1].EventName, quotes[2].EventName, quotes[3].EventName,
	})

	assert.True(t, results[0].Success)
	assert.Equal(t, 3, results[0].QuoteCount)
	assert.Equal(t, 2, results[0].EventCount)

	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "blocked")
	assert.Contains(t, results[1].Error, domain.ErrSourceFailed.Error())

	assert.False(t, results[2].Success)
	assert.Contains(t, results[2].Error, context.DeadlineExceeded.Error())

	assert.True(t, results[3].Success)
}

func TestAcquirerConcurrencyLimit(t *testing.T) {
	var active, peak atomic.Int32
	var sources []Source
	for i := 0; i < 6; i++ {
		sources = append(sources, &fakeSource{
			name:   strconv.Itoa(i),
			delay:  20 * time.Millisecond,
			active: &active,
			peak:   &peak,
		})
	}
	acq := NewAcquirer(sources, Config{Concurrency: 2, Timeout: time.Second}, discard())
	_, results, err := acq.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestAcquirerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	acq := NewAcquirer([]Source{&fakeSource{name: "a"}}, Config{Concurrency: 1, Timeout: time.Second}, discard())
	_, results, err := acq.Fetch(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, results[0].Success)
}
