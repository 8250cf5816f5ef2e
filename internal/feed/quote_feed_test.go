package feed

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// gateway serves one scripted list of frames per connection, then closes it.
func gateway(t *testing.T, scripts ...[]string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var conns atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := int(conns.Add(1)) - 1
		if n >= len(scripts) {
			// Keep later connections open until the client leaves.
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}
		for _, frame := range scripts[n] {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &conns
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestNewQuoteFeedRejectsHTTP(t *testing.T) {
	_, err := NewQuoteFeed("http://example.com/quotes", 0, discardLogger())
	assert.Error(t, err)

	f, err := NewQuoteFeed("wss://gw.example.com/quotes", 0, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "ws:gw.example.com", f.Name())
	assert.Equal(t, defaultMaxAge, f.maxAge)
}

func TestQuoteFeedKeepsLatestQuote(t *testing.T) {
	f, err := NewQuoteFeed("ws://localhost/quotes", time.Minute, discardLogger())
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return now }

	f.handleFrame([]byte(`[
		{"event_name":"A vs B","market_name":"1x2","outcome_name":"A","odds":2.1,"bookmaker":"mostbet","scraped_at":"2026-03-01T11:59:40Z"},
		{"event_name":"A vs B","market_name":"1x2","outcome_name":"B","odds":3.4,"bookmaker":"mostbet","scraped_at":"2026-03-01T11:59:40Z"}
	]`))
	f.handleFrame([]byte(`{"event_name":"A vs B","market_name":"1x2","outcome_name":"A","odds":2.3,"bookmaker":"mostbet","scraped_at":"2026-03-01T11:59:50Z"}`))
	// Older update for the same key is ignored.
	f.handleFrame([]byte(`{"event_name":"A vs B","market_name":"1x2","outcome_name":"A","odds":1.9,"bookmaker":"mostbet","scraped_at":"2026-03-01T11:59:00Z"}`))
	f.handleFrame([]byte(`not json`))
	require.Equal(t, 2, f.Len())

	quotes, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	for _, q := range quotes {
		if q.OutcomeName == "A" {
			assert.Equal(t, 2.3, q.Odds)
		}
	}
}

func TestQuoteFeedFetchEvictsOldQuotes(t *testing.T) {
	f, err := NewQuoteFeed("ws://localhost/quotes", time.Minute, discardLogger())
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return now }

	// Missing scraped_at is stamped with the receive time.
	f.handleFrame([]byte(`{"event_name":"C vs D","outcome_name":"C","odds":1.8,"bookmaker":"betwinner"}`))
	f.handleFrame([]byte(`{"event_name":"E vs F","outcome_name":"E","odds":1.8,"bookmaker":"betwinner","scraped_at":"2026-03-01T11:50:00Z"}`))

	quotes, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "C vs D", quotes[0].EventName)
	assert.Equal(t, now, quotes[0].ScrapedAt)
	assert.Equal(t, 1, f.Len())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQuoteFeedEvictsOnInsert(t *testing.T) {
	f, err := NewQuoteFeed("ws://localhost/quotes", time.Minute, discardLogger())
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return now }

	f.handleFrame([]byte(`{"event_name":"A vs B","outcome_name":"A","odds":2.1,"bookmaker":"stake"}`))
	// Already older than max age on arrival.
	f.handleFrame([]byte(`{"event_name":"G vs H","outcome_name":"G","odds":1.7,"bookmaker":"stake","scraped_at":"2026-03-01T11:58:00Z"}`))
	require.Equal(t, 1, f.Len())

	now = now.Add(2 * time.Minute)
	f.handleFrame([]byte(`{"event_name":"C vs D","outcome_name":"C","odds":1.8,"bookmaker":"leon"}`))
	require.Equal(t, 1, f.Len())

	quotes, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "C vs D", quotes[0].EventName)
}

func TestQuoteFeedRunReceivesAndReconnects(t *testing.T) {
	srv, conns := gateway(t,
		[]string{`{"event_name":"A vs B","outcome_name":"A","odds":2.1,"bookmaker":"mostbet"}`},
		[]string{`{"event_name":"A vs B","outcome_name":"B","odds":2.2,"bookmaker":"mostbet"}`},
	)
	f, err := NewQuoteFeed(wsURL(srv), time.Minute, discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- f.Run(ctx) }()

	require.Eventually(t, func() bool { return f.Len() == 2 }, 10*time.Second, 20*time.Millisecond)
	assert.GreaterOrEqual(t, conns.Load(), int32(2))

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestQuoteFeedCloseStopsRun(t *testing.T) {
	srv, conns := gateway(t)
	f, err := NewQuoteFeed(wsURL(srv), time.Minute, discardLogger())
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- f.Run(context.Background()) }()
	require.Eventually(t, func() bool { return conns.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, f.Close())
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}
