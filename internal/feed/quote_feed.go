// Package feed keeps live WebSocket connections to scraper gateways that push
// quotes as they change, and exposes the latest quotes as a detection source.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/oddsarb/internal/domain"
	"github.com/alanyoungcy/oddsarb/internal/source"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	handshakeTimeout  = 15 * time.Second
	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second

	defaultMaxAge = 2 * time.Minute
)

// QuoteFeed connects to a scraper gateway WebSocket and buffers the quotes it
// pushes. Each frame holds one quote or an array of quotes. Only the latest
// quote per bookmaker, event, market, line and outcome is kept.
type QuoteFeed struct {
	wsURL  string
	name   string
	maxAge time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	quotes map[string]domain.Quote

	closeOnce sync.Once
	done      chan struct{}
}

var _ source.Source = (*QuoteFeed)(nil)

// NewQuoteFeed creates a feed for wsURL. Quotes older than maxAge are dropped
// on Fetch; a non-positive maxAge uses two minutes.
func NewQuoteFeed(wsURL string, maxAge time.Duration, logger *slog.Logger) (*QuoteFeed, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("feed: parse url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("feed: unsupported scheme %q", u.Scheme)
	}
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}
	name := "ws:" + u.Host
	return &QuoteFeed{
		wsURL:  wsURL,
		name:   name,
		maxAge: maxAge,
		logger: logger.With(slog.String("component", "quote_feed"), slog.String("feed", name)),
		now:    time.Now,
		quotes: make(map[string]domain.Quote),
		done:   make(chan struct{}),
	}, nil
}

func (f *QuoteFeed) Name() string { return f.name }

// Fetch returns a snapshot of the buffered quotes that are still fresh.
func (f *QuoteFeed) Fetch(ctx context.Context) ([]domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cutoff := f.now().Add(-f.maxAge)

	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Quote, 0, len(f.quotes))
	for k, q := range f.quotes {
		if q.ScrapedAt.Before(cutoff) {
			delete(f.quotes, k)
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

// Len returns the number of buffered quotes.
func (f *QuoteFeed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.quotes)
}

// Run connects and reads until ctx is cancelled or Close is called. It
// reconnects with exponential backoff after every disconnect.
func (f *QuoteFeed) Run(ctx context.Context) error {
	delay := reconnectDelay
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		connected, err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-f.done:
			return nil
		default:
		}
		if connected {
			delay = reconnectDelay
		}
		f.logger.Warn("feed: disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, maxReconnectDelay)
	}
}

// runConnection dials once and reads frames until the connection fails. It
// reports whether the dial succeeded.
func (f *QuoteFeed) runConnection(ctx context.Context) (bool, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return false, fmt.Errorf("feed: dial: %w", err)
	}
	f.logger.Info("feed: connected")

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
		case <-f.done:
		case <-stop:
			return
		}
		// Unblocks ReadMessage.
		conn.Close()
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.pingLoop(conn, stop)
	}()
	defer func() {
		close(stop)
		conn.Close()
		wg.Wait()
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("feed: read: %w", err)
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		f.handleFrame(data)
	}
}

func (f *QuoteFeed) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			deadline := time.Now().Add(writeWait)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (f *QuoteFeed) handleFrame(data []byte) {
	quotes, err := source.DecodeQuotes(data)
	if err != nil {
		f.logger.Warn("feed: skipping undecodable frame", slog.String("error", err.Error()))
		return
	}
	now := f.now()
	cutoff := now.Add(-f.maxAge)

	f.mu.Lock()
	defer f.mu.Unlock()
	for k, q := range f.quotes {
		if q.ScrapedAt.Before(cutoff) {
			delete(f.quotes, k)
		}
	}
	for _, q := range quotes {
		if q.ScrapedAt.IsZero() {
			q.ScrapedAt = now
		}
		if q.ScrapedAt.Before(cutoff) {
			continue
		}
		k := quoteKey(q)
		if prev, ok := f.quotes[k]; ok && prev.ScrapedAt.After(q.ScrapedAt) {
			continue
		}
		f.quotes[k] = q
	}
}

// Close stops Run and drops the live connection.
func (f *QuoteFeed) Close() error {
	f.closeOnce.Do(func() { close(f.done) })
	return nil
}

func quoteKey(q domain.Quote) string {
	return string(q.Bookmaker) + "|" + q.EventName + "|" + q.MarketName + "|" + q.Line.String() + "|" + q.OutcomeName
}
