package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alanyoungcy/oddsarb/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	name   string
	err    error
	titles []string
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNotifierFiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventArbDetected}, discard())

	require.NoError(t, n.Notify(context.Background(), EventArbDetected, "a", "m"))
	require.NoError(t, n.Notify(context.Background(), EventError, "b", "m"))
	assert.Equal(t, []string{"a"}, s.titles)
}

func TestNotifierAllEventsWhenUnfiltered(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, discard())
	require.NoError(t, n.Notify(context.Background(), "anything", "x", "m"))
	assert.Len(t, s.titles, 1)
}

func TestNotifierCollectsSenderErrors(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("down")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discard())

	err := n.Notify(context.Background(), EventError, "x", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: down")
	assert.Len(t, good.titles, 1, "other senders still receive the message")
}

func TestNilNotifierIsDisabled(t *testing.T) {
	var n *Notifier
	assert.False(t, n.Enabled())
	assert.NoError(t, n.Notify(context.Background(), EventError, "x", "m"))
	assert.NoError(t, n.NotifyOpportunities(context.Background(), []domain.ArbitrageOpportunity{{}}))
}

func TestFormatOpportunity(t *testing.T) {
	title, msg := FormatOpportunity(domain.ArbitrageOpportunity{
		EventName:        "Arsenal vs Chelsea",
		Sport:            domain.SportFootball,
		MarketType:       "total",
		Line:             "2.5",
		ProfitPercentage: 7.4419,
		GuaranteedProfit: 74.42,
		Bankroll:         1000,
		IsLive:           true,
		Stakes: []domain.Stake{
			{OutcomeName: "Over", Odds: 2.1, Bookmaker: domain.BookmakerMostbet, StakeAmount: 511.63},
		},
	})
	assert.Equal(t, "Arb 7.44%: Arsenal vs Chelsea (live)", title)
	assert.Contains(t, msg, "football | total 2.5")
	assert.Contains(t, msg, "Over @ 2.100 on mostbet: stake 511.63")
	assert.Contains(t, msg, "Profit 74.42 on 1000.00")
}

func TestNotifyOpportunities(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventArbDetected}, discard())
	opps := []domain.ArbitrageOpportunity{{EventName: "A"}, {EventName: "B"}}
	require.NoError(t, n.NotifyOpportunities(context.Background(), opps))
	assert.Len(t, s.titles, 2)
}

func TestTelegramSender(t *testing.T) {
	var got map[string]string
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("tok", "42")
	s.apiBase = srv.URL
	require.NoError(t, s.Send(context.Background(), "Title", "body"))
	assert.Equal(t, "/bottok/sendMessage", path)
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "*Title*\nbody", got["text"])
}

func TestDiscordSenderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad webhook"))
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discord: unexpected status 400: bad webhook")
}
