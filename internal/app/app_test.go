package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oddsarb/internal/config"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func writeQuotes(t *testing.T) string {
	t.Helper()
	now := time.Now().UTC().Format(time.RFC3339)
	data := fmt.Sprintf(`[
  {"event_name":"Arsenal vs Chelsea","sport":"football","market_name":"moneyline","outcome_name":"Arsenal","odds":2.2,"bookmaker":"leon","scraped_at":%[1]q},
  {"event_name":"Arsenal vs Chelsea","sport":"football","market_name":"moneyline","outcome_name":"Chelsea","odds":1.6,"bookmaker":"leon","scraped_at":%[1]q},
  {"event_name":"Arsenal vs Chelsea","sport":"football","market_name":"moneyline","outcome_name":"Arsenal","odds":1.7,"bookmaker":"stake","scraped_at":%[1]q},
  {"event_name":"Arsenal vs Chelsea","sport":"football","market_name":"moneyline","outcome_name":"Chelsea","odds":2.3,"bookmaker":"stake","scraped_at":%[1]q}
]`, now)
	path := filepath.Join(t.TempDir(), "quotes.json")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func testConfig(t *testing.T, mode string) *config.Config {
	cfg := config.Defaults()
	cfg.Mode = mode
	cfg.Matching.NormalizationMap = ""
	cfg.Sources.Files = []string{writeQuotes(t)}
	return &cfg
}

func TestWireDefaults(t *testing.T) {
	cfg := testConfig(t, "server")

	deps, cleanup, err := Wire(context.Background(), cfg, discard())
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, deps.Detection)
	assert.NotNil(t, deps.Cache)
	assert.NotNil(t, deps.Hub)
	assert.Nil(t, deps.OpportunityStore)
	assert.Nil(t, deps.SignalBus)
	assert.Nil(t, deps.Exporter)
	assert.Empty(t, deps.Checks)
	assert.Len(t, deps.Detection.Sources(), 1)
}

func TestWireScanHasNoHub(t *testing.T) {
	deps, cleanup, err := Wire(context.Background(), testConfig(t, "scan"), discard())
	require.NoError(t, err)
	defer cleanup()
	assert.Nil(t, deps.Hub)
}

func TestWireFeedsOnlyInLongLivedModes(t *testing.T) {
	cfg := testConfig(t, "monitor")
	cfg.Sources.Feed.Enabled = true
	cfg.Sources.Feed.URLs = []string{"ws://127.0.0.1:1/quotes"}

	deps, cleanup, err := Wire(context.Background(), cfg, discard())
	require.NoError(t, err)
	require.Len(t, deps.Feeds, 1)
	assert.Equal(t, "ws:127.0.0.1:1", deps.Feeds[0].Name())
	assert.Contains(t, deps.Detection.Sources(), "ws:127.0.0.1:1")
	cleanup()

	cfg.Mode = "scan"
	deps, cleanup, err = Wire(context.Background(), cfg, discard())
	require.NoError(t, err)
	defer cleanup()
	assert.Empty(t, deps.Feeds)
}

func TestScanModePrintsReport(t *testing.T) {
	cfg := testConfig(t, "scan")
	a := New(cfg, discard())
	var out bytes.Buffer
	a.out = &out
	defer a.Close()

	require.NoError(t, a.Run(context.Background()))

	var report struct {
		Arbitrages []map[string]any `json:"arbitrages"`
		Summary    struct {
			TotalQuotes   int `json:"total_quotes"`
			SourcesOK     int `json:"sources_ok"`
			SourcesFailed int `json:"sources_failed"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, 4, report.Summary.TotalQuotes)
	assert.Equal(t, 1, report.Summary.SourcesOK)
	assert.Zero(t, report.Summary.SourcesFailed)
	assert.NotNil(t, report.Arbitrages)
}

func TestMonitorStopsOnCancel(t *testing.T) {
	cfg := testConfig(t, "monitor")
	deps, cleanup, err := Wire(context.Background(), cfg, discard())
	require.NoError(t, err)
	defer cleanup()

	a := New(cfg, discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.MonitorMode(ctx, deps) }()

	require.Eventually(t, func() bool { return deps.Cache.Len() == 1 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop")
	}
	_, cycles := deps.Detection.LastReport()
	assert.GreaterOrEqual(t, cycles, int64(1))
}

func TestUnsupportedMode(t *testing.T) {
	cfg := testConfig(t, "trade")
	err := New(cfg, discard()).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported mode")
}
