package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/oddsarb/internal/domain"
)

// Result reports how one source fared in a fetch round.
type Result struct {
	Source     string        `json:"source"`
	Success    bool          `json:"success"`
	QuoteCount int           `json:"quote_count"`
	EventCount int           `json:"event_count"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

// Config bounds a fetch round.
type Config struct {
	Concurrency int
	Timeout     time.Duration
}

// Acquirer fetches all sources concurrently. A failing source never fails
// the round; its error is reported in its Result.
type Acquirer struct {
	sources []Source
	cfg     Config
	logger  *slog.Logger
}

// NewAcquirer creates an Acquirer. Non-positive settings fall back to one
// worker and a 30s timeout.
func NewAcquirer(sources []Source, cfg Config, logger *slog.Logger) *Acquirer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Acquirer{
		sources: sources,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "acquirer")),
	}
}

// Sources returns the names of the configured sources.
func (a *Acquirer) Sources() []string {
	names := make([]string, len(a.sources))
	for i, s := range a.sources {
		names[i] = s.Name()
	}
	return names
}

// Fetch runs one round. Quotes are concatenated in source order and results
// are returned in source order. The error is non-nil only when ctx ends
// before every source finished.
func (a *Acquirer) Fetch(ctx context.Context) ([]domain.Quote, []Result, error) {
	perSource := make([][]domain.Quote, len(a.sources))
	results := make([]Result, len(a.sources))

	g := new(errgroup.Group)
	g.SetLimit(a.cfg.Concurrency)

	for i, src := range a.sources {
		if ctx.Err() != nil {
			results[i] = Result{Source: src.Name(), Error: ctx.Err().Error()}
			continue
		}
		g.Go(func() error {
			perSource[i], results[i] = a.fetchOne(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	var quotes []domain.Quote
	for _, qs := range perSource {
		quotes = append(quotes, qs...)
	}

	if err := ctx.Err(); err != nil {
		return quotes, results, fmt.Errorf("source: fetch: %w", err)
	}
	return quotes, results, nil
}

func (a *Acquirer) fetchOne(ctx context.Context, src Source) ([]domain.Quote, Result) {
	res := Result{Source: src.Name()}
	start := time.Now()

	fctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	quotes, err := src.Fetch(fctx)
	res.Duration = time.Since(start)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", domain.ErrSourceFailed, src.Name(), err)
		res.Error = err.Error()
		a.logger.WarnContext(ctx, "source: fetch failed",
			slog.String("source", src.Name()),
			slog.Duration("duration", res.Duration),
			slog.String("error", err.Error()),
		)
		return nil, res
	}

	res.Success = true
	res.QuoteCount = len(quotes)
	res.EventCount = countEvents(quotes)
	a.logger.DebugContext(ctx, "source: fetched",
		slog.String("source", src.Name()),
		slog.Int("quotes", res.QuoteCount),
		slog.Int("events", res.EventCount),
		slog.Duration("duration", res.Duration),
	)
	return quotes, res
}

func countEvents(quotes []domain.Quote) int {
	seen := make(map[string]struct{}, len(quotes))
	for _, q := range quotes {
		seen[q.EventName] = struct{}{}
	}
	return len(seen)
}
