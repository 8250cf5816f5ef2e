// Package service runs detection cycles: acquire quotes, match events,
// detect opportunities and fan the results out to the configured sinks.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/oddsarb/internal/arbitrage"
	"github.com/alanyoungcy/oddsarb/internal/domain"
	"github.com/alanyoungcy/oddsarb/internal/match"
	"github.com/alanyoungcy/oddsarb/internal/source"
)

// Channels that detection results are published on.
const (
	ChannelArb   = "ch:arb"
	ChannelCycle = "ch:cycle"
)

// Acquirer fetches the quotes of one cycle.
type Acquirer interface {
	Fetch(ctx context.Context) ([]domain.Quote, []source.Result, error)
	Sources() []string
}

// Matcher turns quotes into matched events.
type Matcher interface {
	Match(ctx context.Context, quotes []domain.Quote) ([]*domain.MatchedEvent, match.Stats, error)
}

// Detector finds opportunities in matched events.
type Detector interface {
	Detect(ctx context.Context, events []*domain.MatchedEvent, f domain.Filters) arbitrage.Result
}

// Publisher broadcasts encoded messages on a channel. Both the Redis signal
// bus and the WebSocket hub satisfy it.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// HistoryAppender writes to a durable, capped log that consumers can replay
// after missing pub/sub messages.
type HistoryAppender interface {
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}

// OpportunityNotifier alerts operators about detected opportunities.
type OpportunityNotifier interface {
	NotifyOpportunities(ctx context.Context, opps []domain.ArbitrageOpportunity) error
}

// Sinks receive the results of recorded cycles. Every field is optional.
type Sinks struct {
	Store        domain.OpportunityStore
	Audit        domain.AuditStore
	Publisher    Publisher
	// ArbChannel overrides ChannelArb for opportunity messages.
	ArbChannel   string
	Notifier     OpportunityNotifier
	Exporter     domain.Exporter
	ExportQuotes bool

	// History receives every opportunity on HistoryStream.
	History       HistoryAppender
	HistoryStream string
}

// Envelope is the message published for each opportunity and cycle.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// DetectionService wires acquisition, matching and detection together.
type DetectionService struct {
	acquirer Acquirer
	matcher  Matcher
	detector Detector
	sinks    Sinks
	now      func() time.Time
	logger   *slog.Logger

	mu     sync.RWMutex
	last   *CycleReport
	cycles int64
}

// NewDetectionService creates a DetectionService.
func NewDetectionService(acq Acquirer, m Matcher, d Detector, sinks Sinks, logger *slog.Logger) *DetectionService {
	return &DetectionService{
		acquirer: acq,
		matcher:  m,
		detector: d,
		sinks:    sinks,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "detection_service")),
	}
}

// Sources returns the names of the configured quote sources.
func (s *DetectionService) Sources() []string {
	return s.acquirer.Sources()
}

// RunCycle executes one full cycle and records its results in every sink.
// Sink failures are logged and never fail the cycle.
func (s *DetectionService) RunCycle(ctx context.Context, f domain.Filters) (CycleReport, error) {
	report, quotes, err := s.run(ctx, f)
	if err != nil {
		return report, err
	}
	s.record(ctx, report, quotes)
	return report, nil
}

// Scan executes one cycle without recording it. The API uses it to compute
// filtered results on demand.
func (s *DetectionService) Scan(ctx context.Context, f domain.Filters) (CycleReport, error) {
	report, _, err := s.run(ctx, f)
	return report, err
}

// LastReport returns the most recent successful cycle, if any, and the
// number of completed cycles.
func (s *DetectionService) LastReport() (*CycleReport, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.cycles
}

func (s *DetectionService) run(ctx context.Context, f domain.Filters) (CycleReport, []domain.Quote, error) {
	report := CycleReport{StartedAt: s.now()}

	if err := f.Validate(); err != nil {
		return report, nil, fmt.Errorf("service: run cycle: %w", err)
	}

	quotes, results, err := s.acquirer.Fetch(ctx)
	report.Sources = results
	if err != nil {
		return report, quotes, fmt.Errorf("service: acquire: %w", err)
	}

	events, stats, err := s.matcher.Match(ctx, quotes)
	report.Matching = stats
	if err != nil {
		return report, quotes, fmt.Errorf("service: match: %w", err)
	}

	res := s.detector.Detect(ctx, events, f)
	if err := ctx.Err(); err != nil {
		return report, quotes, fmt.Errorf("service: detect: %w", err)
	}

	report.Opportunities = res.Opportunities
	if report.Opportunities == nil {
		report.Opportunities = []domain.ArbitrageOpportunity{}
	}
	report.Live = anyLive(quotes)
	report.FinishedAt = s.now()
	report.Summary = summarize(report, quotes, events, res)

	s.mu.Lock()
	s.last = &report
	s.cycles++
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "service: cycle completed",
		slog.Int("quotes", len(quotes)),
		slog.Int("events", len(events)),
		slog.Int("opportunities", len(report.Opportunities)),
		slog.Int("sources_failed", report.Summary.SourcesFailed),
		slog.Int("units_failed", report.Summary.UnitsFailed),
		slog.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, quotes, nil
}

func (s *DetectionService) record(ctx context.Context, report CycleReport, quotes []domain.Quote) {
	opps := report.Opportunities

	if s.sinks.Store != nil && len(opps) > 0 {
		if err := s.sinks.Store.InsertBatch(ctx, opps); err != nil {
			s.sinkFailed(ctx, "store", err)
		}
	}

	if s.sinks.Audit != nil {
		if err := s.sinks.Audit.Log(ctx, "cycle.completed", report.Summary.auditDetail()); err != nil {
			s.sinkFailed(ctx, "audit", err)
		}
	}

	if s.sinks.Publisher != nil {
		channel := s.sinks.ArbChannel
		if channel == "" {
			channel = ChannelArb
		}
		for _, opp := range opps {
			s.publish(ctx, channel, Envelope{Type: "arb_detected", Payload: opp})
		}
		s.publish(ctx, ChannelCycle, Envelope{Type: "cycle_completed", Payload: report.Summary})
	}

	if s.sinks.History != nil && s.sinks.HistoryStream != "" {
		for _, opp := range opps {
			data, err := json.Marshal(opp)
			if err != nil {
				s.sinkFailed(ctx, "history", err)
				continue
			}
			if err := s.sinks.History.StreamAppend(ctx, s.sinks.HistoryStream, data); err != nil {
				s.sinkFailed(ctx, "history", err)
				break
			}
		}
	}

	if s.sinks.Notifier != nil && len(opps) > 0 {
		if err := s.sinks.Notifier.NotifyOpportunities(ctx, opps); err != nil {
			s.sinkFailed(ctx, "notifier", err)
		}
	}

	if s.sinks.Exporter != nil {
		if len(opps) > 0 {
			if _, err := s.sinks.Exporter.ExportOpportunities(ctx, opps, report.FinishedAt); err != nil {
				s.sinkFailed(ctx, "export_opportunities", err)
			}
		}
		if s.sinks.ExportQuotes && len(quotes) > 0 {
			if _, err := s.sinks.Exporter.ExportQuotes(ctx, quotes, report.FinishedAt); err != nil {
				s.sinkFailed(ctx, "export_quotes", err)
			}
		}
	}
}

func (s *DetectionService) publish(ctx context.Context, channel string, env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		s.sinkFailed(ctx, "publish", err)
		return
	}
	if err := s.sinks.Publisher.Publish(ctx, channel, data); err != nil {
		s.sinkFailed(ctx, "publish", err)
	}
}

func (s *DetectionService) sinkFailed(ctx context.Context, sink string, err error) {
	s.logger.WarnContext(ctx, "service: sink failed",
		slog.String("sink", sink),
		slog.String("error", err.Error()),
	)
}

func anyLive(quotes []domain.Quote) bool {
	for _, q := range quotes {
		if q.IsLive {
			return true
		}
	}
	return false
}
