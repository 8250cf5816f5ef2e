package s3blob

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/alanyoungcy/oddsarb/internal/domain"
)

// maxExportLegs is the number of leg column groups in the opportunity CSV.
const maxExportLegs = 3

const exportTimeLayout = "20060102_150405"

// Exporter implements domain.Exporter by rendering cycle results as CSV and
// uploading them through a BlobWriter. Each export is recorded in the audit
// log when an AuditStore is configured.
type Exporter struct {
	writer domain.BlobWriter
	audit  domain.AuditStore
	prefix string
	logger *slog.Logger
}

// NewExporter creates an Exporter writing under prefix (e.g. "exports/").
// audit may be nil.
func NewExporter(writer domain.BlobWriter, audit domain.AuditStore, prefix string, logger *slog.Logger) *Exporter {
	return &Exporter{
		writer: writer,
		audit:  audit,
		prefix: prefix,
		logger: logger.With(slog.String("component", "exporter")),
	}
}

// ExportOpportunities uploads opps as {prefix}arbitrages_YYYYMMDD_HHMMSS.csv
// and returns the object path.
func (e *Exporter) ExportOpportunities(ctx context.Context, opps []domain.ArbitrageOpportunity, at time.Time) (string, error) {
	data, err := opportunitiesCSV(opps)
	if err != nil {
		return "", fmt.Errorf("s3blob: export opportunities: %w", err)
	}
	path := exportPath(e.prefix, "arbitrages", at)
	if err := e.upload(ctx, path, data); err != nil {
		return "", fmt.Errorf("s3blob: export opportunities: %w", err)
	}
	e.record(ctx, "export.opportunities", path, len(opps))
	return path, nil
}

// ExportQuotes uploads the raw quotes of a cycle as
// {prefix}raw_quotes_YYYYMMDD_HHMMSS.csv and returns the object path.
func (e *Exporter) ExportQuotes(ctx context.Context, quotes []domain.Quote, at time.Time) (string, error) {
	data, err := quotesCSV(quotes)
	if err != nil {
		return "", fmt.Errorf("s3blob: export quotes: %w", err)
	}
	path := exportPath(e.prefix, "raw_quotes", at)
	if err := e.upload(ctx, path, data); err != nil {
		return "", fmt.Errorf("s3blob: export quotes: %w", err)
	}
	e.record(ctx, "export.quotes", path, len(quotes))
	return path, nil
}

func (e *Exporter) upload(ctx context.Context, path string, data []byte) error {
	if int64(len(data)) > minPartSize {
		return e.writer.PutMultipart(ctx, path, bytes.NewReader(data), minPartSize)
	}
	return e.writer.Put(ctx, path, bytes.NewReader(data), "text/csv")
}

func (e *Exporter) record(ctx context.Context, event, path string, count int) {
	e.logger.InfoContext(ctx, "exporter: uploaded",
		slog.String("path", path),
		slog.Int("rows", count),
	)
	if e.audit == nil {
		return
	}
	if err := e.audit.Log(ctx, event, map[string]any{"path": path, "count": count}); err != nil {
		e.logger.WarnContext(ctx, "exporter: audit log failed", slog.String("error", err.Error()))
	}
}

// exportPath builds the object key for an export file.
//
//	exports/arbitrages_20240301_120000.csv
func exportPath(prefix, kind string, at time.Time) string {
	return fmt.Sprintf("%s%s_%s.csv", prefix, kind, at.UTC().Format(exportTimeLayout))
}

func opportunitiesCSV(opps []domain.ArbitrageOpportunity) ([]byte, error) {
	header := []string{
		"detected_at", "event_name", "sport", "league", "start_time",
		"market_type", "line", "arb_percentage", "profit_percentage",
		"guaranteed_profit", "bankroll", "freshness_score",
	}
	for i := 1; i <= maxExportLegs; i++ {
		p := "outcome_" + strconv.Itoa(i)
		header = append(header, p+"_name", p+"_odds", p+"_bookmaker", p+"_stake")
	}

	rows := make([][]string, 0, len(opps))
	for _, o := range opps {
		row := []string{
			formatTime(&o.DetectedAt), o.EventName, string(o.Sport), o.League, formatTime(o.StartTime),
			o.MarketType, o.Line, formatFloat(o.ArbPercentage), formatFloat(o.ProfitPercentage),
			formatFloat(o.GuaranteedProfit), formatFloat(o.Bankroll), formatFloat(o.FreshnessScore),
		}
		for i := 0; i < maxExportLegs; i++ {
			if i < len(o.Stakes) {
				s := o.Stakes[i]
				row = append(row, s.OutcomeName, formatFloat(s.Odds), string(s.Bookmaker), formatFloat(s.StakeAmount))
				continue
			}
			row = append(row, "", "", "", "")
		}
		rows = append(rows, row)
	}
	return writeCSV(header, rows)
}

func quotesCSV(quotes []domain.Quote) ([]byte, error) {
	header := []string{
		"scraped_at", "bookmaker", "event_name", "sport", "league",
		"start_time", "market_name", "line", "outcome_name", "odds",
		"url", "is_live",
	}
	rows := make([][]string, 0, len(quotes))
	for _, q := range quotes {
		rows = append(rows, []string{
			formatTime(&q.ScrapedAt), string(q.Bookmaker), q.EventName, q.Sport, q.League,
			formatTime(q.StartTime), q.MarketName, q.Line.String(), q.OutcomeName, formatFloat(q.Odds),
			q.URL, strconv.FormatBool(q.IsLive),
		})
	}
	return writeCSV(header, rows)
}

func writeCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var _ domain.Exporter = (*Exporter)(nil)
