package source

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/oddsarb/internal/domain"
)

// maxStreamBatches bounds the reads of a single Fetch.
const maxStreamBatches = 100

// StreamSource drains new entries from a Redis stream that external scrapers
// append to. Each entry payload holds one quote or an array of quotes. The
// read cursor survives between fetches, so every entry is delivered once.
type StreamSource struct {
	bus    domain.SignalBus
	stream string
	batch  int
	logger *slog.Logger

	mu     sync.Mutex
	cursor string
}

// NewStreamSource creates a StreamSource reading stream from the beginning.
func NewStreamSource(bus domain.SignalBus, stream string, batch int, logger *slog.Logger) *StreamSource {
	if batch <= 0 {
		batch = 1000
	}
	return &StreamSource{
		bus:    bus,
		stream: stream,
		batch:  batch,
		cursor: "0",
		logger: logger.With(slog.String("component", "stream_source"), slog.String("stream", stream)),
	}
}

func (s *StreamSource) Name() string { return "stream:" + s.stream }

// Cursor returns the ID of the last consumed entry.
func (s *StreamSource) Cursor() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Fetch returns the quotes appended since the previous call. Undecodable
// entries are skipped with a warning.
func (s *StreamSource) Fetch(ctx context.Context) ([]domain.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var quotes []domain.Quote
	for i := 0; i < maxStreamBatches; i++ {
		msgs, err := s.bus.StreamRead(ctx, s.stream, s.cursor, s.batch)
		if err != nil {
			return quotes, fmt.Errorf("source: read stream %s: %w", s.stream, err)
		}
		for _, m := range msgs {
			s.cursor = m.ID
			qs, err := DecodeQuotes(m.Payload)
			if err != nil {
				s.logger.WarnContext(ctx, "source: dropping undecodable entry",
					slog.String("id", m.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			quotes = append(quotes, qs...)
		}
		if len(msgs) < s.batch {
			break
		}
	}
	return quotes, nil
}
