// Package source fetches raw bookmaker quotes for a detection cycle. Sources
// are scraped elsewhere; this package only reads what scrapers leave behind
// (files, a Redis stream, object storage snapshots).
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alanyoungcy/oddsarb/internal/domain"
)

// Source yields the current quotes of one feed.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]domain.Quote, error)
}

// FileSource reads a JSON array of quotes from disk. It is used for offline
// replays and for scrapers that drop snapshot files.
type FileSource struct {
	name string
	path string
}

// NewFileSource creates a FileSource. The source name is the file name
// without extension.
func NewFileSource(path string) *FileSource {
	base := filepath.Base(path)
	return &FileSource{
		name: "file:" + strings.TrimSuffix(base, filepath.Ext(base)),
		path: path,
	}
}

func (s *FileSource) Name() string { return s.name }

// Fetch reads and decodes the file on every call.
func (s *FileSource) Fetch(ctx context.Context) ([]domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", s.path, err)
	}
	defer f.Close()

	quotes, err := decodeQuotes(f)
	if err != nil {
		return nil, fmt.Errorf("source: decode %s: %w", s.path, err)
	}
	return quotes, nil
}

// decodeQuotes accepts either a JSON array of quotes or a single quote
// object.
func decodeQuotes(r io.Reader) ([]domain.Quote, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return DecodeQuotes(data)
}

// DecodeQuotes parses a JSON array of quotes or a single quote object.
func DecodeQuotes(data []byte) ([]domain.Quote, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var quotes []domain.Quote
		if err := json.Unmarshal(data, &quotes); err != nil {
			return nil, err
		}
		return quotes, nil
	}
	var q domain.Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, err
	}
	return []domain.Quote{q}, nil
}
