package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alanyoungcy/oddsarb/internal/domain"
)

// BlobSource reads the newest JSON quote snapshot stored under a prefix in
// object storage.
type BlobSource struct {
	reader domain.BlobReader
	prefix string
}

// NewBlobSource creates a BlobSource for prefix (e.g. "quotes/").
func NewBlobSource(reader domain.BlobReader, prefix string) *BlobSource {
	return &BlobSource{reader: reader, prefix: prefix}
}

func (s *BlobSource) Name() string { return "blob:" + strings.TrimSuffix(s.prefix, "/") }

// Fetch returns the quotes of the most recently modified .json object. An
// empty prefix yields no quotes.
func (s *BlobSource) Fetch(ctx context.Context) ([]domain.Quote, error) {
	latest, err := s.reader.Latest(ctx, s.prefix, ".json")
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("source: latest %s: %w", s.prefix, err)
	}

	body, err := s.reader.Get(ctx, latest.Path)
	if err != nil {
		return nil, fmt.Errorf("source: get %s: %w", latest.Path, err)
	}
	defer body.Close()

	quotes, err := decodeQuotes(body)
	if err != nil {
		return nil, fmt.Errorf("source: decode %s: %w", latest.Path, err)
	}
	return quotes, nil
}
