package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// NewerThan orders snapshots by modification time; ties go to the lexically
// greater path so that timestamped names win within the same second.
func (b BlobInfo) NewerThan(o BlobInfo) bool {
	if b.LastModified.Equal(o.LastModified) {
		return b.Path > o.Path
	}
	return b.LastModified.After(o.LastModified)
}

// BlobReader retrieves quote snapshots from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	// Latest returns the newest object under prefix whose key ends in
	// suffix, or ErrNotFound when there is none.
	Latest(ctx context.Context, prefix, suffix string) (BlobInfo, error)
}

// Exporter writes cycle results to durable files. Each method returns the
// path of the written object.
type Exporter interface {
	ExportOpportunities(ctx context.Context, opps []ArbitrageOpportunity, at time.Time) (string, error)
	ExportQuotes(ctx context.Context, quotes []Quote, at time.Time) (string, error)
}
