package s3blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/alanyoungcy/oddsarb/internal/domain"
)

// Reader implements domain.BlobReader. Scrapers drop quote snapshots under a
// prefix and the blob quote source reads the newest one each cycle.
type Reader struct {
	client *s3.Client
	bucket string
}

// NewReader creates a Reader for the client's bucket.
func NewReader(c *Client) *Reader {
	return &Reader{
		client: c.S3(),
		bucket: c.Bucket(),
	}
}

// Get opens the object at path. The caller closes the body. A missing
// object yields domain.ErrNotFound.
func (r *Reader) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("s3blob: get %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("s3blob: get %s: %w", path, err)
	}
	return out.Body, nil
}

// Latest walks every page under prefix and keeps the newest key ending in
// suffix. Only the winner is held in memory.
func (r *Reader) Latest(ctx context.Context, prefix, suffix string) (domain.BlobInfo, error) {
	paginator := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
		Prefix: aws.String(prefix),
	})

	var best domain.BlobInfo
	found := false
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return domain.BlobInfo{}, fmt.Errorf("s3blob: list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, suffix) {
				continue
			}
			info := domain.BlobInfo{
				Path:        key,
				Size:        aws.ToInt64(obj.Size),
				ContentType: "application/json",
			}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			if !found || info.NewerThan(best) {
				best, found = info, true
			}
		}
	}
	if !found {
		return domain.BlobInfo{}, fmt.Errorf("s3blob: latest %s*%s: %w", prefix, suffix, domain.ErrNotFound)
	}
	return best, nil
}

// isNotFound matches NoSuchKey, the NotFound type and bare 404 responses
// from S3-compatible providers.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}
	var status interface{ HTTPStatusCode() int }
	return errors.As(err, &status) && status.HTTPStatusCode() == http.StatusNotFound
}
