// Package feed reads pre-generated augmented diffs from static feeds such as
// adiffs.osmcha.org or the OpenHistoricalMap S3 bucket.
package feed

import (
	"context"

	"github.com/JOSM/changeset-viewer/internal/core/domain"
)

// Getter fetches a URL body.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Reader implements ports.DiffFeed.
type Reader struct {
	client Getter
}

// NewReader creates a new Reader.
func NewReader(client Getter) *Reader {
	return &Reader{client: client}
}

// Fetch returns the diff of changeset id from f.
func (r *Reader) Fetch(ctx context.Context, f domain.Feed, id int64) ([]byte, error) {
	return r.client.Get(ctx, f.URLFor(id))
}
