package ports

import (
	"context"

	"github.com/JOSM/changeset-viewer/internal/core/domain"
)

// DiffFeed fetches pre-generated diffs by changeset id.
// A missing diff is reported as domain.ErrNotFound.
type DiffFeed interface {
	Fetch(ctx context.Context, feed domain.Feed, id int64) ([]byte, error)
}

// ChangesetSource reads changeset metadata from a platform API.
type ChangesetSource interface {
	Changeset(ctx context.Context, platform domain.Platform, id int64) (*domain.Changeset, error)
	Changesets(ctx context.Context, platform domain.Platform, q domain.ChangesetQuery) ([]domain.Changeset, error)
}

// QueryService runs time-windowed augmented diff queries and returns the
// XML response body.
type QueryService interface {
	AugmentedDiff(ctx context.Context, platform domain.Platform, window domain.TimeWindow, bbox *domain.Bounds) ([]byte, error)
}
