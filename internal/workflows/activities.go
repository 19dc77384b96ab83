package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/temporal"

	"github.com/JOSM/changeset-viewer/internal/core/domain"
	"github.com/JOSM/changeset-viewer/internal/core/ports"
	"github.com/JOSM/changeset-viewer/internal/core/usecases"
)

// PlatformResolver looks up a platform by name.
type PlatformResolver interface {
	Platform(name string) (domain.Platform, error)
}

// WarmResult is what WarmChangeset reports back to the workflow.
type WarmResult struct {
	Source     domain.DiffSource
	Primitives int
}

// PrefetchActivities holds the activity implementations for the prefetch workflow.
type PrefetchActivities struct {
	Platforms   PlatformResolver
	Listing     *usecases.ListingService
	Acquisition usecases.Acquirer
	Cache       ports.CacheService
}

// ListChangesets returns the ids of closed changesets in the input area.
func (a *PrefetchActivities) ListChangesets(ctx context.Context, input PrefetchInput) ([]int64, error) {
	platform, err := a.Platforms.Platform(input.Platform)
	if err != nil {
		return nil, nonRetryable(err)
	}
	bounds := input.Bounds
	list, err := a.Listing.InArea(ctx, platform, domain.ChangesetQuery{
		Bounds: &bounds,
		User:   input.User,
		Limit:  input.Limit,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidQuery) {
			return nil, nonRetryable(err)
		}
		return nil, err
	}
	ids := make([]int64, len(list))
	for i, cs := range list {
		ids[i] = cs.ID
	}
	return ids, nil
}

// WarmChangeset acquires one diff, which stores it in the cache on the way.
// Outcomes a retry cannot change are reported as non-retryable.
func (a *PrefetchActivities) WarmChangeset(ctx context.Context, platformName string, id int64) (WarmResult, error) {
	platform, err := a.Platforms.Platform(platformName)
	if err != nil {
		return WarmResult{}, nonRetryable(err)
	}
	acq, err := a.Acquisition.Acquire(ctx, platform, id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNoData), errors.Is(err, domain.ErrTooLarge):
			return WarmResult{}, nonRetryable(err)
		}
		return WarmResult{}, fmt.Errorf("warm changeset %d: %w", id, err)
	}
	return WarmResult{Source: acq.Source, Primitives: acq.Dataset.Len()}, nil
}

// EvictChangeset drops a cached diff (saga compensation for empty diffs).
func (a *PrefetchActivities) EvictChangeset(ctx context.Context, platformName string, id int64) error {
	if a.Cache == nil {
		return nil
	}
	if err := a.Cache.Delete(ctx, usecases.DiffCacheKey(platformName, id)); err != nil {
		return fmt.Errorf("evict changeset %d: %w", id, err)
	}
	slog.Info("evicted empty diff", "platform", platformName, "changeset", id)
	return nil
}

func nonRetryable(err error) error {
	return temporal.NewNonRetryableApplicationError(err.Error(), usecases.ErrorKind(err), err)
}
