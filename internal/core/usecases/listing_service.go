package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JOSM/changeset-viewer/internal/core/domain"
	"github.com/JOSM/changeset-viewer/internal/core/ports"
	"github.com/JOSM/changeset-viewer/internal/pkg/geospatial"
)

const maxListLimit = 100

// ListingService browses changeset metadata.
type ListingService struct {
	changesets ports.ChangesetSource
	cache      ports.CacheService
}

// NewListingService creates a new ListingService.
func NewListingService(changesets ports.ChangesetSource, cache ports.CacheService) *ListingService {
	return &ListingService{changesets: changesets, cache: cache}
}

// InArea lists closed changesets intersecting q.Bounds, newest first.
func (s *ListingService) InArea(ctx context.Context, platform domain.Platform, q domain.ChangesetQuery) ([]domain.Changeset, error) {
	if q.Bounds == nil {
		return nil, fmt.Errorf("bounding box must not be empty: %w", domain.ErrInvalidQuery)
	}
	if q.Bounds.MinLat > q.Bounds.MaxLat || q.Bounds.MinLon > q.Bounds.MaxLon {
		return nil, fmt.Errorf("bounding box is inverted: %w", domain.ErrInvalidQuery)
	}
	if q.Limit <= 0 || q.Limit > maxListLimit {
		q.Limit = maxListLimit
	}
	q.Closed = true

	cacheKey := fmt.Sprintf("changesets:%s:%s:%s:%d", platform.Name, q.Bounds.APIString(), q.User, q.Limit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var list []domain.Changeset
			if err := json.Unmarshal(data, &list); err == nil {
				return list, nil
			}
		}
	}

	list, err := s.changesets.Changesets(ctx, platform, q)
	if err != nil {
		return nil, fmt.Errorf("list changesets: %w", err)
	}
	for i := range list {
		list[i].WebURL = platform.WebURL(list[i].ID)
	}

	// Listings move as mappers upload; keep them briefly.
	if s.cache != nil {
		if data, err := json.Marshal(list); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 60)
		}
	}
	return list, nil
}

// Near lists closed changesets within radiusMeters of a point.
func (s *ListingService) Near(ctx context.Context, platform domain.Platform, lat, lon, radiusMeters float64, limit int) ([]domain.Changeset, error) {
	if radiusMeters <= 0 {
		return nil, fmt.Errorf("radius must be positive: %w", domain.ErrInvalidQuery)
	}
	minLat, minLon, maxLat, maxLon := geospatial.Around(lat, lon, radiusMeters)
	return s.InArea(ctx, platform, domain.ChangesetQuery{
		Bounds: &domain.Bounds{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon},
		Limit:  limit,
	})
}

// Get returns the metadata of one changeset.
func (s *ListingService) Get(ctx context.Context, platform domain.Platform, id int64) (*domain.Changeset, error) {
	cs, err := s.changesets.Changeset(ctx, platform, id)
	if err != nil {
		return nil, fmt.Errorf("changeset %d: %w", id, err)
	}
	cs.WebURL = platform.WebURL(cs.ID)
	return cs, nil
}
