package usecases

import (
	"context"
	"sync"

	"github.com/JOSM/changeset-viewer/internal/core/domain"
)

// RecentLoads keeps the latest load summaries seen on the event bus, one
// per changeset, newest first.
type RecentLoads struct {
	size int

	mu    sync.RWMutex
	items []domain.LoadSummary
}

// NewRecentLoads creates a store holding at most size summaries.
func NewRecentLoads(size int) *RecentLoads {
	if size <= 0 {
		size = 50
	}
	return &RecentLoads{size: size}
}

// Record stores s, replacing an older summary of the same changeset. Its
// signature matches the event subscriber handler.
func (r *RecentLoads) Record(_ context.Context, s *domain.LoadSummary) error {
	if s == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	items := make([]domain.LoadSummary, 0, r.size)
	items = append(items, *s)
	for _, it := range r.items {
		if it.Platform == s.Platform && it.ChangesetID == s.ChangesetID {
			continue
		}
		if len(items) == r.size {
			break
		}
		items = append(items, it)
	}
	r.items = items
	return nil
}

// List returns the stored summaries for platform, or all of them when
// platform is empty.
func (r *RecentLoads) List(platform string) []domain.LoadSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.LoadSummary, 0, len(r.items))
	for _, it := range r.items {
		if platform == "" || it.Platform == platform {
			out = append(out, it)
		}
	}
	return out
}
