package ports

import (
	"context"

	"github.com/JOSM/changeset-viewer/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishChangesetLoaded(ctx context.Context, summary *domain.LoadSummary) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeChangesetLoaded(ctx context.Context, handler func(ctx context.Context, summary *domain.LoadSummary) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
