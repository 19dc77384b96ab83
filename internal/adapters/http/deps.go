package http

import (
	"github.com/nats-io/nats.go"

	"github.com/JOSM/changeset-viewer/internal/adapters/valkey"
	"github.com/JOSM/changeset-viewer/internal/core/usecases"
	"github.com/JOSM/changeset-viewer/internal/pkg/config"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Config      *config.Config
	Acquisition usecases.Acquirer
	Listing     *usecases.ListingService
	Recent      *usecases.RecentLoads
	NATS        *nats.Conn
	Cache       *valkey.Cache
}
