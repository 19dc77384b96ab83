// Package bootstrap wires the upstream adapters behind the acquisition and
// listing use cases from configuration. Every binary builds its services here.
package bootstrap

import (
	"log/slog"

	"github.com/JOSM/changeset-viewer/internal/adapters/feed"
	"github.com/JOSM/changeset-viewer/internal/adapters/fetch"
	natsadapter "github.com/JOSM/changeset-viewer/internal/adapters/nats"
	"github.com/JOSM/changeset-viewer/internal/adapters/osmapi"
	"github.com/JOSM/changeset-viewer/internal/adapters/overpass"
	"github.com/JOSM/changeset-viewer/internal/adapters/valkey"
	"github.com/JOSM/changeset-viewer/internal/core/ports"
	"github.com/JOSM/changeset-viewer/internal/core/usecases"
	"github.com/JOSM/changeset-viewer/internal/pkg/config"
)

// Services are the use cases plus the optional infrastructure behind them.
// Cache and Publisher are nil when disabled or unreachable.
type Services struct {
	Acquisition *usecases.AcquisitionService
	Listing     *usecases.ListingService
	Cache       *valkey.Cache
	Publisher   *natsadapter.Publisher
}

// Options turns optional infrastructure off regardless of configuration.
type Options struct {
	NoCache  bool
	NoEvents bool
}

// New builds the services. Optional infrastructure that cannot be reached is
// logged and skipped.
func New(cfg *config.Config, opts Options) *Services {
	a := cfg.Acquisition
	client := fetch.New(fetch.Options{
		Timeout:   a.FetchTimeoutDuration(),
		MaxBytes:  a.MaxDownloadBytes(),
		UserAgent: a.UserAgent,
	})

	s := &Services{}
	var cache ports.CacheService
	if cfg.Valkey.Enabled && !opts.NoCache {
		c, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.KeyPrefix)
		if err != nil {
			slog.Warn("valkey unavailable", "error", err)
		} else {
			s.Cache, cache = c, c
		}
	}

	var publisher ports.EventPublisher
	if cfg.NATS.Enabled && !opts.NoEvents {
		p, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			s.Publisher, publisher = p, p
		}
	}

	meta := osmapi.NewClient(client)
	s.Acquisition = usecases.NewAcquisitionService(
		feed.NewReader(client),
		meta,
		overpass.NewClient(client, overpass.Options{
			QueryTimeout: a.QueryTimeoutDuration(),
			Margin:       a.MarginDuration(),
		}),
		cache,
		publisher,
		usecases.AcquisitionOptions{Pad: a.Pad(), CacheTTL: a.CacheTTLDuration()},
	)
	s.Listing = usecases.NewListingService(meta, cache)
	return s
}

// Close releases the optional infrastructure.
func (s *Services) Close() {
	if s.Cache != nil {
		s.Cache.Close()
	}
	if s.Publisher != nil {
		s.Publisher.Close()
	}
}
