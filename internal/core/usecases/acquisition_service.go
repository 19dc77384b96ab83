package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/JOSM/changeset-viewer/internal/adiff"
	"github.com/JOSM/changeset-viewer/internal/core/domain"
	"github.com/JOSM/changeset-viewer/internal/core/ports"
	"github.com/JOSM/changeset-viewer/internal/pkg/metrics"
	"github.com/JOSM/changeset-viewer/internal/pkg/telemetry"
)

// AcquisitionOptions tunes the acquisition strategy.
type AcquisitionOptions struct {
	// Pad widens the changeset's [created, closed] window on each side.
	Pad time.Duration
	// CacheTTL bounds how long a closed changeset's diff stays cached.
	// Zero disables caching.
	CacheTTL time.Duration
}

// DefaultAcquisitionOptions pads by one second and caches for a day.
func DefaultAcquisitionOptions() AcquisitionOptions {
	return AcquisitionOptions{Pad: time.Second, CacheTTL: 24 * time.Hour}
}

// Acquisition is the outcome of one successful acquisition.
type Acquisition struct {
	domain.BoundedDataset
	Platform    string
	ChangesetID int64
	Source      domain.DiffSource
	Format      domain.DiffFormat
	// Changeset is set when metadata was fetched on the way.
	Changeset *domain.Changeset
}

// Summary describes the acquisition for events and listings.
func (a *Acquisition) Summary() domain.LoadSummary {
	return domain.Summarize(a.Platform, a.ChangesetID, a.Source, a.Format, a.BoundedDataset)
}

// AcquisitionService resolves a changeset id into a BoundedDataset.
//
// Tiers are tried in order: cache, the platform's static feeds, then the
// query service over the changeset's padded time window. Each call is
// independent; nothing but the optional cache outlives it.
type AcquisitionService struct {
	feeds      ports.DiffFeed
	changesets ports.ChangesetSource
	query      ports.QueryService
	cache      ports.CacheService
	publisher  ports.EventPublisher
	opts       AcquisitionOptions
}

// NewAcquisitionService creates a new AcquisitionService. cache and
// publisher may be nil.
func NewAcquisitionService(
	feeds ports.DiffFeed,
	changesets ports.ChangesetSource,
	query ports.QueryService,
	cache ports.CacheService,
	publisher ports.EventPublisher,
	opts AcquisitionOptions,
) *AcquisitionService {
	return &AcquisitionService{
		feeds:      feeds,
		changesets: changesets,
		query:      query,
		cache:      cache,
		publisher:  publisher,
		opts:       opts,
	}
}

// Acquire builds the diff of changeset id on platform.
//
// An empty result is a success: the diff exists but touched nothing the
// parsers could draw, or it was malformed. Transport failures, oversized
// responses, timeouts and missing metadata are returned as errors wrapping
// the domain sentinels.
func (s *AcquisitionService) Acquire(ctx context.Context, platform domain.Platform, id int64) (*Acquisition, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "adiff.Acquire")
	defer span.End()
	span.SetAttributes(
		attribute.String("platform", platform.Name),
		attribute.Int64("changeset.id", id),
	)

	start := time.Now()
	acq, err := s.acquire(ctx, platform, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.AcquisitionErrors.WithLabelValues(platform.Name, ErrorKind(err)).Inc()
		return nil, err
	}

	span.SetAttributes(
		attribute.String("adiff.source", string(acq.Source)),
		attribute.Int("adiff.primitives", acq.Dataset.Len()),
	)
	metrics.Acquisitions.WithLabelValues(platform.Name, string(acq.Source)).Inc()
	metrics.AcquisitionDuration.WithLabelValues(platform.Name, string(acq.Source)).Observe(time.Since(start).Seconds())
	metrics.PrimitivesBuilt.WithLabelValues(string(acq.Format)).Observe(float64(acq.Dataset.Len()))

	if s.publisher != nil && acq.Source != domain.SourceCache {
		summary := acq.Summary()
		if err := s.publisher.PublishChangesetLoaded(ctx, &summary); err != nil {
			slog.Warn("publish changeset loaded", "changeset", id, "error", err)
		}
	}
	return acq, nil
}

func (s *AcquisitionService) acquire(ctx context.Context, platform domain.Platform, id int64) (*Acquisition, error) {
	if format, body, ok := s.cached(ctx, platform, id); ok {
		return s.build(platform, id, domain.SourceCache, format, body, nil)
	}

	format, body, err := s.fromFeeds(ctx, platform, id)
	if err != nil {
		return nil, err
	}
	if body != nil {
		acq, err := s.build(platform, id, domain.SourceFeed, format, body, nil)
		if err != nil {
			return nil, err
		}
		if !acq.Empty() {
			s.store(ctx, platform, id, format, body)
		}
		return acq, nil
	}

	cs, err := s.changesets.Changeset(ctx, platform, id)
	if err != nil {
		return nil, fmt.Errorf("changeset %d metadata: %w", id, err)
	}
	window, err := cs.Window(s.opts.Pad)
	if err != nil {
		return nil, err
	}

	body, err = s.query.AugmentedDiff(ctx, platform, window, cs.Bounds)
	if err != nil {
		return nil, fmt.Errorf("changeset %d query: %w", id, err)
	}
	acq, err := s.build(platform, id, domain.SourceQuery, domain.FormatXML, body, cs)
	if err != nil {
		return nil, err
	}
	// An empty diff may only mean the query service has not caught up yet.
	if !cs.Open && !acq.Empty() {
		s.store(ctx, platform, id, domain.FormatXML, body)
	}
	return acq, nil
}

// fromFeeds tries each static feed in order. A nil body with a nil error
// means every feed missed.
func (s *AcquisitionService) fromFeeds(ctx context.Context, platform domain.Platform, id int64) (domain.DiffFormat, []byte, error) {
	for _, feed := range platform.Feeds {
		body, err := s.feeds.Fetch(ctx, feed, id)
		switch {
		case err == nil && len(body) > 0:
			return feed.Format, body, nil
		case err == nil, errors.Is(err, domain.ErrNotFound):
			slog.Debug("feed miss", "platform", platform.Name, "changeset", id, "feed", feed.URL)
		case errors.Is(err, domain.ErrTooLarge), ctx.Err() != nil:
			return "", nil, fmt.Errorf("changeset %d feed: %w", id, err)
		default:
			slog.Warn("feed failed, falling back", "platform", platform.Name, "changeset", id, "feed", feed.URL, "error", err)
		}
		metrics.FeedMisses.WithLabelValues(platform.Name).Inc()
	}
	return "", nil, nil
}

func (s *AcquisitionService) build(platform domain.Platform, id int64, source domain.DiffSource, format domain.DiffFormat, body []byte, cs *domain.Changeset) (*Acquisition, error) {
	bd, err := adiff.Parse(format, body)
	if err != nil {
		return nil, err
	}
	return &Acquisition{
		BoundedDataset: bd,
		Platform:       platform.Name,
		ChangesetID:    id,
		Source:         source,
		Format:         format,
		Changeset:      cs,
	}, nil
}

type cachedDiff struct {
	Format domain.DiffFormat `json:"format"`
	Body   []byte            `json:"body"`
}

// DiffCacheKey is the cache key for a changeset's raw diff.
func DiffCacheKey(platform string, id int64) string {
	return fmt.Sprintf("adiff:%s:%d", platform, id)
}

func (s *AcquisitionService) cached(ctx context.Context, platform domain.Platform, id int64) (domain.DiffFormat, []byte, bool) {
	if s.cache == nil || s.opts.CacheTTL <= 0 {
		return "", nil, false
	}
	data, err := s.cache.Get(ctx, DiffCacheKey(platform.Name, id))
	if err != nil {
		metrics.CacheMisses.WithLabelValues("adiff").Inc()
		return "", nil, false
	}
	var entry cachedDiff
	if err := json.Unmarshal(data, &entry); err != nil || !entry.Format.Valid() {
		metrics.CacheMisses.WithLabelValues("adiff").Inc()
		return "", nil, false
	}
	metrics.CacheHits.WithLabelValues("adiff").Inc()
	return entry.Format, entry.Body, true
}

func (s *AcquisitionService) store(ctx context.Context, platform domain.Platform, id int64, format domain.DiffFormat, body []byte) {
	if s.cache == nil || s.opts.CacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(cachedDiff{Format: format, Body: body})
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, DiffCacheKey(platform.Name, id), data, int(s.opts.CacheTTL.Seconds())); err != nil {
		slog.Warn("cache diff", "changeset", id, "error", err)
	}
}

// ErrorKind classifies an acquisition error for metrics and API responses.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrNoData):
		return "no_data"
	case errors.Is(err, domain.ErrTooLarge):
		return "too_large"
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, domain.ErrUnknownPlatform):
		return "unknown_platform"
	case errors.Is(err, domain.ErrInvalidQuery):
		return "invalid_query"
	}
	return "upstream_error"
}
