package usecases_test

import (
	"context"
	"sync"

	"github.com/JOSM/changeset-viewer/internal/core/domain"
)

// --- Mock DiffFeed ---

type mockFeed struct {
	fetchFn func(ctx context.Context, feed domain.Feed, id int64) ([]byte, error)
	calls   int
}

func (m *mockFeed) Fetch(ctx context.Context, feed domain.Feed, id int64) ([]byte, error) {
	m.calls++
	if m.fetchFn != nil {
		return m.fetchFn(ctx, feed, id)
	}
	return nil, domain.ErrNotFound
}

// --- Mock ChangesetSource ---

type mockChangesets struct {
	changesetFn  func(ctx context.Context, p domain.Platform, id int64) (*domain.Changeset, error)
	changesetsFn func(ctx context.Context, p domain.Platform, q domain.ChangesetQuery) ([]domain.Changeset, error)
}

func (m *mockChangesets) Changeset(ctx context.Context, p domain.Platform, id int64) (*domain.Changeset, error) {
	if m.changesetFn != nil {
		return m.changesetFn(ctx, p, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockChangesets) Changesets(ctx context.Context, p domain.Platform, q domain.ChangesetQuery) ([]domain.Changeset, error) {
	if m.changesetsFn != nil {
		return m.changesetsFn(ctx, p, q)
	}
	return nil, nil
}

// --- Mock QueryService ---

type mockQuery struct {
	augmentedDiffFn func(ctx context.Context, p domain.Platform, w domain.TimeWindow, bbox *domain.Bounds) ([]byte, error)
}

func (m *mockQuery) AugmentedDiff(ctx context.Context, p domain.Platform, w domain.TimeWindow, bbox *domain.Bounds) ([]byte, error) {
	if m.augmentedDiffFn != nil {
		return m.augmentedDiffFn(ctx, p, w, bbox)
	}
	return nil, domain.ErrTransport
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]int
}

func newMockCache() *mockCache {
	return &mockCache{data: map[string][]byte{}, ttls: map[string]int{}}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttlSeconds
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu      sync.Mutex
	loaded  []domain.LoadSummary
	publErr error
}

func (m *mockPublisher) PublishChangesetLoaded(ctx context.Context, s *domain.LoadSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = append(m.loaded, *s)
	return m.publErr
}

var testPlatform = domain.Platform{
	Name:         "osm",
	APIURL:       "https://api.example.org/api/0.6/",
	OverpassURL:  "https://overpass.example.org/api/interpreter",
	ChangesetURL: "https://www.example.org/changeset/",
	Feeds: []domain.Feed{
		{URL: "https://adiffs.example.org/changesets/{id}.adiff", Format: domain.FormatXML},
		{URL: "https://real.example.org/{id}.json", Format: domain.FormatJSON},
	},
}

const oneNodeXML = `<osm><action type="create"><node id="1" lat="1" lon="2"/></action></osm>`

const oneNodeJSON = `{"elements":[{"type":"node","action":"create","lat":"3","lon":"4"}]}`
