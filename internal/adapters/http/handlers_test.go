package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/JOSM/changeset-viewer/internal/adapters/http"
	"github.com/JOSM/changeset-viewer/internal/adiff"
	"github.com/JOSM/changeset-viewer/internal/core/domain"
	"github.com/JOSM/changeset-viewer/internal/core/usecases"
	"github.com/JOSM/changeset-viewer/internal/pkg/config"
)

// ---- Mocks ----

type mockAcquirer struct {
	acquireFn func(ctx context.Context, p domain.Platform, id int64) (*usecases.Acquisition, error)
}

func (m *mockAcquirer) Acquire(ctx context.Context, p domain.Platform, id int64) (*usecases.Acquisition, error) {
	if m.acquireFn != nil {
		return m.acquireFn(ctx, p, id)
	}
	return nil, domain.ErrNotFound
}

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

// ---- Test helpers ----

const diffXML = `<osm>
<action type="create"><node id="1" lat="1" lon="2"/></action>
<action type="modify">
  <old><way id="2"><nd lat="0" lon="0"/><nd lat="1" lon="1"/></way></old>
  <new><way id="2"><nd lat="0" lon="0"/><nd lat="1.5" lon="1"/></way></new>
</action>
</osm>`

func testConfig() *config.Config {
	return &config.Config{
		DefaultPlatform: "osm",
		Acquisition:     config.AcquisitionConfig{FetchTimeout: 190, TimeoutMargin: 10},
		Platforms: map[string]config.PlatformConfig{
			"osm": {
				Label:        "OpenStreetMap",
				APIURL:       "https://api.example.org/api/0.6",
				Feeds:        []domain.Feed{{URL: "https://feed.example.org/{id}.adiff", Format: domain.FormatXML}},
				OverpassURL:  "https://overpass.example.org/api/interpreter",
				ChangesetURL: "https://www.example.org/changeset",
			},
			"ohm": {
				Label:        "OpenHistoricalMap",
				APIURL:       "https://ohm.example.org/api/0.6",
				ChangesetURL: "https://ohm.example.org/changeset",
			},
		},
	}
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(opts ...func(*handler.Dependencies)) *handler.Dependencies {
	d := &handler.Dependencies{
		Config:      testConfig(),
		Acquisition: &mockAcquirer{},
		Listing:     usecases.NewListingService(&mockChangesets{}, nil),
		Recent:      usecases.NewRecentLoads(10),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func acquisitionOf(t *testing.T, p domain.Platform, id int64, body string) *usecases.Acquisition {
	t.Helper()
	bd, err := adiff.Parse(domain.FormatXML, []byte(body))
	if err != nil {
		t.Fatal(err)
	}
	return &usecases.Acquisition{
		BoundedDataset: bd,
		Platform:       p.Name,
		ChangesetID:    id,
		Source:         domain.SourceFeed,
		Format:         domain.FormatXML,
	}
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

func decodeError(t *testing.T, body io.Reader) handler.APIError {
	t.Helper()
	var apiErr handler.APIError
	if err := json.NewDecoder(body).Decode(&apiErr); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return apiErr
}

// ---- Platform handler tests ----

func TestListPlatforms(t *testing.T) {
	app := setupApp(makeDeps())

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/platforms", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var platforms []domain.Platform
	if err := json.NewDecoder(resp.Body).Decode(&platforms); err != nil {
		t.Fatal(err)
	}
	if len(platforms) != 2 || platforms[0].Name != "ohm" || platforms[1].Name != "osm" {
		t.Errorf("unexpected platforms: %+v", platforms)
	}
}

// ---- Changeset listing tests ----

func TestListChangesets_BBox(t *testing.T) {
	var got domain.ChangesetQuery
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Listing = usecases.NewListingService(&mockChangesets{
			changesetsFn: func(ctx context.Context, p domain.Platform, q domain.ChangesetQuery) ([]domain.Changeset, error) {
				got = q
				out := make([]domain.Changeset, 5)
				for i := range out {
					out[i] = domain.Changeset{ID: int64(100 + i), User: fmt.Sprintf("mapper%d", i)}
				}
				return out, nil
			},
		}, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/changesets?bbox=-2.95,43.25,-2.90,43.27&user=mapper&offset=2&limit=2", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}

	var result struct {
		Data       []domain.Changeset `json:"data"`
		Pagination handler.Pagination `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Pagination.Total != 5 || len(result.Data) != 2 || result.Data[0].ID != 102 {
		t.Errorf("unexpected page: %+v", result)
	}
	if result.Data[0].WebURL != "https://www.example.org/changeset/102" {
		t.Errorf("web url = %s", result.Data[0].WebURL)
	}
	if got.Bounds == nil || got.Bounds.MinLon != -2.95 || got.Bounds.MaxLat != 43.27 || got.User != "mapper" || !got.Closed {
		t.Errorf("unexpected query: %+v", got)
	}

	link := resp.Header.Get("Link")
	if !strings.Contains(link, `rel="next"`) || !strings.Contains(link, "bbox=") {
		t.Errorf("Link header should page forward and keep bbox: %s", link)
	}
}

func TestListChangesets_Near(t *testing.T) {
	called := false
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Listing = usecases.NewListingService(&mockChangesets{
			changesetsFn: func(ctx context.Context, p domain.Platform, q domain.ChangesetQuery) ([]domain.Changeset, error) {
				called = true
				if !q.Bounds.Contains(domain.GeoPoint{Lat: 43.26, Lon: -2.93}) {
					t.Errorf("bbox %+v does not contain the center", q.Bounds)
				}
				return nil, nil
			},
		}, nil)
	})
	app := setupApp(deps)

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/changesets?lat=43.26&lon=-2.93&radius=500", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !called {
		t.Error("listing was not queried")
	}
}

func TestListChangesets_BadParams(t *testing.T) {
	app := setupApp(makeDeps())

	for _, target := range []string{
		"/v1/changesets",
		"/v1/changesets?bbox=1,2,3",
		"/v1/changesets?bbox=a,b,c,d",
		"/v1/changesets?bbox=0,2,1,1",
		"/v1/changesets?lat=43&lon=-2&radius=100000",
		"/v1/changesets?bbox=0,0,1,1&platform=nowhere",
	} {
		resp, _ := app.Test(httptest.NewRequest("GET", target, nil), -1)
		if resp.StatusCode != 400 {
			t.Errorf("%s: expected 400, got %d", target, resp.StatusCode)
			continue
		}
		if apiErr := decodeError(t, resp.Body); apiErr.Code != "bad_request" {
			t.Errorf("%s: expected bad_request, got %s", target, apiErr.Code)
		}
	}
}

// ---- Changeset detail tests ----

func TestGetChangeset(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Listing = usecases.NewListingService(&mockChangesets{
			changesetFn: func(ctx context.Context, p domain.Platform, id int64) (*domain.Changeset, error) {
				if p.Name != "ohm" {
					t.Errorf("expected ohm platform, got %s", p.Name)
				}
				return &domain.Changeset{ID: id, User: "historian", ChangesCount: 3}, nil
			},
		}, nil)
	})
	app := setupApp(deps)

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/changesets/42?platform=ohm", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var cs domain.Changeset
	json.NewDecoder(resp.Body).Decode(&cs)
	if cs.ID != 42 || cs.WebURL != "https://ohm.example.org/changeset/42" {
		t.Errorf("unexpected changeset: %+v", cs)
	}
}

func TestGetChangeset_Errors(t *testing.T) {
	app := setupApp(makeDeps())

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/changesets/abc", nil), -1)
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 for non-numeric id, got %d", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/v1/changesets/7", nil), -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if apiErr := decodeError(t, resp.Body); apiErr.Code != "not_found" {
		t.Errorf("expected not_found, got %s", apiErr.Code)
	}
}

// ---- Diff handler tests ----

func TestChangesetDiff_GeoJSON(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Acquisition = &mockAcquirer{
			acquireFn: func(ctx context.Context, p domain.Platform, id int64) (*usecases.Acquisition, error) {
				return acquisitionOf(t, p, id, diffXML), nil
			},
		}
	})
	app := setupApp(deps)

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/changesets/99/diff", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("content type = %s", ct)
	}
	if src := resp.Header.Get("X-Diff-Source"); src != "feed" {
		t.Errorf("X-Diff-Source = %s", src)
	}

	var fc struct {
		Type     string    `json:"type"`
		BBox     []float64 `json:"bbox"`
		Features []struct {
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		t.Fatal(err)
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) != 3 {
		t.Fatalf("unexpected collection: %+v", fc)
	}
	if fc.Features[0].Geometry.Type != "Point" || fc.Features[0].Properties["action"] != "create" {
		t.Errorf("first feature should be the created node: %+v", fc.Features[0])
	}
	if len(fc.BBox) != 4 || fc.BBox[3] != 1.5 {
		t.Errorf("bbox = %v", fc.BBox)
	}
}

func TestChangesetDiff_Summary(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Acquisition = &mockAcquirer{
			acquireFn: func(ctx context.Context, p domain.Platform, id int64) (*usecases.Acquisition, error) {
				return acquisitionOf(t, p, id, diffXML), nil
			},
		}
	})
	app := setupApp(deps)

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/changesets/99/diff?format=summary", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var s domain.LoadSummary
	json.NewDecoder(resp.Body).Decode(&s)
	if s.ChangesetID != 99 || s.Primitives != 3 || s.Actions[domain.ActionModifyOld] != 1 {
		t.Errorf("unexpected summary: %+v", s)
	}
}

func TestChangesetDiff_EmptyIsNotFound(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Acquisition = &mockAcquirer{
			acquireFn: func(ctx context.Context, p domain.Platform, id int64) (*usecases.Acquisition, error) {
				return acquisitionOf(t, p, id, "<osm/>"), nil
			},
		}
	})
	app := setupApp(deps)

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/changesets/5/diff", nil), -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	apiErr := decodeError(t, resp.Body)
	if apiErr.Code != "not_found" || !strings.Contains(apiErr.Message, "not been processed") {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestChangesetDiff_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("wrap: %w", domain.ErrNotFound), 404, "not_found"},
		{fmt.Errorf("wrap: %w", domain.ErrNoData), 404, "no_data"},
		{fmt.Errorf("wrap: %w", domain.ErrTooLarge), 413, "too_large"},
		{fmt.Errorf("wrap: %w", domain.ErrTimeout), 504, "timeout"},
		{fmt.Errorf("wrap: %w", domain.ErrTransport), 502, "upstream_error"},
		{fmt.Errorf("boom"), 500, "internal_error"},
	}
	for _, tc := range cases {
		deps := makeDeps(func(d *handler.Dependencies) {
			d.Acquisition = &mockAcquirer{
				acquireFn: func(ctx context.Context, p domain.Platform, id int64) (*usecases.Acquisition, error) {
					return nil, tc.err
				},
			}
		})
		app := setupApp(deps)

		resp, _ := app.Test(httptest.NewRequest("GET", "/v1/changesets/1/diff", nil), -1)
		if resp.StatusCode != tc.status {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.status, resp.StatusCode)
			continue
		}
		if apiErr := decodeError(t, resp.Body); apiErr.Code != tc.code {
			t.Errorf("%v: expected code %s, got %s", tc.err, tc.code, apiErr.Code)
		}
	}
}

func TestChangesetDiff_ETag(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Acquisition = &mockAcquirer{
			acquireFn: func(ctx context.Context, p domain.Platform, id int64) (*usecases.Acquisition, error) {
				return acquisitionOf(t, p, id, diffXML), nil
			},
		}
	})
	app := setupApp(deps)

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/changesets/99/diff", nil), -1)
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected an ETag")
	}

	req := httptest.NewRequest("GET", "/v1/changesets/99/diff", nil)
	req.Header.Set("If-None-Match", `W/"other", `+etag)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 304 {
		t.Errorf("expected 304, got %d", resp.StatusCode)
	}
}

// ---- Recent loads ----

func TestRecentLoads(t *testing.T) {
	deps := makeDeps()
	_ = deps.Recent.Record(context.Background(), &domain.LoadSummary{Platform: "osm", ChangesetID: 1, LoadedAt: time.Now()})
	_ = deps.Recent.Record(context.Background(), &domain.LoadSummary{Platform: "ohm", ChangesetID: 2, LoadedAt: time.Now()})
	app := setupApp(deps)

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/changesets/recent?platform=ohm", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got []domain.LoadSummary
	json.NewDecoder(resp.Body).Decode(&got)
	if len(got) != 1 || got[0].ChangesetID != 2 {
		t.Errorf("unexpected recent loads: %+v", got)
	}
}

// ---- Health ----

func TestHealthAndReady(t *testing.T) {
	app := setupApp(makeDeps())

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/health", nil), -1)
	if resp.StatusCode != 200 {
		t.Errorf("health: expected 200, got %d", resp.StatusCode)
	}

	// Nothing optional is configured, so the service is ready.
	resp, _ = app.Test(httptest.NewRequest("GET", "/v1/ready", nil), -1)
	if resp.StatusCode != 200 {
		t.Errorf("ready: expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Checks map[string]string `json:"checks"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Checks["cache"] != "not configured" {
		t.Errorf("cache check = %s", body.Checks["cache"])
	}
}

// ---- GraphQL ----

func TestGraphQL_Diff(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Acquisition = &mockAcquirer{
			acquireFn: func(ctx context.Context, p domain.Platform, id int64) (*usecases.Acquisition, error) {
				return acquisitionOf(t, p, id, diffXML), nil
			},
		}
	})
	app := setupApp(deps)

	q := `{"query":"{ diff(id: 99) { changeset_id primitives actions { action count } bounds { max_lat } } }"}`
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(q))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Diff struct {
				ChangesetID int `json:"changeset_id"`
				Primitives  int `json:"primitives"`
				Actions     []struct {
					Action string `json:"action"`
					Count  int    `json:"count"`
				} `json:"actions"`
				Bounds struct {
					MaxLat float64 `json:"max_lat"`
				} `json:"bounds"`
			} `json:"diff"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	d := result.Data.Diff
	if d.ChangesetID != 99 || d.Primitives != 3 || len(d.Actions) != 3 || d.Bounds.MaxLat != 1.5 {
		t.Errorf("unexpected diff: %+v", d)
	}
}

func TestGraphQL_Platforms(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(`{"query":"{ platforms { name label } }"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	body := string(readBody(t, resp.Body))
	if !strings.Contains(body, "OpenHistoricalMap") || !strings.Contains(body, `"osm"`) {
		t.Errorf("unexpected response: %s", body)
	}
}

func TestGraphQL_BadBody(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("POST", "/graphql", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- WebSocket ----

func TestWebSocket_RequiresUpgrade(t *testing.T) {
	app := setupApp(makeDeps())

	resp, _ := app.Test(httptest.NewRequest("GET", "/ws", nil), -1)
	if resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Errorf("expected 426, got %d", resp.StatusCode)
	}
}
