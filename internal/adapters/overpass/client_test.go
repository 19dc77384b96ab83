package overpass_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/JOSM/changeset-viewer/internal/adapters/overpass"
	"github.com/JOSM/changeset-viewer/internal/core/domain"
)

type mockPoster struct {
	postFn func(ctx context.Context, u string, form url.Values, timeout time.Duration) ([]byte, error)
}

func (m *mockPoster) PostForm(ctx context.Context, u string, form url.Values, timeout time.Duration) ([]byte, error) {
	return m.postFn(ctx, u, form, timeout)
}

var window = domain.TimeWindow{
	Start: time.Date(2024, 6, 1, 11, 59, 59, 0, time.UTC),
	End:   time.Date(2024, 6, 1, 12, 10, 1, 0, time.UTC),
}

var platform = domain.Platform{Name: "osm", OverpassURL: "https://overpass.example.org/api/interpreter"}

func TestBuildQuery(t *testing.T) {
	bbox := &domain.Bounds{MinLat: 43.2, MinLon: -2.9, MaxLat: 43.3, MaxLon: -2.8}
	got := overpass.BuildQuery(window, bbox, 180*time.Second)
	want := `[out:xml][timeout:180][adiff:"2024-06-01T11:59:59Z","2024-06-01T12:10:01Z"];` +
		`(node(43.2000000,-2.9000000,43.3000000,-2.8000000)(changed);` +
		`way(43.2000000,-2.9000000,43.3000000,-2.8000000)(changed);` +
		`relation(43.2000000,-2.9000000,43.3000000,-2.8000000)(changed););` +
		`out meta geom(43.2000000,-2.9000000,43.3000000,-2.8000000);`
	if got != want {
		t.Errorf("query mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestBuildQuery_NoBBox(t *testing.T) {
	got := overpass.BuildQuery(window, nil, 60*time.Second)
	if !strings.Contains(got, "(node(changed);way(changed);relation(changed););out meta geom;") {
		t.Errorf("query = %s", got)
	}
	if !strings.HasPrefix(got, "[out:xml][timeout:60]") {
		t.Errorf("query = %s", got)
	}
}

func TestAugmentedDiff_TransportTimeoutExceedsQueryTimeout(t *testing.T) {
	var gotTimeout time.Duration
	var gotQuery string
	p := &mockPoster{postFn: func(ctx context.Context, u string, form url.Values, timeout time.Duration) ([]byte, error) {
		gotTimeout = timeout
		gotQuery = form.Get("data")
		return []byte("<osm/>"), nil
	}}
	c := overpass.NewClient(p, overpass.DefaultOptions())

	if _, err := c.AugmentedDiff(context.Background(), platform, window, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotTimeout != 190*time.Second {
		t.Errorf("transport timeout = %v", gotTimeout)
	}
	if !strings.Contains(gotQuery, "[timeout:180]") {
		t.Errorf("query = %s", gotQuery)
	}
}

func TestAugmentedDiff_Remarks(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"timeout", `<osm><remark> runtime error: Query timed out in "recurse" at line 1 after 181 seconds. </remark></osm>`, domain.ErrTimeout},
		{"memory", `<osm><remark>runtime error: Query run out of memory using about 2048 MB of RAM.</remark></osm>`, domain.ErrTooLarge},
		{"other", `<osm><remark>runtime error: something else</remark></osm>`, domain.ErrTransport},
		{"informational", `<osm><remark>runtime remark: Timeout is ignored</remark></osm>`, nil},
		{"none", `<osm><action type="create"><node lat="1" lon="1"/></action></osm>`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mockPoster{postFn: func(ctx context.Context, u string, form url.Values, timeout time.Duration) ([]byte, error) {
				return []byte(tt.body), nil
			}}
			_, err := overpass.NewClient(p, overpass.Options{}).AugmentedDiff(context.Background(), platform, window, nil)
			if tt.want == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestAugmentedDiff_NoQueryService(t *testing.T) {
	c := overpass.NewClient(&mockPoster{}, overpass.Options{})
	_, err := c.AugmentedDiff(context.Background(), domain.Platform{Name: "x"}, window, nil)
	if !errors.Is(err, domain.ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
}
