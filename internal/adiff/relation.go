package adiff

import (
	"github.com/JOSM/changeset-viewer/internal/core/domain"
	"github.com/JOSM/changeset-viewer/internal/pkg/geospatial"
)

// Rectangle adds the closed bounding rectangle of coords to ds as a polyline
// tagged with the relation variant of action. The ring runs
// (min,min) -> (min,max) -> (max,max) -> (max,min) -> (min,min).
// It returns nil and adds nothing when coords is empty.
func Rectangle(ds *domain.Dataset, coords []domain.GeoPoint, tags map[string]string, action domain.Action) *domain.Polyline {
	var box *domain.Bounds
	for _, c := range coords {
		box = box.Extend(c)
	}
	if box == nil {
		return nil
	}

	ring := geospatial.Ring(box.MinLat, box.MinLon, box.MaxLat, box.MaxLon)
	corners := make([]domain.GeoPoint, len(ring))
	for i, c := range ring {
		corners[i] = domain.GeoPoint{Lat: c[0], Lon: c[1]}
	}
	return ds.AddPolyline(corners, tags, action.Relation())
}
