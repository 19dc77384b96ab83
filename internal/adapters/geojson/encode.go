// Package geojson renders a BoundedDataset as a GeoJSON FeatureCollection
// for map clients. Every feature carries its tags plus the style a client
// needs to draw it.
package geojson

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/JOSM/changeset-viewer/internal/core/domain"
)

// Property keys added to every feature.
const (
	PropAction = "action"
	PropKind   = "kind"
	PropClass  = "class"
	PropColor  = "color"
	PropDashed = "dashed"
)

// Encode converts bd to a FeatureCollection. The collection bbox is set
// from the dataset bounds when there are any.
func Encode(bd domain.BoundedDataset) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range bd.Dataset.Primitives() {
		var f *geojson.Feature
		var tags map[string]string
		switch p.Kind {
		case domain.KindPoint:
			f = geojson.NewFeature(p.Point.Coord.Point())
			tags = p.Point.Tags
		case domain.KindPolyline:
			ls := make(orb.LineString, 0, len(p.Polyline.Points))
			for _, pt := range p.Polyline.Points {
				ls = append(ls, pt.Coord.Point())
			}
			f = geojson.NewFeature(ls)
			tags = p.Polyline.Tags
		default:
			continue
		}

		for k, v := range tags {
			f.Properties[k] = v
		}
		f.Properties[PropAction] = string(p.Action)
		f.Properties[PropKind] = p.Kind.String()
		if s, ok := domain.StyleFor(p.Action); ok {
			f.Properties[PropClass] = string(s.Class)
			f.Properties[PropColor] = s.Color
			f.Properties[PropDashed] = s.Dashed
		}
		fc.Append(f)
	}
	if bd.Bounds != nil {
		fc.BBox = geojson.NewBBox(bd.Bounds.Bound())
	}
	return fc
}
