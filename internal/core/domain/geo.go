package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Point returns the coordinate in orb's lon/lat order.
func (p GeoPoint) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// Bounds represents a geographic bounding box.
// A nil *Bounds means no coordinate has contributed yet.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Extend returns a box grown to include p. It never mutates the receiver,
// and a nil receiver yields the degenerate box at p.
func (b *Bounds) Extend(p GeoPoint) *Bounds {
	if b == nil {
		return boundsFromOrb(p.Point().Bound())
	}
	return boundsFromOrb(b.Bound().Extend(p.Point()))
}

// Union returns the smallest box covering both b and o. Either may be nil.
func (b *Bounds) Union(o *Bounds) *Bounds {
	switch {
	case b == nil && o == nil:
		return nil
	case b == nil:
		c := *o
		return &c
	case o == nil:
		c := *b
		return &c
	}
	return boundsFromOrb(b.Bound().Union(o.Bound()))
}

// Contains reports whether p lies inside the box (edges included).
func (b *Bounds) Contains(p GeoPoint) bool {
	if b == nil {
		return false
	}
	return b.Bound().Contains(p.Point())
}

// Bound converts the box to an orb.Bound.
func (b Bounds) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}

// Overpass formats the box as an Overpass QL bbox filter body: south,west,north,east.
func (b Bounds) Overpass() string {
	return fmt.Sprintf("%.7f,%.7f,%.7f,%.7f", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
}

// APIString formats the box the way the OSM API expects it: west,south,east,north.
func (b Bounds) APIString() string {
	return fmt.Sprintf("%.7f,%.7f,%.7f,%.7f", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

// ParseAPIBounds reads a "west,south,east,north" box as the OSM API writes
// it. Malformed, out-of-range and inverted boxes wrap ErrInvalidQuery.
func ParseAPIBounds(s string) (Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Bounds{}, fmt.Errorf("bbox must be min_lon,min_lat,max_lon,max_lat: %w", ErrInvalidQuery)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return Bounds{}, fmt.Errorf("bbox value %q: %w", p, ErrInvalidQuery)
		}
		v[i] = f
	}
	b := Bounds{MinLon: v[0], MinLat: v[1], MaxLon: v[2], MaxLat: v[3]}
	if b.MinLat < -90 || b.MaxLat > 90 || b.MinLon < -180 || b.MaxLon > 180 {
		return Bounds{}, fmt.Errorf("bbox out of range: %w", ErrInvalidQuery)
	}
	if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
		return Bounds{}, fmt.Errorf("bbox is inverted: %w", ErrInvalidQuery)
	}
	return b, nil
}

func boundsFromOrb(ob orb.Bound) *Bounds {
	return &Bounds{
		MinLat: ob.Min.Lat(),
		MinLon: ob.Min.Lon(),
		MaxLat: ob.Max.Lat(),
		MaxLon: ob.Max.Lon(),
	}
}

// TimeWindow is a closed time interval used to query diffs.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// PaddedWindow widens [created, closed] by pad on each side so that edits made
// exactly on the boundary second are not excluded by the query service.
func PaddedWindow(created, closed time.Time, pad time.Duration) TimeWindow {
	return TimeWindow{
		Start: created.Add(-pad),
		End:   closed.Add(pad),
	}
}
