package domain

// Kind tells the two primitive variants apart.
type Kind int

const (
	KindPoint Kind = iota + 1
	KindPolyline
)

func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindPolyline:
		return "polyline"
	}
	return "unknown"
}

// Point is a coordinate owned by exactly one Dataset.
type Point struct {
	Coord GeoPoint
	Tags  map[string]string
}

// Action returns the action tag of the point.
func (p *Point) Action() Action {
	return Action(p.Tags[ActionKey])
}

// Polyline orders references to Points held by the same Dataset.
type Polyline struct {
	Points []*Point
	Tags   map[string]string
}

// Action returns the action tag of the polyline.
func (l *Polyline) Action() Action {
	return Action(l.Tags[ActionKey])
}

// Coords returns the coordinates of the polyline in order.
func (l *Polyline) Coords() []GeoPoint {
	out := make([]GeoPoint, len(l.Points))
	for i, p := range l.Points {
		out[i] = p.Coord
	}
	return out
}

// Primitive is the closed variant handed to renderers. Exactly one of
// Point or Polyline is set, selected by Kind.
type Primitive struct {
	Kind     Kind
	Action   Action
	Point    *Point
	Polyline *Polyline
}

// Dataset owns every Point and Polyline produced by one build.
// It is not safe for concurrent mutation and is read-only once returned.
type Dataset struct {
	points     []*Point
	polylines  []*Polyline
	primitives []Primitive
}

// NewDataset creates an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{}
}

// AddPoint allocates a standalone point. The action is written under ActionKey,
// overriding any tag of the same name.
func (d *Dataset) AddPoint(coord GeoPoint, tags map[string]string, action Action) *Point {
	p := d.newPoint(coord, tagsWithAction(tags, action))
	d.primitives = append(d.primitives, Primitive{Kind: KindPoint, Action: action, Point: p})
	return p
}

// AddPolyline allocates a polyline over fresh points, one per coordinate.
// Fewer than two coordinates yield nil and leave the dataset untouched.
func (d *Dataset) AddPolyline(coords []GeoPoint, tags map[string]string, action Action) *Polyline {
	if len(coords) < 2 {
		return nil
	}
	l := &Polyline{
		Points: make([]*Point, 0, len(coords)),
		Tags:   tagsWithAction(tags, action),
	}
	for _, c := range coords {
		l.Points = append(l.Points, d.newPoint(c, map[string]string{ActionKey: string(action)}))
	}
	d.polylines = append(d.polylines, l)
	d.primitives = append(d.primitives, Primitive{Kind: KindPolyline, Action: action, Polyline: l})
	return l
}

func (d *Dataset) newPoint(coord GeoPoint, tags map[string]string) *Point {
	p := &Point{Coord: coord, Tags: tags}
	d.points = append(d.points, p)
	return p
}

// Primitives returns standalone points and polylines in build order.
func (d *Dataset) Primitives() []Primitive {
	if d == nil {
		return nil
	}
	return d.primitives
}

// Points returns every owned point, including polyline members.
func (d *Dataset) Points() []*Point {
	if d == nil {
		return nil
	}
	return d.points
}

// Polylines returns every polyline in build order.
func (d *Dataset) Polylines() []*Polyline {
	if d == nil {
		return nil
	}
	return d.polylines
}

// Len returns the number of primitives.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.primitives)
}

// CountByAction tallies primitives per action.
func (d *Dataset) CountByAction() map[Action]int {
	out := make(map[Action]int)
	for _, p := range d.Primitives() {
		out[p.Action]++
	}
	return out
}

// Bounds accumulates the coordinates of every owned point.
func (d *Dataset) Bounds() *Bounds {
	var b *Bounds
	for _, p := range d.Points() {
		b = b.Extend(p.Coord)
	}
	return b
}

func tagsWithAction(tags map[string]string, action Action) map[string]string {
	out := make(map[string]string, len(tags)+1)
	for k, v := range tags {
		out[k] = v
	}
	out[ActionKey] = string(action)
	return out
}

// BoundedDataset is the result of one diff build.
type BoundedDataset struct {
	Dataset *Dataset
	Bounds  *Bounds
}

// NewBoundedDataset seals d and computes its bounds.
func NewBoundedDataset(d *Dataset) BoundedDataset {
	return BoundedDataset{Dataset: d, Bounds: d.Bounds()}
}

// EmptyBoundedDataset is returned when a diff could not be read.
func EmptyBoundedDataset() BoundedDataset {
	return BoundedDataset{Dataset: NewDataset()}
}

// Empty reports whether the build produced nothing to show.
func (b BoundedDataset) Empty() bool {
	return b.Dataset.Len() == 0
}
