// Package adiff turns augmented diffs into action-tagged geometry.
//
// Two wire formats are understood: the Overpass augmented-diff XML and the
// JSON adiff produced by changeset feeds. Both drive the same builder, so a
// given change yields the same primitives whichever format carried it.
// Malformed documents never surface as errors; they produce an empty result.
package adiff

import (
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/JOSM/changeset-viewer/internal/core/domain"
)

// builder collects the primitives of one build into a fresh Dataset.
type builder struct {
	ds      *domain.Dataset
	log     *slog.Logger
	skipped int
}

func newBuilder(format domain.DiffFormat) *builder {
	return &builder{
		ds:  domain.NewDataset(),
		log: slog.Default().With("component", "adiff", "format", string(format)),
	}
}

func (b *builder) point(coord domain.GeoPoint, ok bool, tags map[string]string, action domain.Action) {
	if !ok {
		b.skip("node without usable coordinates", action)
		return
	}
	b.ds.AddPoint(coord, tags, action)
}

func (b *builder) way(coords []domain.GeoPoint, tags map[string]string, action domain.Action) {
	if b.ds.AddPolyline(coords, tags, action) == nil {
		b.skip("way with fewer than two coordinates", action)
	}
}

func (b *builder) relation(coords []domain.GeoPoint, tags map[string]string, action domain.Action) {
	if Rectangle(b.ds, coords, tags, action) == nil {
		b.skip("relation without member coordinates", action)
	}
}

func (b *builder) skip(reason string, action domain.Action) {
	b.skipped++
	b.log.Debug("skipping element", "reason", reason, "action", string(action))
}

func (b *builder) result() domain.BoundedDataset {
	out := domain.NewBoundedDataset(b.ds)
	if b.skipped > 0 {
		b.log.Info("diff built with skipped elements",
			"primitives", out.Dataset.Len(),
			"skipped", b.skipped,
		)
	}
	return out
}

// parseCoord parses one textual coordinate component.
func parseCoord(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
