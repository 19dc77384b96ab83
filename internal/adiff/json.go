package adiff

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/JOSM/changeset-viewer/internal/core/domain"
)

// ParseJSON builds a dataset from a JSON adiff: a root object holding an
// "elements" array of records keyed by "type" and "action", with the prior
// state nested under "old".
//
// Coordinates may be JSON numbers or numeric strings. A delete without "old"
// emits nothing; a modify without "old" emits only its new state.
func ParseJSON(data []byte) domain.BoundedDataset {
	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		slog.Warn("adiff: unparsable json document", "error", err, "bytes", len(data))
		return domain.EmptyBoundedDataset()
	}
	obj, ok := root.(map[string]any)
	if !ok {
		slog.Warn("adiff: json root is not an object", "type", fmt.Sprintf("%T", root))
		return domain.EmptyBoundedDataset()
	}

	b := newBuilder(domain.FormatJSON)
	elements, _ := obj["elements"].([]any)
	for _, raw := range elements {
		rec, ok := raw.(map[string]any)
		if !ok {
			b.skip("element is not an object", "")
			continue
		}
		typ := jsonString(rec["type"])
		tags := jsonTags(rec["tags"])
		old, _ := rec["old"].(map[string]any)

		switch action := jsonString(rec["action"]); action {
		case "create":
			b.jsonElement(typ, rec, tags, domain.ActionCreate)
		case "delete":
			if old == nil {
				b.skip("delete without old state", domain.ActionDelete)
				continue
			}
			b.jsonElement(typ, old, ownTags(old, tags), domain.ActionDelete)
		case "modify":
			b.jsonElement(typ, rec, tags, domain.ActionModifyNew)
			if old != nil {
				b.jsonElement(typ, old, ownTags(old, tags), domain.ActionModifyOld)
			}
		default:
			b.skip("unknown action type "+action, "")
		}
	}
	return b.result()
}

func (b *builder) jsonElement(typ string, rec map[string]any, tags map[string]string, action domain.Action) {
	switch typ {
	case "node":
		coord, ok := jsonCoord(rec)
		b.point(coord, ok, tags, action)
	case "way":
		b.way(jsonNodes(rec["nodes"]), tags, action)
	case "relation":
		var coords []domain.GeoPoint
		members, _ := rec["members"].([]any)
		for _, raw := range members {
			m, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			switch jsonString(m["type"]) {
			case "way":
				coords = append(coords, jsonNodes(m["nodes"])...)
			case "node":
				if c, ok := jsonCoord(m); ok {
					coords = append(coords, c)
				}
			}
		}
		b.relation(coords, tags, action)
	default:
		b.skip("unknown element type "+typ, action)
	}
}

// jsonNodes resolves a "nodes" array. Entries without usable coordinates are
// dropped.
func jsonNodes(v any) []domain.GeoPoint {
	nodes, _ := v.([]any)
	coords := make([]domain.GeoPoint, 0, len(nodes))
	for _, raw := range nodes {
		n, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if c, ok := jsonCoord(n); ok {
			coords = append(coords, c)
		}
	}
	return coords
}

func jsonCoord(rec map[string]any) (domain.GeoPoint, bool) {
	lat, ok := jsonFloat(rec["lat"])
	if !ok {
		return domain.GeoPoint{}, false
	}
	lon, ok := jsonFloat(rec["lon"])
	if !ok {
		return domain.GeoPoint{}, false
	}
	return domain.GeoPoint{Lat: lat, Lon: lon}, true
}

func jsonFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		return parseCoord(x)
	}
	return 0, false
}

func jsonString(v any) string {
	s, _ := v.(string)
	return s
}

// jsonTags flattens a tags object to strings. Non-string values keep their
// JSON encoding; nulls are dropped.
func jsonTags(v any) map[string]string {
	obj, _ := v.(map[string]any)
	tags := make(map[string]string, len(obj))
	for k, raw := range obj {
		switch x := raw.(type) {
		case nil:
		case string:
			tags[k] = x
		default:
			if enc, err := json.Marshal(x); err == nil {
				tags[k] = string(enc)
			}
		}
	}
	return tags
}

// ownTags prefers the tags carried by rec, falling back to the outer record's.
func ownTags(rec map[string]any, outer map[string]string) map[string]string {
	if _, ok := rec["tags"].(map[string]any); ok {
		return jsonTags(rec["tags"])
	}
	return outer
}
