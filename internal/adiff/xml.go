package adiff

import (
	"log/slog"

	"github.com/beevik/etree"

	"github.com/JOSM/changeset-viewer/internal/core/domain"
)

// ParseXML builds a dataset from an Overpass augmented diff.
//
// Each top-level <action> is handled by its type attribute: create takes the
// wrapped element, delete takes the element inside <old>, and modify emits
// both the <old> and the <new> element. Unknown action types and element
// names are skipped.
func ParseXML(data []byte) domain.BoundedDataset {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		slog.Warn("adiff: unparsable xml document", "error", err, "bytes", len(data))
		return domain.EmptyBoundedDataset()
	}
	root := doc.Root()
	if root == nil {
		slog.Warn("adiff: xml document has no root element", "bytes", len(data))
		return domain.EmptyBoundedDataset()
	}

	b := newBuilder(domain.FormatXML)
	for _, act := range root.SelectElements("action") {
		switch typ := act.SelectAttrValue("type", ""); typ {
		case "create":
			el := wrapped(act)
			if el == nil {
				el = wrapped(act.SelectElement("new"))
			}
			b.xmlElement(el, domain.ActionCreate)
		case "delete":
			b.xmlElement(wrapped(act.SelectElement("old")), domain.ActionDelete)
		case "modify":
			b.xmlElement(wrapped(act.SelectElement("old")), domain.ActionModifyOld)
			b.xmlElement(wrapped(act.SelectElement("new")), domain.ActionModifyNew)
		default:
			b.skip("unknown action type "+typ, "")
		}
	}
	return b.result()
}

// wrapped returns the first node, way or relation child of container.
func wrapped(container *etree.Element) *etree.Element {
	if container == nil {
		return nil
	}
	for _, child := range container.ChildElements() {
		switch child.Tag {
		case "node", "way", "relation":
			return child
		}
	}
	return nil
}

func (b *builder) xmlElement(el *etree.Element, action domain.Action) {
	if el == nil {
		b.skip("action without element", action)
		return
	}
	tags := xmlTags(el)
	switch el.Tag {
	case "node":
		coord, ok := xmlCoord(el)
		b.point(coord, ok, tags, action)
	case "way":
		b.way(xmlNds(el), tags, action)
	case "relation":
		var coords []domain.GeoPoint
		for _, m := range el.SelectElements("member") {
			switch m.SelectAttrValue("type", "") {
			case "way":
				coords = append(coords, xmlNds(m)...)
			case "node":
				if c, ok := xmlCoord(m); ok {
					coords = append(coords, c)
				}
			}
		}
		b.relation(coords, tags, action)
	default:
		b.skip("unknown element type "+el.Tag, action)
	}
}

// xmlNds resolves the inline coordinates of the <nd> children of el.
// Children without usable coordinates are dropped.
func xmlNds(el *etree.Element) []domain.GeoPoint {
	nds := el.SelectElements("nd")
	coords := make([]domain.GeoPoint, 0, len(nds))
	for _, nd := range nds {
		if c, ok := xmlCoord(nd); ok {
			coords = append(coords, c)
		}
	}
	return coords
}

func xmlCoord(el *etree.Element) (domain.GeoPoint, bool) {
	lat, ok := parseCoord(el.SelectAttrValue("lat", ""))
	if !ok {
		return domain.GeoPoint{}, false
	}
	lon, ok := parseCoord(el.SelectAttrValue("lon", ""))
	if !ok {
		return domain.GeoPoint{}, false
	}
	return domain.GeoPoint{Lat: lat, Lon: lon}, true
}

func xmlTags(el *etree.Element) map[string]string {
	tags := make(map[string]string)
	for _, t := range el.SelectElements("tag") {
		k := t.SelectAttrValue("k", "")
		if k == "" {
			continue
		}
		tags[k] = t.SelectAttrValue("v", "")
	}
	return tags
}
