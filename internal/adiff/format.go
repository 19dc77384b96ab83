package adiff

import (
	"fmt"

	"github.com/JOSM/changeset-viewer/internal/core/domain"
)

// Parse dispatches data to the parser for format.
func Parse(format domain.DiffFormat, data []byte) (domain.BoundedDataset, error) {
	switch format {
	case domain.FormatXML:
		return ParseXML(data), nil
	case domain.FormatJSON:
		return ParseJSON(data), nil
	}
	return domain.EmptyBoundedDataset(), fmt.Errorf("adiff: unsupported format %q", format)
}
