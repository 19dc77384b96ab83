package http

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/JOSM/changeset-viewer/internal/adapters/geojson"
	"github.com/JOSM/changeset-viewer/internal/core/domain"
)

// platformFrom resolves the ?platform= parameter, falling back to the
// configured default.
func platformFrom(c *fiber.Ctx, deps *Dependencies) (domain.Platform, error) {
	return deps.Config.Platform(c.Query("platform"))
}

// changesetID parses the :id route parameter.
func changesetID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("changeset id must be a positive integer: %w", domain.ErrInvalidQuery)
	}
	return id, nil
}

// ListPlatformsHandler returns the configured platforms.
func ListPlatformsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		names := deps.Config.PlatformNames()
		out := make([]domain.Platform, 0, len(names))
		for _, name := range names {
			p, err := deps.Config.Platform(name)
			if err != nil {
				return errInternal(c, err.Error())
			}
			out = append(out, p)
		}
		c.Set("Cache-Control", "public, max-age=3600")
		return c.JSON(out)
	}
}

// ListChangesetsHandler lists closed changesets in a bbox, or around a
// point when lat/lon/radius are given instead.
func ListChangesetsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		platform, err := platformFrom(c, deps)
		if err != nil {
			return errFromDomain(c, err)
		}
		offset, limit := pageParams(c, 20, 100)

		var list []domain.Changeset
		switch {
		case c.Query("bbox") != "":
			bbox, err := domain.ParseAPIBounds(c.Query("bbox"))
			if err != nil {
				return errFromDomain(c, err)
			}
			list, err = deps.Listing.InArea(c.UserContext(), platform, domain.ChangesetQuery{
				Bounds: &bbox,
				User:   c.Query("user"),
			})
			if err != nil {
				return errFromDomain(c, err)
			}
		case c.Query("lat") != "" && c.Query("lon") != "":
			lat := c.QueryFloat("lat", 0)
			lon := c.QueryFloat("lon", 0)
			radius := c.QueryFloat("radius", 1000)
			if radius <= 0 || radius > 50000 {
				return errBadRequest(c, "radius must be between 1 and 50000 meters")
			}
			list, err = deps.Listing.Near(c.UserContext(), platform, lat, lon, radius, 0)
			if err != nil {
				return errFromDomain(c, err)
			}
		default:
			return errBadRequest(c, "bbox or lat and lon are required")
		}

		page, pg := paginate(list, offset, limit)
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

// GetChangesetHandler returns the metadata of one changeset.
func GetChangesetHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		platform, err := platformFrom(c, deps)
		if err != nil {
			return errFromDomain(c, err)
		}
		id, err := changesetID(c)
		if err != nil {
			return errFromDomain(c, err)
		}

		cs, err := deps.Listing.Get(c.UserContext(), platform, id)
		if err != nil {
			return errFromDomain(c, err)
		}
		if cs.Open {
			c.Set("Cache-Control", "no-cache")
		} else {
			c.Set("Cache-Control", "public, max-age=3600")
		}
		return c.JSON(cs)
	}
}

// ChangesetDiffHandler acquires the diff of a changeset and returns it as a
// GeoJSON FeatureCollection, or as a load summary with ?format=summary.
func ChangesetDiffHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		platform, err := platformFrom(c, deps)
		if err != nil {
			return errFromDomain(c, err)
		}
		id, err := changesetID(c)
		if err != nil {
			return errFromDomain(c, err)
		}
		format := c.Query("format", "geojson")
		if format != "geojson" && format != "summary" {
			return errBadRequest(c, "format must be geojson or summary")
		}

		acq, err := deps.Acquisition.Acquire(c.UserContext(), platform, id)
		if err != nil {
			return errFromDomain(c, err)
		}
		if acq.Empty() {
			return errNotFound(c, notProcessedMessage(id))
		}

		c.Set("X-Diff-Source", string(acq.Source))
		if acq.Changeset != nil && acq.Changeset.Open {
			c.Set("Cache-Control", "no-cache")
		} else {
			c.Set("Cache-Control", "public, max-age=3600")
		}

		if format == "summary" {
			return c.JSON(acq.Summary())
		}
		c.Set(fiber.HeaderContentType, "application/geo+json")
		data, err := geojson.Encode(acq.BoundedDataset).MarshalJSON()
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.Send(data)
	}
}

// RecentLoadsHandler returns the latest load summaries seen on the event bus.
func RecentLoadsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Recent == nil {
			return c.JSON([]domain.LoadSummary{})
		}
		c.Set("Cache-Control", "no-cache")
		return c.JSON(deps.Recent.List(c.Query("platform")))
	}
}

func notProcessedMessage(id int64) string {
	return fmt.Sprintf("changeset %d has not been processed yet or has no drawable changes", id)
}
