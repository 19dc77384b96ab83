package http

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/JOSM/changeset-viewer/internal/adapters/geojson"
	"github.com/JOSM/changeset-viewer/internal/core/domain"
	"github.com/JOSM/changeset-viewer/internal/core/usecases"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	boundsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bounds",
		Fields: graphql.Fields{
			"min_lat": &graphql.Field{Type: graphql.Float},
			"min_lon": &graphql.Field{Type: graphql.Float},
			"max_lat": &graphql.Field{Type: graphql.Float},
			"max_lon": &graphql.Field{Type: graphql.Float},
		},
	})

	feedType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Feed",
		Fields: graphql.Fields{
			"url":    &graphql.Field{Type: graphql.String},
			"format": &graphql.Field{Type: graphql.String},
		},
	})

	platformType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Platform",
		Fields: graphql.Fields{
			"name":          &graphql.Field{Type: graphql.String},
			"label":         &graphql.Field{Type: graphql.String},
			"api_url":       &graphql.Field{Type: graphql.String},
			"overpass_url":  &graphql.Field{Type: graphql.String},
			"changeset_url": &graphql.Field{Type: graphql.String},
			"feeds":         &graphql.Field{Type: graphql.NewList(feedType)},
		},
	})

	changesetType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Changeset",
		Fields: graphql.Fields{
			"id":            &graphql.Field{Type: graphql.Int},
			"user":          &graphql.Field{Type: graphql.String},
			"created_at":    &graphql.Field{Type: graphql.DateTime},
			"closed_at":     &graphql.Field{Type: graphql.DateTime},
			"open":          &graphql.Field{Type: graphql.Boolean},
			"changes_count": &graphql.Field{Type: graphql.Int},
			"comment":       &graphql.Field{Type: graphql.String},
			"bounds":        &graphql.Field{Type: boundsType},
			"web_url":       &graphql.Field{Type: graphql.String},
		},
	})

	actionCountType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ActionCount",
		Fields: graphql.Fields{
			"action": &graphql.Field{Type: graphql.String},
			"count":  &graphql.Field{Type: graphql.Int},
		},
	})

	diffType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Diff",
		Fields: graphql.Fields{
			"changeset_id": &graphql.Field{Type: graphql.Int},
			"platform":     &graphql.Field{Type: graphql.String},
			"source":       &graphql.Field{Type: graphql.String},
			"format":       &graphql.Field{Type: graphql.String},
			"primitives":   &graphql.Field{Type: graphql.Int},
			"actions":      &graphql.Field{Type: graphql.NewList(actionCountType)},
			"bounds":       &graphql.Field{Type: boundsType},
			"geojson": &graphql.Field{
				Type:        graphql.String,
				Description: "FeatureCollection as a JSON string",
			},
		},
	})

	platformArg := &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"platforms": &graphql.Field{
				Type:        graphql.NewList(platformType),
				Description: "List configured mapping platforms",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var out []domain.Platform
					for _, name := range deps.Config.PlatformNames() {
						pl, err := deps.Config.Platform(name)
						if err != nil {
							return nil, err
						}
						out = append(out, pl)
					}
					return out, nil
				},
			},
			"changeset": &graphql.Field{
				Type:        changesetType,
				Description: "Get the metadata of a changeset",
				Args: graphql.FieldConfigArgument{
					"id":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"platform": platformArg,
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					platform, err := deps.Config.Platform(p.Args["platform"].(string))
					if err != nil {
						return nil, err
					}
					return deps.Listing.Get(p.Context, platform, int64(p.Args["id"].(int)))
				},
			},
			"changesets": &graphql.Field{
				Type:        graphql.NewList(changesetType),
				Description: "List closed changesets in a bounding box",
				Args: graphql.FieldConfigArgument{
					"min_lon":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"min_lat":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"max_lon":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"max_lat":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"user":     &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"limit":    &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
					"platform": platformArg,
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					platform, err := deps.Config.Platform(p.Args["platform"].(string))
					if err != nil {
						return nil, err
					}
					return deps.Listing.InArea(p.Context, platform, domain.ChangesetQuery{
						Bounds: &domain.Bounds{
							MinLon: p.Args["min_lon"].(float64),
							MinLat: p.Args["min_lat"].(float64),
							MaxLon: p.Args["max_lon"].(float64),
							MaxLat: p.Args["max_lat"].(float64),
						},
						User:  p.Args["user"].(string),
						Limit: p.Args["limit"].(int),
					})
				},
			},
			"diff": &graphql.Field{
				Type:        diffType,
				Description: "Acquire the diff of a changeset",
				Args: graphql.FieldConfigArgument{
					"id":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"platform": platformArg,
					"geojson":  &graphql.ArgumentConfig{Type: graphql.Boolean, DefaultValue: false},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					platform, err := deps.Config.Platform(p.Args["platform"].(string))
					if err != nil {
						return nil, err
					}
					id := int64(p.Args["id"].(int))
					return resolveDiff(p.Context, deps.Acquisition, platform, id, p.Args["geojson"].(bool))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// resolveDiff converts an acquisition to the Diff object.
func resolveDiff(ctx context.Context, acq usecases.Acquirer, platform domain.Platform, id int64, withGeoJSON bool) (interface{}, error) {
	res, err := acq.Acquire(ctx, platform, id)
	if err != nil {
		return nil, err
	}
	if res.Empty() {
		return nil, fmt.Errorf("%s: %w", notProcessedMessage(id), domain.ErrNotFound)
	}

	s := res.Summary()
	counts := make([]map[string]interface{}, 0, len(s.Actions))
	for _, a := range domain.Actions {
		if n := s.Actions[a]; n > 0 {
			counts = append(counts, map[string]interface{}{"action": string(a), "count": n})
		}
	}
	out := map[string]interface{}{
		"changeset_id": s.ChangesetID,
		"platform":     s.Platform,
		"source":       string(s.Source),
		"format":       string(s.Format),
		"primitives":   s.Primitives,
		"actions":      counts,
		"bounds":       s.Bounds,
	}
	if withGeoJSON {
		data, err := geojson.Encode(res.BoundedDataset).MarshalJSON()
		if err != nil {
			return nil, err
		}
		out["geojson"] = string(data)
	}
	return out, nil
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
