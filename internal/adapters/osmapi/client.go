// Package osmapi reads changeset metadata from an OSM API 0.6 endpoint.
package osmapi

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/paulmach/osm"

	"github.com/JOSM/changeset-viewer/internal/core/domain"
)

// Getter fetches a URL body.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Client implements ports.ChangesetSource.
type Client struct {
	http Getter
}

// NewClient creates a new Client.
func NewClient(http Getter) *Client {
	return &Client{http: http}
}

// Changeset fetches the metadata of one changeset.
func (c *Client) Changeset(ctx context.Context, platform domain.Platform, id int64) (*domain.Changeset, error) {
	body, err := c.http.Get(ctx, platform.ChangesetAPIURL(id))
	if err != nil {
		return nil, err
	}
	list, err := decode(body)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("changeset %d: %w", id, domain.ErrNotFound)
	}
	return &list[0], nil
}

// Changesets lists changesets matching q, newest first.
func (c *Client) Changesets(ctx context.Context, platform domain.Platform, q domain.ChangesetQuery) ([]domain.Changeset, error) {
	params := url.Values{}
	if q.Bounds != nil {
		params.Set("bbox", q.Bounds.APIString())
	}
	if q.User != "" {
		params.Set("display_name", q.User)
	}
	if q.Closed {
		params.Set("closed", "true")
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	u := strings.TrimSuffix(platform.APIURL, "/") + "/changesets?" + params.Encode()
	body, err := c.http.Get(ctx, u)
	if err != nil {
		return nil, err
	}
	return decode(body)
}

func decode(body []byte) ([]domain.Changeset, error) {
	var doc osm.OSM
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode changesets: %v: %w", err, domain.ErrTransport)
	}
	out := make([]domain.Changeset, 0, len(doc.Changesets))
	for _, cs := range doc.Changesets {
		out = append(out, toDomain(cs))
	}
	return out, nil
}

func toDomain(cs *osm.Changeset) domain.Changeset {
	out := domain.Changeset{
		ID:           int64(cs.ID),
		User:         cs.User,
		CreatedAt:    cs.CreatedAt,
		ClosedAt:     cs.ClosedAt,
		Open:         cs.Open,
		ChangesCount: cs.ChangesCount,
		Comment:      cs.Tags.Find("comment"),
	}
	if cs.MinLat != 0 || cs.MaxLat != 0 || cs.MinLon != 0 || cs.MaxLon != 0 {
		out.Bounds = &domain.Bounds{
			MinLat: cs.MinLat,
			MinLon: cs.MinLon,
			MaxLat: cs.MaxLat,
			MaxLon: cs.MaxLon,
		}
	}
	return out
}
