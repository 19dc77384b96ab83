package domain

import (
	"fmt"
	"strings"
	"time"
)

// Changeset is the metadata of one edit transaction.
type Changeset struct {
	ID           int64     `json:"id"`
	User         string    `json:"user,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	ClosedAt     time.Time `json:"closed_at,omitempty"`
	Open         bool      `json:"open"`
	ChangesCount int       `json:"changes_count"`
	Comment      string    `json:"comment,omitempty"`
	Bounds       *Bounds   `json:"bounds,omitempty"`
	WebURL       string    `json:"web_url,omitempty"`
}

// Window returns the padded query window, or ErrNoData when either
// timestamp is missing.
func (c *Changeset) Window(pad time.Duration) (TimeWindow, error) {
	if c.CreatedAt.IsZero() || c.ClosedAt.IsZero() {
		return TimeWindow{}, fmt.Errorf("changeset %d: %w", c.ID, ErrNoData)
	}
	return PaddedWindow(c.CreatedAt, c.ClosedAt, pad), nil
}

// DiffFormat names the wire format of a diff document.
type DiffFormat string

const (
	FormatXML  DiffFormat = "xml"
	FormatJSON DiffFormat = "json"
)

// Valid reports whether f is a supported format.
func (f DiffFormat) Valid() bool {
	return f == FormatXML || f == FormatJSON
}

// Feed is a static, pre-generated diff source keyed by changeset id.
// URL holds one "{id}" placeholder.
type Feed struct {
	URL    string     `json:"url" mapstructure:"url"`
	Format DiffFormat `json:"format" mapstructure:"format"`
}

// URLFor expands the feed URL for a changeset.
func (f Feed) URLFor(id int64) string {
	return strings.ReplaceAll(f.URL, "{id}", fmt.Sprint(id))
}

// Platform is an explicit, immutable set of endpoints for one mapping
// platform. It is passed into every acquisition instead of being read from
// process-wide state.
type Platform struct {
	Name         string `json:"name"`
	Label        string `json:"label"`
	APIURL       string `json:"api_url"`
	Feeds        []Feed `json:"feeds"`
	OverpassURL  string `json:"overpass_url"`
	ChangesetURL string `json:"changeset_url"`
}

// WebURL returns the human-facing changeset page.
func (p Platform) WebURL(id int64) string {
	return strings.TrimSuffix(p.ChangesetURL, "/") + "/" + fmt.Sprint(id)
}

// ChangesetAPIURL returns the metadata endpoint for a changeset.
func (p Platform) ChangesetAPIURL(id int64) string {
	return strings.TrimSuffix(p.APIURL, "/") + "/changeset/" + fmt.Sprint(id)
}

// DiffSource records where a diff came from.
type DiffSource string

const (
	SourceCache DiffSource = "cache"
	SourceFeed  DiffSource = "feed"
	SourceQuery DiffSource = "query"
)

// LoadSummary describes one completed acquisition. It is published as an event.
type LoadSummary struct {
	ChangesetID int64          `json:"changeset_id"`
	Platform    string         `json:"platform"`
	Source      DiffSource     `json:"source"`
	Format      DiffFormat     `json:"format"`
	Primitives  int            `json:"primitives"`
	Actions     map[Action]int `json:"actions"`
	Bounds      *Bounds        `json:"bounds,omitempty"`
	LoadedAt    time.Time      `json:"loaded_at"`
}

// Summarize builds a LoadSummary for a result.
func Summarize(platform string, id int64, source DiffSource, format DiffFormat, bd BoundedDataset) LoadSummary {
	return LoadSummary{
		ChangesetID: id,
		Platform:    platform,
		Source:      source,
		Format:      format,
		Primitives:  bd.Dataset.Len(),
		Actions:     bd.Dataset.CountByAction(),
		Bounds:      bd.Bounds,
		LoadedAt:    time.Now().UTC(),
	}
}

// ChangesetQuery filters a changeset listing.
type ChangesetQuery struct {
	Bounds *Bounds
	User   string
	Closed bool
	Limit  int
}
