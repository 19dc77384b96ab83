// Package overpass runs augmented diff queries against an Overpass API
// interpreter.
package overpass

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/JOSM/changeset-viewer/internal/core/domain"
)

// Poster posts a URL-encoded form.
type Poster interface {
	PostForm(ctx context.Context, url string, form url.Values, timeout time.Duration) ([]byte, error)
}

// Options configures the query budget. The transport timeout is
// QueryTimeout+Margin so the server's own cutoff is seen first.
type Options struct {
	QueryTimeout time.Duration
	Margin       time.Duration
}

// DefaultOptions returns a 180s query budget with a 10s margin.
func DefaultOptions() Options {
	return Options{QueryTimeout: 180 * time.Second, Margin: 10 * time.Second}
}

// Client implements ports.QueryService.
type Client struct {
	http Poster
	opts Options
}

// NewClient creates a new Client.
func NewClient(http Poster, opts Options) *Client {
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = DefaultOptions().QueryTimeout
	}
	if opts.Margin <= 0 {
		opts.Margin = DefaultOptions().Margin
	}
	return &Client{http: http, opts: opts}
}

// AugmentedDiff returns the augmented diff XML of everything changed in
// window, limited to bbox when it is set.
func (c *Client) AugmentedDiff(ctx context.Context, platform domain.Platform, window domain.TimeWindow, bbox *domain.Bounds) ([]byte, error) {
	if platform.OverpassURL == "" {
		return nil, fmt.Errorf("platform %s has no query service: %w", platform.Name, domain.ErrTransport)
	}
	q := BuildQuery(window, bbox, c.opts.QueryTimeout)
	body, err := c.http.PostForm(ctx, platform.OverpassURL, url.Values{"data": {q}}, c.opts.QueryTimeout+c.opts.Margin)
	if err != nil {
		return nil, err
	}
	if err := checkRemark(body); err != nil {
		return nil, err
	}
	return body, nil
}

// BuildQuery renders the Overpass QL for an augmented diff over window.
func BuildQuery(window domain.TimeWindow, bbox *domain.Bounds, timeout time.Duration) string {
	filter := ""
	out := "out meta geom;"
	if bbox != nil {
		filter = "(" + bbox.Overpass() + ")"
		out = "out meta geom" + filter + ";"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[out:xml][timeout:%d][adiff:\"%s\",\"%s\"];",
		int(timeout.Seconds()),
		window.Start.UTC().Format(time.RFC3339),
		window.End.UTC().Format(time.RFC3339),
	)
	b.WriteString("(")
	for _, typ := range []string{"node", "way", "relation"} {
		b.WriteString(typ + filter + "(changed);")
	}
	b.WriteString(");")
	b.WriteString(out)
	return b.String()
}

// checkRemark inspects the trailing <remark> Overpass emits when a query
// fails after the response has started.
func checkRemark(body []byte) error {
	text, ok := remark(body)
	if !ok {
		return nil
	}
	lower := strings.ToLower(text)
	switch {
	case !strings.Contains(lower, "runtime error"):
		return nil
	case strings.Contains(lower, "timed out"):
		return fmt.Errorf("overpass: %s: %w", text, domain.ErrTimeout)
	case strings.Contains(lower, "out of memory"):
		return fmt.Errorf("overpass: %s: %w", text, domain.ErrTooLarge)
	}
	return fmt.Errorf("overpass: %s: %w", text, domain.ErrTransport)
}

func remark(body []byte) (string, bool) {
	const open, closing = "<remark>", "</remark>"
	i := bytes.LastIndex(body, []byte(open))
	if i < 0 {
		return "", false
	}
	rest := body[i+len(open):]
	if j := bytes.Index(rest, []byte(closing)); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(string(rest)), true
}
