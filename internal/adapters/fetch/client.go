// Package fetch is the HTTP client shared by every upstream adapter. It caps
// response sizes, applies per-request timeouts and maps HTTP failures onto
// the domain error sentinels.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JOSM/changeset-viewer/internal/core/domain"
	"github.com/JOSM/changeset-viewer/internal/pkg/metrics"
)

// Options configures a Client.
type Options struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
}

// DefaultOptions mirrors the limits of the desktop viewer: 50 MB bodies and
// a read timeout longer than the query service's own budget.
func DefaultOptions() Options {
	return Options{
		Timeout:   190 * time.Second,
		MaxBytes:  50 << 20,
		UserAgent: "changeset-viewer/1.0",
	}
}

// Client performs size- and time-limited HTTP requests.
type Client struct {
	http *http.Client
	opts Options
}

// New creates a Client. Zero fields in opts fall back to DefaultOptions.
func New(opts Options) *Client {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = def.MaxBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	return &Client{http: &http.Client{}, opts: opts}
}

// Get fetches url with the client's default timeout.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, rawURL, nil, "", c.opts.Timeout)
}

// PostForm posts a URL-encoded form. A positive timeout overrides the default.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = c.opts.Timeout
	}
	return c.do(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()),
		"application/x-www-form-urlencoded", timeout)
}

func (c *Client) do(ctx context.Context, method, rawURL string, body io.Reader, contentType string, timeout time.Duration) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.classify(ctx, method, rawURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s %s: %w", method, rawURL, domain.ErrNotFound)
	case resp.StatusCode == http.StatusGatewayTimeout || resp.StatusCode == http.StatusRequestTimeout:
		return nil, fmt.Errorf("%s %s: HTTP %d: %w", method, rawURL, resp.StatusCode, domain.ErrTimeout)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%s %s: HTTP %d: %w", method, rawURL, resp.StatusCode, domain.ErrTransport)
	}

	if resp.ContentLength > c.opts.MaxBytes {
		return nil, fmt.Errorf("%s %s: %d bytes: %w", method, rawURL, resp.ContentLength, domain.ErrTooLarge)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBytes+1))
	if err != nil {
		return nil, c.classify(ctx, method, rawURL, err)
	}
	if int64(len(data)) > c.opts.MaxBytes {
		return nil, fmt.Errorf("%s %s: more than %d bytes: %w", method, rawURL, c.opts.MaxBytes, domain.ErrTooLarge)
	}

	metrics.DownloadBytes.WithLabelValues(req.URL.Host).Observe(float64(len(data)))
	slog.Debug("fetched", "method", method, "url", rawURL, "bytes", len(data), "duration", time.Since(start).String())
	return data, nil
}

// classify maps a transport error. Cancellation of the caller's context is
// returned as is so callers can tell it apart from an upstream timeout.
func (c *Client) classify(parent context.Context, method, rawURL string, err error) error {
	if perr := parent.Err(); perr != nil {
		return fmt.Errorf("%s %s: %w", method, rawURL, perr)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%s %s: %w", method, rawURL, domain.ErrTimeout)
	}
	return fmt.Errorf("%s %s: %v: %w", method, rawURL, err, domain.ErrTransport)
}
