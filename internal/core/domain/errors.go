package domain

import "errors"

var (
	// ErrNotFound means the upstream resource does not exist (HTTP 404).
	ErrNotFound = errors.New("not found")

	// ErrNoData means the changeset metadata lacks the timestamps needed to
	// query a diff, typically because it is still open.
	ErrNoData = errors.New("no data for changeset")

	// ErrTooLarge means a response exceeded the configured download limit.
	ErrTooLarge = errors.New("response exceeds maximum download size")

	// ErrTimeout means the request or the query service timed out; the
	// changeset may be too large for the query service.
	ErrTimeout = errors.New("request timed out, the changeset may be too large for the query service")

	// ErrTransport covers connection failures and unexpected status codes.
	ErrTransport = errors.New("transport failure")

	// ErrUnknownPlatform means no platform is configured under the given name.
	ErrUnknownPlatform = errors.New("unknown platform")

	// ErrInvalidQuery means caller-supplied parameters were rejected.
	ErrInvalidQuery = errors.New("invalid query")
)
