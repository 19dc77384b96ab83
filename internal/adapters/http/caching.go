package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Adds sensible defaults if not already set by the handler.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		// Only set on successful GET requests
		if c.Method() != fiber.MethodGet || c.Response().StatusCode() >= 400 {
			if c.Method() == fiber.MethodGet && c.Get("Cache-Control") == "" {
				c.Set("Cache-Control", "no-store")
			}
			return err
		}

		// Don't override if already set
		if existing := c.Get("Cache-Control"); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10"

		case path == "/metrics":
			ttl = "no-cache"

		case path == "/v1/platforms":
			ttl = "public, max-age=3600"

		case path == "/v1/changesets/recent":
			ttl = "no-cache"

		case strings.HasSuffix(path, "/diff"):
			ttl = "public, max-age=600"

		case path == "/v1/changesets":
			ttl = "public, max-age=60" // listings move as mappers upload

		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=300"
		}

		if ttl != "" {
			c.Set("Cache-Control", ttl)
		}

		return err
	}
}
