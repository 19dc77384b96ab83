package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "changesetviewer",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "changesetviewer",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 10, 60, 190},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "changesetviewer",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 7),
	}, []string{"method", "path"})

	// Acquisition metrics
	Acquisitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "changesetviewer",
		Subsystem: "adiff",
		Name:      "acquisitions_total",
		Help:      "Completed diff acquisitions by source",
	}, []string{"platform", "source"})

	AcquisitionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "changesetviewer",
		Subsystem: "adiff",
		Name:      "acquisition_errors_total",
		Help:      "Failed diff acquisitions by error kind",
	}, []string{"platform", "kind"})

	AcquisitionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "changesetviewer",
		Subsystem: "adiff",
		Name:      "acquisition_duration_seconds",
		Help:      "Duration of a diff acquisition, including parsing",
		Buckets:   []float64{0.05, 0.25, 1, 2.5, 5, 10, 30, 60, 120, 190},
	}, []string{"platform", "source"})

	FeedMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "changesetviewer",
		Subsystem: "adiff",
		Name:      "feed_misses_total",
		Help:      "Static feed lookups that fell through to the next tier",
	}, []string{"platform"})

	PrimitivesBuilt = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "changesetviewer",
		Subsystem: "adiff",
		Name:      "primitives",
		Help:      "Primitives per built diff",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 9),
	}, []string{"format"})

	DownloadBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "changesetviewer",
		Subsystem: "fetch",
		Name:      "download_bytes",
		Help:      "Size of upstream response bodies",
		Buckets:   prometheus.ExponentialBuckets(1024, 4, 9),
	}, []string{"host"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "changesetviewer",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "changesetviewer",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "changesetviewer",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}
