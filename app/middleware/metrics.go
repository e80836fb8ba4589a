package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Total HTTP requests partitioned by method, route, and status code
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	// Request duration in seconds partitioned by method, route, and status code
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backoffice_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// In-flight HTTP requests
	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "backoffice_http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	// Requests refused by the role permission check
	permissionDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_permission_denials_total",
			Help: "Requests rejected because the caller's role lacks the permission",
		},
		[]string{"role", "resource", "action"},
	)

	// Bearer tokens rejected by Authenticate, by error code
	authRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_auth_rejections_total",
			Help: "Requests rejected by bearer token authentication",
		},
		[]string{"code"},
	)
)

// Metrics records request count, latency and in-flight gauge per matched route
func Metrics() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		err := c.Next()

		labels := prometheus.Labels{
			"method": c.Method(),
			"route":  routePath(c),
			"status": strconv.Itoa(responseStatus(c, err)),
		}
		httpRequestsTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())

		return err
	}
}

// routePath prefers the route template over the raw path
func routePath(c fiber.Ctx) string {
	if r := c.Route(); r != nil && r.Path != "" {
		return r.Path
	}
	return c.Path()
}

// responseStatus is the status the client will see once err reaches the error handler
func responseStatus(c fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	if e, ok := err.(*fiber.Error); ok {
		return e.Code
	}
	return fiber.StatusInternalServerError
}
