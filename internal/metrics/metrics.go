package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SchedulingOperations counts write-path operations by outcome.
	SchedulingOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bayd_scheduling_operations_total",
		Help: "Scheduling operations by operation and result.",
	}, []string{"operation", "result"})

	// IntegrityViolations counts bays found with more than one task at once.
	IntegrityViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bayd_integrity_violations_total",
		Help: "Integrity violations detected, by source.",
	}, []string{"source"})

	SnapshotDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bayd_availability_snapshot_seconds",
		Help:    "Time taken to build an availability snapshot.",
		Buckets: prometheus.DefBuckets,
	})

	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bayd_api_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bayd_api_request_duration_seconds",
		Help:    "HTTP request latency by method, route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency against the matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		APIRequestDuration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		APIRequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
	}
}
