package lib

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accessbus_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"method", "route", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "accessbus_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	reservationOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accessbus_reservations_total",
		Help: "Reservation operations by kind.",
	}, []string{"op"})
)

// MetricsMiddleware records request counts and latency per route template.
func MetricsMiddleware(ctx *gin.Context) {
	start := time.Now()
	ctx.Next()
	route := ctx.FullPath()
	if route == "" {
		route = "unmatched"
	}
	method := ctx.Request.Method
	httpRequests.WithLabelValues(method, route, strconv.Itoa(ctx.Writer.Status())).Inc()
	httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
}

// CountReservationOp increments the counter for op, e.g. "create" or "expire".
func CountReservationOp(op string) {
	reservationOps.WithLabelValues(op).Inc()
}
