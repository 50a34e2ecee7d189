package server

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/becomeliminal/nim-memory-gateway/core"
	"github.com/becomeliminal/nim-memory-gateway/identity"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirix_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirix_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	memoryOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirix_memory_operations_total",
			Help: "Memory operations by transport, operation and result",
		},
		[]string{"transport", "operation", "result"},
	)

	identityResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirix_identity_resolutions_total",
			Help: "Repository to user resolutions by outcome",
		},
		[]string{"outcome"},
	)

	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mirix_websocket_connections",
			Help: "Number of open WebSocket connections",
		},
	)
)

// ObserveResolution records an identity resolution. It matches
// identity.Observer.
func ObserveResolution(repo string, user core.User, outcome identity.Outcome) {
	identityResolutionsTotal.WithLabelValues(string(outcome)).Inc()
}

func recordOperation(transport, operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	memoryOperationsTotal.WithLabelValues(transport, operation, result).Inc()
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// metricsMiddleware records request counts and latency per route. It must
// wrap the ServeMux directly so the matched pattern is visible.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
