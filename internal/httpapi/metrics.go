package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uniformes_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uniformes_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	orderOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uniformes_order_operations_total",
			Help: "Total number of order operations",
		},
		[]string{"operation", "status"},
	)
)

func metricsHandler() http.Handler {
	return promhttp.Handler()
}

// metricsPath collapses per-entity request paths so the path label stays
// low-cardinality. /api/v1/orders/ord-123/cancel becomes /api/v1/orders/:id/cancel.
func metricsPath(path string) string {
	for _, prefix := range []string{"/api/v1/orders/", "/api/v1/products/"} {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		tail := strings.Trim(strings.TrimPrefix(path, prefix), "/")
		if tail == "" {
			return path
		}
		parts := strings.SplitN(tail, "/", 2)
		collapsed := prefix + ":id"
		if len(parts) == 2 {
			collapsed += "/" + parts[1]
		}
		return collapsed
	}
	return path
}

func recordRequest(method string, path string, status int, elapsed time.Duration) {
	label := metricsPath(path)
	statusLabel := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, label, statusLabel).Inc()
	httpRequestDuration.WithLabelValues(method, label, statusLabel).Observe(elapsed.Seconds())
}

func recordOrderOutcome(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	orderOperations.WithLabelValues(operation, status).Inc()
}
