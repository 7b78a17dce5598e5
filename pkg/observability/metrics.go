package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Gateway exchange metrics
	gatewayExchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_exchanges_total",
			Help: "Total number of DirectLink exchanges by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	gatewayExchangeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_exchange_duration_seconds",
			Help:    "Duration of DirectLink exchanges in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// HTTP API metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP API requests currently being processed",
		},
	)
)

// RecordGatewayExchange records one processor exchange. Outcome is
// "approved", "declined", "transport_error" or "parse_error".
func RecordGatewayExchange(operation, outcome string, duration time.Duration) {
	gatewayExchangesTotal.WithLabelValues(operation, outcome).Inc()
	gatewayExchangeDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// statusRecorder captures the response status for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware returns an HTTP middleware that records Prometheus metrics for
// every API request
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
	})
}
