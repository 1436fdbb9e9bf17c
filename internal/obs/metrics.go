package obs

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	appInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "rastergate",
			Subsystem: "app",
			Name:      "info",
			Help:      "Static app info for deployment verification.",
		},
		[]string{"service", "version"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rastergate",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"method", "route", "code"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rastergate",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	validationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rastergate",
			Subsystem: "validation",
			Name:      "sources_total",
			Help:      "Source validations by result and failure reason.",
		},
		[]string{"result", "reason"},
	)
	validationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rastergate",
			Subsystem: "validation",
			Name:      "duration_seconds",
			Help:      "Source validation duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	ingestionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rastergate",
			Subsystem: "ingestion",
			Name:      "requests_total",
			Help:      "Ingestion requests by operation and outcome category.",
		},
		[]string{"operation", "result"},
	)

	retryDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rastergate",
			Subsystem: "ingestion",
			Name:      "retry_decisions_total",
			Help:      "Job retries by reset mode.",
		},
		[]string{"mode"},
	)
)

func init() {
	prometheus.MustRegister(appInfo, httpRequestsTotal, httpRequestDuration,
		validationsTotal, validationDuration, ingestionRequestsTotal, retryDecisionsTotal)
}

// SetAppInfo publishes the service name and APP_VERSION as a gauge
func SetAppInfo(service string) {
	svc := strings.TrimSpace(service)
	if svc == "" {
		svc = "rastergate"
	}
	ver := strings.TrimSpace(os.Getenv("APP_VERSION"))
	if ver == "" {
		ver = "dev"
	}
	appInfo.WithLabelValues(svc, ver).Set(1)
}

// MetricsMiddleware records request count and latency. It must run inside a
// chi router: the route label is the matched pattern, not the raw path.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.code)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.code = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// RecordValidation counts one source validation. reason is empty on success.
func RecordValidation(start time.Time, valid bool, reason string) {
	result := "valid"
	if !valid {
		result = "invalid"
	}
	validationsTotal.WithLabelValues(result, reason).Inc()
	validationDuration.Observe(time.Since(start).Seconds())
}

// RecordIngestion counts one orchestrator operation by its outcome
func RecordIngestion(operation string, result string) {
	ingestionRequestsTotal.WithLabelValues(operation, result).Inc()
}

// RecordRetryDecision counts a job retry by reset mode
func RecordRetryDecision(mode string) {
	retryDecisionsTotal.WithLabelValues(mode).Inc()
}
