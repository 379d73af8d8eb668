// Package metrics provides Prometheus instrumentation for the position engine and HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RecalculationsTotal counts position recalculations by outcome ("ok" or "error").
	RecalculationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fundval_position_recalculations_total",
		Help: "Total number of position recalculations",
	}, []string{"result"})

	// RecalculationDuration tracks how long one position fold and write takes.
	RecalculationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fundval_position_recalculation_seconds",
		Help:    "Position recalculation latency in seconds",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	})

	// FoldAnomalies counts sells the fold skipped or clamped, by kind.
	FoldAnomalies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fundval_fold_anomalies_total",
		Help: "Sell entries skipped or clamped while folding a ledger",
	}, []string{"kind"})

	// LedgerMutations counts committed ledger mutations by operation.
	LedgerMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fundval_ledger_mutations_total",
		Help: "Committed ledger mutations",
	}, []string{"operation"})

	// EstimateSnapshotsScored counts estimate snapshots compared with a published NAV, by source.
	EstimateSnapshotsScored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fundval_estimate_snapshots_scored_total",
		Help: "Estimate snapshots scored against the published NAV",
	}, []string{"source"})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fundval_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fundval_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "route"})
)

// ObserveRecalculation records one recalculation outcome and its duration.
func ObserveRecalculation(start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	RecalculationsTotal.WithLabelValues(result).Inc()
	RecalculationDuration.Observe(time.Since(start).Seconds())
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for the label to avoid high cardinality.
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
