// Package metrics exposes Prometheus counters for the lead engine and an HTTP
// middleware for request metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadtracker_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadtracker_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	materializations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadtracker_materializations_total",
			Help: "Application records created from click-based leads",
		},
		[]string{"result"},
	)

	fieldSyncs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadtracker_field_syncs_total",
			Help: "Debounced field saves by field and result",
		},
		[]string{"field", "result"},
	)

	timerEffects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadtracker_timer_effects_total",
			Help: "Side effects fired by the timer sweeps",
		},
		[]string{"effect"},
	)

	transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadtracker_transitions_total",
			Help: "Stage actions by action and result",
		},
		[]string{"action", "result"},
	)

	activeLeads = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "leadtracker_active_leads",
			Help: "Active leads per stage",
		},
		[]string{"stage"},
	)
)

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordMaterialization counts a create-application attempt.
func RecordMaterialization(err error) {
	materializations.WithLabelValues(result(err)).Inc()
}

// RecordFieldSync counts a debounced field save.
func RecordFieldSync(field string, err error) {
	fieldSyncs.WithLabelValues(field, result(err)).Inc()
}

// RecordTimerEffect counts a timer side effect (auto_archive, drop, follow_up_overdue).
func RecordTimerEffect(effect string) {
	timerEffects.WithLabelValues(effect).Inc()
}

// RecordTransition counts a stage action outcome.
func RecordTransition(action string, err error) {
	transitions.WithLabelValues(action, result(err)).Inc()
}

// SetActiveLeads sets the per-stage gauge.
func SetActiveLeads(stage string, n int) {
	activeLeads.WithLabelValues(stage).Set(float64(n))
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets SSE handlers stream through the middleware.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records request counts and durations.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		httpRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rw.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}
