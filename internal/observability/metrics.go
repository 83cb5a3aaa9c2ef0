package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Metrics collects Prometheus metrics for the ledger service.
type Metrics struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	journalWrites     *prometheus.CounterVec
	periodTransitions *prometheus.CounterVec
	lockedEntries     *prometheus.CounterVec
}

// NewMetrics initialises the registry and the base collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	writes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_journal_writes_total",
		Help: "Journal entry writes by operation and outcome.",
	}, []string{"op", "result"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_period_transitions_total",
		Help: "Closing period transitions by action.",
	}, []string{"action"})
	locked := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_period_entries_total",
		Help: "Journal entries locked or unlocked by period transitions.",
	}, []string{"action"})
	registry.MustRegister(requests, duration, writes, transitions, locked)
	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:     requests,
		requestDuration:   duration,
		journalWrites:     writes,
		periodTransitions: transitions,
		lockedEntries:     locked,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// JournalWrite counts a journal submit, update or delete attempt.
func (m *Metrics) JournalWrite(op string, err error) {
	if m == nil {
		return
	}
	m.journalWrites.WithLabelValues(op, outcome(err)).Inc()
}

// PeriodTransition counts a close or reopen and the entries it touched.
func (m *Metrics) PeriodTransition(action string, entries int64) {
	if m == nil {
		return
	}
	m.periodTransitions.WithLabelValues(action).Inc()
	if entries > 0 {
		m.lockedEntries.WithLabelValues(action).Add(float64(entries))
	}
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// outcome buckets an error into a low-cardinality label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case shared.IsValidation(err), shared.IsConflict(err), shared.IsNotFound(err):
		return "rejected"
	default:
		return "error"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
