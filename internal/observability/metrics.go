package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	backendCallTotal    *prometheus.CounterVec
	backendCallDuration *prometheus.HistogramVec

	handshakeTotal    *prometheus.CounterVec
	sessionRetryTotal prometheus.Counter

	searchResultsTotal *prometheus.HistogramVec
	contextBytes       prometheus.Gauge
	contextInjections  *prometheus.CounterVec

	probeTotal *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			backendCallTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "backend_calls_total",
					Help: "Total knowledge-graph backend calls by transport, operation and status.",
				},
				[]string{"transport", "operation", "status"},
			),
			backendCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "backend_call_duration_seconds",
					Help:    "Backend call duration in seconds by transport and operation.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"transport", "operation"},
			),
			handshakeTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "session_handshakes_total",
					Help: "Total stateful-transport session handshakes by status.",
				},
				[]string{"status"},
			),
			sessionRetryTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "session_retries_total",
					Help: "Total calls retried after a session-expired error.",
				},
			),
			searchResultsTotal: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "search_results_total",
					Help:    "Result counts returned per search by scope.",
					Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
				},
				[]string{"scope"},
			),
			contextBytes: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "context_block_bytes",
					Help: "Size in bytes of the most recently composed context block.",
				},
			),
			contextInjections: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "context_injections_total",
					Help: "Total composed context blocks by outcome (injected or empty).",
				},
				[]string{"outcome"},
			),
			probeTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "probe_checks_total",
					Help: "Total backend liveness probes by status.",
				},
				[]string{"status"},
			),
		}

		prometheus.MustRegister(
			m.backendCallTotal,
			m.backendCallDuration,
			m.handshakeTotal,
			m.sessionRetryTotal,
			m.searchResultsTotal,
			m.contextBytes,
			m.contextInjections,
			m.probeTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

// RecordBackendCall records one backend round trip.
func RecordBackendCall(transport, operation string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.backendCallTotal.WithLabelValues(transport, operation, status).Inc()
	m.backendCallDuration.WithLabelValues(transport, operation).Observe(duration.Seconds())
}

// RecordHandshake records a session handshake attempt.
func RecordHandshake(success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.handshakeTotal.WithLabelValues(status).Inc()
}

// RecordSessionRetry records a call retried after session expiry.
func RecordSessionRetry() {
	getMetrics().sessionRetryTotal.Inc()
}

// RecordSearchResults records how many results a search returned.
func RecordSearchResults(scope string, count int) {
	getMetrics().searchResultsTotal.WithLabelValues(scope).Observe(float64(count))
}

// RecordContextComposed records the outcome of one composer run.
func RecordContextComposed(bytes int) {
	m := getMetrics()
	m.contextBytes.Set(float64(bytes))
	outcome := "injected"
	if bytes == 0 {
		outcome = "empty"
	}
	m.contextInjections.WithLabelValues(outcome).Inc()
}

// RecordProbe records one liveness probe outcome.
func RecordProbe(success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.probeTotal.WithLabelValues(status).Inc()
}
