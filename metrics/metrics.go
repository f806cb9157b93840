// Package metrics holds the prometheus collectors for the leave engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for sessions and the record store.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Transitions by target status and outcome ("ok", or an error code)
	Transitions *prometheus.CounterVec

	// Submissions by outcome
	Submissions *prometheus.CounterVec

	// Reloads by outcome: "ok", "stale", "error"
	Reloads *prometheus.CounterVec

	ReloadLatency prometheus.Histogram

	// Session teardowns by cause: "logout", "unauthenticated", "expired"
	Teardowns *prometheus.CounterVec

	// Backend calls by route and status class
	BackendCalls *prometheus.CounterVec

	ActiveSessions prometheus.Gauge
}

// New creates a Metrics instance registered with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leave_transitions_total",
			Help: "Leave status transitions by target status and outcome",
		}, []string{"target", "outcome"}),

		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leave_submissions_total",
			Help: "Leave submissions by outcome",
		}, []string{"outcome"}),

		Reloads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leave_record_reloads_total",
			Help: "Record store reloads by outcome",
		}, []string{"outcome"}),

		ReloadLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "leave_record_reload_duration_seconds",
			Help:    "Duration of record store reloads including the backend fetch",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		Teardowns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leave_session_teardowns_total",
			Help: "Session teardowns by cause",
		}, []string{"cause"}),

		BackendCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leave_backend_requests_total",
			Help: "Backend Service requests by route and status class",
		}, []string{"route", "class"}),

		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "leave_active_sessions",
			Help: "Sessions currently registered with the gateway",
		}),
	}
}

func (m *Metrics) IncTransition(target, outcome string) {
	if m != nil {
		m.Transitions.WithLabelValues(target, outcome).Inc()
	}
}

func (m *Metrics) IncSubmission(outcome string) {
	if m != nil {
		m.Submissions.WithLabelValues(outcome).Inc()
	}
}

// ObserveReload records a finished reload.
func (m *Metrics) ObserveReload(outcome string, d time.Duration) {
	if m != nil {
		m.Reloads.WithLabelValues(outcome).Inc()
		m.ReloadLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncTeardown(cause string) {
	if m != nil {
		m.Teardowns.WithLabelValues(cause).Inc()
	}
}

// IncBackendCall records one Backend Service response. status 0 means the
// request never got a response.
func (m *Metrics) IncBackendCall(route string, status int) {
	if m != nil {
		m.BackendCalls.WithLabelValues(route, statusClass(status)).Inc()
	}
}

func (m *Metrics) SetActiveSessions(n int) {
	if m != nil {
		m.ActiveSessions.Set(float64(n))
	}
}

func statusClass(status int) string {
	switch {
	case status == 0:
		return "error"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	}
	return "5xx"
}
