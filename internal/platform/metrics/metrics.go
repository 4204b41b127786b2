package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the auth service. Construct once
// in main; services treat a nil *Metrics as "metrics disabled".
type Metrics struct {
	Logins    *prometheus.CounterVec
	Refreshes *prometheus.CounterVec
	Logouts   *prometheus.CounterVec

	EventsDropped  prometheus.Counter
	CacheLookups   *prometheus.CounterVec
	SweepProcessed prometheus.Counter
	SweepDuration  prometheus.Histogram
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		Logins: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "autogate_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		Refreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "autogate_token_refreshes_total",
			Help: "Token refresh attempts by outcome",
		}, []string{"outcome"}),
		Logouts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "autogate_logouts_total",
			Help: "Logout attempts by outcome",
		}, []string{"outcome"}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "autogate_auth_events_dropped_total",
			Help: "Auth events that failed to publish and were dropped",
		}),
		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "autogate_session_cache_lookups_total",
			Help: "Session cache lookups by result (hit/miss)",
		}, []string{"result"}),
		SweepProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "autogate_sweep_sessions_processed_total",
			Help: "Expired sessions cleaned up by the sweep",
		}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "autogate_sweep_duration_seconds",
			Help:    "Duration of expiry sweep runs",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveSweep records one sweep run.
func (m *Metrics) ObserveSweep(processed int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SweepProcessed.Add(float64(processed))
	m.SweepDuration.Observe(elapsed.Seconds())
}

// IncLogin counts one login attempt by outcome.
func (m *Metrics) IncLogin(outcome string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(outcome).Inc()
}

// IncRefresh counts one refresh attempt by outcome.
func (m *Metrics) IncRefresh(outcome string) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(outcome).Inc()
}

// IncLogout counts one logout attempt by outcome.
func (m *Metrics) IncLogout(outcome string) {
	if m == nil {
		return
	}
	m.Logouts.WithLabelValues(outcome).Inc()
}

// IncEventsDropped counts one swallowed publish failure.
func (m *Metrics) IncEventsDropped() {
	if m == nil {
		return
	}
	m.EventsDropped.Inc()
}

// IncCacheLookup counts one cache lookup result.
func (m *Metrics) IncCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}
