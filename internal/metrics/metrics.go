// Package metrics exposes session and voting counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics owns its registry so tests can build independent instances. All
// methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	sessionEvents *prometheus.CounterVec
	votes         *prometheus.CounterVec
	prunedTotal   prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hackernews",
			Subsystem: "session",
			Name:      "events_total",
			Help:      "Session operations by kind and outcome.",
		}, []string{"event", "outcome"}),
		votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hackernews",
			Subsystem: "score",
			Name:      "votes_total",
			Help:      "Applied votes by target kind and state transition.",
		}, []string{"target_kind", "transition"}),
		prunedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hackernews",
			Subsystem: "session",
			Name:      "pruned_total",
			Help:      "Expired refresh sessions removed by the sweep.",
		}),
	}

	m.registry.MustRegister(
		m.sessionEvents,
		m.votes,
		m.prunedTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) SessionEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.sessionEvents.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) Vote(kind, transition string) {
	if m == nil {
		return
	}
	m.votes.WithLabelValues(kind, transition).Inc()
}

func (m *Metrics) Pruned(n int64) {
	if m == nil {
		return
	}
	m.prunedTotal.Add(float64(n))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
