// Package metrics exposes Prometheus instrumentation for the domain
// registry's population and activity.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every gauge and counter the registry and its
// background tasks update.
type Metrics struct {
	LiveAgents       prometheus.Gauge
	CheckInsTotal    prometheus.Counter
	ReapedTotal      prometheus.Counter
	MalformedDropped prometheus.Counter
	BroadcastBytes   prometheus.Counter
}

// New constructs a Metrics and registers its collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LiveAgents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agentreg_live_agents",
			Help: "Current number of live (non-reaped) agent records.",
		}),
		CheckInsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentreg_checkins_total",
			Help: "Total number of check-in packets processed.",
		}),
		ReapedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentreg_reaped_total",
			Help: "Total number of agent records reaped for silence.",
		}),
		MalformedDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentreg_malformed_packets_total",
			Help: "Total number of malformed packets dropped.",
		}),
		BroadcastBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentreg_broadcast_bytes_total",
			Help: "Total number of bytes sent by the registry's broadcast path.",
		}),
	}

	reg.MustRegister(
		m.LiveAgents,
		m.CheckInsTotal,
		m.ReapedTotal,
		m.MalformedDropped,
		m.BroadcastBytes,
	)

	return m
}

// Noop returns a Metrics registered against a private registry, for
// callers (tests, library embedders) that don't want to expose
// Prometheus collectors globally.
func Noop() *Metrics {
	return New(prometheus.NewRegistry())
}
