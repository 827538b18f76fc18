// Package metrics exposes Prometheus collectors for the realtime relay.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatwave"

// Drop reasons
const (
	ReasonRecipientUnavailable = "recipient_unavailable"
	ReasonConnectionClosed     = "connection_closed"
)

// Metrics holds the relay collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ConnectionsActive prometheus.Gauge
	Registrations     prometheus.Counter
	Supersessions     prometheus.Counter
	StaleUnregisters  prometheus.Counter
	Deliveries        *prometheus.CounterVec
	Drops             *prometheus.CounterVec
	GroupFanout       prometheus.Histogram
	AuthFailures      *prometheus.CounterVec
}

// New creates the collectors and registers them on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "connections_active",
			Help:      "Number of identities with a registered live connection.",
		}),
		Registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "registrations_total",
			Help:      "Connections registered since start.",
		}),
		Supersessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "supersessions_total",
			Help:      "Registrations that replaced an existing connection for the same identity.",
		}),
		StaleUnregisters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "stale_unregisters_total",
			Help:      "Unregister calls ignored because the caller no longer owned the entry.",
		}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "deliveries_total",
			Help:      "Events handed to a live connection, by event kind.",
		}, []string{"kind"}),
		Drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "drops_total",
			Help:      "Events not delivered, by event kind and reason.",
		}, []string{"kind", "reason"}),
		GroupFanout: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "group_fanout_members",
			Help:      "Members resolved per group broadcast.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
		}),
		AuthFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "auth_failures_total",
			Help:      "Refused connection attempts, by reason.",
		}, []string{"reason"}),
	}

	m.registry.MustRegister(
		m.ConnectionsActive,
		m.Registrations,
		m.Supersessions,
		m.StaleUnregisters,
		m.Deliveries,
		m.Drops,
		m.GroupFanout,
		m.AuthFailures,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registered(superseded bool) {
	if m == nil {
		return
	}
	m.Registrations.Inc()
	if superseded {
		m.Supersessions.Inc()
	} else {
		m.ConnectionsActive.Inc()
	}
}

func (m *Metrics) Unregistered(removed bool) {
	if m == nil {
		return
	}
	if removed {
		m.ConnectionsActive.Dec()
	} else {
		m.StaleUnregisters.Inc()
	}
}

func (m *Metrics) Delivered(kind string) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(kind).Inc()
}

func (m *Metrics) Dropped(kind, reason string) {
	if m == nil {
		return
	}
	m.Drops.WithLabelValues(kind, reason).Inc()
}

func (m *Metrics) Fanout(members int) {
	if m == nil {
		return
	}
	m.GroupFanout.Observe(float64(members))
}

func (m *Metrics) AuthFailed(reason string) {
	if m == nil {
		return
	}
	m.AuthFailures.WithLabelValues(reason).Inc()
}
