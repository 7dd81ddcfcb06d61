// Package metrics exports relay activity to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "roomrelay"

// Outcome label values for the events counter.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// Metrics holds the relay's collectors on a private registry, so several
// servers in one process (tests) never collide on registration.
type Metrics struct {
	registry    *prometheus.Registry
	connections prometheus.Gauge
	rooms       prometheus.Gauge
	events      *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	signals     *prometheus.CounterVec
	dropped     prometheus.Counter
	floods      prometheus.Counter
}

// New creates and registers the relay collectors together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open signaling connections.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Non-empty rooms.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Inbound events handled, by event name and outcome.",
		}, []string{"event", "outcome"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Error events sent to clients, by error type.",
		}, []string{"type"}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_relayed_total",
			Help:      "Signals forwarded between peers, by payload kind.",
		}, []string{"kind"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slow_consumer_disconnects_total",
			Help:      "Connections closed because their send buffer was full.",
		}),
		floods: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flood_frames_dropped_total",
			Help:      "Inbound frames dropped by the per-connection flood guard.",
		}),
	}
	m.registry.MustRegister(
		m.connections, m.rooms, m.events, m.rejections, m.signals, m.dropped, m.floods,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveEvent counts one handled inbound event. rejection is the error type
// sent back to the client, or "" when the event was accepted.
func (m *Metrics) ObserveEvent(event, rejection string) {
	if rejection == "" {
		m.events.WithLabelValues(event, OutcomeAccepted).Inc()
		return
	}
	m.events.WithLabelValues(event, OutcomeRejected).Inc()
	m.rejections.WithLabelValues(rejection).Inc()
}

// ObserveSignal counts one forwarded signal.
func (m *Metrics) ObserveSignal(kind string) {
	m.signals.WithLabelValues(kind).Inc()
}

// ObserveState records the current connection and room counts.
func (m *Metrics) ObserveState(connections, rooms int) {
	m.connections.Set(float64(connections))
	m.rooms.Set(float64(rooms))
}

// SlowConsumer counts a connection dropped for a full send buffer.
func (m *Metrics) SlowConsumer() {
	m.dropped.Inc()
}

// FloodDropped counts an inbound frame discarded by the flood guard.
func (m *Metrics) FloodDropped() {
	m.floods.Inc()
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics not configured", http.StatusInternalServerError)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
