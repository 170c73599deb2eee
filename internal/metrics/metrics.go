// Package metrics exposes the bridge's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Direction labels for relay updates.
const (
	ToUI     = "to_ui"
	ToNative = "to_native"
)

// Metrics holds the collectors of one editor instance on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	RelayUpdates     *prometheus.CounterVec
	EchoesSuppressed prometheus.Counter
	Gestures         *prometheus.CounterVec
	Events           *prometheus.CounterVec
	Resources        *prometheus.CounterVec
	UIClients        prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RelayUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relaykit_relay_updates_total",
				Help: "Relay value updates by direction",
			},
			[]string{"relay", "direction"},
		),
		EchoesSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relaykit_echoes_suppressed_total",
			Help: "Native change notifications recognized as self-echoes and dropped",
		}),
		Gestures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relaykit_gestures_total",
				Help: "Gesture begin/end signals sent to native parameters",
			},
			[]string{"relay", "phase"},
		),
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relaykit_events_total",
				Help: "Event channel emissions by result",
			},
			[]string{"event", "result"},
		),
		Resources: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relaykit_resources_total",
				Help: "Asset requests by result",
			},
			[]string{"result"},
		),
		UIClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relaykit_ui_clients",
			Help: "Connected UI transport clients",
		}),
	}
	m.registry.MustRegister(m.RelayUpdates, m.EchoesSuppressed, m.Gestures, m.Events, m.Resources, m.UIClients)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RelayUpdate(relay, direction string) {
	if m != nil {
		m.RelayUpdates.WithLabelValues(relay, direction).Inc()
	}
}

func (m *Metrics) EchoSuppressed() {
	if m != nil {
		m.EchoesSuppressed.Inc()
	}
}

func (m *Metrics) Gesture(relay, phase string) {
	if m != nil {
		m.Gestures.WithLabelValues(relay, phase).Inc()
	}
}

func (m *Metrics) Event(name string, delivered bool) {
	if m == nil {
		return
	}
	result := "suppressed"
	if delivered {
		result = "delivered"
	}
	m.Events.WithLabelValues(name, result).Inc()
}

func (m *Metrics) Resource(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.Resources.WithLabelValues(result).Inc()
}

func (m *Metrics) ClientConnected() {
	if m != nil {
		m.UIClients.Inc()
	}
}

func (m *Metrics) ClientDisconnected() {
	if m != nil {
		m.UIClients.Dec()
	}
}
