// Package metrics exposes Prometheus collectors for this domain:
// connections, sessions, events, decode errors, and bridge connection
// state.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus collector playrelay registers, all
// under one dedicated registry.
type Metrics struct {
	activeConnections prometheus.Gauge
	activeSessions     prometheus.Gauge

	eventsEncoded *prometheus.CounterVec
	eventsDecoded *prometheus.CounterVec

	counterFanouts prometheus.Counter
	decodeErrors   *prometheus.CounterVec

	bridgeState             prometheus.Gauge
	bridgeReconnectAttempts prometheus.Counter

	registry *prometheus.Registry
}

// New creates and registers playrelay's metrics under a dedicated
// registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "playrelay_connections_active",
			Help: "Number of currently connected clients.",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "playrelay_sessions_active",
			Help: "Number of currently active game sessions.",
		}),
		eventsEncoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "playrelay_events_encoded_total",
			Help: "Total outbound events encoded, by event type.",
		}, []string{"type"}),
		eventsDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "playrelay_events_decoded_total",
			Help: "Total inbound events decoded, by event type.",
		}, []string{"type"}),
		counterFanouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "playrelay_counter_fanouts_total",
			Help: "Total counter-change notifications fanned out to session participants.",
		}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "playrelay_decode_errors_total",
			Help: "Total message decode failures, by reason.",
		}, []string{"reason"}),
		bridgeState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "playrelay_bridge_state",
			Help: "Current bridge connection state (0=disconnected,1=connecting,2=connected,3=authenticated).",
		}),
		bridgeReconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "playrelay_bridge_reconnect_attempts_total",
			Help: "Total bridge reconnect attempts since startup.",
		}),
		registry: registry,
	}

	registry.MustRegister(
		m.activeConnections,
		m.activeSessions,
		m.eventsEncoded,
		m.eventsDecoded,
		m.counterFanouts,
		m.decodeErrors,
		m.bridgeState,
		m.bridgeReconnectAttempts,
	)

	return m
}

// Handler returns the HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ClientConnected()    { m.activeConnections.Inc() }
func (m *Metrics) ClientDisconnected() { m.activeConnections.Dec() }

func (m *Metrics) SetActiveSessions(n int) { m.activeSessions.Set(float64(n)) }

func (m *Metrics) EventEncoded(eventType string) { m.eventsEncoded.WithLabelValues(eventType).Inc() }
func (m *Metrics) EventDecoded(eventType string) { m.eventsDecoded.WithLabelValues(eventType).Inc() }

func (m *Metrics) CounterFanout() { m.counterFanouts.Inc() }

func (m *Metrics) DecodeError(reason string) { m.decodeErrors.WithLabelValues(reason).Inc() }

func (m *Metrics) SetBridgeState(state int32) { m.bridgeState.Set(float64(state)) }
func (m *Metrics) BridgeReconnectAttempt()     { m.bridgeReconnectAttempts.Inc() }
