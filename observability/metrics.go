// Package observability exposes the prometheus instrumentation of the
// realtime core.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates every collector the realtime path touches.
// All collectors are registered on the given registerer at construction.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	MessagesPersisted *prometheus.CounterVec
	EventsDelivered   *prometheus.CounterVec
	EventsDropped     prometheus.Counter
	RejectedSends     *prometheus.CounterVec
	ProcessRSSBytes   prometheus.Gauge
	ProcessCPUPercent prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chat_relay_active_connections",
			Help: "Number of live websocket sessions.",
		}),
		MessagesPersisted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_relay_messages_persisted_total",
			Help: "Messages written to the store, by scope.",
		}, []string{"scope"}),
		EventsDelivered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_relay_events_delivered_total",
			Help: "Delivery events pushed to live sessions, by event name.",
		}, []string{"event"}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "chat_relay_events_dropped_total",
			Help: "Delivery events dropped because a session buffer was full.",
		}),
		RejectedSends: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_relay_rejected_sends_total",
			Help: "Send intents rejected before persistence, by reason.",
		}, []string{"reason"}),
		ProcessRSSBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chat_relay_process_rss_bytes",
			Help: "Resident memory of the relay process.",
		}),
		ProcessCPUPercent: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chat_relay_process_cpu_percent",
			Help: "CPU usage of the relay process.",
		}),
	}
}
