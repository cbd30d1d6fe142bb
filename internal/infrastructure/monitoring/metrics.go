package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for one kernel instance.
type Metrics struct {
	registry *prometheus.Registry

	// Object metrics
	ObjectsLive  *prometheus.GaugeVec
	ObjectsTotal *prometheus.CounterVec
	HandlesLive  prometheus.Gauge

	// Channel metrics
	MessagesQueued  prometheus.Gauge
	MessagesWritten prometheus.Counter
	CallsInFlight   prometheus.Gauge
	CallTimeouts    prometheus.Counter

	// Port metrics
	PortPacketsQueued prometheus.Gauge
	PortPacketsFired  prometheus.Counter

	// Wait metrics
	WaitsCanceled prometheus.Counter
}

// NewMetrics creates a metrics collector on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ObjectsLive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kernel_objects_live",
				Help: "Number of live kernel objects by type",
			},
			[]string{"type"},
		),
		ObjectsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kernel_objects_total",
				Help: "Total number of kernel objects created by type",
			},
			[]string{"type"},
		),
		HandlesLive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "kernel_handles_live",
				Help: "Number of live handles across all processes",
			},
		),

		MessagesQueued: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "kernel_channel_messages_queued",
				Help: "Messages currently queued on channel endpoints",
			},
		),
		MessagesWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "kernel_channel_messages_written_total",
				Help: "Total messages written to channels",
			},
		),
		CallsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "kernel_channel_calls_in_flight",
				Help: "Channel calls awaiting a correlated reply",
			},
		),
		CallTimeouts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "kernel_channel_call_timeouts_total",
				Help: "Channel calls that reached their deadline",
			},
		),

		PortPacketsQueued: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "kernel_port_packets_queued",
				Help: "Packets currently queued on ports",
			},
		),
		PortPacketsFired: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "kernel_port_packets_fired_total",
				Help: "Signal packets enqueued by armed observers",
			},
		),

		WaitsCanceled: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "kernel_waits_canceled_total",
				Help: "Blocking waits released by object teardown",
			},
		),
	}
}

// Registry exposes the underlying registry for scraping.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
