// Package observability exports the counters and gauges ops watch in
// production. Domain counters move from service code, gauges are
// refreshed by the runtime stats worker.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every instrument the server exports. Instruments
// live on a private registry so tests can build as many instances as
// they like without duplicate registration panics.
type Metrics struct {
	registry *prometheus.Registry

	Messages       *prometheus.CounterVec
	Matches        prometheus.Counter
	QueueEvictions prometheus.Counter
	Reveals        prometheus.Counter
	BusEvents      *prometheus.CounterVec

	QueueDepth        prometheus.Gauge
	RoomSubscriptions prometheus.Gauge
	UserSubscriptions prometheus.Gauge
	ProcessCPU        prometheus.Gauge
	ProcessMemory     prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		Messages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cinematch_messages_total",
			Help: "Messages appended, by room kind",
		}, []string{"room_kind"}),
		Matches: factory.NewCounter(prometheus.CounterOpts{
			Name: "cinematch_matches_total",
			Help: "Pairs formed by the match queue",
		}),
		QueueEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "cinematch_queue_evictions_total",
			Help: "Queue entries evicted after waiting too long",
		}),
		Reveals: factory.NewCounter(prometheus.CounterOpts{
			Name: "cinematch_reveals_total",
			Help: "Identity disclosures recorded",
		}),
		BusEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cinematch_bus_events_total",
			Help: "Events crossing the fanout, by kind",
		}, []string{"kind"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cinematch_queue_depth",
			Help: "Users currently waiting for a match",
		}),
		RoomSubscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cinematch_room_subscriptions",
			Help: "Live room feed subscriptions",
		}),
		UserSubscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cinematch_user_subscriptions",
			Help: "Live user feed subscriptions",
		}),
		ProcessCPU: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cinematch_process_cpu_percent",
			Help: "CPU usage of the server process",
		}),
		ProcessMemory: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cinematch_process_memory_percent",
			Help: "Memory usage of the server process",
		}),
	}
}

// Handler serves the scrape endpoint for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
