package sink

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"cinematch/domain/event"
)

// Metrics counts every event crossing the fanout, labelled by kind.
// It is registered as a permanent sink so counters move even when
// nobody is subscribed.
type Metrics struct {
	events *prometheus.CounterVec
}

func NewMetrics(events *prometheus.CounterVec) *Metrics {
	return &Metrics{events: events}
}

func (s *Metrics) Consume(_ context.Context, e event.DomainEvent) error {
	s.events.WithLabelValues(string(e.Kind())).Inc()
	return nil
}
