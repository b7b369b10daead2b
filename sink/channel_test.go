package sink

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"cinematch/domain"
	"cinematch/domain/event"
)

func TestChannel_DeliversInOrder(t *testing.T) {
	req := require.New(t)
	s := NewChannel(4)

	first := event.MessageAppended{Message: domain.Message{Content: "first"}}
	second := event.MessageAppended{Message: domain.Message{Content: "second"}}
	req.NoError(s.Consume(context.Background(), first))
	req.NoError(s.Consume(context.Background(), second))

	req.Equal(first, <-s.Events)
	req.Equal(second, <-s.Events)
}

func TestChannel_DropsWhenFull(t *testing.T) {
	req := require.New(t)
	s := NewChannel(1)

	req.NoError(s.Consume(context.Background(), event.SearchExpired{UserID: "alice"}))
	req.NoError(s.Consume(context.Background(), event.SearchExpired{UserID: "bob"}))

	req.Len(s.Events, 1)
	got := <-s.Events
	req.Equal(event.SearchExpired{UserID: "alice"}, got)
}

func TestChannel_HonoursCancelledContext(t *testing.T) {
	req := require.New(t)
	s := NewChannel(0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Consume(ctx, event.SearchExpired{UserID: "alice"})
	req.ErrorIs(err, context.Canceled)
}

func TestMetrics_CountsByKind(t *testing.T) {
	req := require.New(t)

	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "events_total"}, []string{"kind"})
	s := NewMetrics(vec)

	req.NoError(s.Consume(context.Background(), event.MessageAppended{}))
	req.NoError(s.Consume(context.Background(), event.MessageAppended{}))
	req.NoError(s.Consume(context.Background(), event.MatchFound{}))

	req.Equal(float64(2), testutil.ToFloat64(vec.WithLabelValues("message.appended")))
	req.Equal(float64(1), testutil.ToFloat64(vec.WithLabelValues("match.found")))
}
