package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"cinematch/bus"
	"cinematch/contract"
	"cinematch/domain/event"
)

// EventFanoutWorker drains the bus subscriptions and hands each event
// to the sinks registered for its feed, plus the permanent sinks that
// see everything (metrics, search index).
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// ordering, durability, or retries. EventFanoutWorker is not a message
// broker: state is on disk before anything reaches it, and a consumer
// that misses an event recovers by reading history.
type EventFanoutWorker struct {
	log         *slog.Logger
	registry    contract.IRegistry
	roomMsgs    chan *nats.Msg
	userMsgs    chan *nats.Msg
	permanent   []contract.EventSink
	sinkTimeout time.Duration
}

func NewEventFanoutWorker(
	log *slog.Logger,
	registry contract.IRegistry,
	roomMsgs, userMsgs chan *nats.Msg,
	sinkTimeout time.Duration,
	permanent ...contract.EventSink,
) *EventFanoutWorker {
	return &EventFanoutWorker{
		log:         log,
		registry:    registry,
		roomMsgs:    roomMsgs,
		userMsgs:    userMsgs,
		permanent:   permanent,
		sinkTimeout: sinkTimeout,
	}
}

func (w *EventFanoutWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping fanout")
			return nil
		case msg, ok := <-w.roomMsgs:
			if !ok {
				w.log.Debug("Room channel is closed")
				return nil
			}
			w.dispatch(msg)
		case msg, ok := <-w.userMsgs:
			if !ok {
				w.log.Debug("User channel is closed")
				return nil
			}
			w.dispatch(msg)
		}
	}
}

// dispatch routes one bus message to the sinks of its feed.
func (w *EventFanoutWorker) dispatch(msg *nats.Msg) {
	scope, id, ok := bus.SplitSubject(msg.Subject)
	if !ok {
		w.log.Warn("Dropping event with unknown subject", "subject", msg.Subject)
		return
	}

	evt, err := bus.Decode(msg.Data)
	if err != nil {
		w.log.Error("Failed to decode event", "subject", msg.Subject, "error", err)
		return
	}

	var sinks []contract.EventSink
	switch scope {
	case bus.ScopeRoom:
		sinks = w.registry.SinksForRoom(id)
	case bus.ScopeUser:
		sinks = w.registry.SinksForUser(id)
	}

	w.Fanout(evt, append(sinks, w.permanent...))
}

// Fanout One goroutine per sink, cut off after sinkTimeout.
// A slow sink must not block its siblings or the dispatch loop.
func (w *EventFanoutWorker) Fanout(evt event.DomainEvent, sinks []contract.EventSink) {
	for _, s := range sinks {
		go func(s contract.EventSink) {
			ctx, cancel := context.WithTimeout(context.Background(), w.sinkTimeout)
			defer cancel()
			if err := s.Consume(ctx, evt); err != nil {
				w.log.Warn("Sink failed to consume event", "kind", evt.Kind(), "error", err)
			}
		}(s)
	}
}
