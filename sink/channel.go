package sink

import (
	"context"

	"cinematch/domain/event"
)

// Channel redirects events into a buffered channel owned by a single
// connection. The websocket handler or the terminal session reads from
// Events and decides what the subscriber actually sees.
type Channel struct {
	Events chan event.DomainEvent
}

func NewChannel(bufferSize int) *Channel {
	return &Channel{Events: make(chan event.DomainEvent, bufferSize)}
}

// Consume is called by fanout
// Redirect the event through the concerned owner of the channel
func (s *Channel) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		// Canal plein : on perd une notification, l'historique rattrape
		return nil
	}
}
