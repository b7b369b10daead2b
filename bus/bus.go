// Package bus moves domain events between the services that commit
// state and the fanout worker that notifies connected sessions. It is
// not a store: everything published here is already on disk, and a
// consumer that misses a notification recovers by reading history.
package bus

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"cinematch/contract"
	"cinematch/domain/event"
)

type Bus struct {
	nc  *nats.Conn
	log *slog.Logger
}

var _ contract.EventPublisher = (*Bus)(nil)

// Connect dials the bus and keeps reconnecting forever; publishes
// issued while disconnected are buffered by the client.
func Connect(url string, log *slog.Logger) (*Bus, error) {
	nc, err := nats.Connect(url,
		nats.Name("cinematch"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("Bus disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("Bus reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to bus: %w", err)
	}
	return &Bus{nc: nc, log: log}, nil
}

func (b *Bus) PublishRoom(roomID string, e event.DomainEvent) error {
	return b.publish(RoomSubject(roomID), e)
}

func (b *Bus) PublishUser(userID string, e event.DomainEvent) error {
	return b.publish(UserSubject(userID), e)
}

func (b *Bus) publish(subject string, e event.DomainEvent) error {
	data, err := Encode(e)
	if err != nil {
		return err
	}
	if err := b.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s to %s: %w", e.Kind(), subject, err)
	}
	return nil
}

// SubscribeRooms delivers every room event into a buffered channel.
// The client drops for slow consumers instead of blocking the
// connection, which is acceptable for notifications.
func (b *Bus) SubscribeRooms(buffer int) (chan *nats.Msg, *nats.Subscription, error) {
	return b.chanSubscribe(SubjectAllRooms, buffer)
}

// SubscribeUsers delivers every user event into a buffered channel.
func (b *Bus) SubscribeUsers(buffer int) (chan *nats.Msg, *nats.Subscription, error) {
	return b.chanSubscribe(SubjectAllUsers, buffer)
}

func (b *Bus) chanSubscribe(subject string, buffer int) (chan *nats.Msg, *nats.Subscription, error) {
	ch := make(chan *nats.Msg, buffer)
	sub, err := b.nc.ChanSubscribe(subject, ch)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return ch, sub, nil
}

// Drain unsubscribes, flushes buffered messages, then closes the
// connection.
func (b *Bus) Drain() error {
	return b.nc.Drain()
}

func (b *Bus) Close() {
	b.nc.Close()
}
