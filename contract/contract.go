//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"cinematch/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives events delivered by the fanout worker.
// Consume must return quickly; slow sinks are cut off by the
// per-delivery timeout and must not block siblings.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry tracks live subscriptions. Room feeds carry messages and
// disclosures; user feeds carry matchmaking outcomes. Subscriptions
// are keyed by an opaque ID so one user may hold several connections.
type IRegistry interface {
	SubscribeRoom(subID, roomID string, sink EventSink)
	UnsubscribeRoom(subID, roomID string)
	SubscribeUser(subID, userID string, sink EventSink)
	UnsubscribeUser(subID, userID string)
	SinksForRoom(roomID string) []EventSink
	SinksForUser(userID string) []EventSink
}

// EventPublisher pushes domain events onto the realtime bus.
// Publishing is a notification, not the source of truth: state is
// already committed to storage before anything is published.
type EventPublisher interface {
	PublishRoom(roomID string, e event.DomainEvent) error
	PublishUser(userID string, e event.DomainEvent) error
}
