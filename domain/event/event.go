// Package event defines the domain events flowing through the bus.
// Events are facts that already happened; consumers must tolerate
// duplicates and reorder locally.
package event

import (
	"time"

	"cinematch/domain"
)

type Kind string

const (
	KindMessageAppended  Kind = "message.appended"
	KindMatchFound       Kind = "match.found"
	KindIdentityRevealed Kind = "identity.revealed"
	KindSearchExpired    Kind = "search.expired"
)

type DomainEvent interface {
	Kind() Kind
}

// MessageAppended is published on the room feed after a message commits.
// The payload carries the real author; transports strip identity before
// handing anonymous messages to clients.
type MessageAppended struct {
	Message domain.Message
}

func (MessageAppended) Kind() Kind { return KindMessageAppended }

// MatchFound is published on the waiting user's feed when a newcomer
// consumed their queue entry. The caller side of the pairing learns the
// room synchronously and never needs this event.
type MatchFound struct {
	UserID string
	Room   domain.Room
}

func (MatchFound) Kind() Kind { return KindMatchFound }

// IdentityRevealed is published on the room feed when a member passes
// the reveal gate and discloses their real profile.
type IdentityRevealed struct {
	Disclosure domain.Disclosure
}

func (IdentityRevealed) Kind() Kind { return KindIdentityRevealed }

// SearchExpired is published on the user's feed when the janitor evicts
// their queue entry after the configured waiting time.
type SearchExpired struct {
	UserID     string
	EnqueuedAt time.Time
}

func (SearchExpired) Kind() Kind { return KindSearchExpired }
