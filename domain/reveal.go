package domain

import (
	"time"

	"github.com/google/uuid"
)

// RevealThreshold is the number of exchanged messages a match room must
// strictly exceed before either member may disclose their identity.
const RevealThreshold = 50

// Disclosure records one member showing their real profile to the peer.
// It is one way: once stored it is never removed.
type Disclosure struct {
	RoomID    uuid.UUID
	UserID    string
	Username  string
	AvatarURL string
	At        time.Time
}

type RevealPhase string

const (
	RevealLocked RevealPhase = "locked"
	RevealOpen   RevealPhase = "open"
)

// RevealState is the gate status of a match room as seen by a member.
type RevealState struct {
	RoomID      uuid.UUID
	Messages    int
	Threshold   int
	Disclosures []Disclosure
}

// Phase derives the gate position from the exchanged message count.
// The gate opens strictly above the threshold, never at it.
func (s RevealState) Phase() RevealPhase {
	if s.Messages > s.Threshold {
		return RevealOpen
	}
	return RevealLocked
}

// Revealed reports whether userID already disclosed their identity.
func (s RevealState) Revealed(userID string) bool {
	for _, d := range s.Disclosures {
		if d.UserID == userID {
			return true
		}
	}
	return false
}
