// Package domain contains core concepts of the matchmaking chat.
// This file defines Rooms and their membership rules.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type RoomKind string

const (
	// RoomMatch is a private room holding exactly two matched users.
	RoomMatch RoomKind = "match"
	// RoomBroadcast is an open room any authenticated user may read and post to.
	RoomBroadcast RoomKind = "broadcast"
)

type Room struct {
	ID        uuid.UUID
	Kind      RoomKind
	Name      string   // human label, only set for broadcast rooms
	Members   []string // the two matched user IDs, empty for broadcast rooms
	CreatedAt time.Time
}

// NewMatchRoom creates the private room binding two matched users.
// The pair is fixed at creation and never changes afterwards.
func NewMatchRoom(first, second string, at time.Time) Room {
	return Room{
		ID:        uuid.New(),
		Kind:      RoomMatch,
		Members:   []string{first, second},
		CreatedAt: at,
	}
}

// NewBroadcastRoom derives a stable ID from the room name so that
// provisioning the same room list on every boot stays idempotent.
func NewBroadcastRoom(name string, at time.Time) Room {
	return Room{
		ID:        uuid.NewSHA1(uuid.NameSpaceURL, []byte("cinematch://rooms/"+name)),
		Kind:      RoomBroadcast,
		Name:      name,
		CreatedAt: at,
	}
}

// Open reports whether any authenticated user may read and post.
func (r Room) Open() bool {
	return r.Kind == RoomBroadcast
}

func (r Room) HasMember(userID string) bool {
	return lo.Contains(r.Members, userID)
}

// Admits reports whether userID may read and post in this room.
func (r Room) Admits(userID string) bool {
	return r.Open() || r.HasMember(userID)
}

// PeerOf returns the other member of a match room.
func (r Room) PeerOf(userID string) (string, bool) {
	if r.Kind != RoomMatch || !r.HasMember(userID) {
		return "", false
	}
	for _, m := range r.Members {
		if m != userID {
			return m, true
		}
	}
	return "", false
}
