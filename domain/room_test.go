package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewMatchRoom_BindsExactlyTwoMembers(t *testing.T) {
	req := require.New(t)
	now := time.Now().UTC()

	room := NewMatchRoom("alice", "bob", now)

	req.Equal(RoomMatch, room.Kind)
	req.Len(room.Members, 2)
	req.True(room.HasMember("alice"))
	req.True(room.HasMember("bob"))
	req.False(room.Open())
	req.Equal(now, room.CreatedAt)
}

func TestNewBroadcastRoom_DeterministicID(t *testing.T) {
	req := require.New(t)

	first := NewBroadcastRoom("cinema", time.Now())
	second := NewBroadcastRoom("cinema", time.Now().Add(time.Hour))
	other := NewBroadcastRoom("series", time.Now())

	// Same name always lands on the same room, reboot after reboot.
	req.Equal(first.ID, second.ID)
	req.NotEqual(first.ID, other.ID)
	req.Equal(RoomBroadcast, first.Kind)
	req.True(first.Open())
}

func TestRoom_Admits(t *testing.T) {
	match := NewMatchRoom("alice", "bob", time.Now())
	broadcast := NewBroadcastRoom("cinema", time.Now())

	tests := []struct {
		name     string
		room     Room
		userID   string
		expected bool
	}{
		{name: "match member", room: match, userID: "alice", expected: true},
		{name: "match stranger", room: match, userID: "mallory", expected: false},
		{name: "broadcast anyone", room: broadcast, userID: "mallory", expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.room.Admits(tt.userID))
		})
	}
}

func TestRoom_PeerOf(t *testing.T) {
	req := require.New(t)
	room := NewMatchRoom("alice", "bob", time.Now())

	peer, ok := room.PeerOf("alice")
	req.True(ok)
	req.Equal("bob", peer)

	peer, ok = room.PeerOf("bob")
	req.True(ok)
	req.Equal("alice", peer)

	_, ok = room.PeerOf("mallory")
	req.False(ok)

	_, ok = NewBroadcastRoom("cinema", time.Now()).PeerOf("alice")
	req.False(ok)
}
