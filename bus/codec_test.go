package bus

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"cinematch/domain"
	"cinematch/domain/event"
)

func TestCodec_RoundTripsMessageAppended(t *testing.T) {
	req := require.New(t)

	msg := domain.Message{
		ID:        uuid.New(),
		RoomID:    uuid.New(),
		AuthorID:  "alice",
		Author:    "Alice",
		Alias:     "Amélie Poulain",
		Content:   "anyone watched the new release?",
		Lang:      "en",
		Flagged:   []string{"release"},
		Anonymous: true,
		CreatedAt: time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC),
	}

	data, err := Encode(event.MessageAppended{Message: msg})
	req.NoError(err)

	decoded, err := Decode(data)
	req.NoError(err)

	got, ok := decoded.(event.MessageAppended)
	req.True(ok)
	req.Equal(msg.ID, got.Message.ID)
	req.Equal(msg.RoomID, got.Message.RoomID)
	req.Equal(msg.AuthorID, got.Message.AuthorID)
	req.Equal(msg.Alias, got.Message.Alias)
	req.Equal(msg.Flagged, got.Message.Flagged)
	req.True(got.Message.Anonymous)
	req.True(msg.CreatedAt.Equal(got.Message.CreatedAt))
}

func TestCodec_RoundTripsMatchFound(t *testing.T) {
	req := require.New(t)

	room := domain.NewMatchRoom("alice", "bob", time.Now().UTC())
	data, err := Encode(event.MatchFound{UserID: "alice", Room: room})
	req.NoError(err)

	decoded, err := Decode(data)
	req.NoError(err)

	got, ok := decoded.(event.MatchFound)
	req.True(ok)
	req.Equal("alice", got.UserID)
	req.Equal(room.ID, got.Room.ID)
	req.Equal(room.Members, got.Room.Members)
	req.Equal(domain.RoomMatch, got.Room.Kind)
}

func TestCodec_RoundTripsIdentityRevealed(t *testing.T) {
	req := require.New(t)

	disclosure := domain.Disclosure{
		RoomID:   uuid.New(),
		UserID:   "bob",
		Username: "Bob",
		At:       time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	data, err := Encode(event.IdentityRevealed{Disclosure: disclosure})
	req.NoError(err)

	decoded, err := Decode(data)
	req.NoError(err)

	got, ok := decoded.(event.IdentityRevealed)
	req.True(ok)
	req.Equal(disclosure.RoomID, got.Disclosure.RoomID)
	req.Equal("bob", got.Disclosure.UserID)
	req.Equal("Bob", got.Disclosure.Username)
}

func TestCodec_RoundTripsSearchExpired(t *testing.T) {
	req := require.New(t)

	enqueued := time.Date(2026, 5, 1, 9, 55, 0, 0, time.UTC)
	data, err := Encode(event.SearchExpired{UserID: "clara", EnqueuedAt: enqueued})
	req.NoError(err)

	decoded, err := Decode(data)
	req.NoError(err)

	got, ok := decoded.(event.SearchExpired)
	req.True(ok)
	req.Equal("clara", got.UserID)
	req.True(enqueued.Equal(got.EnqueuedAt))
}

func TestCodec_RejectsUnknownKind(t *testing.T) {
	req := require.New(t)

	_, err := Decode([]byte(`{"kind":"room.vacuumed","payload":{}}`))
	req.ErrorContains(err, "unknown event kind")
}

func TestCodec_RejectsGarbage(t *testing.T) {
	req := require.New(t)

	_, err := Decode([]byte("not json at all"))
	req.Error(err)
}
