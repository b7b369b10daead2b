package bus

import (
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"cinematch/domain"
	"cinematch/domain/event"
)

func testBus(t *testing.T) *Bus {
	t.Helper()
	srv, err := StartEmbeddedServer("127.0.0.1", -1)
	require.NoError(t, err)
	t.Cleanup(srv.Shutdown)

	b, err := Connect(srv.ClientURL(), slog.Default())
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b
}

func waitMsg(t *testing.T, ch chan *nats.Msg) *nats.Msg {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("no message delivered in time")
		return nil
	}
}

func TestBus_RoomEventReachesRoomSubscription(t *testing.T) {
	req := require.New(t)
	b := testBus(t)

	rooms, sub, err := b.SubscribeRooms(16)
	req.NoError(err)
	defer sub.Unsubscribe()

	room := domain.NewMatchRoom("alice", "bob", time.Now().UTC())
	msg := domain.Message{
		ID:       uuid.New(),
		RoomID:   room.ID,
		AuthorID: "alice",
		Content:  "hello",
	}
	req.NoError(b.PublishRoom(room.ID.String(), event.MessageAppended{Message: msg}))

	delivered := waitMsg(t, rooms)
	scope, id, ok := SplitSubject(delivered.Subject)
	req.True(ok)
	req.Equal("room", scope)
	req.Equal(room.ID.String(), id)

	decoded, err := Decode(delivered.Data)
	req.NoError(err)
	appended, ok := decoded.(event.MessageAppended)
	req.True(ok)
	req.Equal(msg.ID, appended.Message.ID)
	req.Equal("hello", appended.Message.Content)
}

func TestBus_UserAndRoomFeedsAreIsolated(t *testing.T) {
	req := require.New(t)
	b := testBus(t)

	rooms, roomSub, err := b.SubscribeRooms(16)
	req.NoError(err)
	defer roomSub.Unsubscribe()

	users, userSub, err := b.SubscribeUsers(16)
	req.NoError(err)
	defer userSub.Unsubscribe()

	room := domain.NewMatchRoom("alice", "bob", time.Now().UTC())
	req.NoError(b.PublishUser("bob", event.MatchFound{UserID: "bob", Room: room}))
	req.NoError(b.PublishRoom(room.ID.String(), event.MessageAppended{Message: domain.Message{ID: uuid.New(), RoomID: room.ID}}))

	fromUsers, err := Decode(waitMsg(t, users).Data)
	req.NoError(err)
	req.Equal(event.KindMatchFound, fromUsers.Kind())

	fromRooms, err := Decode(waitMsg(t, rooms).Data)
	req.NoError(err)
	req.Equal(event.KindMessageAppended, fromRooms.Kind())
}

func TestSplitSubject(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		scope   string
		id      string
		ok      bool
	}{
		{name: "Room subject", subject: "room.2b1c", scope: "room", id: "2b1c", ok: true},
		{name: "User subject", subject: "user.alice", scope: "user", id: "alice", ok: true},
		{name: "Identifier keeps extra dots", subject: "user.alice.smith", scope: "user", id: "alice.smith", ok: true},
		{name: "Unknown scope", subject: "metrics.alice", ok: false},
		{name: "Missing identifier", subject: "room.", ok: false},
		{name: "Bare scope", subject: "room", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			scope, id, ok := SplitSubject(tt.subject)
			req.Equal(tt.ok, ok)
			req.Equal(tt.scope, scope)
			req.Equal(tt.id, id)
		})
	}
}
