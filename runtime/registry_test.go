package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	"cinematch/sink"
)

func TestRegistry_Subscribe_One_Room_Multiple_Connections(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	laptop := sink.NewChannel(1)
	phone := sink.NewChannel(1)

	// When the same user subscribes a room from two devices
	registry.SubscribeRoom("sub-laptop", "room-1", laptop)
	registry.SubscribeRoom("sub-phone", "room-1", phone)

	// Then both connections receive the feed
	req.Len(registry.SinksForRoom("room-1"), 2)
	req.Nil(registry.SinksForRoom("room-2"))
}

func TestRegistry_Unsubscribe_Removes_Only_One_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.SubscribeRoom("sub-laptop", "room-1", sink.NewChannel(1))
	registry.SubscribeRoom("sub-phone", "room-1", sink.NewChannel(1))

	// When one connection unsubscribes
	registry.UnsubscribeRoom("sub-laptop", "room-1")

	// Then the other keeps the feed
	req.Len(registry.SinksForRoom("room-1"), 1)

	// And the feed disappears entirely with the last one
	registry.UnsubscribeRoom("sub-phone", "room-1")
	req.Nil(registry.SinksForRoom("room-1"))
}

func TestRegistry_User_And_Room_Feeds_Are_Separate(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	s := sink.NewChannel(1)
	registry.SubscribeUser("sub-1", "alice", s)

	req.Len(registry.SinksForUser("alice"), 1)
	req.Nil(registry.SinksForRoom("alice"))

	registry.UnsubscribeUser("sub-1", "alice")
	req.Nil(registry.SinksForUser("alice"))
}

func TestRegistry_Counts_Across_Feeds(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.SubscribeRoom("sub-1", "room-1", sink.NewChannel(1))
	registry.SubscribeRoom("sub-2", "room-1", sink.NewChannel(1))
	registry.SubscribeRoom("sub-3", "room-2", sink.NewChannel(1))
	registry.SubscribeUser("sub-1", "alice", sink.NewChannel(1))

	rooms, users := registry.Counts()
	req.Equal(3, rooms)
	req.Equal(1, users)

	registry.UnsubscribeRoom("sub-3", "room-2")
	rooms, users = registry.Counts()
	req.Equal(2, rooms)
	req.Equal(1, users)
}

func TestRegistry_Unsubscribe_Unknown_Is_Noop(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.UnsubscribeRoom("ghost", "room-1")
	registry.UnsubscribeUser("ghost", "alice")

	rooms, users := registry.Counts()
	req.Zero(rooms)
	req.Zero(users)
}
