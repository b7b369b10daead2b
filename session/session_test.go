package session

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"cinematch/domain"
	"cinematch/domain/event"
	apperrors "cinematch/errors"
	"cinematch/moderation"
	"cinematch/observability"
	"cinematch/repositories"
	"cinematch/runtime"
	"cinematch/search"
	"cinematch/services"
)

var (
	alice = domain.User{ID: "alice", Username: "Alice"}
	bob   = domain.User{ID: "bob", Username: "Bob"}
)

// loopbackPublisher hands events straight to the registry sinks,
// standing in for the bus and the fanout worker.
type loopbackPublisher struct {
	registry *runtime.Registry
	dropUser bool
}

func (p *loopbackPublisher) PublishRoom(roomID string, e event.DomainEvent) error {
	for _, s := range p.registry.SinksForRoom(roomID) {
		_ = s.Consume(context.Background(), e)
	}
	return nil
}

func (p *loopbackPublisher) PublishUser(userID string, e event.DomainEvent) error {
	if p.dropUser {
		return nil
	}
	for _, s := range p.registry.SinksForUser(userID) {
		_ = s.Consume(context.Background(), e)
	}
	return nil
}

func newManager(t *testing.T, publisher *loopbackPublisher) (*Manager, *runtime.Registry) {
	t.Helper()
	req := require.New(t)
	log := slog.Default()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	registry := runtime.NewRegistry()
	publisher.registry = registry

	rooms := repositories.NewRoomRepository(db, log)
	messages := repositories.NewMessageRepository(db, log, nil)
	matches := repositories.NewMatchRepository(db, log)
	reveals := repositories.NewRevealRepository(db, log)

	moderator, err := moderation.NewModerator([]string{"spoiler"}, '*', log)
	req.NoError(err)
	index, err := search.Open(t.TempDir(), log, 20, 10)
	req.NoError(err)
	t.Cleanup(func() { _ = index.Close() })
	metrics := observability.NewMetrics()

	chat := services.NewChatService(log, rooms, messages, &moderator, index, publisher, metrics, 500)
	match := services.NewMatchService(log, matches, publisher, metrics)
	roomSvc := services.NewRoomService(log, rooms)
	reveal := services.NewRevealService(log, rooms, messages, reveals, publisher, metrics, 2)

	return NewManager(log, chat, match, roomSvc, reveal, registry, 16), registry
}

func TestSession_MatchThenChat(t *testing.T) {
	req := require.New(t)
	manager, _ := newManager(t, &loopbackPublisher{})

	s1 := manager.Open(alice)
	defer s1.Close()
	s2 := manager.Open(bob)
	defer s2.Close()

	// Given alice waits for a stranger
	type matched struct {
		room domain.Room
		err  error
	}
	aliceDone := make(chan matched, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		room, err := s1.RequestMatch(ctx)
		aliceDone <- matched{room, err}
	}()

	// Once her entry is visible, bob's request must pair at once.
	req.Eventually(func() bool {
		waiting, err := manager.match.Waiting(alice)
		return err == nil && waiting
	}, 5*time.Second, 20*time.Millisecond)

	bobRoom, err := s2.RequestMatch(context.Background())
	req.NoError(err)

	result := <-aliceDone
	req.NoError(result.err)
	req.Equal(bobRoom.ID, result.room.ID)
	req.ElementsMatch([]string{"alice", "bob"}, result.room.Members)

	// When both join and bob speaks
	_, err = s1.Join(result.room.ID)
	req.NoError(err)
	_, err = s2.Join(bobRoom.ID)
	req.NoError(err)

	sent, err := s2.Send(context.Background(), "hello stranger")
	req.NoError(err)
	req.True(sent.Anonymous)

	// Then alice sees it on her live feed, under an alias
	select {
	case evt := <-s1.Events():
		appended, ok := evt.(event.MessageAppended)
		req.True(ok)
		req.Equal("hello stranger", appended.Message.Content)
		req.True(domain.KnownAlias(appended.Message.DisplayName()))
	case <-time.After(2 * time.Second):
		req.Fail("Message never reached the peer's feed")
	}
}

func TestSession_RequestMatchStopsWithContext(t *testing.T) {
	req := require.New(t)
	manager, _ := newManager(t, &loopbackPublisher{})

	s := manager.Open(alice)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := s.RequestMatch(ctx)
	req.ErrorIs(err, context.DeadlineExceeded)

	// Stopping the wait does not withdraw the entry.
	removed, err := s.CancelMatch(context.Background())
	req.NoError(err)
	req.True(removed)
}

func TestSession_LostNotificationRecoveredByPolling(t *testing.T) {
	req := require.New(t)
	// Given a bus that silently loses every user notification
	manager, _ := newManager(t, &loopbackPublisher{dropUser: true})

	s1 := manager.Open(alice)
	defer s1.Close()
	s2 := manager.Open(bob)
	defer s2.Close()

	done := make(chan domain.Room, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		room, err := s1.RequestMatch(ctx)
		req.NoError(err)
		done <- room
	}()

	// Leave alice the time to enqueue before bob pops her entry.
	req.Eventually(func() bool {
		waiting, err := manager.match.Waiting(alice)
		return err == nil && waiting
	}, 5*time.Second, 20*time.Millisecond)

	ctx := context.Background()
	bobRoom, err := s2.RequestMatch(ctx)
	req.NoError(err)

	// Then the poll fallback finds the room anyway
	select {
	case aliceRoom := <-done:
		req.Equal(bobRoom.ID, aliceRoom.ID)
	case <-time.After(10 * time.Second):
		req.Fail("Polling should have recovered the lost pairing")
	}
	wg.Wait()
}

func TestSession_OperationsNeedAnActiveRoom(t *testing.T) {
	req := require.New(t)
	manager, _ := newManager(t, &loopbackPublisher{})

	s := manager.Open(alice)
	defer s.Close()

	_, err := s.Send(context.Background(), "hello")
	req.ErrorIs(err, apperrors.ErrNoActiveRoom)
	_, _, err = s.History(nil)
	req.ErrorIs(err, apperrors.ErrNoActiveRoom)
	_, err = s.Reveal(context.Background())
	req.ErrorIs(err, apperrors.ErrNoActiveRoom)
	req.Nil(s.Events())
}

func TestSession_LeaveDetachesTheFeedOnly(t *testing.T) {
	req := require.New(t)
	manager, registry := newManager(t, &loopbackPublisher{})

	s1 := manager.Open(alice)
	defer s1.Close()
	s2 := manager.Open(bob)
	defer s2.Close()

	room := pairThroughQueue(t, s1, s2)

	_, err := s1.Join(room.ID)
	req.NoError(err)
	rooms, users := registry.Counts()
	req.Equal(1, rooms)
	req.Equal(2, users)

	// When alice leaves
	s1.Leave()
	_, active := s1.ActiveRoom()
	req.False(active)
	rooms, _ = registry.Counts()
	req.Equal(0, rooms)

	// Then membership survives and she can come back
	_, err = s1.Join(room.ID)
	req.NoError(err)
}

func TestSession_RevealThroughTheGate(t *testing.T) {
	req := require.New(t)
	manager, _ := newManager(t, &loopbackPublisher{})
	ctx := context.Background()

	s1 := manager.Open(alice)
	defer s1.Close()
	s2 := manager.Open(bob)
	defer s2.Close()

	room := pairThroughQueue(t, s1, s2)
	_, err := s1.Join(room.ID)
	req.NoError(err)
	_, err = s2.Join(room.ID)
	req.NoError(err)

	// The manager was built with a threshold of two messages.
	_, err = s1.Send(ctx, "one")
	req.NoError(err)
	_, err = s1.Reveal(ctx)
	req.ErrorIs(err, apperrors.ErrRevealLocked)

	_, err = s2.Send(ctx, "two")
	req.NoError(err)
	_, err = s2.Send(ctx, "three")
	req.NoError(err)

	state, err := s1.Reveal(ctx)
	req.NoError(err)
	req.Equal(domain.RevealOpen, state.Phase())
	req.True(state.Revealed(alice.ID))

	peerState, err := s2.RevealState()
	req.NoError(err)
	req.True(peerState.Revealed(alice.ID))
	req.False(peerState.Revealed(bob.ID))
}

// pairThroughQueue matches the two sessions and returns their room.
func pairThroughQueue(t *testing.T, s1, s2 *Session) domain.Room {
	t.Helper()
	req := require.New(t)

	done := make(chan domain.Room, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		room, err := s1.RequestMatch(ctx)
		if err == nil {
			done <- room
		}
	}()

	req.Eventually(func() bool {
		waiting, err := s1.manager.match.Waiting(s1.user)
		return err == nil && waiting
	}, 5*time.Second, 20*time.Millisecond)

	_, err := s2.RequestMatch(context.Background())
	req.NoError(err)

	select {
	case room := <-done:
		return room
	case <-time.After(5 * time.Second):
		req.Fail("Sessions never matched")
		return domain.Room{}
	}
}
