package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"cinematch/domain"
	"cinematch/domain/event"
	apperrors "cinematch/errors"
	"cinematch/mocks"
	"cinematch/observability"
	"cinematch/repositories"
)

const testThreshold = 3

func newRevealService(t *testing.T, store testStore, publisher *mocks.MockEventPublisher) *RevealService {
	t.Helper()
	return NewRevealService(slog.Default(), store.rooms, store.messages, store.reveals,
		publisher, observability.NewMetrics(), testThreshold)
}

// exchange appends count messages directly through the repository to
// move the room counter.
func exchange(t *testing.T, store testStore, room domain.Room, count int) {
	t.Helper()
	now := time.Now().UTC()
	for i := 0; i < count; i++ {
		message := domain.Message{
			ID:        uuid.New(),
			RoomID:    room.ID,
			AuthorID:  alice.ID,
			Author:    alice.Username,
			Content:   "talking about movies",
			Anonymous: true,
			Alias:     domain.RandomAlias(),
			CreatedAt: now.Add(time.Duration(i) * time.Millisecond),
		}
		_, err := store.messages.Append(repositories.FromMessage(message))
		require.NoError(t, err)
	}
}

func TestRevealService_GateStaysClosedAtThreshold(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()

	store := newTestStore(t)
	publisher := mocks.NewMockEventPublisher(ctrl)
	svc := newRevealService(t, store, publisher)
	room := matchRoom(t, store)

	// Exactly the threshold is not enough; the gate opens strictly above.
	exchange(t, store, room, testThreshold)

	_, err := svc.Reveal(ctx, alice, room.ID)
	req.ErrorIs(err, apperrors.ErrRevealLocked)

	state, err := svc.State(alice, room.ID)
	req.NoError(err)
	req.Equal(domain.RevealLocked, state.Phase())
	req.Equal(testThreshold, state.Messages)
	req.Empty(state.Disclosures)
}

func TestRevealService_DisclosesAboveThreshold(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()

	store := newTestStore(t)
	publisher := mocks.NewMockEventPublisher(ctrl)
	svc := newRevealService(t, store, publisher)
	room := matchRoom(t, store)

	exchange(t, store, room, testThreshold+1)

	// The whole room hears about the disclosure, exactly once.
	publisher.EXPECT().
		PublishRoom(room.ID.String(), gomock.Any()).
		DoAndReturn(func(roomID string, e event.DomainEvent) error {
			revealed, ok := e.(event.IdentityRevealed)
			req.True(ok)
			req.Equal(alice.ID, revealed.Disclosure.UserID)
			req.Equal("Alice", revealed.Disclosure.Username)
			return nil
		}).
		Times(1)

	state, err := svc.Reveal(ctx, alice, room.ID)
	req.NoError(err)
	req.Equal(domain.RevealOpen, state.Phase())
	req.Len(state.Disclosures, 1)
	req.True(state.Revealed(alice.ID))
	req.False(state.Revealed(bob.ID))

	// Revealing again is a silent no-op; the first disclosure stands.
	state, err = svc.Reveal(ctx, alice, room.ID)
	req.NoError(err)
	req.Len(state.Disclosures, 1)
}

func TestRevealService_RefusesOutsidersAndOpenRooms(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()

	store := newTestStore(t)
	publisher := mocks.NewMockEventPublisher(ctrl)
	svc := newRevealService(t, store, publisher)

	open := broadcastRoom(t, store, "cinema")
	private := matchRoom(t, store)

	// Nobody is anonymous in a broadcast room, there is nothing to reveal.
	_, err := svc.Reveal(ctx, alice, open.ID)
	req.ErrorIs(err, apperrors.ErrNotMatchRoom)

	_, err = svc.Reveal(ctx, carol, private.ID)
	req.ErrorIs(err, apperrors.ErrNotAMember)

	_, err = svc.State(carol, private.ID)
	req.ErrorIs(err, apperrors.ErrNotAMember)
}
