package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"cinematch/domain"
	"cinematch/domain/event"
	apperrors "cinematch/errors"
	"cinematch/search"
	"cinematch/sink"
)

// matchPollInterval bounds how long a waiting session can miss a lost
// pairing notification before the store is consulted directly.
const matchPollInterval = time.Second

// Session is one client's window on the system. Operations that need a
// room act on the active one set by Join.
type Session struct {
	id       string
	user     domain.User
	manager  *Manager
	userFeed *sink.Channel

	mu       sync.Mutex
	active   *domain.Room
	roomFeed *sink.Channel
}

func (s *Session) User() domain.User { return s.user }

// RequestMatch pairs the caller with a stranger. It returns at once
// when someone was already waiting, otherwise it suspends until a
// newcomer consumes the entry, the entry expires, or ctx is canceled.
// Canceling ctx stops the wait but leaves the queue entry; withdrawing
// is an explicit CancelMatch.
func (s *Session) RequestMatch(ctx context.Context) (domain.Room, error) {
	requestedAt := time.Now().UTC()
	result, err := s.manager.match.Request(ctx, s.user)
	if err != nil {
		return domain.Room{}, err
	}
	if result.Paired() {
		return *result.Room, nil
	}
	return s.awaitMatch(ctx, requestedAt)
}

// awaitMatch blocks on the user feed. The feed is best effort, so a
// slow poll double-checks the store in case the notification was lost
// between the pairing commit and the fanout.
func (s *Session) awaitMatch(ctx context.Context, requestedAt time.Time) (domain.Room, error) {
	ticker := time.NewTicker(matchPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return domain.Room{}, ctx.Err()

		case evt := <-s.userFeed.Events:
			switch e := evt.(type) {
			case event.MatchFound:
				return e.Room, nil
			case event.SearchExpired:
				return domain.Room{}, apperrors.ErrSearchExpired
			}

		case <-ticker.C:
			waiting, err := s.manager.match.Waiting(s.user)
			if err != nil {
				s.manager.log.Warn("Could not poll queue state", "user", s.user.ID, "error", err)
				continue
			}
			if waiting {
				continue
			}
			// The entry is gone without a notification reaching us:
			// either a pairing committed or the janitor swept it.
			if room, ok := s.matchRoomSince(requestedAt); ok {
				return room, nil
			}
			return domain.Room{}, apperrors.ErrSearchExpired
		}
	}
}

// matchRoomSince looks for a match room created after the request
// started, newest first.
func (s *Session) matchRoomSince(since time.Time) (domain.Room, bool) {
	rooms, err := s.manager.rooms.List(s.user)
	if err != nil {
		s.manager.log.Warn("Could not list rooms", "user", s.user.ID, "error", err)
		return domain.Room{}, false
	}

	var newest domain.Room
	found := false
	for _, room := range rooms {
		if room.Kind != domain.RoomMatch {
			continue
		}
		// One second of slack absorbs the partner committing just
		// before our own clock sample.
		if room.CreatedAt.Before(since.Add(-time.Second)) {
			continue
		}
		if !found || room.CreatedAt.After(newest.CreatedAt) {
			newest = room
			found = true
		}
	}
	return newest, found
}

// CancelMatch withdraws the caller's queue entry. False means there
// was nothing to withdraw; a pairing that raced the cancel stands.
func (s *Session) CancelMatch(ctx context.Context) (bool, error) {
	return s.manager.match.Cancel(ctx, s.user)
}

// Join makes roomID the active room and attaches a live subscription
// to it, replacing any previous one.
func (s *Session) Join(roomID uuid.UUID) (domain.Room, error) {
	room, err := s.manager.rooms.Get(s.user, roomID)
	if err != nil {
		return domain.Room{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachLocked()
	s.active = &room
	s.roomFeed = sink.NewChannel(s.manager.buffer)
	s.manager.registry.SubscribeRoom(s.id, room.ID.String(), s.roomFeed)
	s.manager.log.Debug("Session joined room", "session", s.id, "room", room.ID)
	return room, nil
}

// Leave detaches the live subscription and clears the active room.
// Membership is untouched; Join again to come back.
func (s *Session) Leave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachLocked()
}

func (s *Session) detachLocked() {
	if s.active == nil {
		return
	}
	s.manager.registry.UnsubscribeRoom(s.id, s.active.ID.String())
	s.active = nil
	s.roomFeed = nil
}

// Events returns the live feed of the active room, nil when no room
// is joined. The feed drops under backpressure; History catches up.
func (s *Session) Events() <-chan event.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roomFeed == nil {
		return nil
	}
	return s.roomFeed.Events
}

// UserEvents returns the session's user feed: pairing outcomes and
// queue evictions.
func (s *Session) UserEvents() <-chan event.DomainEvent {
	return s.userFeed.Events
}

// ActiveRoom returns the joined room, if any.
func (s *Session) ActiveRoom() (domain.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return domain.Room{}, false
	}
	return *s.active, true
}

func (s *Session) Send(ctx context.Context, content string) (domain.Message, error) {
	room, ok := s.ActiveRoom()
	if !ok {
		return domain.Message{}, apperrors.ErrNoActiveRoom
	}
	return s.manager.chat.Append(ctx, s.user, room.ID, content)
}

func (s *Session) History(cursor *string) ([]domain.Message, *string, error) {
	room, ok := s.ActiveRoom()
	if !ok {
		return nil, nil, apperrors.ErrNoActiveRoom
	}
	return s.manager.chat.History(s.user, room.ID, cursor)
}

func (s *Session) Search(ctx context.Context, query search.Query) ([]search.Hit, uint64, error) {
	room, ok := s.ActiveRoom()
	if !ok {
		return nil, 0, apperrors.ErrNoActiveRoom
	}
	return s.manager.chat.Search(ctx, s.user, room.ID, query)
}

func (s *Session) Rooms() ([]domain.Room, error) {
	return s.manager.rooms.List(s.user)
}

func (s *Session) Reveal(ctx context.Context) (domain.RevealState, error) {
	room, ok := s.ActiveRoom()
	if !ok {
		return domain.RevealState{}, apperrors.ErrNoActiveRoom
	}
	return s.manager.reveal.Reveal(ctx, s.user, room.ID)
}

func (s *Session) RevealState() (domain.RevealState, error) {
	room, ok := s.ActiveRoom()
	if !ok {
		return domain.RevealState{}, apperrors.ErrNoActiveRoom
	}
	return s.manager.reveal.State(s.user, room.ID)
}

// Close tears down every subscription the session holds. Idempotent.
func (s *Session) Close() {
	s.Leave()
	s.manager.registry.UnsubscribeUser(s.id, s.user.ID)
	s.manager.log.Debug("Session closed", "session", s.id, "user", s.user.ID)
}
