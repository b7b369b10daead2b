// Package session exposes the per-client façade over the services.
// A session holds the caller's identity, their user feed and at most
// one active room; everything else lives in the store.
package session

import (
	"log/slog"

	"github.com/google/uuid"

	"cinematch/contract"
	"cinematch/domain"
	"cinematch/services"
	"cinematch/sink"
)

type Manager struct {
	log      *slog.Logger
	chat     services.IChatService
	match    services.IMatchService
	rooms    services.IRoomService
	reveal   services.IRevealService
	registry contract.IRegistry
	buffer   int
}

func NewManager(
	log *slog.Logger,
	chat services.IChatService,
	match services.IMatchService,
	rooms services.IRoomService,
	reveal services.IRevealService,
	registry contract.IRegistry,
	buffer int,
) *Manager {
	if buffer <= 0 {
		buffer = 16
	}
	return &Manager{
		log:      log,
		chat:     chat,
		match:    match,
		rooms:    rooms,
		reveal:   reveal,
		registry: registry,
		buffer:   buffer,
	}
}

// Open starts a session and attaches the user feed, so matchmaking
// notifications cannot slip past between opening and the first wait.
func (m *Manager) Open(user domain.User) *Session {
	s := &Session{
		id:       uuid.NewString(),
		user:     user,
		manager:  m,
		userFeed: sink.NewChannel(m.buffer),
	}
	m.registry.SubscribeUser(s.id, user.ID, s.userFeed)
	m.log.Debug("Session opened", "session", s.id, "user", user.ID)
	return s
}
