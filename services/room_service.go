package services

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cinematch/domain"
	apperrors "cinematch/errors"
	"cinematch/repositories"
)

type IRoomService interface {
	Provision(names []string) error
	Get(user domain.User, roomID uuid.UUID) (domain.Room, error)
	List(user domain.User) ([]domain.Room, error)
}

type RoomService struct {
	log   *slog.Logger
	rooms repositories.IRoomRepository
}

func NewRoomService(log *slog.Logger, rooms repositories.IRoomRepository) *RoomService {
	return &RoomService{log: log, rooms: rooms}
}

// Provision creates the configured broadcast rooms. IDs derive from
// the names, so running it on every boot is idempotent.
func (s *RoomService) Provision(names []string) error {
	now := time.Now().UTC()
	for _, name := range names {
		room := domain.NewBroadcastRoom(name, now)
		if err := s.rooms.SaveBroadcast(repositories.FromRoom(room)); err != nil {
			return fmt.Errorf("provisioning room %q: %w", name, err)
		}
		s.log.Info("Broadcast room ready", "name", name, "room", room.ID)
	}
	return nil
}

func (s *RoomService) Get(user domain.User, roomID uuid.UUID) (domain.Room, error) {
	stored, err := s.rooms.Get(roomID.String())
	if err != nil {
		return domain.Room{}, err
	}
	room, err := stored.ToDomain()
	if err != nil {
		return domain.Room{}, err
	}
	if !room.Admits(user.ID) {
		return domain.Room{}, fmt.Errorf("%w: %s in room %s", apperrors.ErrNotAMember, user.ID, roomID)
	}
	return room, nil
}

// List returns every room the user may enter: the open broadcast
// rooms first, then their private match rooms.
func (s *RoomService) List(user domain.User) ([]domain.Room, error) {
	open, err := s.rooms.Broadcasts()
	if err != nil {
		return nil, err
	}
	mine, err := s.rooms.ForUser(user.ID)
	if err != nil {
		return nil, err
	}

	rooms := make([]domain.Room, 0, len(open)+len(mine))
	for _, stored := range append(open, mine...) {
		room, err := stored.ToDomain()
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}
