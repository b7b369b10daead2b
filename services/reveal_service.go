package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cinematch/contract"
	"cinematch/domain"
	"cinematch/domain/event"
	apperrors "cinematch/errors"
	"cinematch/observability"
	"cinematch/repositories"
)

type IRevealService interface {
	Reveal(ctx context.Context, user domain.User, roomID uuid.UUID) (domain.RevealState, error)
	State(user domain.User, roomID uuid.UUID) (domain.RevealState, error)
}

// RevealService guards the identity gate of match rooms. Disclosure
// is one way and strictly message-count gated; broadcast rooms have
// no gate because nobody is anonymous there.
type RevealService struct {
	log       *slog.Logger
	rooms     repositories.IRoomRepository
	messages  repositories.IMessageRepository
	reveals   repositories.IRevealRepository
	publisher contract.EventPublisher
	metrics   *observability.Metrics
	threshold int
}

func NewRevealService(
	log *slog.Logger,
	rooms repositories.IRoomRepository,
	messages repositories.IMessageRepository,
	reveals repositories.IRevealRepository,
	publisher contract.EventPublisher,
	metrics *observability.Metrics,
	threshold int,
) *RevealService {
	if threshold <= 0 {
		threshold = domain.RevealThreshold
	}
	return &RevealService{
		log:       log,
		rooms:     rooms,
		messages:  messages,
		reveals:   reveals,
		publisher: publisher,
		metrics:   metrics,
		threshold: threshold,
	}
}

func (s *RevealService) Reveal(ctx context.Context, user domain.User, roomID uuid.UUID) (domain.RevealState, error) {
	// 1. Only members of a match room may disclose.
	room, err := s.matchRoom(user, roomID)
	if err != nil {
		return domain.RevealState{}, err
	}

	// 2. Write the disclosure. The gate check shares a transaction
	// with the message counter read, so racing reveals cannot slip
	// under the threshold.
	disclosure := domain.Disclosure{
		RoomID:    room.ID,
		UserID:    user.ID,
		Username:  user.Username,
		AvatarURL: user.AvatarURL,
		At:        time.Now().UTC(),
	}
	added, err := s.reveals.Record(room.ID.String(), repositories.FromDisclosure(disclosure), s.threshold)
	if err != nil {
		return domain.RevealState{}, err
	}

	// 3. Announce the first successful write to the room. A repeated
	// reveal changes nothing and stays silent.
	if added {
		s.metrics.Reveals.Inc()
		s.log.Info("Identity revealed", "room", room.ID, "user", user.ID)
		if err = s.publisher.PublishRoom(room.ID.String(), event.IdentityRevealed{Disclosure: disclosure}); err != nil {
			s.log.Warn("Failed to publish disclosure", "room", room.ID, "error", err)
		}
	}

	return s.state(room)
}

func (s *RevealService) State(user domain.User, roomID uuid.UUID) (domain.RevealState, error) {
	room, err := s.matchRoom(user, roomID)
	if err != nil {
		return domain.RevealState{}, err
	}
	return s.state(room)
}

func (s *RevealService) matchRoom(user domain.User, roomID uuid.UUID) (domain.Room, error) {
	stored, err := s.rooms.Get(roomID.String())
	if err != nil {
		return domain.Room{}, err
	}
	room, err := stored.ToDomain()
	if err != nil {
		return domain.Room{}, err
	}
	if room.Kind != domain.RoomMatch {
		return domain.Room{}, fmt.Errorf("%w: %s", apperrors.ErrNotMatchRoom, roomID)
	}
	if !room.HasMember(user.ID) {
		return domain.Room{}, fmt.Errorf("%w: %s in room %s", apperrors.ErrNotAMember, user.ID, roomID)
	}
	return room, nil
}

func (s *RevealService) state(room domain.Room) (domain.RevealState, error) {
	count, err := s.messages.Count(room.ID.String())
	if err != nil {
		return domain.RevealState{}, err
	}
	stored, err := s.reveals.Disclosures(room.ID.String())
	if err != nil {
		return domain.RevealState{}, err
	}

	disclosures := make([]domain.Disclosure, 0, len(stored))
	for _, d := range stored {
		disclosure, err := d.ToDomain()
		if err != nil {
			return domain.RevealState{}, err
		}
		disclosures = append(disclosures, disclosure)
	}

	return domain.RevealState{
		RoomID:      room.ID,
		Messages:    count,
		Threshold:   s.threshold,
		Disclosures: disclosures,
	}, nil
}
