package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"cinematch/contract"
	"cinematch/domain"
	"cinematch/domain/event"
	apperrors "cinematch/errors"
	"cinematch/moderation"
	"cinematch/observability"
	"cinematch/repositories"
	"cinematch/search"
)

type IChatService interface {
	Append(ctx context.Context, user domain.User, roomID uuid.UUID, content string) (domain.Message, error)
	History(user domain.User, roomID uuid.UUID, cursor *string) ([]domain.Message, *string, error)
	Search(ctx context.Context, user domain.User, roomID uuid.UUID, query search.Query) ([]search.Hit, uint64, error)
}

type ChatService struct {
	log        *slog.Logger
	rooms      repositories.IRoomRepository
	messages   repositories.IMessageRepository
	moderator  *moderation.Moderator
	index      *search.Index
	publisher  contract.EventPublisher
	metrics    *observability.Metrics
	locks      *roomLocks
	maxContent int
}

func NewChatService(
	log *slog.Logger,
	rooms repositories.IRoomRepository,
	messages repositories.IMessageRepository,
	moderator *moderation.Moderator,
	index *search.Index,
	publisher contract.EventPublisher,
	metrics *observability.Metrics,
	maxContent int,
) *ChatService {
	return &ChatService{
		log:        log,
		rooms:      rooms,
		messages:   messages,
		moderator:  moderator,
		index:      index,
		publisher:  publisher,
		metrics:    metrics,
		locks:      newRoomLocks(),
		maxContent: maxContent,
	}
}

func (s *ChatService) Append(ctx context.Context, user domain.User, roomID uuid.UUID, content string) (domain.Message, error) {
	// 1. Resolve the room and check the caller may write in it.
	room, err := s.room(roomID)
	if err != nil {
		return domain.Message{}, err
	}
	if !room.Admits(user.ID) {
		return domain.Message{}, fmt.Errorf("%w: %s in room %s", apperrors.ErrNotAMember, user.ID, roomID)
	}

	// 2. Validate the raw content before any moderation work.
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return domain.Message{}, apperrors.ErrEmptyContent
	}
	if length := utf8.RuneCountInString(trimmed); length > s.maxContent {
		return domain.Message{}, fmt.Errorf("%w: %d > %d", apperrors.ErrContentTooLong, length, s.maxContent)
	}

	// 3. Censor forbidden terms, then detect the language on what
	// readers will actually see.
	censored, flagged := s.moderator.Censor(trimmed)
	lang := moderation.DetectLanguage(censored)

	message := domain.Message{
		ID:        uuid.New(),
		RoomID:    room.ID,
		AuthorID:  user.ID,
		Author:    user.Username,
		Content:   censored,
		Lang:      lang,
		Flagged:   flagged,
		Anonymous: room.Kind == domain.RoomMatch,
		CreatedAt: time.Now().UTC(),
	}
	if message.Anonymous {
		message.Alias = domain.RandomAlias()
	}

	// 4. Persist then publish under the room lock, so subscribers
	// observe events in storage order.
	lock := s.locks.lockFor(room.ID.String())
	lock.Lock()
	defer lock.Unlock()

	count, err := s.messages.Append(repositories.FromMessage(message))
	if err != nil {
		return domain.Message{}, err
	}
	if err = s.publisher.PublishRoom(room.ID.String(), event.MessageAppended{Message: message}); err != nil {
		// The message is committed; subscribers catch up through history.
		s.log.Warn("Failed to publish appended message", "room", room.ID, "error", err)
	}

	s.metrics.Messages.WithLabelValues(string(room.Kind)).Inc()
	s.log.Debug("Message appended",
		"room", room.ID, "count", count, "lang", lang, "flagged", len(flagged))
	return message, nil
}

// History returns one page of the room stream, oldest first, with the
// cursor to request the next page.
func (s *ChatService) History(user domain.User, roomID uuid.UUID, cursor *string) ([]domain.Message, *string, error) {
	room, err := s.room(roomID)
	if err != nil {
		return nil, nil, err
	}
	if !room.Admits(user.ID) {
		return nil, nil, fmt.Errorf("%w: %s in room %s", apperrors.ErrNotAMember, user.ID, roomID)
	}

	page, next, err := s.messages.Page(room.ID.String(), cursor)
	if err != nil {
		return nil, nil, err
	}
	// The store pages newest first for the cursor walk; readers expect
	// chronological order within a page.
	lo.Reverse(page)
	messages, err := repositories.ToMessages(page)
	if err != nil {
		return nil, nil, err
	}
	return messages, next, nil
}

func (s *ChatService) Search(ctx context.Context, user domain.User, roomID uuid.UUID, query search.Query) ([]search.Hit, uint64, error) {
	room, err := s.room(roomID)
	if err != nil {
		return nil, 0, err
	}
	if !room.Admits(user.ID) {
		return nil, 0, fmt.Errorf("%w: %s in room %s", apperrors.ErrNotAMember, user.ID, roomID)
	}

	// Search never leaves the room the caller asked for.
	query.RoomID = room.ID.String()
	return s.index.Search(ctx, query)
}

func (s *ChatService) room(roomID uuid.UUID) (domain.Room, error) {
	stored, err := s.rooms.Get(roomID.String())
	if err != nil {
		return domain.Room{}, err
	}
	return stored.ToDomain()
}
