package services

import (
	"context"
	"log/slog"
	"time"

	"cinematch/contract"
	"cinematch/domain"
	"cinematch/domain/event"
	"cinematch/observability"
	"cinematch/repositories"
)

type IMatchService interface {
	Request(ctx context.Context, user domain.User) (domain.MatchResult, error)
	Cancel(ctx context.Context, user domain.User) (bool, error)
	Waiting(user domain.User) (bool, error)
}

// MatchService pairs strangers. The repository does the atomic part;
// the service turns outcomes into notifications.
type MatchService struct {
	log       *slog.Logger
	matches   repositories.IMatchRepository
	publisher contract.EventPublisher
	metrics   *observability.Metrics
}

func NewMatchService(
	log *slog.Logger,
	matches repositories.IMatchRepository,
	publisher contract.EventPublisher,
	metrics *observability.Metrics,
) *MatchService {
	return &MatchService{log: log, matches: matches, publisher: publisher, metrics: metrics}
}

func (s *MatchService) Request(ctx context.Context, user domain.User) (domain.MatchResult, error) {
	// 1. Consume the earliest waiting user or park the caller, atomically.
	outcome, err := s.matches.PopOrEnqueue(user.ID, time.Now().UTC())
	if err != nil {
		return domain.MatchResult{}, err
	}
	if !outcome.Paired {
		s.log.Info("User queued for matching", "user", user.ID)
		return domain.MatchResult{Status: domain.MatchQueued}, nil
	}

	// 2. A room exists. The caller learns it from the return value,
	// the partner through their user feed.
	room, err := outcome.Room.ToDomain()
	if err != nil {
		return domain.MatchResult{}, err
	}
	s.metrics.Matches.Inc()
	if peer, ok := room.PeerOf(user.ID); ok {
		if err = s.publisher.PublishUser(peer, event.MatchFound{UserID: peer, Room: room}); err != nil {
			s.log.Warn("Failed to notify matched partner", "peer", peer, "error", err)
		}
	}

	s.log.Info("Users matched", "room", room.ID, "members", room.Members)
	return domain.MatchResult{Status: domain.MatchPaired, Room: &room}, nil
}

// Cancel withdraws the caller from the queue. It reports false when
// there was nothing to withdraw, either because the caller never
// queued or because a concurrent pairing won; that pairing stands.
func (s *MatchService) Cancel(ctx context.Context, user domain.User) (bool, error) {
	removed, err := s.matches.Cancel(user.ID)
	if err != nil {
		return false, err
	}
	if removed {
		s.log.Info("User left the match queue", "user", user.ID)
	}
	return removed, nil
}

func (s *MatchService) Waiting(user domain.User) (bool, error) {
	return s.matches.Waiting(user.ID)
}
