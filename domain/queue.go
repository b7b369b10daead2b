package domain

import "time"

// QueueEntry is a user waiting to be matched.
// A user owns at most one entry at any time.
type QueueEntry struct {
	UserID     string
	EnqueuedAt time.Time
}

type MatchStatus string

const (
	// MatchPaired means a waiting partner was consumed and a room exists.
	MatchPaired MatchStatus = "paired"
	// MatchQueued means no partner was waiting and the caller now is.
	MatchQueued MatchStatus = "queued"
)

// MatchResult is the outcome of a matchmaking request.
// Room is only set when Status is MatchPaired.
type MatchResult struct {
	Status MatchStatus
	Room   *Room
}

func (r MatchResult) Paired() bool {
	return r.Status == MatchPaired
}
