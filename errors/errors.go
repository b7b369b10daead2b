package errors

import "fmt"

var (
	ErrWorkerPanic   = fmt.Errorf("worker panic")
	ErrOnlyWordFiles = fmt.Errorf("wordlists directory contains directories")
	ErrEmptyWords    = fmt.Errorf("no words have been found")

	// Validation failures, surfaced to callers as invalid arguments.
	ErrEmptyContent   = fmt.Errorf("empty content")
	ErrContentTooLong = fmt.Errorf("content too long")
	ErrInvalidUserID  = fmt.Errorf("invalid user id")
	ErrNotMatchRoom   = fmt.Errorf("not a match room")

	// Access and lookup failures.
	ErrRoomNotFound = fmt.Errorf("room not found")
	ErrNotAMember   = fmt.Errorf("not a member of the room")
	ErrInvalidToken = fmt.Errorf("invalid token")

	// ErrNoActiveRoom is returned by session operations that need a
	// joined room first.
	ErrNoActiveRoom = fmt.Errorf("no active room")

	// ErrSearchExpired is returned when a queued matchmaking request
	// was evicted before a partner arrived.
	ErrSearchExpired = fmt.Errorf("search expired")

	// ErrRevealLocked is returned while a match room has not exchanged
	// enough messages for identity disclosure.
	ErrRevealLocked = fmt.Errorf("reveal locked")

	// ErrStoreUnavailable wraps transient storage failures, typically
	// transactions that kept conflicting after retries. Safe to retry.
	ErrStoreUnavailable = fmt.Errorf("store unavailable")
)
