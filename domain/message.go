// Package domain contains core concepts of the matchmaking chat.
// This file defines Message entities and related rules.
// Messages are immutable once appended.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat entry.
//
// AuthorID and Author always carry the real identity for audit and
// ownership checks. In match rooms the author is displayed under Alias
// instead, drawn independently for every message, so readers can never
// correlate messages through a stable fake name.
type Message struct {
	ID        uuid.UUID
	RoomID    uuid.UUID
	AuthorID  string
	Author    string   // display name snapshot taken at append time
	Alias     string   // fake display name, set only when Anonymous
	Content   string   // moderated content, as shown to readers
	Lang      string   // ISO 639-1 code detected at append time
	Flagged   []string // censored terms found by moderation, audit only
	Anonymous bool
	CreatedAt time.Time
}

// DisplayName returns the name readers see for this message.
func (m Message) DisplayName() string {
	if m.Anonymous {
		return m.Alias
	}
	return m.Author
}
