// Package projection builds local timelines from observed events.
// Handles ordering, deduplication, and grouping hints.
// Does not emit events or interact with UI directly.
package projection

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"cinematch/domain"
	"cinematch/domain/event"
)

// GroupWindow is the largest gap between two consecutive messages of the
// same author for the second one to render grouped under the first.
// A gap of exactly the window starts a new group.
const GroupWindow = 5 * time.Minute

// Entry pairs a message with its computed display hints.
type Entry struct {
	Message domain.Message
	Grouped bool
}

// Timeline merges history pages and live events into one chronological
// view. Deliveries are at least once and unordered across the
// history/subscription seam; the timeline absorbs duplicates by message
// ID and re-sorts on read, so two consumers of the same room always
// converge to the same sequence.
type Timeline struct {
	mu       sync.Mutex
	seen     map[uuid.UUID]struct{}
	messages []domain.Message
}

func NewTimeline() *Timeline {
	return &Timeline{seen: make(map[uuid.UUID]struct{})}
}

// Consume lets a timeline sit directly behind a subscription sink.
// Events other than appended messages are ignored.
func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	if m, ok := e.(event.MessageAppended); ok {
		t.Add(m.Message)
	}
	return nil
}

// Add inserts messages not yet observed and reports how many were new.
func (t *Timeline) Add(messages ...domain.Message) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	added := 0
	for _, m := range messages {
		if _, ok := t.seen[m.ID]; ok {
			continue
		}
		t.seen[m.ID] = struct{}{}
		t.messages = append(t.messages, m)
		added++
	}
	return added
}

func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

// Entries returns the messages ordered by (CreatedAt, ID) with grouping
// hints. The ID tiebreak keeps the order total, so the view is identical
// wherever it is rebuilt.
func (t *Timeline) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	ordered := make([]domain.Message, len(t.messages))
	copy(ordered, t.messages)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return bytes.Compare(ordered[i].ID[:], ordered[j].ID[:]) < 0
	})

	entries := make([]Entry, len(ordered))
	for i, m := range ordered {
		entries[i] = Entry{Message: m, Grouped: i > 0 && Grouped(ordered[i-1], m)}
	}
	return entries
}

// Grouped reports whether current should render attached to previous:
// same author, and close enough in time. The first message of a room is
// never grouped by construction.
func Grouped(previous, current domain.Message) bool {
	if previous.AuthorID != current.AuthorID {
		return false
	}
	gap := current.CreatedAt.Sub(previous.CreatedAt)
	return gap >= 0 && gap < GroupWindow
}
