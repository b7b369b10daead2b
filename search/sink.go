package search

import (
	"context"
	"log/slog"

	"cinematch/domain/event"
)

// Indexer feeds committed messages into the index as they cross the
// fanout. Anonymous messages are skipped so a match partner can never
// be found through search before revealing.
type Indexer struct {
	index *Index
	log   *slog.Logger
}

func NewIndexer(index *Index, log *slog.Logger) *Indexer {
	return &Indexer{index: index, log: log}
}

func (s *Indexer) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageAppended:
		if evt.Message.Anonymous {
			return nil
		}
		return s.index.Add(evt.Message)
	}
	return nil
}
