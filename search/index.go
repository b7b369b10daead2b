// Package search maintains the full-text index over broadcast
// messages. Match rooms are anonymous and stay out of the index.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"

	"cinematch/domain"
)

const defaultPage = 20

// Hit is one indexed message matched by a search.
type Hit struct {
	MessageID uuid.UUID
	RoomID    string
	Author    string
	Content   string
	At        time.Time
}

// Index batches writes into bluge and commits them once the batch
// reaches the configured size. Search commits pending writes first so
// a user always finds the message they just posted.
type Index struct {
	mu        sync.Mutex
	writer    *bluge.Writer
	batch     *bluge.Batch
	pending   int
	batchSize int
	page      int
	log       *slog.Logger
}

func Open(path string, log *slog.Logger, page, batchSize int) (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	return NewIndex(writer, log, page, batchSize), nil
}

func NewIndex(writer *bluge.Writer, log *slog.Logger, page, batchSize int) *Index {
	if page <= 0 {
		page = defaultPage
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Index{
		writer:    writer,
		batch:     bluge.NewBatch(),
		batchSize: batchSize,
		page:      page,
		log:       log,
	}
}

// Add queues one message for indexing.
func (ix *Index) Add(msg domain.Message) error {
	doc := bluge.NewDocument(msg.ID.String()).
		AddField(bluge.NewKeywordField("room", msg.RoomID.String()).StoreValue()).
		AddField(bluge.NewKeywordField("author", msg.DisplayName()).StoreValue()).
		AddField(bluge.NewTextField("content", msg.Content).StoreValue()).
		AddField(bluge.NewKeywordField("at", msg.CreatedAt.UTC().Format(time.RFC3339Nano)).StoreValue())

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.batch.Update(doc.ID(), doc)
	ix.pending++
	if ix.pending >= ix.batchSize {
		return ix.flushLocked()
	}
	return nil
}

// Flush commits queued documents so they become searchable.
func (ix *Index) Flush() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.flushLocked()
}

func (ix *Index) flushLocked() error {
	if ix.pending == 0 {
		return nil
	}
	if err := ix.writer.Batch(ix.batch); err != nil {
		return fmt.Errorf("failed to commit index batch: %w", err)
	}
	ix.batch.Reset()
	ix.pending = 0
	return nil
}

// Search runs a relevance-ranked query scoped to the room in q.
// The second return is the total match count before pagination.
func (ix *Index) Search(ctx context.Context, q Query) ([]Hit, uint64, error) {
	if err := ix.Flush(); err != nil {
		return nil, 0, err
	}

	reader, err := ix.writer.Reader()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open index reader: %w", err)
	}
	defer reader.Close()

	boolean := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(q.RoomID).SetField("room"))
	if q.Terms != "" {
		boolean.AddMust(bluge.NewMatchQuery(q.Terms).SetField("content"))
	}
	if q.Author != "" {
		boolean.AddMust(bluge.NewTermQuery(q.Author).SetField("author"))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = ix.page
	}
	request := bluge.NewTopNSearch(limit, boolean).
		WithStandardAggregations().
		SetFrom(q.Offset)

	dmi, err := reader.Search(ctx, request)
	if err != nil {
		return nil, 0, fmt.Errorf("search failed: %w", err)
	}

	var hits []Hit
	match, err := dmi.Next()
	for err == nil && match != nil {
		var hit Hit
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				if id, parseErr := uuid.Parse(string(value)); parseErr == nil {
					hit.MessageID = id
				}
			case "room":
				hit.RoomID = string(value)
			case "author":
				hit.Author = string(value)
			case "content":
				hit.Content = string(value)
			case "at":
				if at, parseErr := time.Parse(time.RFC3339Nano, string(value)); parseErr == nil {
					hit.At = at
				}
			}
			return true
		})
		if visitErr != nil {
			return nil, 0, visitErr
		}
		hits = append(hits, hit)
		match, err = dmi.Next()
	}
	if err != nil {
		return nil, 0, err
	}
	return hits, dmi.Aggregations().Count(), nil
}

func (ix *Index) Close() error {
	if err := ix.Flush(); err != nil {
		ix.log.Error("Failed to flush index on close", "error", err)
	}
	return ix.writer.Close()
}
