package search

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/db"
	"github.com/stretchr/testify/require"

	"cinematch/domain"
	"cinematch/domain/event"
)

func testIndex(t *testing.T) *Index {
	t.Helper()
	_, log, badgerDB, blugeWriter, err := db.SetupBenchmark(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupDB(badgerDB, blugeWriter) })

	return NewIndex(blugeWriter, log, 20, 10)
}

func publicMessage(room uuid.UUID, author, content string) domain.Message {
	return domain.Message{
		ID:        uuid.New(),
		RoomID:    room,
		AuthorID:  author,
		Author:    author,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

func TestIndex_SearchIsScopedToRoom(t *testing.T) {
	req := require.New(t)
	ix := testIndex(t)

	horror := uuid.New()
	comedy := uuid.New()
	req.NoError(ix.Add(publicMessage(horror, "Alice", "the shining is terrifying")))
	req.NoError(ix.Add(publicMessage(comedy, "Bob", "the shining parody was hilarious")))

	req.NoError(ix.Flush())
	time.Sleep(50 * time.Millisecond)

	hits, total, err := ix.Search(context.Background(), Query{RoomID: horror.String(), Terms: "shining"})
	req.NoError(err)
	req.Equal(uint64(1), total)
	req.Len(hits, 1)
	req.Equal("Alice", hits[0].Author)
	req.Equal(horror.String(), hits[0].RoomID)
}

func TestIndex_SearchFindsOwnUnflushedWrites(t *testing.T) {
	req := require.New(t)
	ix := testIndex(t)

	room := uuid.New()
	req.NoError(ix.Add(publicMessage(room, "Alice", "fresh popcorn opinions")))

	// No explicit flush: Search must commit the pending batch itself.
	hits, _, err := ix.Search(context.Background(), Query{RoomID: room.String(), Terms: "popcorn"})
	req.NoError(err)
	req.Len(hits, 1)
}

func TestIndex_PaginatesWithTotal(t *testing.T) {
	req := require.New(t)
	ix := testIndex(t)

	room := uuid.New()
	for i := 0; i < 5; i++ {
		req.NoError(ix.Add(publicMessage(room, fmt.Sprintf("user_%d", i), "blockbuster season again")))
	}
	req.NoError(ix.Flush())
	time.Sleep(50 * time.Millisecond)

	firstPage, total, err := ix.Search(context.Background(), Query{RoomID: room.String(), Terms: "blockbuster", Limit: 2})
	req.NoError(err)
	req.Equal(uint64(5), total)
	req.Len(firstPage, 2)

	lastPage, total, err := ix.Search(context.Background(), Query{RoomID: room.String(), Terms: "blockbuster", Limit: 2, Offset: 4})
	req.NoError(err)
	req.Equal(uint64(5), total)
	req.Len(lastPage, 1)
}

func TestIndexer_SkipsAnonymousMessages(t *testing.T) {
	req := require.New(t)
	ix := testIndex(t)
	indexer := NewIndexer(ix, slog.Default())

	room := uuid.New()
	anonymous := publicMessage(room, "alice", "secret confession about sequels")
	anonymous.Anonymous = true
	anonymous.Alias = "Amélie Poulain"

	req.NoError(indexer.Consume(context.Background(), event.MessageAppended{Message: anonymous}))
	req.NoError(indexer.Consume(context.Background(), event.MessageAppended{Message: publicMessage(room, "Bob", "public confession about sequels")}))

	hits, total, err := ix.Search(context.Background(), Query{RoomID: room.String(), Terms: "confession"})
	req.NoError(err)
	req.Equal(uint64(1), total)
	req.Len(hits, 1)
	req.Equal("Bob", hits[0].Author)
}

func TestIndexer_IgnoresOtherEvents(t *testing.T) {
	req := require.New(t)
	ix := testIndex(t)
	indexer := NewIndexer(ix, slog.Default())

	req.NoError(indexer.Consume(context.Background(), event.MatchFound{UserID: "alice"}))
	req.NoError(indexer.Consume(context.Background(), event.SearchExpired{UserID: "bob"}))
}
