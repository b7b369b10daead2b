package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testMessage(roomID, author string, at time.Time) DiskMessage {
	return DiskMessage{
		ID:       uuid.New(),
		Room:     roomID,
		AuthorID: author,
		Author:   author,
		Content:  "this message will self destruct in 5 seconds",
		At:       at,
	}
}

func TestMessageRepository_AppendCountsPerRoom(t *testing.T) {
	req := require.New(t)
	db := testDB(t)

	repository := NewMessageRepository(db, slog.Default(), nil)
	roomA := uuid.NewString()
	roomB := uuid.NewString()
	at := time.Now().UTC()

	for i := 1; i <= 3; i++ {
		total, err := repository.Append(testMessage(roomA, "Alice", at.Add(time.Duration(i)*time.Minute)))
		req.NoError(err)
		req.Equal(i, total)
	}

	total, err := repository.Append(testMessage(roomB, "Bob", at))
	req.NoError(err)
	req.Equal(1, total)

	count, err := repository.Count(roomA)
	req.NoError(err)
	req.Equal(3, count)

	count, err = repository.Count(roomB)
	req.NoError(err)
	req.Equal(1, count)

	count, err = repository.Count(uuid.NewString())
	req.NoError(err)
	req.Equal(0, count)
}

func TestMessageRepository_PageNewestFirstWithCursor(t *testing.T) {
	req := require.New(t)
	db := testDB(t)

	limit := 2
	repository := NewMessageRepository(db, slog.Default(), &limit)
	roomID := uuid.NewString()
	at := time.Now().UTC()

	authors := []string{"Alice", "Bob", "Clara", "Dave", "Eve"}
	for i, author := range authors {
		_, err := repository.Append(testMessage(roomID, author, at.Add(time.Duration(i)*time.Minute)))
		req.NoError(err)
	}

	// First page holds the two most recent messages.
	page, cursor, err := repository.Page(roomID, nil)
	req.NoError(err)
	req.Len(page, 2)
	req.Equal("Eve", page[0].Author)
	req.Equal("Dave", page[1].Author)
	req.NotNil(cursor)

	// Walking the cursor backwards reaches the oldest message.
	page, cursor, err = repository.Page(roomID, cursor)
	req.NoError(err)
	req.Len(page, 2)
	req.Equal("Clara", page[0].Author)
	req.Equal("Bob", page[1].Author)

	page, _, err = repository.Page(roomID, cursor)
	req.NoError(err)
	req.Len(page, 1)
	req.Equal("Alice", page[0].Author)
}

func TestMessageRepository_PageIsolatesRooms(t *testing.T) {
	req := require.New(t)
	db := testDB(t)

	repository := NewMessageRepository(db, slog.Default(), nil)
	roomA := uuid.NewString()
	roomB := uuid.NewString()
	at := time.Now().UTC()

	_, err := repository.Append(testMessage(roomA, "Alice", at))
	req.NoError(err)
	_, err = repository.Append(testMessage(roomB, "Bob", at))
	req.NoError(err)

	page, _, err := repository.Page(roomA, nil)
	req.NoError(err)
	req.Len(page, 1)
	req.Equal("Alice", page[0].Author)

	page, _, err = repository.Page(uuid.NewString(), nil)
	req.NoError(err)
	req.Empty(page)
}

func TestMessageRepository_RoundTripKeepsFields(t *testing.T) {
	req := require.New(t)
	db := testDB(t)

	repository := NewMessageRepository(db, slog.Default(), nil)
	roomID := uuid.NewString()
	message := DiskMessage{
		ID:        uuid.New(),
		Room:      roomID,
		AuthorID:  "alice",
		Author:    "Alice",
		Alias:     "Ellen Ripley",
		Content:   "the **** is here",
		Lang:      "en",
		Flagged:   []string{"badger"},
		Anonymous: true,
		At:        time.Now().UTC().Truncate(time.Millisecond),
	}

	_, err := repository.Append(message)
	req.NoError(err)

	page, _, err := repository.Page(roomID, nil)
	req.NoError(err)
	req.Len(page, 1)
	req.Equal(message.ID, page[0].ID)
	req.Equal(message.Alias, page[0].Alias)
	req.Equal(message.Flagged, page[0].Flagged)
	req.True(page[0].Anonymous)
	req.True(message.At.Equal(page[0].At))
}
