package repositories

import (
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"cinematch/domain"
	apperrors "cinematch/errors"
)

// Disk representations of domain entities. Kept separate from the
// domain structs so the stored shape can evolve without touching
// business types.

type DiskMessage struct {
	ID        uuid.UUID `json:"id"`
	Room      string    `json:"room"`
	AuthorID  string    `json:"author_id"`
	Author    string    `json:"author"`
	Alias     string    `json:"alias,omitempty"`
	Content   string    `json:"content"`
	Lang      string    `json:"lang,omitempty"`
	Flagged   []string  `json:"flagged,omitempty"`
	Anonymous bool      `json:"anonymous"`
	At        time.Time `json:"at"`
}

func FromMessage(m domain.Message) DiskMessage {
	return DiskMessage{
		ID:        m.ID,
		Room:      m.RoomID.String(),
		AuthorID:  m.AuthorID,
		Author:    m.Author,
		Alias:     m.Alias,
		Content:   m.Content,
		Lang:      m.Lang,
		Flagged:   m.Flagged,
		Anonymous: m.Anonymous,
		At:        m.At,
	}
}

func (d DiskMessage) ToDomain() (domain.Message, error) {
	roomID, err := uuid.Parse(d.Room)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        d.ID,
		RoomID:    roomID,
		AuthorID:  d.AuthorID,
		Author:    d.Author,
		Alias:     d.Alias,
		Content:   d.Content,
		Lang:      d.Lang,
		Flagged:   d.Flagged,
		Anonymous: d.Anonymous,
		CreatedAt: d.At.UTC(),
	}, nil
}

type DiskRoom struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name,omitempty"`
	Members   []string  `json:"members,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func FromRoom(r domain.Room) DiskRoom {
	return DiskRoom{
		ID:        r.ID.String(),
		Kind:      string(r.Kind),
		Name:      r.Name,
		Members:   r.Members,
		CreatedAt: r.CreatedAt,
	}
}

func (d DiskRoom) ToDomain() (domain.Room, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return domain.Room{}, err
	}
	return domain.Room{
		ID:        id,
		Kind:      domain.RoomKind(d.Kind),
		Name:      d.Name,
		Members:   d.Members,
		CreatedAt: d.CreatedAt.UTC(),
	}, nil
}

type DiskQueueEntry struct {
	UserID     string    `json:"user_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

func (d DiskQueueEntry) ToDomain() domain.QueueEntry {
	return domain.QueueEntry{UserID: d.UserID, EnqueuedAt: d.EnqueuedAt.UTC()}
}

type DiskDisclosure struct {
	Room      string    `json:"room"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	At        time.Time `json:"at"`
}

func FromDisclosure(d domain.Disclosure) DiskDisclosure {
	return DiskDisclosure{
		Room:      d.RoomID.String(),
		UserID:    d.UserID,
		Username:  d.Username,
		AvatarURL: d.AvatarURL,
		At:        d.At,
	}
}

func (d DiskDisclosure) ToDomain() (domain.Disclosure, error) {
	roomID, err := uuid.Parse(d.Room)
	if err != nil {
		return domain.Disclosure{}, err
	}
	return domain.Disclosure{
		RoomID:    roomID,
		UserID:    d.UserID,
		Username:  d.Username,
		AvatarURL: d.AvatarURL,
		At:        d.At.UTC(),
	}, nil
}

// ToMessages converts a page of stored messages, dropping none.
func ToMessages(items []DiskMessage) ([]domain.Message, error) {
	var convErr error
	messages := lo.FilterMap(items, func(item DiskMessage, _ int) (domain.Message, bool) {
		m, err := item.ToDomain()
		if err != nil {
			convErr = err
			return domain.Message{}, false
		}
		return m, true
	})
	return messages, convErr
}

const txnAttempts = 10

// runTxn retries serializable transaction conflicts a few times before
// reporting the store as unavailable. Closures must reset any captured
// state because they rerun from scratch on every attempt.
func runTxn(db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < txnAttempts; i++ {
		err = db.Update(fn)
		if err != badger.ErrConflict {
			return err
		}
	}
	return apperrors.ErrStoreUnavailable
}

// readCount loads the per-room message counter inside a transaction.
// Reading it through txn.Get also serializes writers on the same room.
func readCount(txn *badger.Txn, roomID string) (int, error) {
	item, err := txn.Get(msgCountKey(roomID))
	if err == badger.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var count int
	err = item.Value(func(val []byte) error {
		count, err = strconv.Atoi(string(val))
		return err
	})
	return count, err
}

func writeCount(txn *badger.Txn, roomID string, count int) error {
	return txn.Set(msgCountKey(roomID), []byte(strconv.Itoa(count)))
}

func marshalValue(v any) ([]byte, error) {
	return json.Marshal(v)
}

func unmarshalValue(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
