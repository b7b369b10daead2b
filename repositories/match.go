package repositories

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"cinematch/domain"
)

type IMatchRepository interface {
	PopOrEnqueue(userID string, now time.Time) (MatchOutcome, error)
	Cancel(userID string) (bool, error)
	Expire(olderThan time.Time) ([]DiskQueueEntry, error)
	Depth() (int, error)
	Waiting(userID string) (bool, error)
}

// MatchOutcome is the result of one matchmaking transaction.
// Room is only meaningful when Paired is true.
type MatchOutcome struct {
	Paired bool
	Room   DiskRoom
}

type MatchRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMatchRepository(db *badger.DB, log *slog.Logger) MatchRepository {
	return MatchRepository{db: db, log: log}
}

// PopOrEnqueue either consumes the earliest waiting entry and creates the
// match room, or parks the caller in the queue. Everything happens in one
// serializable transaction: the partner lookup, both queue deletions, the
// room document and both membership keys commit or roll back together, so
// two concurrent callers can never each conclude the queue was empty and
// leave two entries behind.
func (m MatchRepository) PopOrEnqueue(userID string, now time.Time) (MatchOutcome, error) {
	var outcome MatchOutcome
	err := runTxn(m.db, func(txn *badger.Txn) error {
		outcome = MatchOutcome{}
		if err := touchQueueVersion(txn, now); err != nil {
			return err
		}

		partner, partnerKey, err := firstWaiting(txn, userID)
		if err != nil {
			return err
		}

		if partner == nil {
			return enqueue(txn, userID, now)
		}

		if err = txn.Delete(partnerKey); err != nil {
			return err
		}
		if err = txn.Delete(queuedKey(partner.UserID)); err != nil {
			return err
		}
		// A caller that was already waiting gets paired too; their own
		// stale entry must not linger for a third user to consume.
		if err = dropEntry(txn, userID); err != nil {
			return err
		}

		room := DiskRoom{
			ID:        uuid.New().String(),
			Kind:      string(domain.RoomMatch),
			Members:   []string{partner.UserID, userID},
			CreatedAt: now,
		}
		if err = saveMatchRoom(txn, room); err != nil {
			return err
		}
		outcome = MatchOutcome{Paired: true, Room: room}
		return nil
	})
	if err != nil {
		return MatchOutcome{}, err
	}
	return outcome, nil
}

// Cancel withdraws the caller's waiting entry. It reports false when no
// entry exists anymore, which is how a caller learns that a concurrent
// pairing won the race; the room created by that pairing stands.
func (m MatchRepository) Cancel(userID string) (bool, error) {
	removed := false
	err := runTxn(m.db, func(txn *badger.Txn) error {
		removed = false
		if err := touchQueueVersion(txn, time.Now()); err != nil {
			return err
		}
		entryKey, err := waitingEntryKey(txn, userID)
		if err != nil {
			return err
		}
		if entryKey == nil {
			return nil
		}
		if err = txn.Delete(entryKey); err != nil {
			return err
		}
		if err = txn.Delete(queuedKey(userID)); err != nil {
			return err
		}
		removed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// Expire evicts entries enqueued before olderThan and returns them so the
// caller can notify the owners. Entries are key ordered by enqueue time,
// so the scan stops at the first one still fresh.
func (m MatchRepository) Expire(olderThan time.Time) ([]DiskQueueEntry, error) {
	var evicted []DiskQueueEntry
	err := runTxn(m.db, func(txn *badger.Txn) error {
		evicted = nil
		if err := touchQueueVersion(txn, time.Now()); err != nil {
			return err
		}

		prefix := []byte(queueEntryPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var entry DiskQueueEntry
			err := item.Value(func(val []byte) error {
				return unmarshalValue(val, &entry)
			})
			if err != nil {
				return err
			}
			if !entry.EnqueuedAt.Before(olderThan) {
				break
			}
			if err = txn.Delete(item.KeyCopy(nil)); err != nil {
				return err
			}
			if err = txn.Delete(queuedKey(entry.UserID)); err != nil {
				return err
			}
			evicted = append(evicted, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return evicted, nil
}

// Depth counts the waiting entries, for observability only.
func (m MatchRepository) Depth() (int, error) {
	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		count = 0
		prefix := []byte(queueEntryPrefix)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Waiting reports whether the user currently owns a queue entry.
func (m MatchRepository) Waiting(userID string) (bool, error) {
	waiting := false
	err := m.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(queuedKey(userID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		waiting = true
		return nil
	})
	return waiting, err
}

// touchQueueVersion reads then rewrites the version key so every queue
// transaction carries an overlapping read-write pair. Without it, two
// transactions scanning an empty prefix would share no read keys and
// badger would happily commit both inserts.
func touchQueueVersion(txn *badger.Txn, now time.Time) error {
	_, err := txn.Get(queueVersionKey)
	if err != nil && err != badger.ErrKeyNotFound {
		return err
	}
	return txn.Set(queueVersionKey, []byte(strconv.FormatInt(now.UnixNano(), 10)))
}

// firstWaiting scans the queue in FIFO order and returns the earliest
// entry not owned by the caller, together with its key.
func firstWaiting(txn *badger.Txn, selfID string) (*DiskQueueEntry, []byte, error) {
	prefix := []byte(queueEntryPrefix)
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		var entry DiskQueueEntry
		err := item.Value(func(val []byte) error {
			return unmarshalValue(val, &entry)
		})
		if err != nil {
			return nil, nil, err
		}
		if entry.UserID == selfID {
			continue
		}
		return &entry, item.KeyCopy(nil), nil
	}
	return nil, nil, nil
}

// enqueue inserts the caller, keeping at most one entry per user.
// A caller already waiting is left exactly where they were.
func enqueue(txn *badger.Txn, userID string, now time.Time) error {
	if _, err := txn.Get(queuedKey(userID)); err == nil {
		return nil
	} else if err != badger.ErrKeyNotFound {
		return err
	}
	entry := DiskQueueEntry{UserID: userID, EnqueuedAt: now}
	value, err := marshalValue(entry)
	if err != nil {
		return err
	}
	key := queueEntryKey(now, userID)
	if err = txn.Set(key, value); err != nil {
		return err
	}
	return txn.Set(queuedKey(userID), key)
}

func waitingEntryKey(txn *badger.Txn, userID string) ([]byte, error) {
	item, err := txn.Get(queuedKey(userID))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func saveMatchRoom(txn *badger.Txn, room DiskRoom) error {
	value, err := marshalValue(room)
	if err != nil {
		return err
	}
	if err = txn.Set(roomKey(room.ID), value); err != nil {
		return err
	}
	for _, member := range room.Members {
		if err = txn.Set(memberKey(member, room.ID), nil); err != nil {
			return err
		}
	}
	return nil
}
