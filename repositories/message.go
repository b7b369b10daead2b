package repositories

import (
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

type IMessageRepository interface {
	Append(message DiskMessage) (int, error)
	Page(roomID string, cursor *string) ([]DiskMessage, *string, error)
	Count(roomID string) (int, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// Append persists a message and bumps the room counter in one
// transaction. The key is formatted as "msg:{room}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
//
// The returned count is the room total including this message, which
// feeds the reveal gate without a second read.
func (m MessageRepository) Append(message DiskMessage) (int, error) {
	key := msgKey(message.Room, message.At, message.ID)
	value, err := marshalValue(message)
	if err != nil {
		return 0, err
	}

	var total int
	err = runTxn(m.db, func(txn *badger.Txn) error {
		count, err := readCount(txn, message.Room)
		if err != nil {
			return err
		}
		if err = txn.Set(key, value); err != nil {
			return err
		}
		total = count + 1
		return writeCount(txn, message.Room, total)
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// Page retrieves messages for a room using a reverse prefix scan, newest
// first. Thanks to the padded timestamp in the key, messages are naturally
// sorted by time. It stops collecting once the configured limitMessages is
// reached and returns the last key suffix as cursor for the next page.
func (m MessageRepository) Page(roomID string, cursor *string) ([]DiskMessage, *string, error) {
	var diskMessages []DiskMessage
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := msgPrefix(roomID)
		prefixLen := len(prefix)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible timestamp, then walk backwards.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(diskMessages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			// Memorize cursor part of the actual key
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				var message DiskMessage
				if err := unmarshalValue(value, &message); err != nil {
					return err
				}
				diskMessages = append(diskMessages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return diskMessages, &lastKey, nil
}

// Count returns the number of messages exchanged in a room.
func (m MessageRepository) Count(roomID string) (int, error) {
	var count int
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		count, err = readCount(txn, roomID)
		return err
	})
	return count, err
}
