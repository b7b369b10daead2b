package repositories

import (
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	apperrors "cinematch/errors"
)

type IRoomRepository interface {
	SaveBroadcast(room DiskRoom) error
	Get(roomID string) (DiskRoom, error)
	ForUser(userID string) ([]DiskRoom, error)
	Broadcasts() ([]DiskRoom, error)
}

type RoomRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewRoomRepository(db *badger.DB, log *slog.Logger) RoomRepository {
	return RoomRepository{db: db, log: log}
}

// SaveBroadcast provisions an open room. Broadcast IDs derive from the
// room name, so re-running the boot list leaves existing rooms untouched.
func (r RoomRepository) SaveBroadcast(room DiskRoom) error {
	value, err := marshalValue(room)
	if err != nil {
		return err
	}
	return runTxn(r.db, func(txn *badger.Txn) error {
		if _, err := txn.Get(roomKey(room.ID)); err == nil {
			return nil
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		if err := txn.Set(roomKey(room.ID), value); err != nil {
			return err
		}
		return txn.Set(broadcastKey(room.ID), nil)
	})
}

func (r RoomRepository) Get(roomID string) (DiskRoom, error) {
	var room DiskRoom
	err := r.db.View(func(txn *badger.Txn) error {
		return getRoom(txn, roomID, &room)
	})
	return room, err
}

// ForUser returns the match rooms the user belongs to, through the
// membership index written at pairing time.
func (r RoomRepository) ForUser(userID string) ([]DiskRoom, error) {
	var rooms []DiskRoom
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := memberPrefix(userID)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			roomID := string(it.Item().Key()[len(prefix):])
			var room DiskRoom
			if err := getRoom(txn, roomID, &room); err != nil {
				// A dangling index entry is not worth failing the listing.
				r.log.Warn("Membership index points to a missing room",
					"user", userID, "room", roomID)
				continue
			}
			rooms = append(rooms, room)
		}
		return nil
	})
	return rooms, err
}

// Broadcasts lists every provisioned open room.
func (r RoomRepository) Broadcasts() ([]DiskRoom, error) {
	var rooms []DiskRoom
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(broadcastPrefix)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			roomID := string(it.Item().Key()[len(prefix):])
			var room DiskRoom
			if err := getRoom(txn, roomID, &room); err != nil {
				return err
			}
			rooms = append(rooms, room)
		}
		return nil
	})
	return rooms, err
}

func getRoom(txn *badger.Txn, roomID string, room *DiskRoom) error {
	item, err := txn.Get(roomKey(roomID))
	if err == badger.ErrKeyNotFound {
		return apperrors.ErrRoomNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return unmarshalValue(val, room)
	})
}
