package repositories

import (
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	apperrors "cinematch/errors"
)

type IRevealRepository interface {
	Record(roomID string, disclosure DiskDisclosure, threshold int) (bool, error)
	Disclosures(roomID string) ([]DiskDisclosure, error)
}

type RevealRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewRevealRepository(db *badger.DB, log *slog.Logger) RevealRepository {
	return RevealRepository{db: db, log: log}
}

// Record stores an identity disclosure if the gate allows it. The message
// counter is read in the same transaction that writes the disclosure, so
// a reveal can never slip in below the threshold, however the calls race.
// It returns false without error when the user already revealed; the
// disclosure is one way and the first write wins.
func (r RevealRepository) Record(roomID string, disclosure DiskDisclosure, threshold int) (bool, error) {
	value, err := marshalValue(disclosure)
	if err != nil {
		return false, err
	}

	added := false
	err = runTxn(r.db, func(txn *badger.Txn) error {
		added = false
		count, err := readCount(txn, roomID)
		if err != nil {
			return err
		}
		if count <= threshold {
			return apperrors.ErrRevealLocked
		}

		key := revealKey(roomID, disclosure.UserID)
		if _, err = txn.Get(key); err == nil {
			return nil
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		if err = txn.Set(key, value); err != nil {
			return err
		}
		added = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return added, nil
}

// Disclosures lists who already revealed inside a room.
func (r RevealRepository) Disclosures(roomID string) ([]DiskDisclosure, error) {
	var disclosures []DiskDisclosure
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := revealPrefix(roomID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var disclosure DiskDisclosure
			err := it.Item().Value(func(val []byte) error {
				return unmarshalValue(val, &disclosure)
			})
			if err != nil {
				return err
			}
			disclosures = append(disclosures, disclosure)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return disclosures, nil
}
