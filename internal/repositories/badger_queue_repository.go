package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"courier/internal/models"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// BadgerQueueRepository persists pending messages in BadgerDB so a queue
// outlives process restarts.
//
// The key is formatted as "queue:{owner}:{group}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two
//     messages arrive at the same nanosecond.
//
// Owner and group segments are query-escaped so identities containing ':'
// cannot break the key layout.
type BadgerQueueRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewBadgerQueueRepository(db *badger.DB, log *slog.Logger) *BadgerQueueRepository {
	return &BadgerQueueRepository{db: db, log: log}
}

func (r *BadgerQueueRepository) Append(ctx context.Context, key models.QueueKey, message models.Message) error {
	entryKey := fmt.Sprintf("%s%019d:%s",
		queuePrefix(key),
		time.Now().UnixNano(),
		uuid.New(),
	)
	bytes, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(entryKey), bytes)
	})
}

// Drain collects and deletes every entry under the recipient prefix in one
// transaction. An append landing mid-drain either commits before the
// transaction snapshot and is included, or after it and stays for the next
// drain.
func (r *BadgerQueueRepository) Drain(ctx context.Context, key models.QueueKey) ([]models.Message, error) {
	var byteMessages [][]byte
	err := r.db.Update(func(txn *badger.Txn) error {
		prefix := []byte(queuePrefix(key))
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)

		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			keys = append(keys, item.KeyCopy(nil))
			err := item.Value(func(value []byte) error {
				byteMessages = append(byteMessages, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				it.Close()
				return err
			}
		}
		it.Close()

		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var messages []models.Message
	for _, b := range byteMessages {
		var message models.Message
		if err = json.Unmarshal(b, &message); err != nil {
			r.log.Warn("Skipping undecodable queue entry", "error", err)
			continue
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func queuePrefix(key models.QueueKey) string {
	return fmt.Sprintf("queue:%s:%s:", url.QueryEscape(key.Owner), url.QueryEscape(key.Group))
}
