package repositories

import (
	"context"
	"fmt"
	"net/url"

	"github.com/dgraph-io/badger/v4"
)

// BadgerGroupRegistry persists group membership alongside the queue in the
// same BadgerDB, one "member:{group}:{user}" key per membership.
type BadgerGroupRegistry struct {
	db *badger.DB
}

func NewBadgerGroupRegistry(db *badger.DB) *BadgerGroupRegistry {
	return &BadgerGroupRegistry{db: db}
}

func (r *BadgerGroupRegistry) Join(ctx context.Context, group, user string) error {
	key := memberPrefix(group) + url.QueryEscape(user)
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), nil)
	})
}

func (r *BadgerGroupRegistry) Members(ctx context.Context, group string) ([]string, error) {
	var members []string
	prefix := []byte(memberPrefix(group))
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			escaped := string(it.Item().Key()[len(prefix):])
			user, err := url.QueryUnescape(escaped)
			if err != nil {
				return err
			}
			members = append(members, user)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *BadgerGroupRegistry) IsGroup(ctx context.Context, group string) (bool, error) {
	exists := false
	prefix := []byte(memberPrefix(group))
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		it.Seek(prefix)
		exists = it.ValidForPrefix(prefix)
		return nil
	})
	return exists, err
}

func memberPrefix(group string) string {
	return fmt.Sprintf("member:%s:", url.QueryEscape(group))
}
