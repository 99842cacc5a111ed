package ports

import (
	"context"

	"courier/internal/models"
)

// IQueueStore is the durable per-recipient buffer for messages sent while
// the recipient has no live session. Append is safe under concurrent senders
// to the same key; ordering between concurrent senders is arrival order at
// the store. Drain atomically returns-and-clears the full pending sequence:
// a message appended concurrently with a drain either lands in that drain's
// result or stays for the next one, never both and never neither.
type IQueueStore interface {
	Append(ctx context.Context, key models.QueueKey, message models.Message) error
	Drain(ctx context.Context, key models.QueueKey) ([]models.Message, error)
}

// IGroupRegistry records which users belong to a named group. Membership is
// implicit: a user joins a group the first time they address it or open a
// session to it.
type IGroupRegistry interface {
	Join(ctx context.Context, group, user string) error
	Members(ctx context.Context, group string) ([]string, error)
	IsGroup(ctx context.Context, group string) (bool, error)
}
