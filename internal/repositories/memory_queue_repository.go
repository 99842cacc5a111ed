package repositories

import (
	"context"
	"sync"

	"courier/internal/models"
)

// MemoryQueueRepository keeps pending messages in process. It is the default
// for tests and single-node development; nothing survives a restart.
//
// Mutual exclusion is scoped to a single recipient key: the outer lock only
// guards the map, each entry carries its own lock, so contention on one
// recipient never serializes appends to another.
type MemoryQueueRepository struct {
	mu      sync.RWMutex
	entries map[models.QueueKey]*queueEntry
}

type queueEntry struct {
	mu      sync.Mutex
	pending []models.Message
}

func NewMemoryQueueRepository() *MemoryQueueRepository {
	return &MemoryQueueRepository{
		entries: make(map[models.QueueKey]*queueEntry),
	}
}

func (r *MemoryQueueRepository) Append(ctx context.Context, key models.QueueKey, message models.Message) error {
	entry := r.entry(key)

	entry.mu.Lock()
	entry.pending = append(entry.pending, message)
	entry.mu.Unlock()

	return nil
}

func (r *MemoryQueueRepository) Drain(ctx context.Context, key models.QueueKey) ([]models.Message, error) {
	entry := r.entry(key)

	entry.mu.Lock()
	drained := entry.pending
	entry.pending = nil
	entry.mu.Unlock()

	return drained, nil
}

func (r *MemoryQueueRepository) entry(key models.QueueKey) *queueEntry {
	r.mu.RLock()
	entry, ok := r.entries[key]
	r.mu.RUnlock()
	if ok {
		return entry
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok = r.entries[key]; !ok {
		entry = &queueEntry{}
		r.entries[key] = entry
	}
	return entry
}
