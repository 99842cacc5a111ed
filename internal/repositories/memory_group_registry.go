package repositories

import (
	"context"
	"sort"
	"sync"
)

// MemoryGroupRegistry tracks group membership in process, mirroring the
// in-memory store used for development queues.
type MemoryGroupRegistry struct {
	mu     sync.RWMutex
	groups map[string]map[string]struct{}
}

func NewMemoryGroupRegistry() *MemoryGroupRegistry {
	return &MemoryGroupRegistry{
		groups: make(map[string]map[string]struct{}),
	}
}

func (r *MemoryGroupRegistry) Join(ctx context.Context, group, user string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.groups[group]
	if !ok {
		members = make(map[string]struct{})
		r.groups[group] = members
	}
	members[user] = struct{}{}

	return nil
}

func (r *MemoryGroupRegistry) Members(ctx context.Context, group string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]string, 0, len(r.groups[group]))
	for user := range r.groups[group] {
		members = append(members, user)
	}
	sort.Strings(members)

	return members, nil
}

func (r *MemoryGroupRegistry) IsGroup(ctx context.Context, group string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.groups[group]
	return ok, nil
}
