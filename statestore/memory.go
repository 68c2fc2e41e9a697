package statestore

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store. It is safe for concurrent use and
// suitable for tests and single-instance deployments; durability across
// restarts requires RedisStore or similar.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*Snapshot
}

// NewMemoryStore creates an empty in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]*Snapshot),
	}
}

// Load retrieves a snapshot by session ID. Returns a deep copy so the
// caller cannot mutate stored state.
func (s *MemoryStore) Load(_ context.Context, id string) (*Snapshot, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copySnapshot(snapshot), nil
}

// Save persists a snapshot, overwriting any previous one.
func (s *MemoryStore) Save(_ context.Context, snapshot *Snapshot) error {
	if snapshot == nil {
		return ErrInvalidSnapshot
	}
	if snapshot.ID == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snapshot.ID] = copySnapshot(snapshot)
	return nil
}

// Delete removes a snapshot.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.snapshots[id]; !ok {
		return ErrNotFound
	}
	delete(s.snapshots, id)
	return nil
}

func copySnapshot(snapshot *Snapshot) *Snapshot {
	out := *snapshot
	out.Messages = append(out.Messages[:0:0], snapshot.Messages...)
	return &out
}

var _ Store = (*MemoryStore)(nil)
