package datastore

import (
	"context"
	"sync"
)

// MemoryStore is an in-process [Datastore], for tests and development mode.
// Records are copied on the way in and out, so callers can't mutate stored
// state without calling [MemoryStore.Save].
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Record

	gets, saves int
}

// NewMemoryStore returns an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Record)}
}

// Get returns a copy of the record stored under the given team ID, or an empty record.
func (s *MemoryStore) Get(_ context.Context, teamID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gets++
	return s.data[teamID].Clone(), nil
}

// Save stores a copy of the given record under the given team ID.
func (s *MemoryStore) Save(_ context.Context, teamID string, r Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saves++
	s.data[teamID] = r.Clone()
	return r, nil
}

// Accesses returns the number of [MemoryStore.Get] and [MemoryStore.Save] calls so far.
func (s *MemoryStore) Accesses() (gets, saves int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.gets, s.saves
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data)
}
