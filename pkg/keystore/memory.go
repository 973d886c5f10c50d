package keystore

import (
	"sort"
	"sync"
)

// MemoryStore implements Store using an in-memory map. Not durable across
// process restarts; useful for tests and ephemeral deployments.
type MemoryStore struct {
	mu   sync.RWMutex
	blob map[string][]byte
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blob: make(map[string][]byte)}
}

func (s *MemoryStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.blob[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *MemoryStore) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	s.blob[key] = stored
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blob[key]; !ok {
		return ErrNotFound
	}
	delete(s.blob, key)
	return nil
}

func (s *MemoryStore) ListKeys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.blob))
	for k := range s.blob {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear empties the map.
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blob = make(map[string][]byte)
	return nil
}

// Available always reports true: an in-memory map has no external quota
// to lose contact with.
func (s *MemoryStore) Available() bool {
	return true
}
