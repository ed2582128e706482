package storage

import (
	"context"
	"sync"

	"github.com/notifyhub/realtime-notify/internal/domain"
)

// MemStore is an in-memory SnapshotStore used in tests. It records how many
// saves happened per key so tests can assert on persist triggers.
type MemStore struct {
	mu    sync.Mutex
	data  map[string][]byte
	saves map[string]int
}

func NewMemStore() *MemStore {
	return &MemStore{
		data:  make(map[string][]byte),
		saves: make(map[string]int),
	}
}

func (s *MemStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.data[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemStore) Save(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	s.data[key] = stored
	s.saves[key]++
	return nil
}

// SaveCount returns how many times Save ran for the key.
func (s *MemStore) SaveCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[key]
}

var _ SnapshotStore = (*MemStore)(nil)
