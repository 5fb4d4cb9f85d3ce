package activity

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps activity in process memory. Used for single-instance
// deployments and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	last map[string]time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{last: make(map[string]time.Time)}
}

func (s *MemoryStore) LastActivity(_ context.Context, userID string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.last[userID]
	if !ok {
		return time.Time{}, ErrNotFound
	}
	return at, nil
}

func (s *MemoryStore) Touch(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[userID] = at
	return nil
}
