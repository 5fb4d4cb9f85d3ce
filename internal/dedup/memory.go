package dedup

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]time.Time
	now     func() time.Time

	// afterScan runs between the scan and the delete phase of a cleanup.
	afterScan func()
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (s *MemoryStore) IsProcessed(_ context.Context, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[id]
	return ok
}

func (s *MemoryStore) MarkProcessed(_ context.Context, id string) bool {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; ok {
		return false
	}
	s.records[id] = now
	return true
}

// CleanupOlderThan copies the stale ids under a read lock, then deletes them
// under the write lock. Each id is re-checked before deletion so a record
// written after the scan is kept.
func (s *MemoryStore) CleanupOlderThan(_ context.Context, maxAge time.Duration) int {
	cutoff := s.now().Add(-maxAge)

	s.mu.RLock()
	var stale []string
	for id, at := range s.records {
		if at.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()

	if s.afterScan != nil {
		s.afterScan()
	}
	if len(stale) == 0 {
		return 0
	}

	removed := 0
	s.mu.Lock()
	for _, id := range stale {
		if at, ok := s.records[id]; ok && at.Before(cutoff) {
			delete(s.records, id)
			removed++
		}
	}
	s.mu.Unlock()

	return removed
}

// Len returns the number of records held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
