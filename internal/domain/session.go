package domain

import (
	"sync"
	"time"
)

// Session is the identity and activity of one WebSocket connection. Identity
// is fixed at upgrade time; only the activity timestamp changes.
type Session struct {
	ID           string
	UserID       string
	TenantID     string
	Role         Role
	ConnectedAt  time.Time
	lastActiveAt time.Time
	mu           sync.RWMutex
}

func NewSession(id, userID, tenantID string, role Role) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		UserID:       userID,
		TenantID:     tenantID,
		Role:         role,
		ConnectedAt:  now,
		lastActiveAt: now,
	}
}

func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActiveAt = time.Now()
}

func (s *Session) LastActiveAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActiveAt
}
