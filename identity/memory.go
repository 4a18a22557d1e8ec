package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type subjectKey struct{ issuer, subject string }

// MemoryStore is an in-process Store. Principals do not survive a restart.
type MemoryStore struct {
	mu         sync.RWMutex
	byIdentity map[subjectKey]*Principal
	byID       map[uuid.UUID]*Principal
	revoked    map[uuid.UUID]time.Time
	now        func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byIdentity: make(map[subjectKey]*Principal),
		byID:       make(map[uuid.UUID]*Principal),
		revoked:    make(map[uuid.UUID]time.Time),
		now:        time.Now,
	}
}

// GetOrCreate implements Store.
func (s *MemoryStore) GetOrCreate(_ context.Context, issuer, subject string, claims *Claims) (*Principal, bool, error) {
	key := subjectKey{issuer, subject}
	s.mu.RLock()
	p, ok := s.byIdentity[key]
	s.mu.RUnlock()
	if ok {
		return p, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.byIdentity[key]; ok {
		return p, false, nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, false, fmt.Errorf("identity: new principal id: %w", err)
	}
	p = &Principal{
		ID:        id,
		Issuer:    issuer,
		Subject:   subject,
		CreatedAt: s.now(),
	}
	if claims != nil {
		p.Email = claims.Email
	}
	s.byIdentity[key] = p
	s.byID[id] = p
	return p, true, nil
}

// Revoke implements Store.
func (s *MemoryStore) Revoke(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("identity: unknown principal %s", id)
	}
	if prev, ok := s.revoked[id]; !ok || at.After(prev) {
		s.revoked[id] = at
	}
	return nil
}

// RevokedAt implements Store.
func (s *MemoryStore) RevokedAt(_ context.Context, id uuid.UUID) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.revoked[id]
	return at, ok, nil
}

// Len returns the number of principals.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

var _ Store = (*MemoryStore)(nil)
