package lease

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is an in-memory implementation of Store.
// This is intended for testing. Production should use PostgresStore.
type InMemoryStore struct {
	mu     sync.Mutex
	leases map[string]*Lease
}

// NewInMemoryStore creates a new in-memory lease store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		leases: make(map[string]*Lease),
	}
}

// Acquire takes the lease for holder unless a live one exists.
func (s *InMemoryStore) Acquire(_ context.Context, holder string, ttl time.Duration) (*Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.leases[holder]; ok && !existing.Expired(now) {
		return nil, ErrLeaseHeld
	}

	l := &Lease{
		Holder:    holder,
		StartedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	s.leases[holder] = l

	cpy := *l
	return &cpy, nil
}

// Renew extends a live lease by ttl from now.
func (s *InMemoryStore) Renew(_ context.Context, holder string, ttl time.Duration) (*Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	l, ok := s.leases[holder]
	if !ok || l.Expired(now) {
		return nil, ErrLeaseNotFound
	}

	l.ExpiresAt = now.Add(ttl)

	cpy := *l
	return &cpy, nil
}

// Release removes the holder's lease.
func (s *InMemoryStore) Release(_ context.Context, holder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.leases, holder)
	return nil
}

// Get returns the holder's live lease.
func (s *InMemoryStore) Get(_ context.Context, holder string) (*Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.leases[holder]
	if !ok || l.Expired(time.Now()) {
		return nil, ErrLeaseNotFound
	}

	cpy := *l
	return &cpy, nil
}

// Sweep deletes all expired leases.
func (s *InMemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for holder, l := range s.leases {
		if l.Expired(now) {
			delete(s.leases, holder)
			removed++
		}
	}
	return removed, nil
}

// Ensure InMemoryStore implements Store interface.
var _ Store = (*InMemoryStore)(nil)
