package meals

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewInMemoryRepository creates a new in-memory meal repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		entries: make(map[string]*Entry),
	}
}

// Create persists a new meal entry.
func (r *InMemoryRepository) Create(_ context.Context, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *entry
	r.entries[entry.ID] = &cpy
	return nil
}

// ListByUserAndRange retrieves a user's entries within the day range.
func (r *InMemoryRepository) ListByUserAndRange(_ context.Context, userID, from, to string) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var entries []*Entry
	for _, e := range r.entries {
		if e.UserID != userID {
			continue
		}
		day := dayKey(e.LoggedOn)
		if day < from || day > to {
			continue
		}
		cpy := *e
		entries = append(entries, &cpy)
	}

	sort.Slice(entries, func(i, j int) bool {
		di, dj := dayKey(entries[i].LoggedOn), dayKey(entries[j].LoggedOn)
		if di != dj {
			return di < dj
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})

	return entries, nil
}

// Delete removes an entry owned by the user.
func (r *InMemoryRepository) Delete(_ context.Context, userID, entryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[entryID]
	if !ok || e.UserID != userID {
		return ErrEntryNotFound
	}

	delete(r.entries, entryID)
	return nil
}

// dayKey reduces a logged date to its YYYY-MM-DD prefix so timestamped
// and date-only values compare under the same range filter.
func dayKey(loggedOn string) string {
	if len(loggedOn) > 10 {
		return loggedOn[:10]
	}
	return loggedOn
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
