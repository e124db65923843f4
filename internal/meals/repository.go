package meals

import "context"

// Repository defines the interface for meal entry persistence.
type Repository interface {
	// Create persists a new meal entry.
	Create(ctx context.Context, entry *Entry) error

	// ListByUserAndRange retrieves a user's entries whose logged day
	// falls within [from, to], both inclusive YYYY-MM-DD day keys.
	// Entries are ordered oldest day first.
	ListByUserAndRange(ctx context.Context, userID, from, to string) ([]*Entry, error)

	// Delete removes an entry owned by the user.
	// Returns ErrEntryNotFound if no such entry exists.
	Delete(ctx context.Context, userID, entryID string) error
}
