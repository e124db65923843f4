package featureflags

import (
	"context"
	"errors"
)

// ErrFlagNotFound is returned when a feature flag is not found.
var ErrFlagNotFound = errors.New("feature flag not found")

// Repository is the storage contract for flags. Postgres backs it in
// production; the in-memory variant backs tests and local runs.
type Repository interface {
	// GetFlag returns one flag by key, ErrFlagNotFound when absent.
	GetFlag(ctx context.Context, key string) (*Flag, error)

	// GetAllFlags returns every stored flag keyed by flag key.
	GetAllFlags(ctx context.Context) (map[string]*Flag, error)

	// SetFlag creates or replaces a single flag.
	SetFlag(ctx context.Context, flag *Flag) error

	// SetFlags applies a batch of flags atomically.
	SetFlags(ctx context.Context, flags []*Flag) error

	// DeleteFlag removes a flag by key.
	DeleteFlag(ctx context.Context, key string) error
}
