// Package lease provides the durable generation lock. At most one live
// lease exists per holder; a lease past its expiry is treated as absent
// everywhere, so an abandoned generation heals itself once the TTL passes.
package lease

import (
	"context"
	"errors"
	"time"
)

// Store errors.
var (
	// ErrLeaseHeld is returned by Acquire when a live lease already exists.
	ErrLeaseHeld = errors.New("lease already held")

	// ErrLeaseNotFound is returned when no live lease exists for the holder.
	ErrLeaseNotFound = errors.New("lease not found")
)

// DefaultTTL bounds how long a generation may hold its lease before the
// lock is considered stale and reclaimable.
const DefaultTTL = 10 * time.Minute

// Lease records one held generation lock.
type Lease struct {
	Holder    string
	StartedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the lease has passed its expiry.
func (l *Lease) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// Remaining returns the time left until expiry, or zero if expired.
func (l *Lease) Remaining(now time.Time) time.Duration {
	if l.Expired(now) {
		return 0
	}
	return l.ExpiresAt.Sub(now)
}

// Store defines the interface for lease persistence. Acquire must be
// atomic with respect to concurrent acquirers of the same holder.
type Store interface {
	// Acquire takes the lease for holder with the given TTL.
	// Returns ErrLeaseHeld if a live lease already exists; an expired
	// lease is overwritten.
	Acquire(ctx context.Context, holder string, ttl time.Duration) (*Lease, error)

	// Renew extends a live lease by ttl from now.
	// Returns ErrLeaseNotFound if no live lease exists.
	Renew(ctx context.Context, holder string, ttl time.Duration) (*Lease, error)

	// Release removes the holder's lease. Releasing an absent lease is
	// not an error.
	Release(ctx context.Context, holder string) error

	// Get returns the holder's live lease, or ErrLeaseNotFound.
	Get(ctx context.Context, holder string) (*Lease, error)

	// Sweep deletes all expired leases and returns how many were removed.
	Sweep(ctx context.Context) (int, error)
}
