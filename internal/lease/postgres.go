package lease

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a PostgreSQL implementation of Store.
//
// Liveness is judged against the database clock, so every replica of
// the service sees the same verdict regardless of local clock skew.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL lease store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Acquire takes the lease for holder with the given TTL. The conditional
// upsert only succeeds when no row exists or the existing row has
// expired, which makes acquisition atomic across replicas.
func (s *PostgresStore) Acquire(ctx context.Context, holder string, ttl time.Duration) (*Lease, error) {
	query := `
		INSERT INTO generation_leases (holder, started_at, expires_at)
		VALUES ($1, now(), now() + ($2 * interval '1 millisecond'))
		ON CONFLICT (holder) DO UPDATE
		SET started_at = EXCLUDED.started_at,
		    expires_at = EXCLUDED.expires_at
		WHERE generation_leases.expires_at <= now()
		RETURNING holder, started_at, expires_at
	`

	return s.scanLease(ctx, query, ErrLeaseHeld, holder, ttl.Milliseconds())
}

// Renew extends a live lease by ttl from now.
func (s *PostgresStore) Renew(ctx context.Context, holder string, ttl time.Duration) (*Lease, error) {
	query := `
		UPDATE generation_leases
		SET expires_at = now() + ($2 * interval '1 millisecond')
		WHERE holder = $1 AND expires_at > now()
		RETURNING holder, started_at, expires_at
	`

	return s.scanLease(ctx, query, ErrLeaseNotFound, holder, ttl.Milliseconds())
}

// Release removes the holder's lease.
func (s *PostgresStore) Release(ctx context.Context, holder string) error {
	query := `DELETE FROM generation_leases WHERE holder = $1`
	_, err := s.pool.Exec(ctx, query, holder)
	return err
}

// Get returns the holder's live lease.
func (s *PostgresStore) Get(ctx context.Context, holder string) (*Lease, error) {
	query := `
		SELECT holder, started_at, expires_at
		FROM generation_leases
		WHERE holder = $1 AND expires_at > now()
	`

	return s.scanLease(ctx, query, ErrLeaseNotFound, holder)
}

// Sweep deletes all expired leases.
func (s *PostgresStore) Sweep(ctx context.Context) (int, error) {
	query := `DELETE FROM generation_leases WHERE expires_at <= now()`
	tag, err := s.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// scanLease scans a lease from a query result, mapping no-rows to notFound.
func (s *PostgresStore) scanLease(ctx context.Context, query string, notFound error, args ...interface{}) (*Lease, error) {
	var l Lease

	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&l.Holder,
		&l.StartedAt,
		&l.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound
		}
		return nil, err
	}

	return &l, nil
}

// Ensure PostgresStore implements Store interface.
var _ Store = (*PostgresStore)(nil)
