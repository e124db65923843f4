package meals

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL meal repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create persists a new meal entry.
func (r *PostgresRepository) Create(ctx context.Context, entry *Entry) error {
	query := `
		INSERT INTO meal_entries (
			id, user_id, name, meal_type,
			calories, protein_g, carbs_g, fat_g,
			logged_on, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Name,
		entry.MealType,
		entry.Calories,
		entry.ProteinG,
		entry.CarbsG,
		entry.FatG,
		entry.LoggedOn,
		entry.CreatedAt,
	)
	return err
}

// ListByUserAndRange retrieves a user's entries within the day range.
// logged_on is stored verbatim, so the day is compared on its
// YYYY-MM-DD prefix to catch both date-only and timestamped values.
func (r *PostgresRepository) ListByUserAndRange(ctx context.Context, userID, from, to string) ([]*Entry, error) {
	query := `
		SELECT
			id, user_id, name, meal_type,
			calories, protein_g, carbs_g, fat_g,
			logged_on, created_at
		FROM meal_entries
		WHERE user_id = $1
		  AND left(logged_on, 10) BETWEEN $2 AND $3
		ORDER BY left(logged_on, 10) ASC, created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var entry Entry
		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Name,
			&entry.MealType,
			&entry.Calories,
			&entry.ProteinG,
			&entry.CarbsG,
			&entry.FatG,
			&entry.LoggedOn,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// Delete removes an entry owned by the user.
func (r *PostgresRepository) Delete(ctx context.Context, userID, entryID string) error {
	query := `DELETE FROM meal_entries WHERE id = $1 AND user_id = $2`

	result, err := r.pool.Exec(ctx, query, entryID, userID)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrEntryNotFound
	}

	return nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
