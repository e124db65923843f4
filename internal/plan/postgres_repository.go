package plan

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/macroplan/macroplan/internal/coach"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
// The nested plan document (preferences, schedules, shopping list)
// lives in a JSONB column; identity and lifecycle fields are columns
// so they stay queryable.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL plan repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// planDocument is the JSONB body of a stored plan.
type planDocument struct {
	Name          string        `json:"name,omitempty"`
	Preferences   coach.Input   `json:"preferences"`
	NutritionGoal NutritionGoal `json:"nutritionGoal"`
	WorkoutPlan   WorkoutPlan   `json:"workoutPlan"`
	MealPlan      MealPlan      `json:"mealPlan"`
	ShoppingList  ShoppingList  `json:"shoppingList"`
}

// Create persists a new plan, deactivating the user's previous active
// plan in the same transaction.
func (r *PostgresRepository) Create(ctx context.Context, p *FitnessPlan) error {
	body, err := json.Marshal(planDocument{
		Name:          p.Name,
		Preferences:   p.Preferences,
		NutritionGoal: p.NutritionGoal,
		WorkoutPlan:   p.WorkoutPlan,
		MealPlan:      p.MealPlan,
		ShoppingList:  p.ShoppingList,
	})
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback error is not critical

	if p.Active {
		deactivate := `UPDATE plans SET active = false WHERE user_id = $1 AND active`
		if _, err := tx.Exec(ctx, deactivate, p.UserID); err != nil {
			return err
		}
	}

	insert := `
		INSERT INTO plans (id, user_id, body, active, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.Exec(ctx, insert, p.ID, p.UserID, body, p.Active, p.CreatedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetByUserAndID retrieves a plan by user ID and plan ID.
func (r *PostgresRepository) GetByUserAndID(ctx context.Context, userID, planID string) (*FitnessPlan, error) {
	query := `
		SELECT id, user_id, body, active, created_at
		FROM plans
		WHERE id = $1 AND user_id = $2
	`

	return r.scanPlan(r.pool.QueryRow(ctx, query, planID, userID))
}

// GetActive retrieves the user's active plan.
func (r *PostgresRepository) GetActive(ctx context.Context, userID string) (*FitnessPlan, error) {
	query := `
		SELECT id, user_id, body, active, created_at
		FROM plans
		WHERE user_id = $1 AND active
	`

	return r.scanPlan(r.pool.QueryRow(ctx, query, userID))
}

// List retrieves all plans for a user with pagination, newest first.
func (r *PostgresRepository) List(ctx context.Context, userID string, opts ListOptions) (*ListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	// Fetch one extra to determine if there are more results
	fetchLimit := limit + 1

	query := `
		SELECT id, user_id, body, active, created_at
		FROM plans
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, fetchLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*FitnessPlan
	for rows.Next() {
		p, err := r.scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &ListResult{
		Items: plans,
	}

	if len(plans) > limit {
		result.Items = plans[:limit]
		result.NextCursor = plans[limit-1].ID
	}

	return result, nil
}

// scanPlan scans one plan row and unpacks its JSONB body.
func (r *PostgresRepository) scanPlan(row pgx.Row) (*FitnessPlan, error) {
	var (
		p    FitnessPlan
		body []byte
	)

	err := row.Scan(
		&p.ID,
		&p.UserID,
		&body,
		&p.Active,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	var doc planDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}

	p.Name = doc.Name
	p.Preferences = doc.Preferences
	p.NutritionGoal = doc.NutritionGoal
	p.WorkoutPlan = doc.WorkoutPlan
	p.MealPlan = doc.MealPlan
	p.ShoppingList = doc.ShoppingList

	return &p, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
