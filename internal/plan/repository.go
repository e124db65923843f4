package plan

import "context"

// ListOptions contains options for listing plans.
type ListOptions struct {
	Limit  int
	Cursor string
}

// ListResult contains the results of listing plans.
type ListResult struct {
	Items      []*FitnessPlan
	NextCursor string
}

// Repository defines the interface for plan persistence.
type Repository interface {
	// Create persists a new plan. Any previously active plan for the
	// same user is deactivated in the same operation, so at most one
	// plan per user is active.
	Create(ctx context.Context, p *FitnessPlan) error

	// GetByUserAndID retrieves a plan by user ID and plan ID.
	// Returns ErrPlanNotFound if the plan doesn't exist or doesn't belong to the user.
	GetByUserAndID(ctx context.Context, userID, planID string) (*FitnessPlan, error)

	// GetActive retrieves the user's active plan.
	// Returns ErrPlanNotFound if the user has none.
	GetActive(ctx context.Context, userID string) (*FitnessPlan, error)

	// List retrieves all plans for a user with pagination, newest first.
	List(ctx context.Context, userID string, opts ListOptions) (*ListResult, error)
}
