package plan

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu    sync.RWMutex
	plans map[string]*FitnessPlan
}

// NewInMemoryRepository creates a new in-memory plan repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		plans: make(map[string]*FitnessPlan),
	}
}

// Create persists a new plan and deactivates the user's previous
// active plan.
func (r *InMemoryRepository) Create(_ context.Context, p *FitnessPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.Active {
		for _, existing := range r.plans {
			if existing.UserID == p.UserID && existing.Active {
				existing.Active = false
			}
		}
	}

	cpy := *p
	r.plans[p.ID] = &cpy
	return nil
}

// GetByUserAndID retrieves a plan by user ID and plan ID.
func (r *InMemoryRepository) GetByUserAndID(_ context.Context, userID, planID string) (*FitnessPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plans[planID]
	if !ok || p.UserID != userID {
		return nil, ErrPlanNotFound
	}

	cpy := *p
	return &cpy, nil
}

// GetActive retrieves the user's active plan.
func (r *InMemoryRepository) GetActive(_ context.Context, userID string) (*FitnessPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plans {
		if p.UserID == userID && p.Active {
			cpy := *p
			return &cpy, nil
		}
	}

	return nil, ErrPlanNotFound
}

// List retrieves all plans for a user with pagination, newest first.
func (r *InMemoryRepository) List(_ context.Context, userID string, opts ListOptions) (*ListResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var plans []*FitnessPlan
	for _, p := range r.plans {
		if p.UserID == userID {
			cpy := *p
			plans = append(plans, &cpy)
		}
	}

	sort.Slice(plans, func(i, j int) bool {
		return plans[i].CreatedAt.After(plans[j].CreatedAt)
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
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

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
