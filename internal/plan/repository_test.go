package plan_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macroplan/macroplan/internal/plan"
)

func storedPlan(id, userID string, active bool, createdAt time.Time) *plan.FitnessPlan {
	return &plan.FitnessPlan{
		ID:        id,
		UserID:    userID,
		Active:    active,
		CreatedAt: createdAt,
	}
}

func TestInMemoryRepository_CreateDeactivatesPrevious(t *testing.T) {
	repo := plan.NewInMemoryRepository()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, storedPlan("p1", "user-1", true, now)))
	require.NoError(t, repo.Create(ctx, storedPlan("p2", "user-1", true, now.Add(time.Minute))))

	active, err := repo.GetActive(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "p2", active.ID)

	// The old plan still exists but is inactive
	old, err := repo.GetByUserAndID(ctx, "user-1", "p1")
	require.NoError(t, err)
	assert.False(t, old.Active)
}

func TestInMemoryRepository_ActivePerUser(t *testing.T) {
	repo := plan.NewInMemoryRepository()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, storedPlan("p1", "user-1", true, now)))
	require.NoError(t, repo.Create(ctx, storedPlan("p2", "user-2", true, now)))

	active1, err := repo.GetActive(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "p1", active1.ID)

	active2, err := repo.GetActive(ctx, "user-2")
	require.NoError(t, err)
	assert.Equal(t, "p2", active2.ID)
}

func TestInMemoryRepository_GetActiveNotFound(t *testing.T) {
	repo := plan.NewInMemoryRepository()

	_, err := repo.GetActive(context.Background(), "user-1")
	assert.ErrorIs(t, err, plan.ErrPlanNotFound)
}

func TestInMemoryRepository_GetByUserAndID_ScopedToUser(t *testing.T) {
	repo := plan.NewInMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, storedPlan("p1", "user-1", true, time.Now())))

	_, err := repo.GetByUserAndID(ctx, "user-2", "p1")
	assert.ErrorIs(t, err, plan.ErrPlanNotFound)
}

func TestInMemoryRepository_ListNewestFirstWithCursor(t *testing.T) {
	repo := plan.NewInMemoryRepository()
	ctx := context.Background()
	base := time.Now()

	for i, id := range []string{"p1", "p2", "p3"} {
		require.NoError(t, repo.Create(ctx, storedPlan(id, "user-1", false, base.Add(time.Duration(i)*time.Minute))))
	}

	result, err := repo.List(ctx, "user-1", plan.ListOptions{Limit: 2})
	require.NoError(t, err)

	require.Len(t, result.Items, 2)
	assert.Equal(t, "p3", result.Items[0].ID)
	assert.Equal(t, "p2", result.Items[1].ID)
	assert.Equal(t, "p2", result.NextCursor)
}
