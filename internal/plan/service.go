package plan

import (
	"context"
	"errors"

	"github.com/macroplan/macroplan/internal/api/models"
)

// Service provides plan read operations. Plans are created by the
// generation pipeline, never through this service.
type Service struct {
	repo Repository
}

// NewService creates a new plan service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List retrieves a user's plans, newest first.
func (s *Service) List(ctx context.Context, userID string, limit int, cursor string) (*models.PagedPlans, error) {
	result, err := s.repo.List(ctx, userID, ListOptions{Limit: limit, Cursor: cursor})
	if err != nil {
		return nil, err
	}

	items := make([]models.PlanSummary, 0, len(result.Items))
	for _, p := range result.Items {
		items = append(items, s.toAPISummary(p))
	}

	var nextCursor *string
	if result.NextCursor != "" {
		nextCursor = &result.NextCursor
	}

	return &models.PagedPlans{
		Items: items,
		Meta: models.PagedResponseMeta{
			Limit:      limit,
			NextCursor: nextCursor,
		},
	}, nil
}

// Get retrieves a plan by ID for a user.
func (s *Service) Get(ctx context.Context, userID, planID string) (*models.Plan, error) {
	p, err := s.repo.GetByUserAndID(ctx, userID, planID)
	if err != nil {
		if errors.Is(err, ErrPlanNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	result := s.toAPIPlan(p)
	return &result, nil
}

// Active retrieves the user's active plan.
func (s *Service) Active(ctx context.Context, userID string) (*models.Plan, error) {
	p, err := s.repo.GetActive(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrPlanNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	result := s.toAPIPlan(p)
	return &result, nil
}

// toAPISummary converts a domain plan to its list-view projection.
func (s *Service) toAPISummary(p *FitnessPlan) models.PlanSummary {
	return models.PlanSummary{
		ID:             p.ID,
		Name:           p.Name,
		Goal:           p.Preferences.Goal,
		CaloriesTarget: p.NutritionGoal.CaloriesTarget,
		CreatedAt:      models.Timestamp(p.CreatedAt),
		Active:         p.Active,
	}
}

// toAPIPlan converts a domain FitnessPlan to an API Plan.
func (s *Service) toAPIPlan(p *FitnessPlan) models.Plan {
	return models.Plan{
		ID:   p.ID,
		Name: p.Name,
		Preferences: models.PlanPreferences{
			Age:                  p.Preferences.Age,
			Sex:                  p.Preferences.Sex,
			HeightCm:             p.Preferences.HeightCm,
			WeightKg:             p.Preferences.WeightKg,
			ActivityLevel:        p.Preferences.ActivityLevel,
			Goal:                 p.Preferences.Goal,
			DietaryPreferences:   p.Preferences.DietaryPreferences,
			WeeklyBudget:         p.Preferences.WeeklyBudget,
			WorkoutDaysPerWeek:   p.Preferences.WorkoutDaysPerWeek,
			PreferredWorkoutDays: p.Preferences.PreferredWorkoutDays,
			WorkoutMinutes:       p.Preferences.WorkoutMinutes,
			Notifications: models.NotificationPrefs{
				Email: p.Preferences.Notifications.Email,
				Push:  p.Preferences.Notifications.Push,
			},
		},
		NutritionGoal: models.NutritionGoal{
			CaloriesTarget: p.NutritionGoal.CaloriesTarget,
			ProteinTarget:  p.NutritionGoal.ProteinTarget,
			CarbsTarget:    p.NutritionGoal.CarbsTarget,
			FatTarget:      p.NutritionGoal.FatTarget,
		},
		WorkoutPlan:  models.WorkoutSchedule{WeeklySchedule: toAPIWorkoutWeek(p.WorkoutPlan.WeeklySchedule)},
		MealPlan:     models.MealSchedule{WeeklySchedule: toAPIMealWeek(p.MealPlan.WeeklySchedule)},
		ShoppingList: ToAPIShoppingList(p.ShoppingList),
		CreatedAt:    models.Timestamp(p.CreatedAt),
		Active:       p.Active,
	}
}

func toAPIMealWeek(week WeekSchedule[Meal]) map[string][]models.PlannedMeal {
	out := make(map[string][]models.PlannedMeal, len(week))
	for day, dayMeals := range week {
		items := make([]models.PlannedMeal, 0, len(dayMeals))
		for _, m := range dayMeals {
			items = append(items, models.PlannedMeal{
				Name:        m.Name,
				MealType:    m.MealType,
				Calories:    m.Calories,
				ProteinG:    m.ProteinG,
				CarbsG:      m.CarbsG,
				FatG:        m.FatG,
				Recipe:      m.Recipe,
				Ingredients: m.Ingredients,
			})
		}
		out[day] = items
	}
	return out
}

func toAPIWorkoutWeek(week WeekSchedule[Workout]) map[string][]models.PlannedWorkout {
	out := make(map[string][]models.PlannedWorkout, len(week))
	for day, dayWorkouts := range week {
		items := make([]models.PlannedWorkout, 0, len(dayWorkouts))
		for _, w := range dayWorkouts {
			exercises := make([]models.PlannedExercise, 0, len(w.Exercises))
			for _, ex := range w.Exercises {
				exercises = append(exercises, models.PlannedExercise{
					Name:        ex.Name,
					Sets:        ex.Sets,
					Reps:        ex.Reps,
					RestSeconds: ex.RestSeconds,
				})
			}
			items = append(items, models.PlannedWorkout{
				Name:            w.Name,
				Focus:           w.Focus,
				DurationMinutes: w.DurationMinutes,
				Exercises:       exercises,
			})
		}
		out[day] = items
	}
	return out
}

// ToAPIShoppingList converts a domain shopping list to its API shape.
// Exported because the budget report renders lists too.
func ToAPIShoppingList(l ShoppingList) models.ShoppingList {
	return models.ShoppingList{
		Categories:     toAPICategories(l.Categories),
		Items:          ToAPIShoppingItems(l.Items),
		ReportedStatus: l.ReportedStatus,
	}
}

func toAPICategories(categories []ShoppingCategory) []models.ShoppingCategory {
	out := make([]models.ShoppingCategory, 0, len(categories))
	for _, c := range categories {
		out = append(out, models.ShoppingCategory{
			Name:          c.Name,
			EstimatedCost: c.EstimatedCost,
			Items:         ToAPIShoppingItems(c.Items),
		})
	}
	return out
}

// ToAPIShoppingItems converts domain shopping items to their API shape.
func ToAPIShoppingItems(items []ShoppingItem) []models.ShoppingItem {
	out := make([]models.ShoppingItem, 0, len(items))
	for _, item := range items {
		out = append(out, models.ShoppingItem{
			Name:          item.Name,
			Quantity:      item.Quantity,
			Unit:          item.Unit,
			EstimatedCost: item.EstimatedCost,
			Category:      item.Category,
		})
	}
	return out
}
