package nutrition

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/macroplan/macroplan/internal/api/models"
	"github.com/macroplan/macroplan/internal/meals"
	"github.com/macroplan/macroplan/internal/plan"
)

// MealSource supplies logged meals for a day range.
type MealSource interface {
	ListByUserAndRange(ctx context.Context, userID, from, to string) ([]*meals.Entry, error)
}

// PlanSource supplies the user's active plan, for its macro targets.
type PlanSource interface {
	GetActive(ctx context.Context, userID string) (*plan.FitnessPlan, error)
}

// ServiceConfig holds configuration for the nutrition analytics service.
type ServiceConfig struct {
	// Meals supplies logged entries.
	Meals MealSource

	// Plans supplies the active plan's targets. Optional; without it
	// summaries carry no adherence figures.
	Plans PlanSource

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service summarises logged nutrition over date ranges.
type Service struct {
	meals  MealSource
	plans  PlanSource
	agg    *Aggregator
	logger zerolog.Logger
}

// NewService creates a new nutrition analytics service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		meals:  cfg.Meals,
		plans:  cfg.Plans,
		agg:    NewAggregator(cfg.Logger),
		logger: cfg.Logger,
	}
}

// Summary aggregates a user's logged meals over a day range and scores
// them against the active plan's targets when one exists. An empty
// range defaults the way meal listing does.
func (s *Service) Summary(ctx context.Context, userID, from, to string) (*models.NutritionAnalyticsResponse, error) {
	rng, err := meals.ResolveRange(from, to, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	entries, err := s.meals.ListByUserAndRange(ctx, userID, rng.From, rng.To)
	if err != nil {
		return nil, err
	}

	byDay := s.agg.Aggregate(entries)
	summary := s.agg.Summarize(byDay)

	goal := s.activeGoal(ctx, userID)

	resp := &models.NutritionAnalyticsResponse{
		From:         rng.From,
		To:           rng.To,
		DaysLogged:   summary.DaysLogged,
		Days:         make([]models.DailyNutrition, 0, len(byDay)),
		Total:        toAPITotals(summary.Total),
		DailyAverage: toAPITotals(summary.DailyAverage),
	}

	for _, day := range Days(byDay) {
		t := byDay[day]
		d := models.DailyNutrition{
			Date:     day,
			Calories: t.Calories,
			ProteinG: t.ProteinG,
			CarbsG:   t.CarbsG,
			FatG:     t.FatG,
			Meals:    t.Meals,
		}
		if goal != nil {
			d.Adherence = toAPIAdherence(s.agg.AdherenceFor(t, *goal))
		}
		resp.Days = append(resp.Days, d)
	}

	if goal != nil {
		resp.Goal = &models.NutritionGoal{
			CaloriesTarget: goal.Calories,
			ProteinTarget:  goal.ProteinG,
			CarbsTarget:    goal.CarbsG,
			FatTarget:      goal.FatG,
		}
		if summary.DaysLogged > 0 {
			resp.AverageAdherence = toAPIAdherence(s.agg.AdherenceFor(summary.DailyAverage, *goal))
		}
	}

	return resp, nil
}

// activeGoal fetches the active plan's macro targets. Absence of a
// plan is not an error; other lookup failures degrade to no adherence
// rather than failing the whole summary.
func (s *Service) activeGoal(ctx context.Context, userID string) *Goal {
	if s.plans == nil {
		return nil
	}

	p, err := s.plans.GetActive(ctx, userID)
	if err != nil {
		if !errors.Is(err, plan.ErrPlanNotFound) {
			s.logger.Warn().Err(err).
				Str("user_id", userID).
				Msg("failed to load active plan for adherence")
		}
		return nil
	}

	return &Goal{
		Calories: p.NutritionGoal.CaloriesTarget,
		ProteinG: p.NutritionGoal.ProteinTarget,
		CarbsG:   p.NutritionGoal.CarbsTarget,
		FatG:     p.NutritionGoal.FatTarget,
	}
}

func toAPITotals(t Totals) models.NutritionTotals {
	return models.NutritionTotals{
		Calories: t.Calories,
		ProteinG: t.ProteinG,
		CarbsG:   t.CarbsG,
		FatG:     t.FatG,
		Meals:    t.Meals,
	}
}

func toAPIAdherence(a Adherence) *models.MacroAdherence {
	return &models.MacroAdherence{
		Calories: a.Calories,
		Protein:  a.Protein,
		Carbs:    a.Carbs,
		Fat:      a.Fat,
	}
}
