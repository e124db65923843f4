package budget

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/macroplan/macroplan/internal/api/models"
	"github.com/macroplan/macroplan/internal/plan"
)

// PlanSource supplies the user's active plan.
type PlanSource interface {
	GetActive(ctx context.Context, userID string) (*plan.FitnessPlan, error)
}

// ServiceConfig holds configuration for the budget service.
type ServiceConfig struct {
	// Plans supplies the active plan whose shopping list is scored.
	Plans PlanSource

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service produces budget reports for the active plan's shopping list.
type Service struct {
	plans      PlanSource
	classifier *Classifier
	logger     zerolog.Logger
}

// NewService creates a new budget service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		plans:      cfg.Plans,
		classifier: NewClassifier(cfg.Logger),
		logger:     cfg.Logger,
	}
}

// Report classifies the active plan's shopping list against the weekly
// budget. A positive budgetOverride wins over the plan's own weekly
// budget preference.
// Returns plan.ErrPlanNotFound when the user has no active plan.
func (s *Service) Report(ctx context.Context, userID string, budgetOverride float64) (*models.BudgetReportResponse, error) {
	p, err := s.plans.GetActive(ctx, userID)
	if err != nil {
		if errors.Is(err, plan.ErrPlanNotFound) {
			return nil, plan.ErrPlanNotFound
		}
		return nil, err
	}

	budget := p.Preferences.WeeklyBudget
	if budgetOverride > 0 {
		budget = budgetOverride
	}

	classification := s.classifier.Classify(p.ShoppingList, budget)

	return toAPIReport(p.ID, classification), nil
}

// toAPIReport converts a classification to its API shape.
func toAPIReport(planID string, c Classification) *models.BudgetReportResponse {
	return &models.BudgetReportResponse{
		PlanID:           planID,
		Budget:           c.Summary.Budget,
		TotalCost:        c.Summary.TotalCost,
		BudgetPercentage: c.Summary.BudgetPercentage,
		RemainingBudget:  c.Summary.RemainingBudget,
		Status:           models.BudgetStatus(c.Summary.Status),
		ReportedStatus:   c.Summary.ReportedStatus,
		Tiers: models.BudgetTiers{
			Value:    plan.ToAPIShoppingItems(c.Tiers.Value),
			Standard: plan.ToAPIShoppingItems(c.Tiers.Standard),
			Premium:  plan.ToAPIShoppingItems(c.Tiers.Premium),
		},
	}
}
