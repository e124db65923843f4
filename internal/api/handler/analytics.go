package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/macroplan/macroplan/internal/api/response"
	"github.com/macroplan/macroplan/internal/budget"
	"github.com/macroplan/macroplan/internal/featureflags"
	"github.com/macroplan/macroplan/internal/meals"
	"github.com/macroplan/macroplan/internal/nutrition"
	"github.com/macroplan/macroplan/internal/plan"
)

// AnalyticsHandler handles nutrition and budget analytics endpoints.
type AnalyticsHandler struct {
	nutrition *nutrition.Service
	budget    *budget.Service
	flags     *featureflags.Service
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(nutritionService *nutrition.Service, budgetService *budget.Service, flags *featureflags.Service) *AnalyticsHandler {
	return &AnalyticsHandler{
		nutrition: nutritionService,
		budget:    budgetService,
		flags:     flags,
	}
}

// NutritionSummary handles GET /v1/me/analytics/nutrition - aggregate
// logged meals over a day range.
func (h *AnalyticsHandler) NutritionSummary(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())

	summary, err := h.nutrition.Summary(r.Context(), userID, r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		var validationErr *meals.ValidationError
		if errors.As(err, &validationErr) {
			response.BadRequest(w, r, "validation failed", validationErr.Errors)
			return
		}
		response.InternalError(w, r, "could not build nutrition summary")
		return
	}

	response.JSON(w, r, http.StatusOK, summary)
}

// BudgetReport handles GET /v1/me/shopping/budget - classify the active
// plan's shopping list against the weekly budget.
func (h *AnalyticsHandler) BudgetReport(w http.ResponseWriter, r *http.Request) {
	// Budget tracking can be switched off entirely; hidden, not broken.
	if h.flags != nil && h.flags.IsBudgetTrackingDisabled(r.Context()) {
		response.NotFound(w, r, "budget tracking is not available")
		return
	}

	userID := GetUserID(r.Context())

	var budgetOverride float64
	if v := r.URL.Query().Get("budget"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed < 0 {
			response.BadRequest(w, r, "budget must be a non-negative number", nil)
			return
		}
		budgetOverride = parsed
	}

	report, err := h.budget.Report(r.Context(), userID, budgetOverride)
	if err != nil {
		if errors.Is(err, plan.ErrPlanNotFound) {
			response.NotFound(w, r, "no active plan")
			return
		}
		response.InternalError(w, r, "could not build budget report")
		return
	}

	response.JSON(w, r, http.StatusOK, report)
}
