package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/macroplan/macroplan/internal/api/response"
	"github.com/macroplan/macroplan/internal/plan"
)

// Plan listing limits.
const (
	defaultPlanListLimit = 20
	maxPlanListLimit     = 50
)

// PlanHandler handles fitness plan endpoints.
type PlanHandler struct {
	service *plan.Service
}

// NewPlanHandler creates a new PlanHandler.
func NewPlanHandler(service *plan.Service) *PlanHandler {
	return &PlanHandler{service: service}
}

// ListPlans handles GET /v1/me/plans - list the caller's plans.
func (h *PlanHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())

	limit := defaultPlanListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			response.BadRequest(w, r, "limit must be a positive integer", nil)
			return
		}
		limit = parsed
	}
	if limit > maxPlanListLimit {
		limit = maxPlanListLimit
	}

	plans, err := h.service.List(r.Context(), userID, limit, r.URL.Query().Get("cursor"))
	if err != nil {
		response.InternalError(w, r, "could not list plans")
		return
	}

	response.JSON(w, r, http.StatusOK, plans)
}

// GetActivePlan handles GET /v1/me/plans/active - the caller's active plan.
func (h *PlanHandler) GetActivePlan(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())

	p, err := h.service.Active(r.Context(), userID)
	if err != nil {
		if errors.Is(err, plan.ErrPlanNotFound) {
			response.NotFound(w, r, "no active plan")
			return
		}
		response.InternalError(w, r, "could not load active plan")
		return
	}

	response.JSON(w, r, http.StatusOK, p)
}

// GetPlan handles GET /v1/me/plans/{planId} - one of the caller's plans.
func (h *PlanHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	planID := chi.URLParam(r, "planId")

	p, err := h.service.Get(r.Context(), userID, planID)
	if err != nil {
		if errors.Is(err, plan.ErrPlanNotFound) {
			response.NotFound(w, r, "plan not found")
			return
		}
		response.InternalError(w, r, "could not load plan")
		return
	}

	response.JSON(w, r, http.StatusOK, p)
}
