package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/macroplan/macroplan/internal/api/models"
	"github.com/macroplan/macroplan/internal/api/response"
	"github.com/macroplan/macroplan/internal/coach"
	"github.com/macroplan/macroplan/internal/eligibility"
	"github.com/macroplan/macroplan/internal/generation"
)

// CoachHandler handles plan generation endpoints.
type CoachHandler struct {
	gate    *eligibility.Gate
	manager *generation.Manager
}

// NewCoachHandler creates a new CoachHandler.
func NewCoachHandler(gate *eligibility.Gate, manager *generation.Manager) *CoachHandler {
	return &CoachHandler{
		gate:    gate,
		manager: manager,
	}
}

// CheckEligibility handles GET /v1/coach/eligibility - may the caller
// start a generation right now.
func (h *CoachHandler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	subject := GetSubject(r.Context())

	verdict, err := h.gate.Check(r.Context(), subject)
	if err != nil {
		response.ServiceUnavailable(w, r, "could not verify eligibility, please try again")
		return
	}

	response.JSON(w, r, http.StatusOK, toEligibilityResponse(verdict))
}

// StartGeneration handles POST /v1/coach/generations - start a plan
// generation attempt for the caller.
func (h *CoachHandler) StartGeneration(w http.ResponseWriter, r *http.Request) {
	subject := GetSubject(r.Context())

	var req models.GenerationStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	input := toCoachInput(subject.UserID, &req)
	if err := input.Validate(); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	session, err := h.manager.Start(r.Context(), subject, input)
	if err != nil {
		h.writeStartFailure(w, r, err)
		return
	}

	response.Accepted(w, r, "/v1/coach/generations/current", toStatusResponse(session))
}

// GenerationStatus handles GET /v1/coach/generations/current - progress
// of the caller's generation.
func (h *CoachHandler) GenerationStatus(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())

	session, err := h.manager.Snapshot(r.Context(), userID)
	if err != nil {
		if errors.Is(err, generation.ErrNoActiveGeneration) {
			response.NotFound(w, r, "no generation in progress")
			return
		}
		response.InternalError(w, r, "could not load generation status")
		return
	}

	response.JSON(w, r, http.StatusOK, toStatusResponse(session))
}

// CancelGeneration handles DELETE /v1/coach/generations/current - stop
// following the caller's generation.
func (h *CoachHandler) CancelGeneration(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())

	if err := h.manager.Cancel(r.Context(), userID); err != nil {
		if errors.Is(err, generation.ErrNoActiveGeneration) {
			response.NotFound(w, r, "no generation in progress")
			return
		}
		response.InternalError(w, r, "could not cancel generation")
		return
	}

	response.NoContent(w, r)
}

// writeStartFailure maps a refused start onto its HTTP shape.
func (h *CoachHandler) writeStartFailure(w http.ResponseWriter, r *http.Request, err error) {
	var f *generation.Failure
	if !errors.As(err, &f) {
		response.InternalError(w, r, "could not start generation")
		return
	}

	switch f.Kind {
	case generation.FailureIneligible:
		response.Forbidden(w, r, f.Message)
	case generation.FailureRateLimited:
		response.TooManyRequests(w, r, f.Message)
	case generation.FailureAlreadyGenerating:
		response.Conflict(w, r, f.Message)
	case generation.FailureNetwork:
		response.ServiceUnavailable(w, r, f.Message)
	default:
		response.InternalError(w, r, f.Message)
	}
}

// toCoachInput builds the upstream payload; the user id always comes
// from the authenticated subject, never the body.
func toCoachInput(userID string, req *models.GenerationStartRequest) *coach.Input {
	return &coach.Input{
		UserID:               userID,
		Age:                  req.Age,
		Sex:                  req.Sex,
		HeightCm:             req.HeightCm,
		WeightKg:             req.WeightKg,
		ActivityLevel:        req.ActivityLevel,
		Goal:                 req.Goal,
		DietaryPreferences:   req.DietaryPreferences,
		WeeklyBudget:         req.WeeklyBudget,
		WorkoutDaysPerWeek:   req.WorkoutDaysPerWeek,
		PreferredWorkoutDays: req.PreferredWorkoutDays,
		WorkoutMinutes:       req.WorkoutMinutes,
		Notifications: coach.NotificationPrefs{
			Email: req.Notifications.Email,
			Push:  req.Notifications.Push,
		},
	}
}

func toEligibilityResponse(v *eligibility.Verdict) models.EligibilityResponse {
	return models.EligibilityResponse{
		CanCreate:        v.CanCreate,
		DaysRemaining:    v.DaysRemaining,
		HasTrainer:       v.HasTrainer,
		GloballyDisabled: v.GloballyDisabled,
		Message:          v.Message,
	}
}

// toStatusResponse renders a session the way clients consume it.
func toStatusResponse(s *generation.Session) models.GenerationStatusResponse {
	p := generation.Project(s)

	resp := models.GenerationStatusResponse{
		SessionID:              p.SessionID,
		State:                  string(p.State),
		IsGenerating:           p.Generating,
		IsComplete:             p.Complete,
		CurrentStep:            p.Step,
		TotalSteps:             p.TotalSteps,
		Percent:                p.Percent,
		StatusMessage:          p.Message,
		EstimatedTimeRemaining: p.EstimatedSecondsRemaining,
		PlanID:                 s.PlanID,
	}
	if !s.StartedAt.IsZero() {
		startedAt := models.Timestamp(s.StartedAt)
		resp.StartedAt = &startedAt
	}
	if p.Error != nil {
		resp.ErrorCode = string(p.Error.Kind)
		resp.ErrorMessage = p.Error.Message
	}
	return resp
}
