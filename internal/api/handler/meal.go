package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/macroplan/macroplan/internal/api/models"
	"github.com/macroplan/macroplan/internal/api/response"
	"github.com/macroplan/macroplan/internal/meals"
)

// MealHandler handles meal logging endpoints.
type MealHandler struct {
	service *meals.Service
}

// NewMealHandler creates a new MealHandler.
func NewMealHandler(service *meals.Service) *MealHandler {
	return &MealHandler{service: service}
}

// LogMeal handles POST /v1/me/meals - record a logged meal.
func (h *MealHandler) LogMeal(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())

	var req models.MealCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	entry, err := h.service.Log(r.Context(), userID, &req)
	if err != nil {
		var validationErr *meals.ValidationError
		if errors.As(err, &validationErr) {
			response.BadRequest(w, r, "validation failed", validationErr.Errors)
			return
		}
		response.InternalError(w, r, "could not log meal")
		return
	}

	response.Created(w, r, "/v1/me/meals/"+entry.ID, entry)
}

// ListMeals handles GET /v1/me/meals - list logged meals in a day range.
func (h *MealHandler) ListMeals(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())

	list, err := h.service.List(r.Context(), userID, r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		var validationErr *meals.ValidationError
		if errors.As(err, &validationErr) {
			response.BadRequest(w, r, "validation failed", validationErr.Errors)
			return
		}
		response.InternalError(w, r, "could not list meals")
		return
	}

	response.JSON(w, r, http.StatusOK, list)
}

// DeleteMeal handles DELETE /v1/me/meals/{mealId} - remove a logged meal.
func (h *MealHandler) DeleteMeal(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	mealID := chi.URLParam(r, "mealId")

	if err := h.service.Delete(r.Context(), userID, mealID); err != nil {
		if errors.Is(err, meals.ErrEntryNotFound) {
			response.NotFound(w, r, "meal entry not found")
			return
		}
		response.InternalError(w, r, "could not delete meal")
		return
	}

	response.NoContent(w, r)
}
