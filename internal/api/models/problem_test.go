package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macroplan/macroplan/internal/api/models"
)

func TestNewProblem(t *testing.T) {
	p := models.NewProblem(models.ProblemTypeValidation, "Validation error", http.StatusBadRequest, "req_test123")

	assert.Equal(t, models.ProblemTypeValidation, p.Type)
	assert.Equal(t, "Validation error", p.Title)
	assert.Equal(t, http.StatusBadRequest, p.Status)
	assert.Equal(t, "req_test123", p.TraceID)
	assert.Empty(t, p.Detail)
	assert.Empty(t, p.Instance)
	assert.Nil(t, p.Errors)
}

func TestProblem_Builders(t *testing.T) {
	p := models.NewProblem(models.ProblemTypeValidation, "Validation error", http.StatusBadRequest, "req_test123").
		WithDetail("workoutDaysPerWeek must be between 0 and 7").
		WithInstance("/v1/coach/generations").
		WithErrors([]models.FieldError{
			{Field: "workoutDaysPerWeek", Message: "must be between 0 and 7", Code: "OUT_OF_RANGE"},
			{Field: "goal", Message: "required", Code: "REQUIRED"},
		})

	assert.Equal(t, "workoutDaysPerWeek must be between 0 and 7", p.Detail)
	assert.Equal(t, "/v1/coach/generations", p.Instance)
	require.Len(t, p.Errors, 2)
	assert.Equal(t, "workoutDaysPerWeek", p.Errors[0].Field)
	assert.Equal(t, "OUT_OF_RANGE", p.Errors[0].Code)
	assert.Equal(t, "goal", p.Errors[1].Field)
}

func TestProblem_Write(t *testing.T) {
	p := models.NewBadRequest("req_test123", "invalid input", []models.FieldError{
		{Field: "email", Message: "invalid format"},
	})
	p.Instance = "/v1/me/plans"

	rec := httptest.NewRecorder()
	p.Write(rec)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "req_test123", rec.Header().Get("X-Request-Id"))

	var got models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))

	assert.Equal(t, models.ProblemTypeValidation, got.Type)
	assert.Equal(t, "Validation error", got.Title)
	assert.Equal(t, http.StatusBadRequest, got.Status)
	assert.Equal(t, "invalid input", got.Detail)
	assert.Equal(t, "/v1/me/plans", got.Instance)
	assert.Equal(t, "req_test123", got.TraceID)
	require.Len(t, got.Errors, 1)
	assert.Equal(t, "email", got.Errors[0].Field)
}

func TestProblemConstructors(t *testing.T) {
	tests := []struct {
		name     string
		problem  *models.Problem
		wantType string
		title    string
		status   int
		detail   string
	}{
		{
			"bad request",
			models.NewBadRequest("req_123", "invalid data", nil),
			models.ProblemTypeValidation, "Validation error", http.StatusBadRequest, "invalid data",
		},
		{
			"unauthorized",
			models.NewUnauthorized("req_123", "token expired"),
			models.ProblemTypeUnauthorized, "Unauthorized", http.StatusUnauthorized, "token expired",
		},
		{
			"forbidden",
			models.NewForbidden("req_123", "trainer role required"),
			models.ProblemTypeForbidden, "Forbidden", http.StatusForbidden, "trainer role required",
		},
		{
			"not found",
			models.NewNotFound("req_123", "plan not found"),
			models.ProblemTypeNotFound, "Not found", http.StatusNotFound, "plan not found",
		},
		{
			"conflict",
			models.NewConflict("req_123", "generation already running"),
			models.ProblemTypeConflict, "Conflict", http.StatusConflict, "generation already running",
		},
		{
			"unsupported media type",
			models.NewUnsupportedMediaType("req_123", "Content-Type must be application/json"),
			models.ProblemTypeUnsupportedMedia, "Unsupported media type", http.StatusUnsupportedMediaType, "Content-Type must be application/json",
		},
		{
			"too many requests",
			models.NewTooManyRequests("req_123", "rate limit exceeded"),
			models.ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests, "rate limit exceeded",
		},
		{
			"internal error",
			models.NewInternalError("req_123", "database error"),
			models.ProblemTypeInternal, "Internal server error", http.StatusInternalServerError, "database error",
		},
		{
			"service unavailable",
			models.NewServiceUnavailable("req_123", "coach provider is down"),
			models.ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable, "coach provider is down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.problem.Type)
			assert.Equal(t, tt.title, tt.problem.Title)
			assert.Equal(t, tt.status, tt.problem.Status)
			assert.Equal(t, tt.detail, tt.problem.Detail)
			assert.Equal(t, "req_123", tt.problem.TraceID)
		})
	}
}
