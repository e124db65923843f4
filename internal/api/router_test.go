package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macroplan/macroplan/internal/api"
	"github.com/macroplan/macroplan/internal/api/models"
	"github.com/macroplan/macroplan/internal/auth"
	"github.com/macroplan/macroplan/internal/budget"
	"github.com/macroplan/macroplan/internal/coach"
	"github.com/macroplan/macroplan/internal/eligibility"
	"github.com/macroplan/macroplan/internal/featureflags"
	"github.com/macroplan/macroplan/internal/generation"
	"github.com/macroplan/macroplan/internal/lease"
	"github.com/macroplan/macroplan/internal/meals"
	"github.com/macroplan/macroplan/internal/nutrition"
	"github.com/macroplan/macroplan/internal/plan"
	"github.com/macroplan/macroplan/internal/provider/resilience"
)

const testUserID = "usr_testuser123"

// stubCoach is a canned upstream: every user is eligible and every job
// finishes on its first status poll.
type stubCoach struct{}

func (stubCoach) CheckEligibility(ctx context.Context, userID string) (*coach.Eligibility, error) {
	return &coach.Eligibility{CanCreate: true}, nil
}

func (stubCoach) StartGeneration(ctx context.Context, input *coach.Input) (*coach.StartAck, error) {
	return &coach.StartAck{Success: true, Step: 1}, nil
}

func (stubCoach) FetchStatus(ctx context.Context, userID string) (*coach.JobStatus, error) {
	return &coach.JobStatus{IsGenerating: false, CurrentStep: 5, TotalSteps: 5}, nil
}

func (stubCoach) ContinueStep(ctx context.Context, userID string) (*coach.StepAck, error) {
	return &coach.StepAck{Success: true}, nil
}

func (stubCoach) FetchResult(ctx context.Context, userID string) (*coach.GenerationResult, error) {
	return &coach.GenerationResult{
		Success: true,
		Plan: map[string]any{
			"name": "Strength Base",
			"nutritionGoal": map[string]any{
				"caloriesTarget": 2400.0,
				"proteinTarget":  160.0,
			},
		},
	}, nil
}

func testJWTService() *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "https://api.macroplan.app",
		Audience:   "macroplan-api",
	})
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := zerolog.New(io.Discard)

	// A fast poll interval keeps the end-to-end generation test short.
	flagService := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewInMemoryRepositoryWithFlags(map[string]*featureflags.Flag{
			featureflags.FlagCoachPollIntervalMs: {
				Key:   featureflags.FlagCoachPollIntervalMs,
				Value: 250,
			},
		}),
		Logger: logger,
	})

	gate := eligibility.NewGate(eligibility.GateConfig{
		Client: stubCoach{},
		Flags:  flagService,
		Logger: logger,
	})

	leases := lease.NewInMemoryStore()
	planRepo := plan.NewInMemoryRepository()
	mealRepo := meals.NewInMemoryRepository()

	manager := generation.NewManager(generation.ManagerConfig{
		Client: stubCoach{},
		Gate:   gate,
		Leases: leases,
		Plans:  planRepo,
		Flags:  flagService,
		Logger: logger,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = manager.Shutdown(ctx)
	})

	registry := resilience.NewRegistry()
	registry.Register("coachhub", resilience.NewClient(resilience.DefaultClientConfig("coachhub")))

	return api.NewRouter(api.RouterConfig{
		Version:            "test",
		BuildTime:          "2025-06-30T10:24:00Z",
		Logger:             logger,
		JWTService:         testJWTService(),
		Gate:               gate,
		Manager:            manager,
		PlanService:        plan.NewService(planRepo),
		MealService:        meals.NewService(mealRepo),
		NutritionService: nutrition.NewService(nutrition.ServiceConfig{
			Meals:  mealRepo,
			Plans:  planRepo,
			Logger: logger,
		}),
		BudgetService: budget.NewService(budget.ServiceConfig{
			Plans:  planRepo,
			Logger: logger,
		}),
		FeatureFlagService: flagService,
		Leases:             leases,
		Registry:           registry,
	})
}

// clientToken mints a bearer token for the standard test user.
func clientToken(t *testing.T) string {
	t.Helper()
	token, _, err := testJWTService().GenerateAccessToken(auth.Subject{UserID: testUserID, Role: auth.RoleClient})
	require.NoError(t, err)
	return token
}

func adminToken(t *testing.T) string {
	t.Helper()
	token, _, err := testJWTService().GenerateAccessToken(auth.Subject{UserID: "usr_admin42", Role: auth.RoleAdmin})
	require.NoError(t, err)
	return token
}

// send runs one request through the router. A nil payload sends no body;
// an empty token leaves the request unauthenticated.
func send(t *testing.T, router http.Handler, method, path string, payload any, token string) *httptest.ResponseRecorder {
	t.Helper()

	body := io.Reader(http.NoBody)
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, target any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), target))
}

func TestRouter_HealthCheck(t *testing.T) {
	router := newTestRouter(t)

	w := send(t, router, http.MethodGet, "/v1/ops/health", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var health models.Health
	decode(t, w, &health)
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestRouter_ReadinessCheck(t *testing.T) {
	router := newTestRouter(t)

	w := send(t, router, http.MethodGet, "/v1/ops/ready", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)

	var health models.Health
	decode(t, w, &health)
	assert.Equal(t, models.HealthStatusOK, health.Status)
}

func TestRouter_SystemStatus(t *testing.T) {
	router := newTestRouter(t)

	w := send(t, router, http.MethodGet, "/v1/ops/status", nil, clientToken(t))

	assert.Equal(t, http.StatusOK, w.Code)

	var status models.SystemStatus
	decode(t, w, &status)
	assert.Equal(t, models.HealthStatusOK, status.Status)
	assert.NotEmpty(t, status.Subsystems)
	require.NotEmpty(t, status.Providers)
	assert.Equal(t, "coachhub", status.Providers[0].Provider)
	assert.Empty(t, status.ActiveDegradationFlags)
}

func TestRouter_SystemStatus_RequiresAuth(t *testing.T) {
	router := newTestRouter(t)

	w := send(t, router, http.MethodGet, "/v1/ops/status", nil, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestRouter_CheckEligibility(t *testing.T) {
	router := newTestRouter(t)

	w := send(t, router, http.MethodGet, "/v1/coach/eligibility", nil, clientToken(t))

	assert.Equal(t, http.StatusOK, w.Code)

	var elig models.EligibilityResponse
	decode(t, w, &elig)
	assert.True(t, elig.CanCreate)
	assert.False(t, elig.GloballyDisabled)
}

func TestRouter_GenerationLifecycle(t *testing.T) {
	router := newTestRouter(t)
	token := clientToken(t)

	input := models.GenerationStartRequest{
		Goal:               "strength",
		WorkoutDaysPerWeek: 4,
	}
	w := send(t, router, http.MethodPost, "/v1/coach/generations", input, token)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "/v1/coach/generations/current", w.Header().Get("Location"))

	var accepted models.GenerationStatusResponse
	decode(t, w, &accepted)
	assert.Contains(t, accepted.SessionID, "gen_")

	status := pollUntilTerminal(t, router, token)
	assert.Equal(t, string(generation.StateDone), status.State)
	assert.True(t, status.IsComplete)
	assert.Equal(t, 100, status.Percent)
	require.NotEmpty(t, status.PlanID)

	// The stored plan is immediately the active one.
	w = send(t, router, http.MethodGet, "/v1/me/plans/active", nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	var active models.Plan
	decode(t, w, &active)
	assert.Equal(t, status.PlanID, active.ID)
	assert.True(t, active.Active)
	assert.Equal(t, 2400.0, active.NutritionGoal.CaloriesTarget)
}

// pollUntilTerminal reads the current generation status until the
// attempt finishes.
func pollUntilTerminal(t *testing.T, router http.Handler, token string) models.GenerationStatusResponse {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		w := send(t, router, http.MethodGet, "/v1/coach/generations/current", nil, token)
		require.Equal(t, http.StatusOK, w.Code)

		var status models.GenerationStatusResponse
		decode(t, w, &status)
		if generation.State(status.State).Terminal() {
			return status
		}

		time.Sleep(25 * time.Millisecond)
	}

	t.Fatal("generation did not reach a terminal state in time")
	return models.GenerationStatusResponse{}
}

func TestRouter_GenerationStatus_NoneActive(t *testing.T) {
	router := newTestRouter(t)

	w := send(t, router, http.MethodGet, "/v1/coach/generations/current", nil, clientToken(t))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestRouter_CancelGeneration_NoneActive(t *testing.T) {
	router := newTestRouter(t)

	w := send(t, router, http.MethodDelete, "/v1/coach/generations/current", nil, clientToken(t))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_StartGeneration_ValidationError(t *testing.T) {
	router := newTestRouter(t)

	// Goal is required.
	w := send(t, router, http.MethodPost, "/v1/coach/generations", models.GenerationStartRequest{}, clientToken(t))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	var problem models.Problem
	decode(t, w, &problem)
	assert.Equal(t, models.ProblemTypeValidation, problem.Type)
	assert.NotEmpty(t, problem.TraceID)
}

func TestRouter_LogAndListMeals(t *testing.T) {
	router := newTestRouter(t)
	token := clientToken(t)

	input := models.MealCreateRequest{
		Name:     "Overnight oats",
		MealType: models.MealTypeBreakfast,
		Calories: 420,
		ProteinG: 18,
		CarbsG:   61,
		FatG:     9,
	}
	w := send(t, router, http.MethodPost, "/v1/me/meals", input, token)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, w.Header().Get("Location"))

	var entry models.MealEntry
	decode(t, w, &entry)
	assert.Contains(t, entry.ID, "meal_")
	assert.Equal(t, "Overnight oats", entry.Name)
	assert.NotEmpty(t, entry.LoggedOn)

	w = send(t, router, http.MethodGet, "/v1/me/meals", nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	var list models.MealListResponse
	decode(t, w, &list)
	require.Len(t, list.Items, 1)
	assert.Equal(t, entry.ID, list.Items[0].ID)
	assert.NotEmpty(t, list.From)
	assert.NotEmpty(t, list.To)
}

func TestRouter_LogMeal_ValidationError(t *testing.T) {
	router := newTestRouter(t)

	// Name and meal type are required.
	w := send(t, router, http.MethodPost, "/v1/me/meals", models.MealCreateRequest{Calories: 300}, clientToken(t))

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var problem models.Problem
	decode(t, w, &problem)
	assert.Equal(t, models.ProblemTypeValidation, problem.Type)
	assert.NotEmpty(t, problem.Errors)
}

func TestRouter_ListPlans_Empty(t *testing.T) {
	router := newTestRouter(t)

	w := send(t, router, http.MethodGet, "/v1/me/plans", nil, clientToken(t))

	assert.Equal(t, http.StatusOK, w.Code)

	var plans models.PagedPlans
	decode(t, w, &plans)
	assert.Empty(t, plans.Items)
	assert.Equal(t, 20, plans.Meta.Limit)
}

func TestRouter_GetActivePlan_NotFound(t *testing.T) {
	router := newTestRouter(t)

	w := send(t, router, http.MethodGet, "/v1/me/plans/active", nil, clientToken(t))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_NutritionSummary(t *testing.T) {
	router := newTestRouter(t)

	w := send(t, router, http.MethodGet, "/v1/me/analytics/nutrition", nil, clientToken(t))

	assert.Equal(t, http.StatusOK, w.Code)

	var summary models.NutritionAnalyticsResponse
	decode(t, w, &summary)
	assert.NotEmpty(t, summary.From)
	assert.NotEmpty(t, summary.To)
	assert.Zero(t, summary.DaysLogged)
}

func TestRouter_BudgetReport_NoActivePlan(t *testing.T) {
	router := newTestRouter(t)

	w := send(t, router, http.MethodGet, "/v1/me/shopping/budget", nil, clientToken(t))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_AdminFeatureFlags(t *testing.T) {
	router := newTestRouter(t)
	admin := adminToken(t)

	w := send(t, router, http.MethodGet, "/v1/admin/feature-flags", nil, admin)

	require.Equal(t, http.StatusOK, w.Code)

	var list featureflags.FlagList
	decode(t, w, &list)
	assert.GreaterOrEqual(t, len(list.Items), 4)

	// Flip the generation kill switch and watch eligibility change.
	update := featureflags.FlagUpdateRequest{
		Updates: []featureflags.FlagUpdate{
			{Key: featureflags.FlagCoachGenerationDisabled, Value: true},
		},
		Reason: "incident drill",
	}
	w = send(t, router, http.MethodPut, "/v1/admin/feature-flags", update, admin)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = send(t, router, http.MethodGet, "/v1/coach/eligibility", nil, clientToken(t))
	require.Equal(t, http.StatusOK, w.Code)

	var elig models.EligibilityResponse
	decode(t, w, &elig)
	assert.False(t, elig.CanCreate)
	assert.True(t, elig.GloballyDisabled)
}

func TestRouter_AdminFeatureFlags_ForbiddenForClients(t *testing.T) {
	router := newTestRouter(t)

	w := send(t, router, http.MethodGet, "/v1/admin/feature-flags", nil, clientToken(t))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestRouter_MeEndpoints_RequireAuth(t *testing.T) {
	router := newTestRouter(t)

	paths := []string{
		"/v1/me/plans",
		"/v1/me/meals",
		"/v1/me/analytics/nutrition",
		"/v1/coach/eligibility",
	}
	for _, path := range paths {
		w := send(t, router, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, "path %s", path)
	}
}

func TestRouter_RequestID_Generated(t *testing.T) {
	router := newTestRouter(t)

	w := send(t, router, http.MethodGet, "/v1/ops/health", nil, "")

	requestID := w.Header().Get("X-Request-Id")
	assert.NotEmpty(t, requestID)
	assert.Contains(t, requestID, "req_")
}

func TestRouter_RequestID_Preserved(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("X-Request-Id", "req_mobile_7f3a")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, "req_mobile_7f3a", w.Header().Get("X-Request-Id"))
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(t)

	w := send(t, router, http.MethodGet, "/v1/nonexistent", nil, "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}
