// Package api provides the HTTP API for MacroPlan.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/macroplan/macroplan/internal/api/handler"
	"github.com/macroplan/macroplan/internal/api/middleware"
	"github.com/macroplan/macroplan/internal/auth"
	"github.com/macroplan/macroplan/internal/budget"
	"github.com/macroplan/macroplan/internal/eligibility"
	"github.com/macroplan/macroplan/internal/featureflags"
	"github.com/macroplan/macroplan/internal/generation"
	"github.com/macroplan/macroplan/internal/lease"
	"github.com/macroplan/macroplan/internal/meals"
	"github.com/macroplan/macroplan/internal/nutrition"
	"github.com/macroplan/macroplan/internal/plan"
	"github.com/macroplan/macroplan/internal/provider/resilience"
)

// RouterConfig carries everything the HTTP surface needs. The ops status
// dependencies at the bottom are optional; the handler nil-checks them.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	JWTService *auth.JWTService

	Gate    *eligibility.Gate
	Manager *generation.Manager

	PlanService        *plan.Service
	MealService        *meals.Service
	NutritionService   *nutrition.Service
	BudgetService      *budget.Service
	FeatureFlagService *featureflags.Service

	DB       *pgxpool.Pool
	Leases   lease.Store
	Registry *resilience.Registry
}

// NewRouter assembles the chi router: the global middleware chain, then
// the /v1 route tree.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "macroplan-api"
	}

	// RequestID runs first so every later stage can tag its output, and
	// Recovery sits after Logger so a panic still gets an access log line.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS)
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.RequireJSON)

	opsHandler := handler.NewOpsHandler(handler.OpsHandlerConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		DB:        cfg.DB,
		Leases:    cfg.Leases,
		Registry:  cfg.Registry,
		Flags:     cfg.FeatureFlagService,
	})
	coachHandler := handler.NewCoachHandler(cfg.Gate, cfg.Manager)
	planHandler := handler.NewPlanHandler(cfg.PlanService)
	mealHandler := handler.NewMealHandler(cfg.MealService)
	analyticsHandler := handler.NewAnalyticsHandler(cfg.NutritionService, cfg.BudgetService, cfg.FeatureFlagService)
	featureFlagsHandler := handler.NewFeatureFlagsHandler(cfg.FeatureFlagService, cfg.Logger)

	authMiddleware := middleware.Auth(cfg.JWTService)
	adminOnly := middleware.RequireRole(auth.RoleAdmin)

	// Authenticated routes budget per user; the public ops routes can
	// only key on IP.
	generationRateLimit := middleware.RateLimitByUser(middleware.GenerationRateLimit)
	expensiveRateLimit := middleware.RateLimitByUser(middleware.ExpensiveRateLimit)
	standardRateLimit := middleware.RateLimitByUser(middleware.StandardRateLimit)
	publicRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)

	r.Route("/v1", func(r chi.Router) {
		// Health and ready stay open for the load balancer. Status
		// exposes lease and breaker detail, so it sits behind auth.
		r.Route("/ops", func(r chi.Router) {
			r.Use(publicRateLimit)

			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		// Plan generation lifecycle.
		r.Route("/coach", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(standardRateLimit)

			r.Get("/eligibility", coachHandler.CheckEligibility)

			r.Route("/generations", func(r chi.Router) {
				// Starts occupy upstream job slots; strictly limited.
				r.With(generationRateLimit).Post("/", coachHandler.StartGeneration)
				r.Get("/current", coachHandler.GenerationStatus)
				r.Delete("/current", coachHandler.CancelGeneration)
			})
		})

		// Everything under /me is scoped to the authenticated user.
		r.Route("/me", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(standardRateLimit)

			r.Route("/plans", func(r chi.Router) {
				r.Get("/", planHandler.ListPlans)
				r.Get("/active", planHandler.GetActivePlan)
				r.Get("/{planId}", planHandler.GetPlan)
			})

			r.Route("/meals", func(r chi.Router) {
				r.Get("/", mealHandler.ListMeals)
				r.Post("/", mealHandler.LogMeal)
				r.Delete("/{mealId}", mealHandler.DeleteMeal)
			})

			// Aggregation endpoints scan weeks of rows; tighter limit.
			r.With(expensiveRateLimit).Get("/analytics/nutrition", analyticsHandler.NutritionSummary)
			r.With(expensiveRateLimit).Get("/shopping/budget", analyticsHandler.BudgetReport)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(adminOnly)
			r.Use(standardRateLimit)

			r.Route("/feature-flags", func(r chi.Router) {
				r.Get("/", featureFlagsHandler.ListFlags)
				r.Put("/", featureFlagsHandler.UpsertFlags)
				r.Post("/invalidate", featureFlagsHandler.InvalidateCache)
			})
		})
	})

	return r
}
