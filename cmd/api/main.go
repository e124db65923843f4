// Package main provides the entrypoint for the MacroPlan API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/macroplan/macroplan/internal/api"
	"github.com/macroplan/macroplan/internal/api/middleware"
	"github.com/macroplan/macroplan/internal/auth"
	"github.com/macroplan/macroplan/internal/budget"
	"github.com/macroplan/macroplan/internal/coach/coachhub"
	"github.com/macroplan/macroplan/internal/database"
	"github.com/macroplan/macroplan/internal/eligibility"
	"github.com/macroplan/macroplan/internal/events"
	"github.com/macroplan/macroplan/internal/featureflags"
	"github.com/macroplan/macroplan/internal/generation"
	"github.com/macroplan/macroplan/internal/lease"
	"github.com/macroplan/macroplan/internal/meals"
	"github.com/macroplan/macroplan/internal/nutrition"
	"github.com/macroplan/macroplan/internal/plan"
	"github.com/macroplan/macroplan/internal/provider/resilience"
	"github.com/macroplan/macroplan/internal/telemetry"
)

// Version and BuildTime are stamped by the release build through ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "macroplan-api"

func main() {
	log := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	if err := run(log); err != nil {
		log.Fatal().Err(err).Msg("api exited")
	}
}

func run(log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("build_time", BuildTime).Msg("starting MacroPlan API")

	telemetryOn := os.Getenv("OTEL_ENABLED") == "true"
	otelProvider, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    envOr("APP_ENV", "development"),
		OTLPEndpoint:   envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		Enabled:        telemetryOn,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer shutdownTelemetry(otelProvider, log)
	if telemetryOn {
		log.Info().Msg("OpenTelemetry exporters running")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		return fmt.Errorf("init http metrics: %w", err)
	}
	generationMetrics, err := generation.NewMetrics()
	if err != nil {
		return fmt.Errorf("init generation metrics: %w", err)
	}
	providerMetrics, err := resilience.NewProviderMetrics(coachhub.ProviderName)
	if err != nil {
		return fmt.Errorf("init provider metrics: %w", err)
	}

	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		jwtSigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("JWT_SIGNING_KEY not set, using the local development key")
	}
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: jwtSigningKey,
		Issuer:     auth.DefaultIssuer,
		Audience:   auth.DefaultAudience,
	})

	ffService := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewPostgresRepository(pool),
		Logger:     log,
		CacheTTL:   1 * time.Minute,
	})

	// The CoachHub client sits behind a circuit breaker; the registry
	// exposes its health through /v1/ops/status.
	registry := resilience.NewRegistry()
	coachClientCfg := resilience.DefaultClientConfig(coachhub.ProviderName)
	coachClientCfg.Metrics = providerMetrics
	coachHTTPClient := resilience.NewClient(coachClientCfg)
	registry.Register(coachhub.ProviderName, coachHTTPClient)

	coachClient := coachhub.NewClient(coachhub.ClientConfig{
		BaseURL:    os.Getenv("COACHHUB_BASE_URL"),
		APIKey:     os.Getenv("COACHHUB_API_KEY"),
		HTTPClient: coachHTTPClient,
	})
	if os.Getenv("COACHHUB_API_KEY") == "" {
		log.Warn().Msg("COACHHUB_API_KEY not set - generation requests will be rejected upstream")
	}

	gate := eligibility.NewGate(eligibility.GateConfig{
		Client:  coachClient,
		Flags:   ffService,
		Logger:  log,
		Metrics: providerMetrics,
	})

	// Plan ready events go to Pub/Sub when a project is configured and
	// are dropped otherwise.
	var publisher generation.Publisher = events.NoopPublisher{}
	if project := os.Getenv("PUBSUB_PROJECT_ID"); project != "" {
		p, err := events.NewPublisher(ctx, events.PublisherConfig{
			ProjectID: project,
			TopicName: envOr("PUBSUB_TOPIC", "macroplan-events"),
			Logger:    log,
		})
		if err != nil {
			return fmt.Errorf("init event publisher: %w", err)
		}
		defer func() {
			if closeErr := p.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to close event publisher")
			}
		}()
		publisher = p
	} else {
		log.Warn().Msg("PUBSUB_PROJECT_ID not set - plan ready events will be dropped")
	}

	leaseStore := lease.NewPostgresStore(pool)
	planRepo := plan.NewPostgresRepository(pool)
	mealRepo := meals.NewPostgresRepository(pool)

	planService := plan.NewService(planRepo)
	mealService := meals.NewService(mealRepo)
	nutritionService := nutrition.NewService(nutrition.ServiceConfig{
		Meals:  mealRepo,
		Plans:  planRepo,
		Logger: log,
	})
	budgetService := budget.NewService(budget.ServiceConfig{
		Plans:  planRepo,
		Logger: log,
	})

	manager := generation.NewManager(generation.ManagerConfig{
		Client:  coachClient,
		Gate:    gate,
		Leases:  leaseStore,
		Plans:   planRepo,
		Events:  publisher,
		Flags:   ffService,
		Logger:  log,
		Metrics: generationMetrics,
	})

	// Clear leases abandoned by a previous instance of this process.
	recovered, err := manager.Recover(ctx)
	if err != nil {
		log.Error().Err(err).Msg("lease recovery failed")
	} else if recovered > 0 {
		log.Info().Int("recovered", recovered).Msg("recovered abandoned generation leases")
	}

	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		ServiceName:        serviceName,
		Metrics:            httpMetrics,
		JWTService:         jwtService,
		Gate:               gate,
		Manager:            manager,
		PlanService:        planService,
		MealService:        mealService,
		NutritionService:   nutritionService,
		BudgetService:      budgetService,
		FeatureFlagService: ffService,
		DB:                 pool,
		Leases:             leaseStore,
		Registry:           registry,
	})

	server := &http.Server{
		Addr:         ":" + envOr("APP_PORT", "8080"),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	if err := <-serveErr; !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server closed abnormally")
	}

	// Stop in-flight generation attempts so their leases are released
	// rather than left for the sweeper.
	if err := manager.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("generation manager forced to shutdown")
	}

	log.Info().Msg("server stopped")
	return nil
}

// envOr reads an environment variable, falling back when it is unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func shutdownTelemetry(provider *telemetry.Provider, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := provider.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("telemetry shutdown failed")
	}
}
