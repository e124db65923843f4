// Package main provides the entrypoint for the MacroPlan background worker.
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

	"github.com/macroplan/macroplan/internal/database"
	"github.com/macroplan/macroplan/internal/featureflags"
	"github.com/macroplan/macroplan/internal/lease"
	"github.com/macroplan/macroplan/internal/worker"
)

// Version and BuildTime are stamped by the release build through ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "macroplan-worker"

func main() {
	log := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	if err := run(log); err != nil {
		log.Fatal().Err(err).Msg("worker exited")
	}
}

func run(log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("build_time", BuildTime).Msg("starting MacroPlan worker")

	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Str("database", dbConfig.Database).
		Msg("database connected")

	ffService := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewPostgresRepository(pool),
		Logger:     log,
		CacheTTL:   1 * time.Minute,
	})

	sweepJob := worker.NewSweepJob(worker.SweepJobConfig{
		Config: worker.DefaultSweepConfig(),
		Leases: lease.NewPostgresStore(pool),
		Logger: log,
	})

	dispatcher := worker.NewDispatcher(worker.DispatcherConfig{
		Sweep:    sweepJob,
		Notifier: worker.NewLogNotifier(log),
		Flags:    ffService,
		Logger:   log,
	})

	// Event handling needs Pub/Sub. Without it the worker still runs
	// the periodic lease sweep.
	if project := os.Getenv("PUBSUB_PROJECT_ID"); project != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        project,
			SubscriptionName: envOr("PUBSUB_SUBSCRIPTION", "macroplan-events-worker"),
			Dispatcher:       dispatcher,
			Logger:           log,
		})
		if err != nil {
			return fmt.Errorf("init pubsub handler: %w", err)
		}
		defer func() {
			if closeErr := handler.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to close pubsub handler")
			}
		}()

		go func() {
			if err := handler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		log.Warn().Msg("PUBSUB_PROJECT_ID not set - event handling disabled")
	}

	go sweepJob.RunPeriodic(ctx)

	// Cloud Run probes this endpoint to keep the instance alive.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","version":%q}`, Version)
	})

	server := &http.Server{
		Addr:         ":" + envOr("APP_PORT", "8080"),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve health endpoint: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down worker")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}
	if err := <-serveErr; !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("health server closed abnormally")
	}

	log.Info().Msg("worker stopped")
	return nil
}

// envOr reads an environment variable, falling back when it is unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
