// Package handler provides HTTP handlers for the MacroPlan API.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker/v2"

	"github.com/macroplan/macroplan/internal/api/models"
	"github.com/macroplan/macroplan/internal/api/response"
	"github.com/macroplan/macroplan/internal/featureflags"
	"github.com/macroplan/macroplan/internal/lease"
	"github.com/macroplan/macroplan/internal/provider/resilience"
)

// opsCheckTimeout bounds each dependency probe.
const opsCheckTimeout = 2 * time.Second

// OpsHandlerConfig holds the dependencies the ops endpoints report on.
// Everything besides Version and BuildTime is optional.
type OpsHandlerConfig struct {
	Version   string
	BuildTime string

	// DB is pinged by readiness and status checks.
	DB *pgxpool.Pool

	// Leases is probed by the status check.
	Leases lease.Store

	// Registry supplies upstream provider circuit health.
	Registry *resilience.Registry

	// Flags supplies active degradation flags for the status report.
	Flags *featureflags.Service
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsHandlerConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsHandlerConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
// Fails when the database cannot be reached.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}

	if h.cfg.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), opsCheckTimeout)
		defer cancel()

		if err := h.cfg.DB.Ping(ctx); err != nil {
			health.Status = models.HealthStatusFail
			health.Details = map[string]interface{}{"database": err.Error()}
			response.JSON(w, r, http.StatusServiceUnavailable, health)
			return
		}
	}

	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - subsystem and upstream
// provider status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), opsCheckTimeout)
	defer cancel()

	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Version:    h.cfg.Version,
		Time:       models.Timestamp(time.Now()),
		Subsystems: h.subsystemStatuses(ctx),
		Providers:  h.providerStatuses(),
	}

	for _, s := range status.Subsystems {
		status.Status = worstStatus(status.Status, s.Status)
	}
	for _, p := range status.Providers {
		status.Status = worstStatus(status.Status, p.Status)
	}

	status.ActiveDegradationFlags = h.activeDegradationFlags(ctx)

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) subsystemStatuses(ctx context.Context) []models.SubsystemStatus {
	var subsystems []models.SubsystemStatus

	if h.cfg.DB != nil {
		s := models.SubsystemStatus{Name: "postgres", Status: models.HealthStatusOK}
		if err := h.cfg.DB.Ping(ctx); err != nil {
			s.Status = models.HealthStatusFail
			detail := err.Error()
			s.Detail = &detail
		}
		subsystems = append(subsystems, s)
	}

	if h.cfg.Leases != nil {
		s := models.SubsystemStatus{Name: "lease-store", Status: models.HealthStatusOK}
		// Any answer proves the store is reachable; an absent probe
		// lease is the expected one.
		if _, err := h.cfg.Leases.Get(ctx, "ops_probe"); err != nil && !errors.Is(err, lease.ErrLeaseNotFound) {
			s.Status = models.HealthStatusFail
			detail := err.Error()
			s.Detail = &detail
		}
		subsystems = append(subsystems, s)
	}

	return subsystems
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.cfg.Registry == nil {
		return nil
	}

	// GetAllHealth returns providers sorted by name.
	health := h.cfg.Registry.GetAllHealth()

	providers := make([]models.ProviderStatus, 0, len(health))
	for _, ph := range health {
		p := models.ProviderStatus{
			Provider: ph.Name,
			Status:   circuitStatus(ph.CircuitState),
		}
		if ph.LastSuccessAt != nil {
			t := models.Timestamp(*ph.LastSuccessAt)
			p.LastSuccessAt = &t
		}
		if ph.LastFailureAt != nil {
			t := models.Timestamp(*ph.LastFailureAt)
			p.LastFailureAt = &t
		}
		if ph.LastError != "" {
			msg := ph.LastError
			p.Message = &msg
		}
		providers = append(providers, p)
	}
	return providers
}

// activeDegradationFlags lists the kill switches currently on.
func (h *OpsHandler) activeDegradationFlags(ctx context.Context) []string {
	if h.cfg.Flags == nil {
		return nil
	}

	var active []string
	for _, key := range []string{
		featureflags.FlagCoachGenerationDisabled,
		featureflags.FlagPlanNotificationsDisabled,
		featureflags.FlagBudgetTrackingDisabled,
	} {
		if h.cfg.Flags.IsEnabled(ctx, key) {
			active = append(active, key)
		}
	}
	return active
}

// circuitStatus maps a circuit breaker state to a health status.
func circuitStatus(state gobreaker.State) models.HealthStatus {
	switch state {
	case gobreaker.StateOpen:
		return models.HealthStatusFail
	case gobreaker.StateHalfOpen:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}

// worstStatus returns the more severe of two statuses.
func worstStatus(a, b models.HealthStatus) models.HealthStatus {
	rank := func(s models.HealthStatus) int {
		switch s {
		case models.HealthStatusFail:
			return 2
		case models.HealthStatusDegraded:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}
