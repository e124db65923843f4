package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/macroplan/macroplan/internal/lease"
)

// SweepJob clears expired generation leases left behind by crashed
// instances. Normal attempts release their lease on every exit path;
// the sweep is the backstop for the abnormal ones.
type SweepJob struct {
	config SweepConfig
	leases lease.Store
	logger zerolog.Logger

	metrics *SweepMetrics
}

// SweepMetrics tracks sweep job statistics.
type SweepMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRuns  int64
	FailedRuns int64
	TotalSwept int64

	// Timings
	LastRunAt       time.Time
	LastRunDuration time.Duration
	LastSwept       int
}

// SweepJobConfig holds configuration for creating a SweepJob.
type SweepJobConfig struct {
	Config SweepConfig
	Leases lease.Store
	Logger zerolog.Logger
}

// NewSweepJob creates a new sweep job processor.
func NewSweepJob(cfg SweepJobConfig) *SweepJob {
	config := cfg.Config
	if config.Interval <= 0 {
		config.Interval = DefaultSweepInterval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultSweepTimeout
	}

	return &SweepJob{
		config:  config,
		leases:  cfg.Leases,
		logger:  cfg.Logger,
		metrics: &SweepMetrics{},
	}
}

// SweepResult contains the result of one sweep pass.
type SweepResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Swept     int
	Err       error
}

// Run executes a single sweep pass.
func (j *SweepJob) Run(ctx context.Context) *SweepResult {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	swept, err := j.leases.Sweep(ctx)

	result := &SweepResult{
		StartTime: startTime,
		EndTime:   time.Now(),
		Swept:     swept,
		Err:       err,
	}
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	switch {
	case err != nil:
		j.logger.Error().Err(err).Msg("lease sweep failed")
	case swept > 0:
		j.logger.Info().
			Int("released", swept).
			Dur("duration", result.Duration).
			Msg("released expired generation leases")
	default:
		j.logger.Debug().
			Dur("duration", result.Duration).
			Msg("lease sweep found nothing to release")
	}

	return result
}

// RunPeriodic sweeps on the configured interval until ctx ends. The
// Pub/Sub lease_sweep event triggers extra passes between ticks.
func (j *SweepJob) RunPeriodic(ctx context.Context) {
	j.logger.Info().
		Dur("interval", j.config.Interval).
		Msg("starting periodic lease sweep")

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("stopping periodic lease sweep")
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}

func (j *SweepJob) updateMetrics(result *SweepResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	if result.Err != nil {
		j.metrics.FailedRuns++
	}
	j.metrics.TotalSwept += int64(result.Swept)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.LastSwept = result.Swept
}

// GetMetrics returns a copy of the current metrics.
func (j *SweepJob) GetMetrics() SweepMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return SweepMetrics{
		TotalRuns:       j.metrics.TotalRuns,
		FailedRuns:      j.metrics.FailedRuns,
		TotalSwept:      j.metrics.TotalSwept,
		LastRunAt:       j.metrics.LastRunAt,
		LastRunDuration: j.metrics.LastRunDuration,
		LastSwept:       j.metrics.LastSwept,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *SweepJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":        m.TotalRuns,
		"failed_runs":       m.FailedRuns,
		"total_swept":       m.TotalSwept,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"last_swept":        m.LastSwept,
	}
}
