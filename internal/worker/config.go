// Package worker provides background job processing for MacroPlan.
package worker

import (
	"time"
)

// Sweep defaults.
const (
	// DefaultSweepInterval is how often the periodic lease sweep runs.
	DefaultSweepInterval = 1 * time.Minute

	// DefaultSweepTimeout bounds a single sweep pass.
	DefaultSweepTimeout = 10 * time.Second
)

// SweepConfig holds configuration for the lease sweep job.
type SweepConfig struct {
	// Interval between periodic sweeps.
	// Default: 1 minute
	Interval time.Duration

	// Timeout is the timeout for each sweep pass.
	// Default: 10 seconds
	Timeout time.Duration
}

// DefaultSweepConfig returns the default sweep configuration.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		Interval: DefaultSweepInterval,
		Timeout:  DefaultSweepTimeout,
	}
}
