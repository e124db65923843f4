package models

// Payload shapes for the /v1/ops endpoints. Health backs the liveness
// and readiness probes; SystemStatus backs the authenticated status
// report.

// Health is the liveness/readiness probe body.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus aggregates subsystem and upstream provider health. Its
// top-level Status is the worst status found anywhere in the report.
type SystemStatus struct {
	Status                 HealthStatus      `json:"status"`
	Version                string            `json:"version,omitempty"`
	Time                   Timestamp         `json:"time"`
	Subsystems             []SubsystemStatus `json:"subsystems"`
	Providers              []ProviderStatus  `json:"providers"`
	ActiveDegradationFlags []string          `json:"activeDegradationFlags,omitempty"`
}

// SubsystemStatus reports one internal dependency (postgres, the lease
// store).
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// ProviderStatus reports one upstream provider from the resilience
// registry, including when it last answered and last failed.
type ProviderStatus struct {
	Provider      string       `json:"provider"`
	Status        HealthStatus `json:"status"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}
