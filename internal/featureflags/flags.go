// Package featureflags holds the runtime switches operators can flip
// without a deploy, backed by Postgres with compiled-in defaults.
package featureflags

import (
	"encoding/json"
	"time"
)

// Well-known feature flag keys.
const (
	// FlagCoachGenerationDisabled is the global kill switch for plan
	// generation. Eligibility checks report it to clients.
	FlagCoachGenerationDisabled = "coach_generation_disabled"

	// FlagCoachPollIntervalMs overrides the generation poll interval.
	FlagCoachPollIntervalMs = "coach_poll_interval_ms"

	// FlagPlanNotificationsDisabled prevents sending plan-ready notifications.
	FlagPlanNotificationsDisabled = "plan_notifications_disabled"

	// FlagBudgetTrackingDisabled hides budget reports from clients.
	FlagBudgetTrackingDisabled = "budget_tracking_disabled"
)

// DefaultPollIntervalMs is the poll interval used when the flag is unset.
const DefaultPollIntervalMs = 5000

// Flag is one switch and its current value. Values are free-form JSON;
// the typed accessors below coerce them.
type Flag struct {
	Key       string      `json:"key"`
	Value     interface{} `json:"value"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// FlagList is the wire shape of the ops flag listing.
type FlagList struct {
	Items []Flag `json:"items"`
}

// FlagUpdate changes one flag.
type FlagUpdate struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// FlagUpdateRequest batches flag changes. Reason is logged alongside the
// change, not interpreted.
type FlagUpdateRequest struct {
	Updates []FlagUpdate `json:"updates"`
	Reason  string       `json:"reason"`
}

// The typed accessors tolerate nil receivers and wrong-typed values so
// callers can chain service.Get results without checking. Numbers coming
// through JSON decode as float64 and are coerced.

// BoolValue returns the flag as a bool, or fallback when absent.
func (f *Flag) BoolValue(fallback bool) bool {
	if f == nil {
		return fallback
	}
	switch v := f.Value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	}
	return fallback
}

// StringValue returns the flag as a string, or fallback when absent.
func (f *Flag) StringValue(fallback string) string {
	if f == nil {
		return fallback
	}
	if v, ok := f.Value.(string); ok {
		return v
	}
	return fallback
}

// IntValue returns the flag as an int, or fallback when absent.
func (f *Flag) IntValue(fallback int) int {
	if f == nil {
		return fallback
	}
	switch v := f.Value.(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}

// Float64Value returns the flag as a float64, or fallback when absent.
func (f *Flag) Float64Value(fallback float64) float64 {
	if f == nil {
		return fallback
	}
	switch v := f.Value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}

// JSONValue unmarshals a structured flag value into target. A nil flag is
// a no-op so target keeps its zero values.
func (f *Flag) JSONValue(target interface{}) error {
	if f == nil {
		return nil
	}
	data, err := json.Marshal(f.Value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// DefaultFlags returns the flag set a fresh deployment starts with.
func DefaultFlags() map[string]*Flag {
	now := time.Now()
	flags := make(map[string]*Flag)
	for key, value := range map[string]interface{}{
		FlagCoachGenerationDisabled:   false,
		FlagCoachPollIntervalMs:       DefaultPollIntervalMs,
		FlagPlanNotificationsDisabled: false,
		FlagBudgetTrackingDisabled:    false,
	} {
		flags[key] = &Flag{Key: key, Value: value, UpdatedAt: now}
	}
	return flags
}
