// Package coach defines the types and client contract for the upstream
// AI coach job API. The upstream owns plan content generation; this
// service only drives the job lifecycle and consumes its output.
package coach

import (
	"context"
	"errors"
	"strings"
)

// Client errors.
var (
	// ErrJobNotFound indicates the upstream has no generation job for the user.
	ErrJobNotFound = errors.New("generation job not found")

	// ErrAlreadyRunning indicates the upstream rejected a start because a
	// job for the user is already in progress.
	ErrAlreadyRunning = errors.New("generation already running")
)

// DefaultTotalSteps is assumed when the job does not report a step count.
const DefaultTotalSteps = 5

// NotificationPrefs selects how the user wants to hear about a
// finished plan.
type NotificationPrefs struct {
	Email bool `json:"email"`
	Push  bool `json:"push"`
}

// Input is the questionnaire payload forwarded to the upstream when a
// generation starts. It is constructed once per attempt and never
// mutated after submission. Field meanings belong to the upstream;
// this service validates only enough to refuse obviously broken
// requests.
type Input struct {
	UserID               string            `json:"userId"`
	Age                  int               `json:"age,omitempty"`
	Sex                  string            `json:"sex,omitempty"`
	HeightCm             float64           `json:"heightCm,omitempty"`
	WeightKg             float64           `json:"weightKg,omitempty"`
	ActivityLevel        string            `json:"activityLevel,omitempty"`
	Goal                 string            `json:"goal"`
	DietaryPreferences   []string          `json:"dietaryPreferences,omitempty"`
	WeeklyBudget         float64           `json:"weeklyBudget,omitempty"`
	WorkoutDaysPerWeek   int               `json:"workoutDaysPerWeek,omitempty"`
	PreferredWorkoutDays []string          `json:"preferredWorkoutDays,omitempty"`
	WorkoutMinutes       int               `json:"workoutMinutes,omitempty"`
	Notifications        NotificationPrefs `json:"notifications"`
}

// Validate checks the minimal set of fields the orchestrator requires
// before it will start a job.
func (in *Input) Validate() error {
	if strings.TrimSpace(in.UserID) == "" {
		return errors.New("userId is required")
	}
	if strings.TrimSpace(in.Goal) == "" {
		return errors.New("goal is required")
	}
	if in.Age < 0 || in.HeightCm < 0 || in.WeightKg < 0 || in.WeeklyBudget < 0 {
		return errors.New("numeric fields must not be negative")
	}
	if in.WorkoutDaysPerWeek < 0 || in.WorkoutDaysPerWeek > 7 {
		return errors.New("workoutDaysPerWeek must be between 0 and 7")
	}
	return nil
}

// Eligibility is the upstream's verdict on whether a user may start a
// new generation.
type Eligibility struct {
	CanCreate        bool   `json:"canCreate"`
	DaysRemaining    int    `json:"daysRemaining"`
	HasTrainer       bool   `json:"hasTrainer"`
	GloballyDisabled bool   `json:"globallyDisabled"`
	Message          string `json:"message,omitempty"`
}

// JobStatus is a snapshot of a running generation job as reported by
// the upstream. EstimatedTimeRemaining is in seconds; nil means the
// upstream did not report one.
type JobStatus struct {
	IsGenerating           bool   `json:"isGenerating"`
	CurrentStep            int    `json:"currentStep"`
	TotalSteps             int    `json:"totalSteps"`
	StepMessage            string `json:"stepMessage,omitempty"`
	EstimatedTimeRemaining *int   `json:"estimatedTimeRemaining,omitempty"`
	StartedAt              string `json:"startedAt,omitempty"`
	ErrorMessage           string `json:"errorMessage,omitempty"`
}

// StartAck acknowledges a start request. Step is the step the job
// began on (usually 1).
type StartAck struct {
	Success bool   `json:"success"`
	Step    int    `json:"step"`
	Message string `json:"message,omitempty"`
}

// StepAck acknowledges a continue request.
type StepAck struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// GenerationResult is the finished job's payload. Plan is kept as raw
// JSON because the upstream has shipped several schema vintages; the
// plan adapter is responsible for normalising it.
type GenerationResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Plan    map[string]any `json:"plan"`
}

// Client is the upstream coach job API. Implementations must be safe
// for concurrent use.
type Client interface {
	// CheckEligibility asks whether the user may start a generation.
	CheckEligibility(ctx context.Context, userID string) (*Eligibility, error)

	// StartGeneration asks the upstream to begin a new job.
	StartGeneration(ctx context.Context, input *Input) (*StartAck, error)

	// FetchStatus reads the user's current job status.
	// Returns ErrJobNotFound if no job exists.
	FetchStatus(ctx context.Context, userID string) (*JobStatus, error)

	// ContinueStep asks the upstream to advance the job one step.
	ContinueStep(ctx context.Context, userID string) (*StepAck, error)

	// FetchResult retrieves the completed job's plan payload.
	FetchResult(ctx context.Context, userID string) (*GenerationResult, error)
}
