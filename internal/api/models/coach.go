package models

// EligibilityResponse reports whether the caller may start a plan
// generation, and if not, why.
type EligibilityResponse struct {
	CanCreate        bool   `json:"canCreate"`
	DaysRemaining    int    `json:"daysRemaining"`
	HasTrainer       bool   `json:"hasTrainer"`
	GloballyDisabled bool   `json:"globallyDisabled"`
	Message          string `json:"message,omitempty"`
}

// NotificationPrefs selects how the user wants to hear about a
// finished plan.
type NotificationPrefs struct {
	Email bool `json:"email"`
	Push  bool `json:"push"`
}

// GenerationStartRequest is the questionnaire payload for starting a
// plan generation. The authenticated subject supplies the user id.
type GenerationStartRequest struct {
	Age                  int               `json:"age,omitempty" validate:"omitempty,gte=0,lte=130"`
	Sex                  string            `json:"sex,omitempty"`
	HeightCm             float64           `json:"heightCm,omitempty" validate:"omitempty,gte=0"`
	WeightKg             float64           `json:"weightKg,omitempty" validate:"omitempty,gte=0"`
	ActivityLevel        string            `json:"activityLevel,omitempty"`
	Goal                 string            `json:"goal" validate:"required"`
	DietaryPreferences   []string          `json:"dietaryPreferences,omitempty"`
	WeeklyBudget         float64           `json:"weeklyBudget,omitempty" validate:"omitempty,gte=0"`
	WorkoutDaysPerWeek   int               `json:"workoutDaysPerWeek,omitempty" validate:"omitempty,gte=0,lte=7"`
	PreferredWorkoutDays []string          `json:"preferredWorkoutDays,omitempty"`
	WorkoutMinutes       int               `json:"workoutMinutes,omitempty" validate:"omitempty,gte=0"`
	Notifications        NotificationPrefs `json:"notifications"`
}

// GenerationStatusResponse is a snapshot of the caller's generation
// session. EstimatedTimeRemaining is in seconds and omitted when the
// upstream has not reported one.
type GenerationStatusResponse struct {
	SessionID              string     `json:"sessionId"`
	State                  string     `json:"state"`
	IsGenerating           bool       `json:"isGenerating"`
	IsComplete             bool       `json:"isComplete"`
	CurrentStep            int        `json:"currentStep"`
	TotalSteps             int        `json:"totalSteps"`
	Percent                int        `json:"percent"`
	StatusMessage          string     `json:"statusMessage,omitempty"`
	EstimatedTimeRemaining *int       `json:"estimatedTimeRemaining,omitempty"`
	StartedAt              *Timestamp `json:"startedAt,omitempty"`
	ErrorCode              string     `json:"errorCode,omitempty"`
	ErrorMessage           string     `json:"errorMessage,omitempty"`
	PlanID                 string     `json:"planId,omitempty"`
}
