package generation

import (
	"math"
	"time"

	"github.com/macroplan/macroplan/internal/coach"
)

// defaultStepSeconds is the assumed duration of one job step, used for
// the time-remaining estimate when the upstream does not report one.
const defaultStepSeconds = 30

// stepMessages are the fallback progress messages shown when the job
// does not report one for the current step.
var stepMessages = map[int]string{
	1: "Analysing your profile and goals...",
	2: "Calculating your nutrition targets...",
	3: "Building your weekly meal plan...",
	4: "Planning your workout schedule...",
	5: "Preparing your shopping list...",
}

// Fallback messages for states a step message does not cover.
const (
	msgChecking   = "Checking eligibility..."
	msgGenerating = "Generating your plan..."
	msgFinalising = "Finalising your plan..."
	msgComplete   = "Your plan is ready!"
	msgCanceled   = "Generation canceled."
	msgFailed     = "Plan generation failed."
)

// Projection is the user-facing view of a generation session.
type Projection struct {
	SessionID  string
	State      State
	Step       int
	TotalSteps int

	// Percent is Step over TotalSteps, bounded to [0,100]. A finished
	// attempt always reports 100.
	Percent int

	Message                   string
	EstimatedSecondsRemaining *int
	ElapsedSeconds            int

	Generating bool
	Complete   bool
	Error      *Failure
}

// Project maps a session onto the view the API returns. It never
// mutates the session.
func Project(s *Session) Projection {
	p := Projection{
		SessionID:  s.SessionID,
		State:      s.State,
		Step:       s.CurrentStep,
		TotalSteps: s.TotalSteps,
		Generating: s.IsGenerating,
		Complete:   s.IsComplete,
		Error:      s.Failure,
	}
	if p.TotalSteps <= 0 {
		p.TotalSteps = coach.DefaultTotalSteps
	}

	p.Percent = percent(p.Step, p.TotalSteps, s.State)
	p.Message = progressMessage(s)
	p.EstimatedSecondsRemaining = estimate(s, p.TotalSteps)
	if !s.StartedAt.IsZero() {
		p.ElapsedSeconds = int(time.Since(s.StartedAt).Seconds())
	}

	return p
}

func percent(step, total int, state State) int {
	if state == StateDone {
		return 100
	}
	if total <= 0 || step <= 0 {
		return 0
	}

	pct := int(math.Round(float64(step) / float64(total) * 100))
	if pct > 100 {
		pct = 100
	}
	return pct
}

// progressMessage picks the most specific message available: terminal
// outcome, then the upstream's own step message, then the per-step
// default table.
func progressMessage(s *Session) string {
	switch s.State {
	case StateDone:
		return msgComplete
	case StateCanceled:
		return msgCanceled
	case StateError:
		if s.Failure != nil && s.Failure.Message != "" {
			return s.Failure.Message
		}
		return msgFailed
	case StateCheckingEligibility:
		return msgChecking
	case StateCompleting:
		return msgFinalising
	}

	if s.StatusMessage != "" {
		return s.StatusMessage
	}
	if msg, ok := stepMessages[s.CurrentStep]; ok {
		return msg
	}
	return msgGenerating
}

// estimate returns the seconds remaining: the upstream's own figure
// when reported, otherwise (totalSteps-step) x defaultStepSeconds.
// Finished attempts report no estimate.
func estimate(s *Session, total int) *int {
	if s.State.Terminal() || !s.IsGenerating {
		return nil
	}

	if s.EstimatedTimeRemaining != nil {
		v := *s.EstimatedTimeRemaining
		if v < 0 {
			v = 0
		}
		return &v
	}

	remaining := total - s.CurrentStep
	if remaining < 0 {
		remaining = 0
	}
	v := remaining * defaultStepSeconds
	return &v
}
