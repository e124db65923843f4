// Package generation drives plan generation attempts against the
// upstream coach job API. A Runner walks one attempt through start,
// poll and completion; a Manager owns at most one live runner per user,
// snapshots progress for the API, cancels on request and recovers
// abandoned leases after a crash.
package generation

import (
	"time"

	"github.com/google/uuid"

	"github.com/macroplan/macroplan/internal/coach"
)

// State identifies where a generation attempt is in its lifecycle.
type State string

// Attempt states. Done, Error and Canceled are terminal.
const (
	StateIdle                State = "IDLE"
	StateCheckingEligibility State = "CHECKING_ELIGIBILITY"
	StateStarting            State = "STARTING"
	StatePolling             State = "POLLING"
	StateCompleting          State = "COMPLETING"
	StateDone                State = "DONE"
	StateError               State = "ERROR"
	StateCanceled            State = "CANCELED"
)

// Terminal reports whether the attempt has finished, successfully or not.
func (s State) Terminal() bool {
	return s == StateDone || s == StateError || s == StateCanceled
}

// FailureKind classifies why an attempt did not produce a plan.
type FailureKind string

// Failure kinds. Ineligible, RateLimited and AlreadyGenerating are
// refusals surfaced before the attempt runs; the rest end a running
// attempt.
const (
	FailureIneligible        FailureKind = "INELIGIBLE"
	FailureRateLimited       FailureKind = "RATE_LIMITED"
	FailureAlreadyGenerating FailureKind = "ALREADY_GENERATING"
	FailureNetwork           FailureKind = "NETWORK"
	FailureJob               FailureKind = "JOB"
	FailureTimeout           FailureKind = "TIMEOUT"
)

// Failure describes why an attempt failed. It implements error so
// refusals can travel through ordinary error returns.
type Failure struct {
	Kind    FailureKind
	Message string
}

func (f *Failure) Error() string {
	if f.Message == "" {
		return string(f.Kind)
	}
	return string(f.Kind) + ": " + f.Message
}

// Session is the mutable state of one generation attempt. The owning
// runner mutates it under its lock; everyone else reads clones.
type Session struct {
	SessionID    string
	UserID       string
	State        State
	CurrentStep  int
	TotalSteps   int
	IsGenerating bool
	IsComplete   bool

	// StatusMessage and EstimatedTimeRemaining mirror the latest
	// upstream status payload. A nil estimate means the upstream did
	// not report one.
	StatusMessage          string
	EstimatedTimeRemaining *int

	StartedAt time.Time
	UpdatedAt time.Time

	// PlanID is set once the adapted plan has been stored.
	PlanID string

	Failure *Failure
}

// newSession creates the session for a fresh attempt.
func newSession(userID string) *Session {
	now := time.Now()
	return &Session{
		SessionID:  "gen_" + uuid.New().String()[:22],
		UserID:     userID,
		State:      StateCheckingEligibility,
		TotalSteps: coach.DefaultTotalSteps,
		StartedAt:  now,
		UpdatedAt:  now,
	}
}

// Clone returns a deep copy safe to hand outside the runner's lock.
func (s *Session) Clone() *Session {
	out := *s
	if s.EstimatedTimeRemaining != nil {
		v := *s.EstimatedTimeRemaining
		out.EstimatedTimeRemaining = &v
	}
	if s.Failure != nil {
		f := *s.Failure
		out.Failure = &f
	}
	return &out
}
