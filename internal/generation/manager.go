package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/macroplan/macroplan/internal/auth"
	"github.com/macroplan/macroplan/internal/coach"
	"github.com/macroplan/macroplan/internal/eligibility"
	"github.com/macroplan/macroplan/internal/lease"
	"github.com/macroplan/macroplan/internal/plan"
)

// DefaultPollInterval is the status poll cadence when no flag
// overrides it.
const DefaultPollInterval = 5 * time.Second

// DefaultAttemptBudget bounds one attempt end to end; past it the
// attempt fails as timed out.
const DefaultAttemptBudget = 10 * time.Minute

// ErrNoActiveGeneration is returned when the user has no generation in
// flight.
var ErrNoActiveGeneration = errors.New("no active generation")

// Refusal messages for attempts that never launch.
const (
	msgAlreadyGenerating = "A plan is already being generated for your account."
	msgEligibilityCheck  = "We could not verify your eligibility. Please try again."
)

// Gate is the pre-flight eligibility check.
type Gate interface {
	Check(ctx context.Context, subject auth.Subject) (*eligibility.Verdict, error)
	Invalidate(userID string)
}

// PlanStore persists adapted plans.
type PlanStore interface {
	Create(ctx context.Context, p *plan.FitnessPlan) error
}

// Publisher announces stored plans to interested consumers.
type Publisher interface {
	PlanReady(ctx context.Context, userID, planID string) error
}

// FlagSource supplies the runtime tunables read once per attempt.
type FlagSource interface {
	PollInterval(ctx context.Context) time.Duration
}

// ManagerConfig holds dependencies for the manager.
type ManagerConfig struct {
	Client coach.Client
	Gate   Gate
	Leases lease.Store
	Plans  PlanStore

	// Events receives plan_ready notifications. Optional.
	Events Publisher

	// Flags tunes the poll interval per attempt. Optional.
	Flags FlagSource

	Logger  zerolog.Logger
	Metrics *Metrics

	// AttemptBudget bounds one attempt. Zero means DefaultAttemptBudget.
	AttemptBudget time.Duration

	// LeaseTTL is how long the generation lock lives before it is
	// considered stale. Zero means lease.DefaultTTL.
	LeaseTTL time.Duration
}

// Manager owns at most one live generation attempt per user, hands out
// progress snapshots and recovers abandoned leases.
type Manager struct {
	client   coach.Client
	gate     Gate
	leases   lease.Store
	plans    PlanStore
	events   Publisher
	flags    FlagSource
	logger   zerolog.Logger
	metrics  *Metrics
	budget   time.Duration
	leaseTTL time.Duration

	mu     sync.Mutex
	active map[string]*Runner
}

// NewManager creates a manager with the given dependencies.
func NewManager(cfg ManagerConfig) *Manager {
	budget := cfg.AttemptBudget
	if budget == 0 {
		budget = DefaultAttemptBudget
	}

	leaseTTL := cfg.LeaseTTL
	if leaseTTL == 0 {
		leaseTTL = lease.DefaultTTL
	}

	return &Manager{
		client:   cfg.Client,
		gate:     cfg.Gate,
		leases:   cfg.Leases,
		plans:    cfg.Plans,
		events:   cfg.Events,
		flags:    cfg.Flags,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		budget:   budget,
		leaseTTL: leaseTTL,
		active:   make(map[string]*Runner),
	}
}

// Start begins a generation attempt for the subject. Refusals come
// back as a *Failure error before anything runs upstream; an accepted
// attempt returns its session immediately and proceeds in the
// background until it reaches a terminal state.
func (m *Manager) Start(ctx context.Context, subject auth.Subject, input *coach.Input) (*Session, error) {
	userID := subject.UserID

	r := newRunner(runnerConfig{
		client:       m.client,
		gate:         m.gate,
		leases:       m.leases,
		plans:        m.plans,
		events:       m.events,
		logger:       m.logger,
		metrics:      m.metrics,
		input:        input,
		pollInterval: m.pollInterval(ctx),
		budget:       m.budget,
		leaseTTL:     m.leaseTTL,
	})

	// Reserve the per-user slot before any network traffic so
	// concurrent starts in this process refuse each other.
	m.mu.Lock()
	if existing, ok := m.active[userID]; ok && !existing.Snapshot().State.Terminal() {
		m.mu.Unlock()
		m.metrics.AttemptRefused(FailureAlreadyGenerating)
		return nil, &Failure{Kind: FailureAlreadyGenerating, Message: msgAlreadyGenerating}
	}
	m.active[userID] = r
	m.mu.Unlock()

	verdict, err := m.gate.Check(ctx, subject)
	if err != nil {
		m.logger.Error().Err(err).Str("user_id", userID).Msg("eligibility check failed")
		f := &Failure{Kind: FailureNetwork, Message: msgEligibilityCheck}
		m.refuse(userID, r, f)
		return nil, f
	}

	if !verdict.CanCreate {
		kind := FailureIneligible
		if verdict.DaysRemaining > 0 {
			kind = FailureRateLimited
		}
		f := &Failure{Kind: kind, Message: verdict.Message}
		m.refuse(userID, r, f)
		return nil, f
	}

	if _, err := m.leases.Acquire(ctx, userID, m.leaseTTL); err != nil {
		if errors.Is(err, lease.ErrLeaseHeld) {
			f := &Failure{Kind: FailureAlreadyGenerating, Message: msgAlreadyGenerating}
			m.refuse(userID, r, f)
			return nil, f
		}
		m.refuse(userID, r, nil)
		return nil, fmt.Errorf("acquiring generation lease: %w", err)
	}

	r.beginStarting()
	m.metrics.AttemptStarted()
	r.start()

	snap := r.Snapshot()
	m.logger.Info().
		Str("user_id", userID).
		Str("session_id", snap.SessionID).
		Msg("generation attempt started")

	return snap, nil
}

// Snapshot returns the user's current generation session, or
// ErrNoActiveGeneration. When no runner lives in this process but a
// durable lease exists, the upstream's own status is reported so a
// restarted instance still answers progress queries.
func (m *Manager) Snapshot(ctx context.Context, userID string) (*Session, error) {
	m.mu.Lock()
	r, ok := m.active[userID]
	m.mu.Unlock()
	if ok {
		return r.Snapshot(), nil
	}

	l, err := m.leases.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, lease.ErrLeaseNotFound) {
			return nil, ErrNoActiveGeneration
		}
		return nil, fmt.Errorf("loading generation lease: %w", err)
	}

	status, err := m.client.FetchStatus(ctx, userID)
	if err != nil {
		if errors.Is(err, coach.ErrJobNotFound) {
			return nil, ErrNoActiveGeneration
		}
		return nil, fmt.Errorf("fetching job status: %w", err)
	}
	if !status.IsGenerating {
		return nil, ErrNoActiveGeneration
	}

	return recoveredSession(l, status), nil
}

// Cancel stops the user's attempt. Polling stops; the upstream job, if
// any, keeps running server-side. With no runner in this process a
// leftover lease is released so the user can start again.
func (m *Manager) Cancel(ctx context.Context, userID string) error {
	m.mu.Lock()
	r, ok := m.active[userID]
	m.mu.Unlock()

	if ok && !r.Snapshot().State.Terminal() {
		r.Cancel()
		return nil
	}

	if _, err := m.leases.Get(ctx, userID); err != nil {
		if errors.Is(err, lease.ErrLeaseNotFound) {
			return ErrNoActiveGeneration
		}
		return fmt.Errorf("loading generation lease: %w", err)
	}

	if err := m.leases.Release(ctx, userID); err != nil {
		return fmt.Errorf("releasing generation lease: %w", err)
	}

	m.logger.Info().Str("user_id", userID).Msg("released orphaned generation lease on cancel")
	return nil
}

// Recover clears expired leases left behind by crashed attempts. Call
// once at startup before serving traffic.
func (m *Manager) Recover(ctx context.Context) (int, error) {
	n, err := m.leases.Sweep(ctx)
	if err != nil {
		return 0, fmt.Errorf("sweeping generation leases: %w", err)
	}
	if n > 0 {
		m.logger.Info().Int("released", n).Msg("released stale generation leases")
	}
	return n, nil
}

// Shutdown cancels every live attempt and waits for their runners to
// finish releasing leases, or for ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	runners := make([]*Runner, 0, len(m.active))
	for _, r := range m.active {
		runners = append(runners, r)
	}
	m.mu.Unlock()

	for _, r := range runners {
		r.Cancel()
	}

	for _, r := range runners {
		select {
		case <-r.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// refuse unwinds a reserved slot whose attempt never launched.
func (m *Manager) refuse(userID string, r *Runner, f *Failure) {
	if f != nil {
		m.metrics.AttemptRefused(f.Kind)
	}
	r.abort(f)

	m.mu.Lock()
	if m.active[userID] == r {
		delete(m.active, userID)
	}
	m.mu.Unlock()
}

func (m *Manager) pollInterval(ctx context.Context) time.Duration {
	if m.flags == nil {
		return DefaultPollInterval
	}
	if d := m.flags.PollInterval(ctx); d > 0 {
		return d
	}
	return DefaultPollInterval
}

// recoveredSession synthesises a read-only view for a generation owned
// by another process (or a previous life of this one).
func recoveredSession(l *lease.Lease, status *coach.JobStatus) *Session {
	s := &Session{
		UserID:        l.Holder,
		State:         StatePolling,
		CurrentStep:   status.CurrentStep,
		TotalSteps:    status.TotalSteps,
		IsGenerating:  true,
		StatusMessage: status.StepMessage,
		StartedAt:     l.StartedAt,
		UpdatedAt:     time.Now(),
	}
	if s.CurrentStep < 1 {
		s.CurrentStep = 1
	}
	if s.TotalSteps <= 0 {
		s.TotalSteps = coach.DefaultTotalSteps
	}
	if status.EstimatedTimeRemaining != nil {
		v := *status.EstimatedTimeRemaining
		s.EstimatedTimeRemaining = &v
	}
	return s
}
