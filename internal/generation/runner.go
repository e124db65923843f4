package generation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/macroplan/macroplan/internal/coach"
	"github.com/macroplan/macroplan/internal/lease"
	"github.com/macroplan/macroplan/internal/plan"
)

// User-facing messages for attempt-ending failures.
const (
	msgNetworkFailure = "We could not reach the plan service. Please try again."
	msgJobGone        = "The generation job is no longer available. Please try again."
	msgSaveFailed     = "Your plan was generated but could not be saved. Please try again."
	msgTimedOut       = "Plan generation timed out. Please try again."
)

// runnerConfig carries everything one attempt needs. The manager
// resolves defaults before constructing a runner.
type runnerConfig struct {
	client  coach.Client
	gate    Gate
	leases  lease.Store
	plans   PlanStore
	events  Publisher
	logger  zerolog.Logger
	metrics *Metrics

	input        *coach.Input
	pollInterval time.Duration
	budget       time.Duration
	leaseTTL     time.Duration
}

// Runner drives a single generation attempt to a terminal state.
type Runner struct {
	cfg  runnerConfig
	done chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	session *Session
}

func newRunner(cfg runnerConfig) *Runner {
	return &Runner{
		cfg:     cfg,
		done:    make(chan struct{}),
		session: newSession(cfg.input.UserID),
	}
}

// Snapshot returns a copy of the attempt's current session.
func (r *Runner) Snapshot() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.Clone()
}

// Cancel stops the attempt's polling. The upstream job, if any, keeps
// running server-side; only the client-side loop stops.
func (r *Runner) Cancel() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Done is closed once the attempt has reached a terminal state and its
// lease has been released.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// start launches the attempt on a context detached from the request;
// the caller's HTTP request finishes long before the job does.
func (r *Runner) start() {
	ctx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	go r.run(ctx)
}

// run drives the attempt to a terminal state. The lease is released on
// every exit, however the attempt ends.
func (r *Runner) run(ctx context.Context) {
	began := time.Now()

	defer close(r.done)
	defer func() {
		snap := r.Snapshot()
		r.cfg.metrics.AttemptFinished(snap.State, snap.Failure, time.Since(began))
	}()
	defer r.releaseLease()

	ctx, cancel := context.WithDeadline(ctx, began.Add(r.cfg.budget))
	defer cancel()

	if !r.startJob(ctx) {
		return
	}
	if !r.pollLoop(ctx) {
		return
	}
	r.complete(ctx)
}

// startJob asks the upstream to begin the job. An upstream answer that
// a job is already running is adopted rather than failed: job state is
// server-owned, so the attempt simply resumes observing it.
func (r *Runner) startJob(ctx context.Context) bool {
	ack, err := r.cfg.client.StartGeneration(ctx, r.cfg.input)
	switch {
	case errors.Is(err, coach.ErrAlreadyRunning):
		r.cfg.logger.Info().
			Str("user_id", r.userID()).
			Msg("adopting generation job already running upstream")
	case err != nil:
		r.exitForErr(err, "start")
		return false
	default:
		if ack.Step > 0 {
			r.setStep(ack.Step)
		}
	}
	return true
}

// pollLoop walks the job step by step. Each tick observes the status
// first and only then, when the job has moved past the recorded step,
// issues the continue request, so a step is never advanced twice.
func (r *Runner) pollLoop(ctx context.Context) bool {
	r.setState(StatePolling)

	ticker := time.NewTicker(r.cfg.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.exitForCtx(ctx)
			return false

		case <-ticker.C:
			status, err := r.cfg.client.FetchStatus(ctx, r.userID())
			r.cfg.metrics.PollObserved(err)
			if err != nil {
				if errors.Is(err, coach.ErrJobNotFound) {
					r.cfg.gate.Invalidate(r.userID())
					r.fail(FailureJob, msgJobGone)
					return false
				}
				r.exitForErr(err, "status")
				return false
			}

			if status.ErrorMessage != "" {
				r.cfg.logger.Warn().
					Str("user_id", r.userID()).
					Str("job_error", status.ErrorMessage).
					Msg("generation job reported an error")
				r.cfg.gate.Invalidate(r.userID())
				r.fail(FailureJob, status.ErrorMessage)
				return false
			}

			if done := r.refresh(status); done {
				return true
			}

			if status.CurrentStep > r.currentStep() {
				if _, err := r.cfg.client.ContinueStep(ctx, r.userID()); err != nil {
					r.exitForErr(err, "continue")
					return false
				}
				r.setStep(status.CurrentStep)
			}
		}
	}
}

// complete fetches the finished job's payload, adapts it into the
// canonical plan and stores it.
func (r *Runner) complete(ctx context.Context) {
	r.beginCompleting()

	// Completing still needs the result fetch plus a write; renew so
	// the lease cannot lapse under them.
	if _, err := r.cfg.leases.Renew(ctx, r.userID(), r.cfg.leaseTTL); err != nil && !errors.Is(err, lease.ErrLeaseNotFound) {
		r.cfg.logger.Warn().Err(err).
			Str("user_id", r.userID()).
			Msg("failed to renew generation lease")
	}

	result, err := r.cfg.client.FetchResult(ctx, r.userID())
	if err != nil {
		if errors.Is(err, coach.ErrJobNotFound) {
			r.cfg.gate.Invalidate(r.userID())
			r.fail(FailureJob, msgJobGone)
			return
		}
		r.exitForErr(err, "result")
		return
	}

	p := plan.Adapt(r.cfg.input, result.Plan)
	if err := r.cfg.plans.Create(ctx, p); err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			r.setCanceled()
		case errors.Is(err, context.DeadlineExceeded):
			r.fail(FailureTimeout, msgTimedOut)
		default:
			r.cfg.logger.Error().Err(err).
				Str("user_id", r.userID()).
				Msg("failed to store generated plan")
			r.fail(FailureJob, msgSaveFailed)
		}
		return
	}

	r.setDone(p.ID)

	r.cfg.logger.Info().
		Str("user_id", r.userID()).
		Str("plan_id", p.ID).
		Msg("generation complete")

	if r.cfg.events != nil {
		if err := r.cfg.events.PlanReady(ctx, r.userID(), p.ID); err != nil {
			r.cfg.logger.Warn().Err(err).
				Str("plan_id", p.ID).
				Msg("failed to publish plan ready event")
		}
	}
}

// refresh folds the latest status into the session and reports whether
// the job has finished. Message, estimate and step count always track
// the newest payload; the step number itself only ever moves forward.
func (r *Runner) refresh(status *coach.JobStatus) (done bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.session
	s.StatusMessage = status.StepMessage
	if status.EstimatedTimeRemaining != nil {
		v := *status.EstimatedTimeRemaining
		s.EstimatedTimeRemaining = &v
	} else {
		s.EstimatedTimeRemaining = nil
	}
	if status.TotalSteps > 0 {
		s.TotalSteps = status.TotalSteps
	}
	s.UpdatedAt = time.Now()

	return !status.IsGenerating || status.CurrentStep > s.TotalSteps
}

// exitForCtx records the terminal state for a context-ended wait: the
// attempt budget maps to a timeout, everything else is a cancel.
func (r *Runner) exitForCtx(ctx context.Context) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		r.cfg.logger.Warn().
			Str("user_id", r.userID()).
			Msg("generation attempt exceeded its time budget")
		r.fail(FailureTimeout, msgTimedOut)
		return
	}
	r.setCanceled()
}

// exitForErr classifies a failed upstream call. Cancellation and the
// attempt deadline surface through the same error return but are not
// network failures.
func (r *Runner) exitForErr(err error, op string) {
	switch {
	case errors.Is(err, context.Canceled):
		r.setCanceled()
	case errors.Is(err, context.DeadlineExceeded):
		r.cfg.logger.Warn().
			Str("user_id", r.userID()).
			Str("op", op).
			Msg("generation attempt exceeded its time budget")
		r.fail(FailureTimeout, msgTimedOut)
	default:
		r.cfg.logger.Error().Err(err).
			Str("user_id", r.userID()).
			Str("op", op).
			Msg("generation call failed")
		// A cached "can create" verdict must not outlive whatever broke.
		r.cfg.gate.Invalidate(r.userID())
		r.fail(FailureNetwork, msgNetworkFailure)
	}
}

// releaseLease drops the generation lock. The run context may already
// be canceled, so the release gets its own short-lived one.
func (r *Runner) releaseLease() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.cfg.leases.Release(ctx, r.userID()); err != nil {
		r.cfg.logger.Error().Err(err).
			Str("user_id", r.userID()).
			Msg("failed to release generation lease")
	}
}

// beginStarting marks the session as an accepted, in-flight attempt.
// Called with the lease already held, before the background run begins.
func (r *Runner) beginStarting() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session.State = StateStarting
	r.session.CurrentStep = 1
	r.session.IsGenerating = true
	r.session.UpdatedAt = time.Now()
}

// abort marks a runner that never launched as failed. Only the
// manager's refusal paths use it.
func (r *Runner) abort(f *Failure) {
	r.mu.Lock()
	r.session.State = StateError
	r.session.IsGenerating = false
	r.session.Failure = f
	r.session.UpdatedAt = time.Now()
	r.mu.Unlock()

	close(r.done)
}

func (r *Runner) setState(next State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session.State.Terminal() {
		return
	}
	r.session.State = next
	r.session.UpdatedAt = time.Now()
}

func (r *Runner) beginCompleting() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session.State.Terminal() {
		return
	}
	r.session.State = StateCompleting
	r.session.IsGenerating = false
	r.session.IsComplete = true
	r.session.CurrentStep = r.session.TotalSteps
	r.session.EstimatedTimeRemaining = nil
	r.session.UpdatedAt = time.Now()
}

func (r *Runner) setDone(planID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session.State = StateDone
	r.session.IsGenerating = false
	r.session.IsComplete = true
	r.session.PlanID = planID
	r.session.UpdatedAt = time.Now()
}

func (r *Runner) fail(kind FailureKind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session.State.Terminal() {
		return
	}
	r.session.State = StateError
	r.session.IsGenerating = false
	r.session.Failure = &Failure{Kind: kind, Message: message}
	r.session.UpdatedAt = time.Now()
}

func (r *Runner) setCanceled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session.State.Terminal() {
		return
	}
	r.session.State = StateCanceled
	r.session.IsGenerating = false
	r.session.UpdatedAt = time.Now()
}

// setStep records a step advance. Step numbers never regress, whatever
// the upstream reports.
func (r *Runner) setStep(step int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if step > r.session.CurrentStep {
		r.session.CurrentStep = step
		r.session.UpdatedAt = time.Now()
	}
}

func (r *Runner) currentStep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.CurrentStep
}

func (r *Runner) userID() string {
	return r.cfg.input.UserID
}
