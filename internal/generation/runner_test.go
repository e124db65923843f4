package generation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/macroplan/macroplan/internal/auth"
	"github.com/macroplan/macroplan/internal/coach"
	"github.com/macroplan/macroplan/internal/eligibility"
	"github.com/macroplan/macroplan/internal/lease"
	"github.com/macroplan/macroplan/internal/plan"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeCoach scripts the upstream job API. Scripted statuses are
// returned in order, one per poll; once exhausted the last status
// repeats, or statusErr is returned if set.
type fakeCoach struct {
	mu sync.Mutex

	startAck *coach.StartAck
	startErr error
	started  []*coach.Input

	statuses    []coach.JobStatus
	statusIdx   int
	statusErr   error
	statusCalls int

	continueErr   error
	continueCalls int

	result      *coach.GenerationResult
	resultErr   error
	resultCalls int

	elig    *coach.Eligibility
	eligErr error
}

func (f *fakeCoach) CheckEligibility(ctx context.Context, userID string) (*coach.Eligibility, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.eligErr != nil {
		return nil, f.eligErr
	}
	if f.elig != nil {
		return f.elig, nil
	}
	return &coach.Eligibility{CanCreate: true}, nil
}

func (f *fakeCoach) StartGeneration(ctx context.Context, input *coach.Input) (*coach.StartAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, input)
	if f.startErr != nil {
		return nil, f.startErr
	}
	if f.startAck != nil {
		return f.startAck, nil
	}
	return &coach.StartAck{Success: true, Step: 1}, nil
}

func (f *fakeCoach) FetchStatus(ctx context.Context, userID string) (*coach.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.statusIdx < len(f.statuses) {
		s := f.statuses[f.statusIdx]
		f.statusIdx++
		return &s, nil
	}
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	if len(f.statuses) > 0 {
		s := f.statuses[len(f.statuses)-1]
		return &s, nil
	}
	return nil, coach.ErrJobNotFound
}

func (f *fakeCoach) ContinueStep(ctx context.Context, userID string) (*coach.StepAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.continueCalls++
	if f.continueErr != nil {
		return nil, f.continueErr
	}
	return &coach.StepAck{Success: true}, nil
}

func (f *fakeCoach) FetchResult(ctx context.Context, userID string) (*coach.GenerationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resultCalls++
	if f.resultErr != nil {
		return nil, f.resultErr
	}
	if f.result != nil {
		return f.result, nil
	}
	return &coach.GenerationResult{Success: true, Plan: map[string]any{}}, nil
}

func (f *fakeCoach) continues() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.continueCalls
}

func (f *fakeCoach) statusPolls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

// fakeGate allows everything unless told otherwise and records
// invalidations.
type fakeGate struct {
	mu          sync.Mutex
	verdict     *eligibility.Verdict
	err         error
	checks      int
	invalidated []string
}

func (g *fakeGate) Check(ctx context.Context, subject auth.Subject) (*eligibility.Verdict, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checks++
	if g.err != nil {
		return nil, g.err
	}
	if g.verdict != nil {
		return g.verdict, nil
	}
	return &eligibility.Verdict{CanCreate: true}, nil
}

func (g *fakeGate) Invalidate(userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.invalidated = append(g.invalidated, userID)
}

func (g *fakeGate) invalidations() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.invalidated)
}

type fakePlans struct {
	mu      sync.Mutex
	created []*plan.FitnessPlan
	err     error
}

func (p *fakePlans) Create(ctx context.Context, fp *plan.FitnessPlan) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.created = append(p.created, fp)
	return nil
}

func (p *fakePlans) stored() []*plan.FitnessPlan {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*plan.FitnessPlan(nil), p.created...)
}

type fakePublisher struct {
	mu      sync.Mutex
	planIDs []string
	err     error
}

func (p *fakePublisher) PlanReady(ctx context.Context, userID, planID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.planIDs = append(p.planIDs, planID)
	return nil
}

func (p *fakePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.planIDs...)
}

type stubPollFlags struct {
	interval time.Duration
}

func (s stubPollFlags) PollInterval(ctx context.Context) time.Duration {
	return s.interval
}

// generating and finished are shorthand status builders.
func generating(step int) coach.JobStatus {
	return coach.JobStatus{IsGenerating: true, CurrentStep: step, TotalSteps: 5}
}

func finished(step int) coach.JobStatus {
	return coach.JobStatus{IsGenerating: false, CurrentStep: step, TotalSteps: 5}
}

func testConfig(c *fakeCoach) (runnerConfig, *fakeGate, *fakePlans, *fakePublisher) {
	gate := &fakeGate{}
	plans := &fakePlans{}
	pub := &fakePublisher{}

	cfg := runnerConfig{
		client:       c,
		gate:         gate,
		leases:       lease.NewInMemoryStore(),
		plans:        plans,
		events:       pub,
		input:        &coach.Input{UserID: "usr_1", Goal: "strength"},
		pollInterval: 5 * time.Millisecond,
		budget:       5 * time.Second,
		leaseTTL:     time.Minute,
	}
	return cfg, gate, plans, pub
}

// startRunner takes the lease on the runner's behalf, mirroring the
// manager's accept path, and launches the attempt.
func startRunner(t *testing.T, cfg runnerConfig) *Runner {
	t.Helper()

	if _, err := cfg.leases.Acquire(context.Background(), cfg.input.UserID, cfg.leaseTTL); err != nil {
		t.Fatalf("acquiring lease: %v", err)
	}

	r := newRunner(cfg)
	r.beginStarting()
	r.start()
	return r
}

func waitDone(t *testing.T, r *Runner) *Session {
	t.Helper()

	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not reach a terminal state in time")
	}
	return r.Snapshot()
}

func assertLeaseReleased(t *testing.T, store lease.Store, holder string) {
	t.Helper()

	if _, err := store.Get(context.Background(), holder); !errors.Is(err, lease.ErrLeaseNotFound) {
		t.Errorf("expected lease released, got %v", err)
	}
}

func TestRunner_HappyPath(t *testing.T) {
	c := &fakeCoach{
		statuses: []coach.JobStatus{
			generating(1), generating(2), generating(3), generating(4), generating(5),
			finished(5),
		},
		result: &coach.GenerationResult{
			Success: true,
			Plan: map[string]any{
				"nutritionGoal": map[string]any{
					"caloriesTarget": 2000.0,
					"proteinTarget":  150.0,
				},
			},
		},
	}
	cfg, gate, plans, pub := testConfig(c)

	r := startRunner(t, cfg)
	session := waitDone(t, r)

	if session.State != StateDone {
		t.Fatalf("expected DONE, got %s (failure: %+v)", session.State, session.Failure)
	}
	if !session.IsComplete || session.IsGenerating {
		t.Errorf("expected complete, not generating; got %+v", session)
	}
	if session.PlanID == "" {
		t.Error("expected PlanID to be set")
	}

	stored := plans.stored()
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored plan, got %d", len(stored))
	}
	if stored[0].UserID != "usr_1" {
		t.Errorf("expected plan for usr_1, got %q", stored[0].UserID)
	}
	if got := stored[0].NutritionGoal.CaloriesTarget; got != 2000 {
		t.Errorf("expected calories target 2000, got %v", got)
	}

	// One continue per observed step advance: 2, 3, 4, 5.
	if got := c.continues(); got != 4 {
		t.Errorf("expected 4 continue calls, got %d", got)
	}

	if published := pub.published(); len(published) != 1 || published[0] != session.PlanID {
		t.Errorf("expected plan_ready for %s, got %v", session.PlanID, published)
	}

	if gate.invalidations() != 0 {
		t.Errorf("successful attempt must not invalidate eligibility, got %d", gate.invalidations())
	}

	assertLeaseReleased(t, cfg.leases, "usr_1")
}

func TestRunner_StepNeverRegresses(t *testing.T) {
	c := &fakeCoach{
		statuses: []coach.JobStatus{
			generating(3), generating(2), generating(1),
			finished(3),
		},
	}
	cfg, _, _, _ := testConfig(c)

	r := startRunner(t, cfg)
	session := waitDone(t, r)

	if session.State != StateDone {
		t.Fatalf("expected DONE, got %s", session.State)
	}

	// Only the jump to 3 advances; the regressions are ignored.
	if got := c.continues(); got != 1 {
		t.Errorf("expected 1 continue call, got %d", got)
	}
}

func TestRunner_JobError(t *testing.T) {
	c := &fakeCoach{
		statuses: []coach.JobStatus{
			generating(1),
			generating(2),
			{IsGenerating: true, CurrentStep: 2, TotalSteps: 5, ErrorMessage: "model failed to produce a plan"},
		},
	}
	cfg, gate, plans, _ := testConfig(c)

	r := startRunner(t, cfg)
	session := waitDone(t, r)

	if session.State != StateError {
		t.Fatalf("expected ERROR, got %s", session.State)
	}
	if session.Failure == nil || session.Failure.Kind != FailureJob {
		t.Fatalf("expected JOB failure, got %+v", session.Failure)
	}
	if session.Failure.Message != "model failed to produce a plan" {
		t.Errorf("expected the job's error message, got %q", session.Failure.Message)
	}
	if session.IsGenerating {
		t.Error("failed attempt must not stay generating")
	}

	if len(plans.stored()) != 0 {
		t.Error("failed attempt must not store a plan")
	}
	if gate.invalidations() == 0 {
		t.Error("job error must invalidate cached eligibility")
	}

	assertLeaseReleased(t, cfg.leases, "usr_1")
}

func TestRunner_NetworkErrorDuringPolling(t *testing.T) {
	c := &fakeCoach{
		statuses:  []coach.JobStatus{generating(1), generating(2)},
		statusErr: errors.New("connection reset"),
	}
	cfg, gate, _, _ := testConfig(c)

	r := startRunner(t, cfg)
	session := waitDone(t, r)

	if session.State != StateError {
		t.Fatalf("expected ERROR, got %s", session.State)
	}
	if session.Failure == nil || session.Failure.Kind != FailureNetwork {
		t.Fatalf("expected NETWORK failure, got %+v", session.Failure)
	}
	if session.IsGenerating {
		t.Error("no residual generating flag may remain after a failure")
	}
	if gate.invalidations() == 0 {
		t.Error("network error must invalidate cached eligibility")
	}

	assertLeaseReleased(t, cfg.leases, "usr_1")
}

func TestRunner_StartError(t *testing.T) {
	c := &fakeCoach{startErr: errors.New("bad gateway")}
	cfg, gate, _, _ := testConfig(c)

	r := startRunner(t, cfg)
	session := waitDone(t, r)

	if session.State != StateError {
		t.Fatalf("expected ERROR, got %s", session.State)
	}
	if session.Failure == nil || session.Failure.Kind != FailureNetwork {
		t.Fatalf("expected NETWORK failure, got %+v", session.Failure)
	}
	if c.statusPolls() != 0 {
		t.Errorf("failed start must not poll, got %d polls", c.statusPolls())
	}
	if gate.invalidations() == 0 {
		t.Error("start error must invalidate cached eligibility")
	}

	assertLeaseReleased(t, cfg.leases, "usr_1")
}

func TestRunner_AdoptsRunningJob(t *testing.T) {
	c := &fakeCoach{
		startErr: coach.ErrAlreadyRunning,
		statuses: []coach.JobStatus{generating(2), finished(2)},
	}
	cfg, _, plans, _ := testConfig(c)

	r := startRunner(t, cfg)
	session := waitDone(t, r)

	if session.State != StateDone {
		t.Fatalf("expected adopted job to complete, got %s (failure: %+v)", session.State, session.Failure)
	}
	if len(plans.stored()) != 1 {
		t.Errorf("expected adopted job's plan stored, got %d", len(plans.stored()))
	}
}

func TestRunner_Timeout(t *testing.T) {
	c := &fakeCoach{
		statuses: []coach.JobStatus{generating(1)},
	}
	cfg, _, _, _ := testConfig(c)
	cfg.budget = 60 * time.Millisecond

	r := startRunner(t, cfg)
	session := waitDone(t, r)

	if session.State != StateError {
		t.Fatalf("expected ERROR, got %s", session.State)
	}
	if session.Failure == nil || session.Failure.Kind != FailureTimeout {
		t.Fatalf("expected TIMEOUT failure, got %+v", session.Failure)
	}

	assertLeaseReleased(t, cfg.leases, "usr_1")
}

func TestRunner_Cancel(t *testing.T) {
	c := &fakeCoach{
		statuses: []coach.JobStatus{generating(1)},
	}
	cfg, _, plans, _ := testConfig(c)

	r := startRunner(t, cfg)

	// Let at least one poll happen, then stop.
	time.Sleep(20 * time.Millisecond)
	r.Cancel()

	session := waitDone(t, r)

	if session.State != StateCanceled {
		t.Fatalf("expected CANCELED, got %s", session.State)
	}
	if session.Failure != nil {
		t.Errorf("cancel is not a failure, got %+v", session.Failure)
	}
	if session.IsGenerating {
		t.Error("canceled attempt must not stay generating")
	}
	if len(plans.stored()) != 0 {
		t.Error("canceled attempt must not store a plan")
	}

	assertLeaseReleased(t, cfg.leases, "usr_1")
}

func TestRunner_ResultFetchFails(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind FailureKind
	}{
		{"job vanished", coach.ErrJobNotFound, FailureJob},
		{"network error", errors.New("connection reset"), FailureNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeCoach{
				statuses:  []coach.JobStatus{finished(5)},
				resultErr: tt.err,
			}
			cfg, gate, _, _ := testConfig(c)

			r := startRunner(t, cfg)
			session := waitDone(t, r)

			if session.State != StateError {
				t.Fatalf("expected ERROR, got %s", session.State)
			}
			if session.Failure == nil || session.Failure.Kind != tt.wantKind {
				t.Fatalf("expected %s failure, got %+v", tt.wantKind, session.Failure)
			}
			if gate.invalidations() == 0 {
				t.Error("result failure must invalidate cached eligibility")
			}

			assertLeaseReleased(t, cfg.leases, "usr_1")
		})
	}
}

func TestRunner_SaveFailure(t *testing.T) {
	c := &fakeCoach{
		statuses: []coach.JobStatus{finished(5)},
	}
	cfg, _, plans, _ := testConfig(c)
	plans.err = errors.New("database unavailable")

	r := startRunner(t, cfg)
	session := waitDone(t, r)

	if session.State != StateError {
		t.Fatalf("expected ERROR, got %s", session.State)
	}
	if session.Failure == nil || session.Failure.Kind != FailureJob {
		t.Fatalf("expected JOB failure, got %+v", session.Failure)
	}
	if !strings.Contains(session.Failure.Message, "could not be saved") {
		t.Errorf("expected save failure message, got %q", session.Failure.Message)
	}

	assertLeaseReleased(t, cfg.leases, "usr_1")
}

func TestRunner_PublishFailureDoesNotFailAttempt(t *testing.T) {
	c := &fakeCoach{
		statuses: []coach.JobStatus{finished(5)},
	}
	cfg, _, plans, pub := testConfig(c)
	pub.err = errors.New("pubsub unavailable")

	r := startRunner(t, cfg)
	session := waitDone(t, r)

	if session.State != StateDone {
		t.Fatalf("expected DONE despite publish failure, got %s", session.State)
	}
	if len(plans.stored()) != 1 {
		t.Errorf("expected plan stored, got %d", len(plans.stored()))
	}
}

func TestRunner_RefreshesProgressFromStatus(t *testing.T) {
	eta := 90
	c := &fakeCoach{
		statuses: []coach.JobStatus{
			{IsGenerating: true, CurrentStep: 2, TotalSteps: 6, StepMessage: "Crunching macros", EstimatedTimeRemaining: &eta},
		},
	}
	cfg, _, _, _ := testConfig(c)

	r := startRunner(t, cfg)

	// Wait for the first status to be folded in, then inspect.
	deadline := time.After(2 * time.Second)
	for {
		snap := r.Snapshot()
		if snap.StatusMessage == "Crunching macros" {
			if snap.TotalSteps != 6 {
				t.Errorf("expected total steps 6, got %d", snap.TotalSteps)
			}
			if snap.EstimatedTimeRemaining == nil || *snap.EstimatedTimeRemaining != 90 {
				t.Errorf("expected estimate 90, got %v", snap.EstimatedTimeRemaining)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("status was never folded into the session")
		case <-time.After(5 * time.Millisecond):
		}
	}

	r.Cancel()
	waitDone(t, r)
}
