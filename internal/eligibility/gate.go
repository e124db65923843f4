// Package eligibility decides whether a user may start a plan
// generation attempt. It layers a local kill switch and a short-lived
// verdict cache over the upstream eligibility endpoint, so repeated
// checks (dialog open, pre-flight, retry) do not hammer the upstream.
package eligibility

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/macroplan/macroplan/internal/auth"
	"github.com/macroplan/macroplan/internal/coach"
	"github.com/macroplan/macroplan/internal/provider/resilience"
)

// DefaultCacheTTL is how long an upstream verdict is reused before the
// upstream is asked again.
const DefaultCacheTTL = 60 * time.Second

// cacheOperation labels the verdict cache in provider metrics.
const cacheOperation = "eligibility"

// Refusal messages used when the upstream does not supply one.
const (
	msgGloballyDisabled = "Plan generation is temporarily disabled. Please try again later."
	msgTrainerManaged   = "Your plans are managed by your trainer."
	msgNotEligible      = "You cannot generate a new plan right now."
)

// Verdict is the gate's decision for one user. CanCreate=false means
// the attempt must be refused; the remaining fields say why.
type Verdict struct {
	CanCreate        bool
	DaysRemaining    int
	HasTrainer       bool
	GloballyDisabled bool
	Message          string
}

// FlagSource exposes the kill switch consulted before any upstream
// traffic.
type FlagSource interface {
	IsCoachGenerationDisabled(ctx context.Context) bool
}

// GateConfig holds dependencies for the gate.
type GateConfig struct {
	Client coach.Client
	Flags  FlagSource
	Logger zerolog.Logger

	// Metrics counts verdict cache hits and misses. Optional.
	Metrics *resilience.ProviderMetrics

	// CacheTTL is how long verdicts are cached. Zero means DefaultCacheTTL.
	CacheTTL time.Duration
}

// Gate performs pre-flight eligibility checks for generation attempts.
type Gate struct {
	client   coach.Client
	flags    FlagSource
	logger   zerolog.Logger
	metrics  *resilience.ProviderMetrics
	cacheTTL time.Duration

	mu    sync.RWMutex
	cache map[string]cachedVerdict
}

type cachedVerdict struct {
	verdict   Verdict
	expiresAt time.Time
}

// NewGate creates a gate with the given dependencies.
func NewGate(cfg GateConfig) *Gate {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = DefaultCacheTTL
	}

	return &Gate{
		client:   cfg.Client,
		flags:    cfg.Flags,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		cacheTTL: cacheTTL,
		cache:    make(map[string]cachedVerdict),
	}
}

// Check decides whether the subject may start a generation attempt.
// A refusal comes back as a verdict with CanCreate=false; an error
// means the upstream could not be reached and the attempt must abort
// before any lease is taken.
func (g *Gate) Check(ctx context.Context, subject auth.Subject) (*Verdict, error) {
	// The local kill switch wins before any upstream traffic. Trainers
	// and admins keep access so they can verify plans during an outage.
	if g.flags != nil && g.flags.IsCoachGenerationDisabled(ctx) && !subject.Role.Privileged() {
		g.logger.Debug().
			Str("user_id", subject.UserID).
			Msg("generation refused by kill switch")
		return &Verdict{
			GloballyDisabled: true,
			Message:          msgGloballyDisabled,
		}, nil
	}

	if v, ok := g.getCached(subject.UserID); ok {
		g.metrics.RecordCacheHit(cacheOperation)
		g.logger.Debug().
			Str("user_id", subject.UserID).
			Msg("eligibility cache hit")
		return v, nil
	}
	g.metrics.RecordCacheMiss(cacheOperation)

	elig, err := g.client.CheckEligibility(ctx, subject.UserID)
	if err != nil {
		return nil, fmt.Errorf("checking eligibility: %w", err)
	}

	verdict := mapEligibility(elig, subject.Role)
	g.setCached(subject.UserID, verdict)
	return verdict, nil
}

// Invalidate drops the cached verdict for a user, forcing the next
// Check to ask the upstream again. Called after transient generation
// failures so a stale "can create" answer is not reused.
func (g *Gate) Invalidate(userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.cache, userID)
}

// mapEligibility applies the refusal rules, in order, to the
// upstream's answer.
func mapEligibility(elig *coach.Eligibility, role auth.Role) *Verdict {
	switch {
	case elig.HasTrainer:
		// Trainer-managed users get plans from their trainer, never
		// from self-service generation.
		return &Verdict{
			HasTrainer: true,
			Message:    messageOr(elig.Message, msgTrainerManaged),
		}
	case elig.GloballyDisabled && !role.Privileged():
		return &Verdict{
			GloballyDisabled: true,
			Message:          messageOr(elig.Message, msgGloballyDisabled),
		}
	case elig.DaysRemaining > 0:
		return &Verdict{
			DaysRemaining: elig.DaysRemaining,
			Message:       fmt.Sprintf("You can generate a new plan in %d day(s)", elig.DaysRemaining),
		}
	case !elig.CanCreate:
		return &Verdict{
			Message: messageOr(elig.Message, msgNotEligible),
		}
	default:
		return &Verdict{CanCreate: true}
	}
}

func (g *Gate) getCached(userID string) (*Verdict, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	entry, ok := g.cache[userID]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}

	v := entry.verdict
	return &v, true
}

func (g *Gate) setCached(userID string, v *Verdict) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cache[userID] = cachedVerdict{
		verdict:   *v,
		expiresAt: time.Now().Add(g.cacheTTL),
	}
}

func messageOr(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}
