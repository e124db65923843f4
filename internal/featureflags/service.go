package featureflags

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ServiceConfig wires the flag service to its backing repository.
type ServiceConfig struct {
	Repository   Repository
	Logger       zerolog.Logger
	CacheTTL     time.Duration // how long flags stay cached in memory
	DefaultFlags map[string]*Flag
}

type cacheEntry struct {
	flag    *Flag
	expires time.Time
}

// Service evaluates flags with an in-memory cache in front of the
// repository and compiled-in defaults behind it. Repository outages
// degrade to defaults instead of failing the caller.
type Service struct {
	repo         Repository
	logger       zerolog.Logger
	cacheTTL     time.Duration
	defaultFlags map[string]*Flag

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewService builds a Service with a one-minute cache unless the config
// says otherwise.
func NewService(cfg ServiceConfig) *Service {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Minute
	}
	if cfg.DefaultFlags == nil {
		cfg.DefaultFlags = DefaultFlags()
	}

	return &Service{
		repo:         cfg.Repository,
		logger:       cfg.Logger,
		cacheTTL:     cfg.CacheTTL,
		defaultFlags: cfg.DefaultFlags,
		cache:        make(map[string]cacheEntry),
	}
}

// GetFlag resolves one flag: cache, then repository, then defaults. A nil
// return means the key is unknown everywhere; the typed accessors on Flag
// handle that case.
func (s *Service) GetFlag(ctx context.Context, key string) *Flag {
	if flag := s.getCached(key); flag != nil {
		return flag
	}

	flag, err := s.repo.GetFlag(ctx, key)
	switch {
	case err == nil:
		s.setCached(key, flag)
		return flag
	case !errors.Is(err, ErrFlagNotFound):
		s.logger.Warn().Err(err).Str("flag", key).Msg("flag lookup failed, serving default")
	}

	return s.defaultFlags[key]
}

// GetAllFlags returns the stored flags merged over the defaults, so every
// well-known key appears even before its first write.
func (s *Service) GetAllFlags(ctx context.Context) map[string]*Flag {
	merged := make(map[string]*Flag, len(s.defaultFlags))
	for key, flag := range s.defaultFlags {
		merged[key] = flag
	}

	stored, err := s.repo.GetAllFlags(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("flag list unavailable, serving defaults")
		return merged
	}

	expires := time.Now().Add(s.cacheTTL)
	s.mu.Lock()
	for key, flag := range stored {
		merged[key] = flag
		s.cache[key] = cacheEntry{flag: flag, expires: expires}
	}
	s.mu.Unlock()

	return merged
}

// SetFlag writes one flag through to the repository and the cache.
func (s *Service) SetFlag(ctx context.Context, flag *Flag) error {
	flag.UpdatedAt = time.Now()
	if err := s.repo.SetFlag(ctx, flag); err != nil {
		return err
	}

	s.setCached(flag.Key, flag)
	return nil
}

// SetFlags writes a batch atomically, then refreshes the cached entries.
func (s *Service) SetFlags(ctx context.Context, flags []*Flag) error {
	now := time.Now()
	for _, flag := range flags {
		flag.UpdatedAt = now
	}

	if err := s.repo.SetFlags(ctx, flags); err != nil {
		return err
	}

	expires := now.Add(s.cacheTTL)
	s.mu.Lock()
	for _, flag := range flags {
		s.cache[flag.Key] = cacheEntry{flag: flag, expires: expires}
	}
	s.mu.Unlock()

	return nil
}

// InvalidateCache drops the cache so the next read hits the repository.
// The admin invalidate endpoint calls this after out-of-band changes.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]cacheEntry)
}

// IsEnabled reports whether a boolean flag is truthy. Unknown keys read
// as disabled.
func (s *Service) IsEnabled(ctx context.Context, key string) bool {
	return s.GetFlag(ctx, key).BoolValue(false)
}

// IsDisabled is the inverse of IsEnabled.
func (s *Service) IsDisabled(ctx context.Context, key string) bool {
	return !s.IsEnabled(ctx, key)
}

func (s *Service) getCached(key string) *Flag {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.cache[key]
	if !ok || time.Now().After(entry.expires) {
		return nil
	}
	return entry.flag
}

func (s *Service) setCached(key string, flag *Flag) {
	s.mu.Lock()
	s.cache[key] = cacheEntry{flag: flag, expires: time.Now().Add(s.cacheTTL)}
	s.mu.Unlock()
}

// Convenience methods for well-known flags.

// IsCoachGenerationDisabled returns true if plan generation is globally
// switched off.
func (s *Service) IsCoachGenerationDisabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagCoachGenerationDisabled)
}

// PollInterval returns the generation poll interval. Values under
// 250ms are treated as misconfiguration and replaced by the default.
func (s *Service) PollInterval(ctx context.Context) time.Duration {
	ms := s.GetFlag(ctx, FlagCoachPollIntervalMs).IntValue(DefaultPollIntervalMs)
	if ms < 250 {
		ms = DefaultPollIntervalMs
	}
	return time.Duration(ms) * time.Millisecond
}

// ArePlanNotificationsDisabled returns true if plan-ready notifications
// must not be sent.
func (s *Service) ArePlanNotificationsDisabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagPlanNotificationsDisabled)
}

// IsBudgetTrackingDisabled returns true if budget reports are hidden.
func (s *Service) IsBudgetTrackingDisabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagBudgetTrackingDisabled)
}
