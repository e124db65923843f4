package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/macroplan/macroplan/internal/api/models"
)

// RateLimitConfig is a request budget over a sliding window.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

// The three limiter tiers. Routes pick a tier by cost: generation starts
// can occupy an upstream job slot for minutes, analytics and budget scans
// aggregate weeks of rows, everything else is cheap.
var (
	GenerationRateLimit = RateLimitConfig{RequestLimit: 10, WindowLength: time.Minute}
	ExpensiveRateLimit  = RateLimitConfig{RequestLimit: 30, WindowLength: time.Minute}
	StandardRateLimit   = RateLimitConfig{RequestLimit: 100, WindowLength: time.Minute}
)

// RateLimitByIP keys the limiter on client IP. Requires chi's RealIP
// middleware upstream so proxied requests resolve to the caller.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return limit(cfg, httprate.KeyByRealIP)
}

// RateLimitByUser keys the limiter on the authenticated user ID, falling
// back to client IP when no user is on the context.
func RateLimitByUser(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return limit(cfg, keyByUserOrIP)
}

func limit(cfg RateLimitConfig, key httprate.KeyFunc) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(writeRateLimited),
	)
}

func keyByUserOrIP(r *http.Request) (string, error) {
	if userID := GetUserID(r.Context()); userID != "" {
		return "user:" + userID, nil
	}
	return httprate.KeyByRealIP(r)
}

// writeRateLimited answers 429 with a problem body. httprate does not
// expose the window reset, so Retry-After is a flat 60s matching the
// tiers' one-minute windows.
func writeRateLimited(w http.ResponseWriter, r *http.Request) {
	problem := models.NewTooManyRequests(GetRequestID(r.Context()), "Rate limit exceeded. Please try again later.")
	problem.Instance = r.URL.Path

	w.Header().Set("Retry-After", strconv.Itoa(60))
	problem.Write(w)
}
