package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

var (
	// ErrCircuitOpen is returned when the circuit breaker refuses the call.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrMaxRetriesExceeded wraps the final attempt's error once the retry
	// budget is spent without ever reaching the provider.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// ClientConfig tunes one provider client. Zero fields take the
// documented defaults.
type ClientConfig struct {
	// Name labels the breaker and the health registry entry.
	Name string

	// Timeout bounds each individual HTTP attempt. Default 10s.
	Timeout time.Duration

	// MaxRetries caps retry attempts after the first try. Default 3.
	MaxRetries uint64

	// InitialInterval seeds the exponential backoff. Default 100ms.
	InitialInterval time.Duration

	// MaxInterval caps the backoff growth. Default 5s.
	MaxInterval time.Duration

	// CircuitBreaker overrides DefaultCircuitBreakerConfig when set.
	CircuitBreaker *CircuitBreakerConfig

	// Registry receives this client for health reporting.
	// Optional; request outcomes are recorded when set.
	Registry *Registry

	// Metrics receives per-request duration and outcome counts.
	// Optional.
	Metrics *ProviderMetrics
}

func (cfg ClientConfig) withDefaults() ClientConfig {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}
	if cfg.CircuitBreaker == nil {
		cb := DefaultCircuitBreakerConfig(cfg.Name)
		cfg.CircuitBreaker = &cb
	}
	return cfg
}

// DefaultClientConfig returns sensible defaults for the resilient client.
func DefaultClientConfig(name string) ClientConfig {
	return ClientConfig{Name: name}.withDefaults()
}

// Client is an HTTP client that retries transient failures with
// exponential backoff behind a circuit breaker.
type Client struct {
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker[*http.Response]
	registry       *Registry
	config         ClientConfig
}

// NewClient creates a resilient client and, when a registry is configured,
// registers it there for health reporting.
func NewClient(cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()

	client := &Client{
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		circuitBreaker: NewCircuitBreaker[*http.Response](*cfg.CircuitBreaker), //nolint:bodyclose // type param, not response
		registry:       cfg.Registry,
		config:         cfg,
	}

	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, client)
	}

	return client
}

// Name returns the client's provider name.
func (c *Client) Name() string {
	return c.config.Name
}

// Do executes the request with retry and circuit breaker protection.
// Transient failures (5xx, network errors) are retried with exponential
// backoff; an open circuit fails fast with ErrCircuitOpen.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext is Do with an explicit context governing retries.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	start := time.Now()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0 // the retry count is the only cap

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)

	var lastResp *http.Response

	operation := func() error {
		resp, err := c.send(ctx, req) //nolint:bodyclose // caller owns the body
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			// send returns the response alongside a ServerError on 5xx.
			if resp != nil {
				lastResp = resp
			}
			return err
		}
		lastResp = resp
		return nil
	}

	err := backoff.Retry(operation, policy)
	c.recordOutcome(req.URL.Path, lastResp, err, time.Since(start))
	if err == nil {
		return lastResp, nil
	}
	if lastResp != nil {
		// Retries exhausted but the provider did answer. Hand the caller
		// the last 5xx response rather than a synthetic error.
		return lastResp, nil
	}
	if ctx.Err() == nil && !errors.Is(err, ErrCircuitOpen) {
		err = fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, err)
	}
	return nil, err
}

// send performs one attempt through the circuit breaker. 5xx answers come
// back as a ServerError so they count as breaker failures; the response is
// still returned for the caller.
func (c *Client) send(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.circuitBreaker.Execute(func() (*http.Response, error) {
		attempt := req.Clone(ctx)

		// Clone does not rewind the body, so retried requests with a
		// body must restore it from GetBody.
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewind request body: %w", err)
			}
			attempt.Body = body
		}

		resp, err := c.httpClient.Do(attempt)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, &ServerError{StatusCode: resp.StatusCode}
		}
		return resp, nil
	})
}

// recordOutcome reports the request outcome to the registry and metrics,
// if configured. A 4xx response counts as provider success: the provider
// answered.
func (c *Client) recordOutcome(operation string, resp *http.Response, err error, elapsed time.Duration) {
	outcomeErr := err
	if outcomeErr == nil && resp != nil && resp.StatusCode >= http.StatusInternalServerError {
		outcomeErr = &ServerError{StatusCode: resp.StatusCode}
	}

	c.config.Metrics.RecordRequest(operation, elapsed, outcomeErr)

	if c.registry == nil {
		return
	}
	if outcomeErr != nil {
		c.registry.RecordFailure(c.config.Name, outcomeErr)
	} else {
		c.registry.RecordSuccess(c.config.Name)
	}
}

// ServerError marks an HTTP 5xx answer so the breaker counts it as a
// failure.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("provider returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// CircuitBreakerState exposes the breaker state for health reporting.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.circuitBreaker.State()
}

// CircuitBreakerCounts exposes the breaker's rolling counts.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.circuitBreaker.Counts()
}
