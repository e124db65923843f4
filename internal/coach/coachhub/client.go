// Package coachhub provides a client for the CoachHub generation API.
package coachhub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/macroplan/macroplan/internal/coach"
	"github.com/macroplan/macroplan/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the base URL for the CoachHub API.
	DefaultBaseURL = "https://coachhub.macroplan.app/api"

	// ProviderName identifies this provider.
	ProviderName = "coachhub"
)

// ClientConfig holds configuration for the CoachHub client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// APIKey is sent as a bearer token on every request.
	APIKey string

	// HTTPClient is the HTTP client to use (must implement HTTPDoer).
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a CoachHub API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient HTTPDoer
}

// NewClient creates a new CoachHub client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      3,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}
}

// API request/response types (CoachHub wire format).

type continueRequest struct {
	UserID string `json:"userId"`
}

type errorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// CheckEligibility asks whether the user may start a generation.
func (c *Client) CheckEligibility(ctx context.Context, userID string) (*coach.Eligibility, error) {
	var out coach.Eligibility
	if err := c.get(ctx, "/eligibility", userID, &out); err != nil {
		return nil, fmt.Errorf("check eligibility: %w", err)
	}
	return &out, nil
}

// StartGeneration asks the upstream to begin a new job for the user.
func (c *Client) StartGeneration(ctx context.Context, input *coach.Input) (*coach.StartAck, error) {
	var out coach.StartAck
	if err := c.post(ctx, "/generations/start", input, &out); err != nil {
		return nil, fmt.Errorf("start generation: %w", err)
	}
	return &out, nil
}

// FetchStatus reads the user's current job status.
func (c *Client) FetchStatus(ctx context.Context, userID string) (*coach.JobStatus, error) {
	var out coach.JobStatus
	if err := c.get(ctx, "/generations/status", userID, &out); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	return &out, nil
}

// ContinueStep asks the upstream to advance the job one step.
func (c *Client) ContinueStep(ctx context.Context, userID string) (*coach.StepAck, error) {
	var out coach.StepAck
	if err := c.post(ctx, "/generations/continue", continueRequest{UserID: userID}, &out); err != nil {
		return nil, fmt.Errorf("continue step: %w", err)
	}
	return &out, nil
}

// FetchResult retrieves the completed job's plan payload.
func (c *Client) FetchResult(ctx context.Context, userID string) (*coach.GenerationResult, error) {
	var out coach.GenerationResult
	if err := c.get(ctx, "/generations/result", userID, &out); err != nil {
		return nil, fmt.Errorf("fetch result: %w", err)
	}
	return &out, nil
}

// post sends a JSON body and decodes a JSON response.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	return c.do(req, out)
}

// get issues a user-scoped GET and decodes a JSON response.
func (c *Client) get(ctx context.Context, path, userID string, out any) error {
	u := fmt.Sprintf("%s%s?userId=%s", c.baseURL, path, url.QueryEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.authorize(req)

	return c.do(req, out)
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// do executes the request and maps non-2xx statuses to client errors.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return coach.ErrJobNotFound
	case resp.StatusCode == http.StatusConflict:
		io.Copy(io.Discard, resp.Body)
		return coach.ErrAlreadyRunning
	case resp.StatusCode >= 400:
		var apiErr errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.message() != "" {
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, apiErr.message())
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (e *errorResponse) message() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// Ensure Client implements the coach.Client interface.
var _ coach.Client = (*Client)(nil)
