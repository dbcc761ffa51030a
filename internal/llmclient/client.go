// Package llmclient provides a base HTTP client for synchronous vendors with:
// - JSON request and response bodies
// - Retries with exponential backoff and jitter
// - Standardized error parsing into core.GatewayError
// - Circuit breaking
// - Request hooks for instrumentation
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"gengateway/config"
	"gengateway/internal/core"
	"gengateway/internal/httpclient"
)

// Config holds per-vendor client settings
type Config struct {
	// ProviderName identifies the provider for error messages
	ProviderName string

	// BaseURL is the API base URL
	BaseURL string

	Retry config.RetryConfig

	// CircuitBreaker is disabled when nil or not Enabled
	CircuitBreaker *config.CircuitBreakerConfig

	// Breaker, when set, is used instead of building one from CircuitBreaker
	Breaker *Breaker

	Hooks Hooks
}

// DefaultConfig returns default client configuration
func DefaultConfig(providerName, baseURL string) Config {
	return Config{
		ProviderName: providerName,
		BaseURL:      baseURL,
		Retry: config.RetryConfig{
			MaxRetries:     0,
			InitialBackoff: 1 * time.Second,
			MaxBackoff:     30 * time.Second,
			BackoffFactor:  2.0,
		},
		CircuitBreaker: &config.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
		},
	}
}

// HeaderSetter is a function that sets headers on an HTTP request
type HeaderSetter func(req *http.Request)

// Client is the shared HTTP client for synchronous vendor adapters
type Client struct {
	httpClient   *http.Client
	config       Config
	headerSetter HeaderSetter
	breaker      *Breaker
}

// New creates a client on the pooled default transport
func New(cfg Config, headerSetter HeaderSetter) *Client {
	return NewWithHTTPClient(httpclient.NewDefaultHTTPClient(), cfg, headerSetter)
}

// NewWithHTTPClient creates a new LLM client with a custom HTTP client.
// A nil httpClient falls back to http.DefaultClient.
func NewWithHTTPClient(httpClient *http.Client, cfg Config, headerSetter HeaderSetter) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		httpClient:   httpClient,
		config:       cfg,
		headerSetter: headerSetter,
	}

	switch cb := cfg.CircuitBreaker; {
	case cfg.Breaker != nil:
		c.breaker = cfg.Breaker
	case cb != nil && cb.Enabled:
		c.breaker = NewBreaker(cfg.ProviderName, *cb)
	}

	return c
}

// SetBaseURL updates the base URL
func (c *Client) SetBaseURL(url string) {
	c.config.BaseURL = url
}

// BaseURL returns the current base URL
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Request represents an HTTP request to be made
type Request struct {
	Method   string
	Endpoint string
	Body     any // Will be JSON marshaled if not nil
	Headers  map[string]string
	// Model is reported in errors and hooks
	Model string
	// NoRetry sends the request at most once regardless of the retry config.
	// Set it on calls that are not safe to repeat.
	NoRetry bool
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Body       []byte
}

// Do executes a request with retries and circuit breaking, then unmarshals the response
func (c *Client) Do(ctx context.Context, req Request, result any) error {
	resp, err := c.DoRaw(ctx, req)
	if err != nil {
		return err
	}

	if result != nil {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			return core.NewVendorAPIError(c.config.ProviderName, req.Model, http.StatusBadGateway,
				"failed to unmarshal response: "+err.Error(), err)
		}
	}

	return nil
}

// DoRaw executes a request with retries and circuit breaking, returning the raw response.
// Any non-2xx final status is returned as a *core.GatewayError.
func (c *Client) DoRaw(ctx context.Context, req Request) (*Response, error) {
	var lastErr error
	maxAttempts := c.config.Retry.MaxRetries + 1
	if maxAttempts < 1 || req.NoRetry {
		maxAttempts = 1
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, core.NewTimeoutError(c.config.ProviderName, req.Model,
					"request cancelled during retry backoff: "+ctx.Err().Error(), ctx.Err())
			case <-time.After(c.calculateBackoff(attempt)):
			}
		}

		if c.breaker != nil && !c.breaker.allow() {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, core.NewVendorAPIError(c.config.ProviderName, req.Model, http.StatusServiceUnavailable,
				"circuit breaker is open - provider temporarily unavailable", nil)
		}

		resp, err := c.doRequest(ctx, req)
		if err != nil {
			lastErr = err
			c.recordFailure()
			if ctx.Err() != nil {
				return nil, err
			}
			continue
		}

		if isRetryable(resp.StatusCode) {
			c.recordFailure()
			lastErr = core.ParseProviderError(c.config.ProviderName, req.Model, resp.StatusCode, resp.Body, nil)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			// client errors do not indicate an unhealthy vendor
			if resp.StatusCode >= 500 {
				c.recordFailure()
			} else {
				c.recordSuccess()
			}
			return nil, core.ParseProviderError(c.config.ProviderName, req.Model, resp.StatusCode, resp.Body, nil)
		}

		c.recordSuccess()
		return resp, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, core.NewVendorAPIError(c.config.ProviderName, req.Model, http.StatusBadGateway, "request failed after retries", nil)
}

func (c *Client) recordFailure() {
	if c.breaker != nil {
		c.breaker.failure()
	}
}

func (c *Client) recordSuccess() {
	if c.breaker != nil {
		c.breaker.success()
	}
}

// doRequest executes a single HTTP request without retries
func (c *Client) doRequest(ctx context.Context, req Request) (*Response, error) {
	info := RequestInfo{
		Provider: c.config.ProviderName,
		Model:    req.Model,
		Method:   req.Method,
		Endpoint: req.Endpoint,
	}
	ctx = c.config.Hooks.Start(ctx, info)
	started := time.Now()

	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		c.config.Hooks.End(ctx, info, 0, started, err)
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		gwErr := core.NewVendorAPIError(c.config.ProviderName, req.Model, http.StatusBadGateway, "failed to send request: "+err.Error(), err)
		c.config.Hooks.End(ctx, info, 0, started, gwErr)
		return nil, gwErr
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		gwErr := core.NewVendorAPIError(c.config.ProviderName, req.Model, http.StatusBadGateway, "failed to read response: "+err.Error(), err)
		c.config.Hooks.End(ctx, info, resp.StatusCode, started, gwErr)
		return nil, gwErr
	}

	c.config.Hooks.End(ctx, info, resp.StatusCode, started, nil)
	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}

// buildRequest creates an HTTP request from a Request
func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	url := c.config.BaseURL + req.Endpoint

	var bodyReader io.Reader
	if req.Body != nil {
		bodyBytes, err := json.Marshal(req.Body)
		if err != nil {
			return nil, core.NewInvalidRequestError("failed to marshal request", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, bodyReader)
	if err != nil {
		return nil, core.NewInvalidRequestError("failed to create request", err)
	}

	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if requestID := core.GetRequestID(ctx); requestID != "" {
		httpReq.Header.Set("X-Request-ID", requestID)
	}

	if c.headerSetter != nil {
		c.headerSetter(httpReq)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	return httpReq, nil
}

// calculateBackoff returns the delay before the given retry attempt (1-based),
// capped at MaxBackoff and spread by JitterFactor in both directions.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	r := c.config.Retry
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2.0
	}
	backoff := float64(r.InitialBackoff) * math.Pow(factor, float64(attempt-1))
	if r.MaxBackoff > 0 && backoff > float64(r.MaxBackoff) {
		backoff = float64(r.MaxBackoff)
	}
	if r.JitterFactor > 0 {
		backoff += backoff * r.JitterFactor * (2*rand.Float64() - 1)
	}
	if backoff < 0 {
		backoff = 0
	}
	return time.Duration(backoff)
}

// isRetryable returns true if the status code indicates a retryable error
func isRetryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusBadGateway ||
		statusCode == http.StatusGatewayTimeout
}
