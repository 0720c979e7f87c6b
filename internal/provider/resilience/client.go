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

// Errors surfaced by Do.
var (
	// ErrCircuitOpen is returned without attempting the request when the
	// breaker is open.
	ErrCircuitOpen = errors.New("provider circuit breaker is open")
)

// ServerError marks an HTTP 5xx reply; it is retryable and counts as a
// breaker failure.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("provider server error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Config holds configuration for the resilient HTTP client.
type Config struct {
	// Name identifies the client for breaker naming.
	Name string

	// Timeout bounds each individual HTTP attempt. Default 10s.
	Timeout time.Duration

	// MaxRetries is the number of additional attempts after the first.
	// Default 3.
	MaxRetries uint64

	// InitialInterval and MaxInterval bound the exponential backoff between
	// attempts. Defaults 100ms and 5s.
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// Breaker overrides the circuit breaker settings. Nil uses
	// DefaultBreakerConfig(Name).
	Breaker *BreakerConfig
}

// DefaultConfig returns client settings suited to push delivery sweeps.
func DefaultConfig(name string) Config {
	bc := DefaultBreakerConfig(name)
	return Config{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Breaker:         &bc,
	}
}

// Client is an HTTP client that retries transient failures with exponential
// backoff behind a circuit breaker. Requests carrying a body must be built
// with http.NewRequestWithContext (or otherwise have GetBody set) so attempts
// can replay the body.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	config     Config
}

// NewClient creates a resilient HTTP client.
func NewClient(cfg Config) *Client {
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

	bc := cfg.Breaker
	if bc == nil {
		def := DefaultBreakerConfig(cfg.Name)
		bc = &def
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    newBreaker[*http.Response](*bc),
		config:     cfg,
	}
}

// Do executes the request, retrying network errors and 5xx replies. Non-5xx
// status codes are returned as-is: for push delivery a 4xx is data the state
// machine records, not a transport failure.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.do(req.Context(), req)
}

func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)

	var lastResp *http.Response

	attempt := func() error {
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
			clone := req.Clone(ctx)
			if req.GetBody != nil {
				body, bodyErr := req.GetBody()
				if bodyErr != nil {
					return nil, backoff.Permanent(bodyErr)
				}
				clone.Body = body
			}

			r, doErr := c.httpClient.Do(clone)
			if doErr != nil {
				return nil, doErr
			}
			if r.StatusCode >= 500 {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			if resp != nil {
				lastResp = resp
			}
			return err
		}

		lastResp = resp
		return nil
	}

	if err := backoff.Retry(attempt, policy); err != nil {
		// A 5xx that exhausted retries is still a provider answer; hand the
		// final response to the caller so its code can be persisted.
		if lastResp != nil {
			return lastResp, nil
		}
		return nil, err
	}

	return lastResp, nil
}

// BreakerState returns the current circuit breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}
