// Package urbanairship implements the push provider HTTP contract: device
// token registration, single and broadcast pushes, and the feedback query for
// tokens that have gone inactive.
package urbanairship

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/pushdeck/pushdeck/internal/provider"
	"github.com/pushdeck/pushdeck/internal/provider/resilience"
)

const (
	// ProviderName identifies this push provider.
	ProviderName = "urbanairship"

	// DefaultBaseURL is the Urban Airship API base URL.
	DefaultBaseURL = "https://go.urbanairship.com"
)

// ClientConfig holds the immutable configuration for the client. Credentials
// are fixed at construction; there is no process-wide singleton.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to Urban Airship).
	BaseURL string

	// AppKey identifies the application and is the basic-auth username for
	// every call.
	AppKey string

	// AppSecret authenticates device registration calls.
	AppSecret string

	// PushSecret (the "master secret") authenticates push and feedback calls.
	PushSecret string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an Urban Airship API client.
type Client struct {
	baseURL    string
	appKey     string
	appSecret  string
	pushSecret string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// Registration is the optional body of a device registration call. A PUT
// without an alias removes any existing alias; an empty tag list removes
// existing tags.
type Registration struct {
	Alias string   `json:"alias,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// DeviceInfo is the reply to a device read.
type DeviceInfo struct {
	DeviceToken string   `json:"device_token"`
	Alias       string   `json:"alias"`
	Tags        []string `json:"tags,omitempty"`
}

// FeedbackEntry is one element of the feedback reply: a token the platform
// reported as no longer reachable.
type FeedbackEntry struct {
	DeviceToken string `json:"device_token"`
	MarkedAt    string `json:"marked_inactive_on,omitempty"`
	Alias       string `json:"alias,omitempty"`
}

// NewClient creates a new Urban Airship client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultConfig(ProviderName))
	}

	return &Client{
		baseURL:    baseURL,
		appKey:     cfg.AppKey,
		appSecret:  cfg.AppSecret,
		pushSecret: cfg.PushSecret,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// RegisterDevice registers or refreshes a device token.
// 201 means first registration, 200 an update.
func (c *Client) RegisterDevice(ctx context.Context, providerToken string, reg *Registration) (*provider.Response, error) {
	var body interface{}
	if reg != nil {
		body = reg
	}
	return c.call(ctx, http.MethodPut, "/api/device_tokens/"+providerToken, body, c.appSecret)
}

// UnregisterDevice marks a device token inactive on the provider side.
// Replies 204 with no body.
func (c *Client) UnregisterDevice(ctx context.Context, providerToken string) (*provider.Response, error) {
	return c.call(ctx, http.MethodDelete, "/api/device_tokens/"+providerToken, nil, c.appSecret)
}

// ReadDevice reads a token's alias.
func (c *Client) ReadDevice(ctx context.Context, providerToken string) (*DeviceInfo, *provider.Response, error) {
	resp, err := c.call(ctx, http.MethodGet, "/api/device_tokens/"+providerToken, nil, c.appSecret)
	if err != nil {
		return nil, nil, err
	}
	if resp.Code != http.StatusOK {
		return nil, resp, nil
	}

	var info DeviceInfo
	if err := json.Unmarshal([]byte(resp.Body), &info); err != nil {
		return nil, resp, fmt.Errorf("decoding device info: %w", err)
	}
	return &info, resp, nil
}

// Push sends a single-device payload. 200 means accepted.
func (c *Client) Push(ctx context.Context, payload map[string]interface{}) (*provider.Response, error) {
	return c.call(ctx, http.MethodPost, "/api/push/", payload, c.pushSecret)
}

// PushBroadcast fans a payload out to every registered device except those in
// the payload's exclude_tokens list.
func (c *Client) PushBroadcast(ctx context.Context, payload map[string]interface{}) (*provider.Response, error) {
	return c.call(ctx, http.MethodPost, "/api/push/broadcast/", payload, c.pushSecret)
}

// Feedback queries tokens the platform reported inactive since the watermark.
func (c *Client) Feedback(ctx context.Context, since time.Time) (*provider.Response, error) {
	path := "/api/device_tokens/feedback/?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339))
	return c.call(ctx, http.MethodGet, path, nil, c.pushSecret)
}

// ParseFeedback decodes a feedback reply body.
func ParseFeedback(body string) ([]FeedbackEntry, error) {
	var entries []FeedbackEntry
	if err := json.Unmarshal([]byte(body), &entries); err != nil {
		return nil, fmt.Errorf("decoding feedback body: %w", err)
	}
	return entries, nil
}

func (c *Client) call(ctx context.Context, method, path string, body interface{}, secret string) (*provider.Response, error) {
	var reqBody io.Reader = http.NoBody
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.SetBasicAuth(c.appKey, secret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Msg("provider call")

	return &provider.Response{
		Code:    resp.StatusCode,
		Message: http.StatusText(resp.StatusCode),
		Body:    string(raw),
	}, nil
}
