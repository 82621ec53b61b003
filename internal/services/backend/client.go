package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crewbe/internal/api"
	"crewbe/internal/config"
	"crewbe/internal/services"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	userAgent          = "crewbe/0.1.0"
	maxErrorBody       = 4096
)

// HTTPDoer describes the HTTP client used by the backend client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the crewbe API.
type Client struct {
	baseURL string
	token   string
	api     HTTPDoer
	// storage performs presigned writes; it never sees the API token.
	storage HTTPDoer
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the client used for API calls.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.api = client
		}
	}
}

// WithStorageClient overrides the client used for presigned writes.
func WithStorageClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.storage = client
		}
	}
}

// NewClient constructs a client for the API at baseURL.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		api:     &http.Client{Timeout: defaultHTTPTimeout},
		storage: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig builds a client from the [upload] and [paths] sections.
func NewFromConfig(cfg *config.Config) *Client {
	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return NewClient(cfg.Upload.APIBaseURL, cfg.Paths.APIToken, WithHTTPClient(&http.Client{Timeout: timeout}))
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.baseURL }

// Health queries GET /health.
func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var out api.HealthResponse
	err := c.doJSON(ctx, "health", http.MethodGet, "/health", nil, &out)
	return out, err
}

// UploadStatus queries whether an object exists under key.
func (c *Client) UploadStatus(ctx context.Context, key string) (api.UploadStatusResponse, error) {
	var out api.UploadStatusResponse
	err := c.doJSON(ctx, "upload status", http.MethodGet, "/api/upload/status/"+escapeKey(key), nil, &out)
	return out, err
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if c.baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "backend", "request", "api base url is not configured", nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if id, ok := services.RequestIDFromContext(ctx); ok {
		req.Header.Set("X-Request-ID", id)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(c.api, req, op, out)
}

func (c *Client) send(client HTTPDoer, req *http.Request, op string, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "backend", op, "request timed out", err)
		}
		return services.Wrap(services.ErrTransient, "backend", op, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return statusError(op, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrTransient, "backend", op, "decode response", err)
	}
	return nil
}

func statusError(op string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := strings.TrimSpace(string(data))
	var payload api.ErrorResponse
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		detail = payload.Error
		if payload.Message != "" {
			detail += ": " + payload.Message
		}
	}
	msg := fmt.Sprintf("http %d", resp.StatusCode)
	if detail != "" {
		msg += ": " + detail
	}
	return services.Wrap(services.MarkerForStatus(resp.StatusCode), "backend", op, msg, nil)
}

// escapeKey escapes each path segment of a storage key, keeping the slashes.
func escapeKey(key string) string {
	parts := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
