package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/getmockd/glrunner/pkg/logging"
	"github.com/google/uuid"
)

// APIPath is the REST API root appended to a bare GitLab host URL.
const APIPath = "/api/v4"

// RequestIDHeader carries a per-request correlation id.
const RequestIDHeader = "X-Request-Id"

// Client talks to the runner endpoints of a GitLab instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// New creates a client for the instance at baseURL. Either the host part
// (https://gitlab.com) or the API root (https://gitlab.com/api/v4) is accepted.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: APIBaseURL(baseURL),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		userAgent: "glrunner",
		log:       logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIBaseURL normalizes a GitLab URL to its API root.
func APIBaseURL(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	if !strings.HasSuffix(base, APIPath) {
		base += APIPath
	}
	return base
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Register creates a new runner using a registration token. opts carries the
// registration-only options (description, tag_list, locked, ...). The call is
// never retried.
func (c *Client) Register(ctx context.Context, registrationToken string, opts map[string]any) (*RegistrationResult, error) {
	if registrationToken == "" {
		return nil, &RegistrationError{Op: OpRegister, Err: ErrMissingToken}
	}

	body := make(map[string]any, len(opts)+1)
	for k, v := range opts {
		body[k] = v
	}
	body["token"] = registrationToken

	resp, err := c.send(ctx, http.MethodPost, "/runners", body)
	if err != nil {
		return nil, &RegistrationError{Op: OpRegister, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RegistrationError{Op: OpRegister, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if !isSuccess(resp.StatusCode) {
		return nil, newStatusError(OpRegister, resp.StatusCode, data)
	}

	var result RegistrationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, &RegistrationError{Op: OpRegister, StatusCode: resp.StatusCode, Body: string(data), Err: fmt.Errorf("failed to decode registration response: %w", err)}
	}
	if result.ID < 1 || result.Token == "" {
		return nil, &RegistrationError{Op: OpRegister, StatusCode: resp.StatusCode, Body: string(data), Err: ErrIncompleteResponse}
	}
	return &result, nil
}

// Unregister deletes the runner identified by its own runner token.
func (c *Client) Unregister(ctx context.Context, runnerToken string) error {
	return c.tokenCall(ctx, OpUnregister, http.MethodDelete, "/runners", runnerToken)
}

// Verify checks that a runner token is still known to the instance.
func (c *Client) Verify(ctx context.Context, runnerToken string) error {
	return c.tokenCall(ctx, OpVerify, http.MethodPost, "/runners/verify", runnerToken)
}

func (c *Client) tokenCall(ctx context.Context, op, method, path, runnerToken string) error {
	if runnerToken == "" {
		return &RegistrationError{Op: op, Err: ErrMissingToken}
	}
	resp, err := c.send(ctx, method, path, map[string]string{"token": runnerToken})
	if err != nil {
		return &RegistrationError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if !isSuccess(resp.StatusCode) {
		data, _ := io.ReadAll(resp.Body)
		return newStatusError(op, resp.StatusCode, data)
	}
	return nil
}

// HTTP helpers

func (c *Client) send(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("gitlab request failed",
			"method", req.Method, "url", req.URL.String(), "requestId", requestID, "error", err)
		return nil, err
	}
	c.log.Debug("gitlab request",
		"method", req.Method, "url", req.URL.String(), "requestId", requestID,
		"status", resp.StatusCode, "duration", time.Since(start))
	return resp, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
