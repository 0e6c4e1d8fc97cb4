// Package client is a Go client for the ward census JSON API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/frahmantamala/ward-census/internal/auth"
	"github.com/go-resty/resty/v2"
)

const (
	csrfHeader = "X-CSRF-Token"
	apiPrefix  = "/api/v1"
)

// APIError is the error half of the response envelope.
type APIError struct {
	StatusCode int             `json:"-"`
	Type       string          `json:"type"`
	Code       string          `json:"code"`
	Message    string          `json:"message"`
	Details    json.RawMessage `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// ErrorCode returns the API error code carried by err, "" if none.
func ErrorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

// Client talks to the API with cookie auth. The cookie jar carries the
// auth token between calls; the CSRF token is fetched on first use.
type Client struct {
	http   *resty.Client
	logger *slog.Logger

	mu   sync.Mutex
	csrf string
}

func New(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	jar, _ := cookiejar.New(nil)
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")+apiPrefix).
		SetTimeout(15*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetCookieJar(jar).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{http: httpClient, logger: logger}
}

// FetchCSRF asks the server for a fresh double-submit token.
func (c *Client) FetchCSRF(ctx context.Context) (string, error) {
	var out auth.CSRFResponse
	if err := c.do(ctx, http.MethodGet, "/auth/csrf", nil, &out); err != nil {
		return "", err
	}
	c.mu.Lock()
	c.csrf = out.Token
	c.mu.Unlock()
	return out.Token, nil
}

func (c *Client) Login(ctx context.Context, username, password string) (*auth.LoginResult, error) {
	var out auth.LoginResult
	body := auth.LoginDTO{Username: username, Password: password}
	if err := c.mutate(ctx, http.MethodPost, "/auth/login", body, &out); err != nil {
		return nil, err
	}
	c.logger.Info("signed in", "username", out.User.Username, "session_id", out.SessionID)
	return &out, nil
}

// Logout ends the server session and drops local cookies whatever the
// server answers.
func (c *Client) Logout(ctx context.Context, reason string) error {
	var body interface{}
	if reason != "" {
		body = map[string]string{"reason": reason}
	}
	err := c.mutate(ctx, http.MethodPost, "/auth/logout", body, nil)
	c.ClearCookies()
	return err
}

func (c *Client) CheckSession(ctx context.Context) (*auth.SessionStatus, error) {
	var out auth.SessionStatus
	if err := c.do(ctx, http.MethodGet, "/auth/session", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Heartbeat(ctx context.Context) error {
	return c.mutate(ctx, http.MethodPost, "/auth/session/heartbeat", nil, nil)
}

func (c *Client) Me(ctx context.Context) (*auth.Profile, error) {
	var out auth.Profile
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearCookies forgets the auth and CSRF cookies.
func (c *Client) ClearCookies() {
	jar, _ := cookiejar.New(nil)
	c.http.SetCookieJar(jar)
	c.mu.Lock()
	c.csrf = ""
	c.mu.Unlock()
}

func (c *Client) csrfToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.csrf
	c.mu.Unlock()
	if token != "" {
		return token, nil
	}
	return c.FetchCSRF(ctx)
}

// mutate sends a CSRF-protected request, refreshing the token once when
// the server rejects it.
func (c *Client) mutate(ctx context.Context, method, path string, body, out interface{}) error {
	for attempt := 0; ; attempt++ {
		token, err := c.csrfToken(ctx)
		if err != nil {
			return err
		}
		err = c.do(ctx, method, path, body, out, withHeader(csrfHeader, token))
		if attempt == 0 && ErrorCode(err) == "CSRF_INVALID" {
			c.mu.Lock()
			c.csrf = ""
			c.mu.Unlock()
			continue
		}
		return err
	}
}

type requestOption func(*resty.Request)

func withHeader(key, value string) requestOption {
	return func(r *resty.Request) { r.SetHeader(key, value) }
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, opts ...requestOption) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return &APIError{StatusCode: resp.StatusCode(), Message: strings.TrimSpace(resp.Status())}
	}
	if resp.IsError() || !env.Success {
		apiErr := env.Error
		if apiErr == nil {
			apiErr = &APIError{Message: strings.TrimSpace(resp.Status())}
		}
		apiErr.StatusCode = resp.StatusCode()
		return apiErr
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return nil
}
