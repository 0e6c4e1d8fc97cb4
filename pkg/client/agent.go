package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/frahmantamala/ward-census/internal/auth"
	"github.com/frahmantamala/ward-census/internal/session"
)

type Status string

const (
	StatusLoading         Status = "loading"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
)

// Reasons reported to OnForcedLogout hooks.
const (
	ReasonSuperseded  = "SESSION_SUPERSEDED"
	ReasonExpired     = "SESSION_EXPIRED"
	ReasonDeactivated = "ACCOUNT_DEACTIVATED"
)

// ForcedLogoutError is what Err returns after the server ended the session.
type ForcedLogoutError struct {
	Reason string
}

func (e *ForcedLogoutError) Error() string {
	return "signed out: " + e.Reason
}

type AgentConfig struct {
	HeartbeatInterval time.Duration
	MonitorInterval   time.Duration
	Logger            *slog.Logger
}

// Agent holds one signed-in user for a long-lived Go process. While signed
// in it beats the server session and watches the session check; when the
// server reports the session replaced, expired or the account deactivated
// it signs out locally and runs the OnForcedLogout hooks once.
type Agent struct {
	client *Client
	cfg    AgentConfig
	logger *slog.Logger

	mu        sync.Mutex
	status    Status
	user      *auth.Profile
	sessionID string
	err       error
	// bumped on every login and logout so stale watchers cannot sign out
	// a newer session
	generation int
	stop       context.CancelFunc
	heartbeat  *session.Heartbeat
	monitor    *session.Monitor
	reason     string
	hooks      []func(reason string)
}

func NewAgent(c *Client, cfg AgentConfig) *Agent {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Agent{client: c, cfg: cfg, logger: cfg.Logger, status: StatusUnauthenticated}
}

func (a *Agent) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// User returns a copy of the signed-in profile, nil when signed out.
func (a *Agent) User() *auth.Profile {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.user == nil {
		return nil
	}
	u := *a.user
	return &u
}

func (a *Agent) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

func (a *Agent) OnForcedLogout(hook func(reason string)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hooks = append(a.hooks, hook)
}

func (a *Agent) Login(ctx context.Context, username, password string) (*auth.Profile, error) {
	a.mu.Lock()
	a.stopWatchersLocked()
	a.generation++
	a.status = StatusLoading
	a.user = nil
	a.sessionID = ""
	a.err = nil
	a.mu.Unlock()

	res, err := a.client.Login(ctx, username, password)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.status = StatusUnauthenticated
		a.err = err
		return nil, err
	}

	a.generation++
	gen := a.generation
	profile := res.User
	a.user = &profile
	a.sessionID = res.SessionID
	a.status = StatusAuthenticated
	a.reason = ""

	watchCtx, cancel := context.WithCancel(context.Background())
	a.stop = cancel
	a.heartbeat = session.NewHeartbeat(session.BeaterFunc(a.beat), a.cfg.HeartbeatInterval, a.logger)
	a.monitor = session.NewMonitor(session.SourceFunc(a.currentSession), a.cfg.MonitorInterval, a.logger)

	if err := a.heartbeat.Start(watchCtx, profile.ID, res.SessionID, func(err error) {
		a.forceLogout(gen, reasonFor(err))
	}); err != nil {
		a.logger.Error("failed to start heartbeat", "error", err)
	}
	if err := a.monitor.Start(watchCtx, profile.ID, res.SessionID, func() {
		a.forceLogout(gen, a.takeReason())
	}); err != nil {
		a.logger.Error("failed to start session monitor", "error", err)
	}

	u := profile
	return &u, nil
}

// Logout stops watching first so the server-side end is not mistaken for
// a forced sign-out.
func (a *Agent) Logout(ctx context.Context) error {
	return a.end(ctx, string(session.ReasonLogout))
}

// Close ends the session the way closing the last browser tab does.
func (a *Agent) Close(ctx context.Context) error {
	return a.end(ctx, string(session.ReasonTabClosed))
}

func (a *Agent) end(ctx context.Context, reason string) error {
	a.mu.Lock()
	a.stopWatchersLocked()
	a.generation++
	wasSignedIn := a.status == StatusAuthenticated
	a.status = StatusUnauthenticated
	a.user = nil
	a.sessionID = ""
	a.err = nil
	a.mu.Unlock()

	if !wasSignedIn {
		a.client.ClearCookies()
		return nil
	}
	return a.client.Logout(ctx, reason)
}

func (a *Agent) stopWatchersLocked() {
	if a.monitor != nil {
		a.monitor.Stop()
	}
	if a.heartbeat != nil {
		a.heartbeat.Stop()
	}
	if a.stop != nil {
		a.stop()
	}
	a.monitor, a.heartbeat, a.stop = nil, nil, nil
}

func (a *Agent) forceLogout(gen int, reason string) {
	a.mu.Lock()
	if gen != a.generation || a.status != StatusAuthenticated {
		a.mu.Unlock()
		return
	}
	a.stopWatchersLocked()
	a.generation++
	a.status = StatusUnauthenticated
	a.user = nil
	a.sessionID = ""
	a.err = &ForcedLogoutError{Reason: reason}
	hooks := append([]func(string){}, a.hooks...)
	a.mu.Unlock()

	a.client.ClearCookies()
	a.logger.Warn("signed out by server", "reason", reason)
	for _, h := range hooks {
		h(reason)
	}
}

func (a *Agent) setReason(reason string) {
	a.mu.Lock()
	a.reason = reason
	a.mu.Unlock()
}

func (a *Agent) takeReason() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.reason == "" {
		return ReasonSuperseded
	}
	return a.reason
}

func (a *Agent) heldSession() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionID
}

func (a *Agent) beat(ctx context.Context, _ int64, _ string) error {
	err := a.client.Heartbeat(ctx)
	if err == nil {
		return nil
	}
	switch code := ErrorCode(err); {
	case code == ReasonSuperseded:
		return fmt.Errorf("%w: %w", session.ErrSessionSuperseded, err)
	case terminalCode(code):
		return fmt.Errorf("%w: %w", session.ErrSessionExpired, err)
	}
	return err
}

// currentSession is the monitor's source. A session the server no longer
// accepts reads as "" so the monitor fires.
func (a *Agent) currentSession(ctx context.Context, _ int64) (string, error) {
	status, err := a.client.CheckSession(ctx)
	if err != nil {
		if code := ErrorCode(err); terminalCode(code) {
			a.setReason(normalizeReason(code))
			return "", nil
		}
		return "", err
	}
	if status.Valid {
		return status.SessionID, nil
	}
	a.setReason(normalizeReason(status.Reason))
	if status.SessionID == a.heldSession() {
		return "", nil
	}
	return status.SessionID, nil
}

func terminalCode(code string) bool {
	switch code {
	case ReasonSuperseded, ReasonExpired, ReasonDeactivated,
		"USER_INACTIVE", "TOKEN_EXPIRED", "INVALID_TOKEN", "MISSING_TOKEN":
		return true
	}
	return false
}

func normalizeReason(code string) string {
	switch code {
	case "":
		return ReasonSuperseded
	case "USER_INACTIVE":
		return ReasonDeactivated
	case "TOKEN_EXPIRED", "INVALID_TOKEN", "MISSING_TOKEN":
		return ReasonExpired
	}
	return code
}

func reasonFor(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusForbidden && apiErr.Code != ReasonSuperseded {
			return ReasonDeactivated
		}
		return normalizeReason(apiErr.Code)
	}
	if errors.Is(err, session.ErrSessionSuperseded) {
		return ReasonSuperseded
	}
	return ReasonExpired
}
