package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Manager enforces one active session per user. The most recent
// CreateSession always wins; older sessions learn about it through
// Heartbeat or Validate.
type Manager struct {
	repo        Repository
	idleTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

func NewManager(repo Repository, idleTimeout time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		repo:        repo,
		idleTimeout: idleTimeout,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func (m *Manager) CreateSession(ctx context.Context, userID int64, device DeviceInfo) (string, error) {
	now := m.now().UTC()
	s := &Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		Device:       device,
		IsActive:     true,
		CreatedAt:    now,
		LastActiveAt: now,
	}

	if err := m.repo.Activate(ctx, s); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	m.logger.Info("session created", "user_id", userID, "session_id", s.ID, "ip", device.IPAddress)
	return s.ID, nil
}

// Heartbeat refreshes the session's activity timestamp. A heartbeat for a
// session that is no longer current returns ErrSessionSuperseded or
// ErrSessionExpired and writes nothing.
func (m *Manager) Heartbeat(ctx context.Context, userID int64, sessionID string) error {
	if err := m.Validate(ctx, userID, sessionID); err != nil {
		return err
	}

	touched, err := m.repo.Touch(ctx, userID, sessionID, m.now().UTC())
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	if !touched {
		// lost a race with a newer login between the read and the write
		return m.classifyStale(ctx, userID)
	}
	return nil
}

// EndSession clears the current pointer only if it still names sessionID,
// so ending a superseded session never affects its replacement.
func (m *Manager) EndSession(ctx context.Context, userID int64, sessionID string, reason EndReason) error {
	if !reason.Valid() {
		reason = ReasonLogout
	}
	now := m.now().UTC()

	cleared, err := m.repo.ClearCurrent(ctx, userID, sessionID)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	if err := m.repo.EndRecord(ctx, sessionID, reason, now); err != nil && !errors.Is(err, ErrNotFound) {
		m.logger.Warn("failed to close session record", "session_id", sessionID, "error", err)
	}

	m.logger.Info("session ended", "user_id", userID, "session_id", sessionID, "reason", reason, "was_current", cleared)
	return nil
}

// EndAllForUser drops whatever session the user holds.
func (m *Manager) EndAllForUser(ctx context.Context, userID int64, reason EndReason) error {
	if err := m.repo.ClearAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("end sessions for user %d: %w", userID, err)
	}
	if err := m.repo.EndActiveRecords(ctx, userID, reason, m.now().UTC()); err != nil {
		return fmt.Errorf("close session records for user %d: %w", userID, err)
	}
	m.logger.Info("all sessions ended", "user_id", userID, "reason", reason)
	return nil
}

// CurrentSessionID returns "" when the user holds no session.
func (m *Manager) CurrentSessionID(ctx context.Context, userID int64) (string, error) {
	cur, err := m.repo.GetCurrent(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if m.isIdle(cur) {
		return "", nil
	}
	return cur.SessionID, nil
}

// Validate reports whether sessionID is the user's live current session.
func (m *Manager) Validate(ctx context.Context, userID int64, sessionID string) error {
	cur, err := m.repo.GetCurrent(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return ErrSessionExpired
	}
	if err != nil {
		return fmt.Errorf("validate session: %w", err)
	}
	if cur.SessionID != sessionID {
		return ErrSessionSuperseded
	}
	if m.isIdle(cur) {
		return ErrSessionExpired
	}
	return nil
}

// CleanupExpired ends every session idle for longer than the idle timeout.
func (m *Manager) CleanupExpired(ctx context.Context) (int64, error) {
	if m.idleTimeout <= 0 {
		return 0, nil
	}

	idle, err := m.repo.ListIdle(ctx, m.now().UTC().Add(-m.idleTimeout))
	if err != nil {
		return 0, fmt.Errorf("list idle sessions: %w", err)
	}

	var ended int64
	for _, cur := range idle {
		if err := m.EndSession(ctx, cur.UserID, cur.SessionID, ReasonExpired); err != nil {
			m.logger.Error("failed to expire session", "session_id", cur.SessionID, "error", err)
			continue
		}
		ended++
	}
	return ended, nil
}

func (m *Manager) History(ctx context.Context, userID int64, limit int) ([]Session, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return m.repo.ListForUser(ctx, userID, limit)
}

func (m *Manager) isIdle(cur *Current) bool {
	if m.idleTimeout <= 0 {
		return false
	}
	return m.now().UTC().Sub(cur.LastActiveAt) > m.idleTimeout
}

func (m *Manager) classifyStale(ctx context.Context, userID int64) error {
	cur, err := m.repo.GetCurrent(ctx, userID)
	if err != nil || cur == nil {
		return ErrSessionExpired
	}
	return ErrSessionSuperseded
}
