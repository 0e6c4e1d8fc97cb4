package session

import (
	"context"
	"errors"
	"time"

	sessionDatamodel "github.com/frahmantamala/ward-census/internal/core/datamodel/session"
)

type EndReason string

const (
	ReasonLogout      EndReason = "logout"
	ReasonTabClosed   EndReason = "tab_closed"
	ReasonSuperseded  EndReason = "superseded"
	ReasonExpired     EndReason = "expired"
	ReasonDeactivated EndReason = "deactivated"
	// ReasonPasswordReset ends every session after an admin sets a new password.
	ReasonPasswordReset EndReason = "password_reset"
)

func (r EndReason) Valid() bool {
	switch r {
	case ReasonLogout, ReasonTabClosed, ReasonSuperseded, ReasonExpired, ReasonDeactivated, ReasonPasswordReset:
		return true
	}
	return false
}

var (
	// ErrSessionSuperseded means another login replaced the session.
	ErrSessionSuperseded = errors.New("session superseded by a newer login")
	// ErrSessionExpired means the session is gone without a replacement,
	// either ended or idle past the timeout.
	ErrSessionExpired = errors.New("session expired")
	ErrNotFound       = errors.New("session not found")
)

// DeviceInfo describes the client that opened a session.
type DeviceInfo struct {
	UserAgent string `json:"user_agent"`
	IPAddress string `json:"ip_address"`
	Label     string `json:"label,omitempty"`
}

type Session struct {
	ID           string     `json:"id"`
	UserID       int64      `json:"user_id"`
	Device       DeviceInfo `json:"device"`
	IsActive     bool       `json:"is_active"`
	EndReason    EndReason  `json:"end_reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActiveAt time.Time  `json:"last_active_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// Current is the user's single current-session pointer.
type Current struct {
	UserID       int64
	SessionID    string
	CreatedAt    time.Time
	LastActiveAt time.Time
}

// Repository persists session records and the current-session pointer.
type Repository interface {
	// Activate stores rec, points the user's current session at it
	// unconditionally and flags the user's other records as superseded.
	Activate(ctx context.Context, rec *Session) error
	GetCurrent(ctx context.Context, userID int64) (*Current, error)
	Touch(ctx context.Context, userID int64, sessionID string, at time.Time) (bool, error)
	ClearCurrent(ctx context.Context, userID int64, sessionID string) (bool, error)
	ClearAllForUser(ctx context.Context, userID int64) error
	EndRecord(ctx context.Context, sessionID string, reason EndReason, at time.Time) error
	EndActiveRecords(ctx context.Context, userID int64, reason EndReason, at time.Time) error
	ListIdle(ctx context.Context, before time.Time) ([]Current, error)
	GetRecord(ctx context.Context, sessionID string) (*Session, error)
	ListForUser(ctx context.Context, userID int64, limit int) ([]Session, error)
}

func ToDataModel(s *Session) *sessionDatamodel.Record {
	return &sessionDatamodel.Record{
		ID:           s.ID,
		UserID:       s.UserID,
		UserAgent:    s.Device.UserAgent,
		IPAddress:    s.Device.IPAddress,
		DeviceLabel:  s.Device.Label,
		IsActive:     s.IsActive,
		EndReason:    string(s.EndReason),
		CreatedAt:    s.CreatedAt,
		LastActiveAt: s.LastActiveAt,
		EndedAt:      s.EndedAt,
	}
}

func FromDataModel(r *sessionDatamodel.Record) *Session {
	return &Session{
		ID:     r.ID,
		UserID: r.UserID,
		Device: DeviceInfo{
			UserAgent: r.UserAgent,
			IPAddress: r.IPAddress,
			Label:     r.DeviceLabel,
		},
		IsActive:     r.IsActive,
		EndReason:    EndReason(r.EndReason),
		CreatedAt:    r.CreatedAt,
		LastActiveAt: r.LastActiveAt,
		EndedAt:      r.EndedAt,
	}
}

func CurrentFromDataModel(c *sessionDatamodel.Current) *Current {
	return &Current{
		UserID:       c.UserID,
		SessionID:    c.SessionID,
		CreatedAt:    c.CreatedAt,
		LastActiveAt: c.LastActiveAt,
	}
}
