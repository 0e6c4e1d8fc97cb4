package auditlog

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx/types"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event types written by the application.
const (
	TypeLogin       = "auth.login"
	TypeLoginFailed = "auth.login_failed"
	TypeLogout      = "auth.logout"
	TypeForced      = "auth.forced_logout"
	TypeAppError    = "app.error"
	TypeLogCleanup  = "admin.log_cleanup"
)

type Entry struct {
	ID        int64          `db:"id" json:"id"`
	Level     Level          `db:"level" json:"level"`
	Type      string         `db:"type" json:"type"`
	UserID    *int64         `db:"user_id" json:"user_id,omitempty"`
	Username  string         `db:"username" json:"username,omitempty"`
	Message   string         `db:"message" json:"message"`
	Details   types.JSONText `db:"details" json:"details,omitempty"`
	IPAddress string         `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent string         `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

type Filter struct {
	Level  Level
	Type   string
	UserID *int64
	Since  *time.Time
	Limit  int
	Offset int
}

type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int64   `json:"total"`
}

type RepositoryAPI interface {
	Insert(ctx context.Context, e *Entry) error
	List(ctx context.Context, f Filter) ([]Entry, error)
	Count(ctx context.Context, f Filter) (int64, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
