package session

import "time"

// Record is one login's history row. Rows are never deleted by the
// session lifecycle, only flagged inactive with a reason.
type Record struct {
	ID           string     `gorm:"column:id;primaryKey;type:varchar(36)"`
	UserID       int64      `gorm:"column:user_id;index;not null"`
	UserAgent    string     `gorm:"column:user_agent"`
	IPAddress    string     `gorm:"column:ip_address"`
	DeviceLabel  string     `gorm:"column:device_label"`
	IsActive     bool       `gorm:"column:is_active;not null"`
	EndReason    string     `gorm:"column:end_reason"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null"`
	LastActiveAt time.Time  `gorm:"column:last_active_at;not null"`
	EndedAt      *time.Time `gorm:"column:ended_at"`
}

func (Record) TableName() string { return "sessions" }

// Current points at the one session a user may hold.
type Current struct {
	UserID       int64     `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	SessionID    string    `gorm:"column:session_id;type:varchar(36);not null"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
	LastActiveAt time.Time `gorm:"column:last_active_at;not null"`
}

func (Current) TableName() string { return "active_sessions" }
