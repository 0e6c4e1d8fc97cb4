package notification

import (
	"time"

	"gorm.io/datatypes"
)

type Notification struct {
	ID        int64          `gorm:"primaryKey"`
	Title     string         `gorm:"column:title;not null"`
	Message   string         `gorm:"column:message;not null"`
	Type      string         `gorm:"column:type;index;not null;default:info"`
	Link      string         `gorm:"column:link"`
	Metadata  datatypes.JSON `gorm:"column:metadata"`
	CreatedBy *int64         `gorm:"column:created_by"`
	CreatedAt time.Time      `gorm:"column:created_at;not null"`
}

func (Notification) TableName() string { return "notifications" }

// Recipient carries the per-user read state of a notification.
type Recipient struct {
	NotificationID int64      `gorm:"column:notification_id;primaryKey;autoIncrement:false"`
	UserID         int64      `gorm:"column:user_id;primaryKey;autoIncrement:false;index"`
	IsRead         bool       `gorm:"column:is_read;not null;default:false"`
	ReadAt         *time.Time `gorm:"column:read_at"`
}

func (Recipient) TableName() string { return "notification_recipients" }
