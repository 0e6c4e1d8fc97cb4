package draft

import (
	"time"

	"gorm.io/datatypes"
)

type Draft struct {
	ID        int64          `gorm:"primaryKey"`
	UserID    int64          `gorm:"column:user_id;not null;uniqueIndex:idx_form_drafts_key"`
	WardID    string         `gorm:"column:ward_id;not null;uniqueIndex:idx_form_drafts_key"`
	Shift     string         `gorm:"column:shift;not null;uniqueIndex:idx_form_drafts_key"`
	FormDate  string         `gorm:"column:form_date;type:varchar(10);not null;uniqueIndex:idx_form_drafts_key"`
	Payload   datatypes.JSON `gorm:"column:payload;not null"`
	ExpiresAt time.Time      `gorm:"column:expires_at;index;not null"`
	CreatedAt time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt time.Time      `gorm:"column:updated_at;not null"`
}

func (Draft) TableName() string { return "form_drafts" }
