package user

import (
	"database/sql/driver"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

type User struct {
	ID           int64      `gorm:"primaryKey"`
	Username     string     `gorm:"column:username;uniqueIndex;not null"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	FirstName    string     `gorm:"column:first_name"`
	LastName     string     `gorm:"column:last_name"`
	Role         string     `gorm:"column:role;not null;default:nurse"`
	Wards        WardList   `gorm:"column:wards"`
	IsActive     bool       `gorm:"column:is_active;not null"`
	LastActiveAt *time.Time `gorm:"column:last_active_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string { return "users" }

// WardList is a postgres text[] of ward codes. Other dialects keep the same
// array literal in a text column.
type WardList pq.StringArray

func (w WardList) Value() (driver.Value, error) {
	return pq.StringArray(w).Value()
}

func (w *WardList) Scan(src interface{}) error {
	return (*pq.StringArray)(w).Scan(src)
}

func (WardList) GormDataType() string { return "text" }

func (WardList) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}
