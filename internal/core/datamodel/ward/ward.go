package ward

import "time"

type Ward struct {
	ID          string    `gorm:"column:id;primaryKey;type:varchar(32)"`
	Name        string    `gorm:"column:name;not null"`
	BedCapacity int       `gorm:"column:bed_capacity;not null;default:0"`
	SortOrder   int       `gorm:"column:sort_order;not null;default:0"`
	IsActive    bool      `gorm:"column:is_active;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Ward) TableName() string { return "wards" }
