package postgres

import (
	"context"
	"errors"

	wardDatamodel "github.com/frahmantamala/ward-census/internal/core/datamodel/ward"
	"github.com/frahmantamala/ward-census/internal/ward"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WardRepository struct {
	db *gorm.DB
}

func NewWardRepository(db *gorm.DB) *WardRepository {
	return &WardRepository{db: db}
}

func (r *WardRepository) ListActive(ctx context.Context) ([]*ward.Ward, error) {
	var rows []wardDatamodel.Ward
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("sort_order ASC, name ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]*ward.Ward, 0, len(rows))
	for i := range rows {
		out = append(out, ward.FromDataModel(&rows[i]))
	}
	return out, nil
}

func (r *WardRepository) GetByID(ctx context.Context, id string) (*ward.Ward, error) {
	var row wardDatamodel.Ward
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ward.ErrNotFound
		}
		return nil, err
	}
	return ward.FromDataModel(&row), nil
}

func (r *WardRepository) Upsert(ctx context.Context, w *ward.Ward) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "bed_capacity", "sort_order", "is_active", "updated_at"}),
	}).Create(ward.ToDataModel(w)).Error
}
