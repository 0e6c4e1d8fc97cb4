package postgres

import (
	"context"
	"errors"

	wardformDatamodel "github.com/frahmantamala/ward-census/internal/core/datamodel/wardform"
	"github.com/frahmantamala/ward-census/internal/wardform"
	"gorm.io/gorm"
)

type WardFormRepository struct {
	db *gorm.DB
}

func NewWardFormRepository(db *gorm.DB) *WardFormRepository {
	return &WardFormRepository{db: db}
}

func (r *WardFormRepository) GetByID(ctx context.Context, id int64) (*wardform.WardForm, error) {
	var m wardformDatamodel.WardForm
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, wardform.ErrNotFound
		}
		return nil, err
	}
	return wardform.FromDataModel(&m), nil
}

func (r *WardFormRepository) GetBySlot(ctx context.Context, wardID, formDate string, shift wardform.Shift) (*wardform.WardForm, error) {
	var m wardformDatamodel.WardForm
	err := r.db.WithContext(ctx).
		Where("ward_id = ? AND form_date = ? AND shift = ?", wardID, formDate, string(shift)).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, wardform.ErrNotFound
		}
		return nil, err
	}
	return wardform.FromDataModel(&m), nil
}

func (r *WardFormRepository) Create(ctx context.Context, f *wardform.WardForm) error {
	m := wardform.ToDataModel(f)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	f.ID = m.ID
	f.CreatedAt = m.CreatedAt
	f.UpdatedAt = m.UpdatedAt
	return nil
}

// Update writes every column except the slot and author.
func (r *WardFormRepository) Update(ctx context.Context, f *wardform.WardForm) error {
	m := wardform.ToDataModel(f)
	res := r.db.WithContext(ctx).Model(m).
		Select("*").
		Omit("id", "ward_id", "form_date", "shift", "created_by", "created_at").
		Updates(m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return wardform.ErrNotFound
	}
	f.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *WardFormRepository) List(ctx context.Context, f wardform.ListFilter) ([]*wardform.WardForm, error) {
	if f.WardIDs != nil && len(f.WardIDs) == 0 {
		return []*wardform.WardForm{}, nil
	}

	q := r.db.WithContext(ctx).Model(&wardformDatamodel.WardForm{})
	if len(f.WardIDs) > 0 {
		q = q.Where("ward_id IN ?", f.WardIDs)
	}
	if f.FormDate != "" {
		q = q.Where("form_date = ?", f.FormDate)
	}
	if f.DateFrom != "" {
		q = q.Where("form_date >= ?", f.DateFrom)
	}
	if f.DateTo != "" {
		q = q.Where("form_date <= ?", f.DateTo)
	}
	if f.Shift != "" {
		q = q.Where("shift = ?", string(f.Shift))
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ApprovalStatus != "" {
		q = q.Where("approval_status = ?", f.ApprovalStatus)
	}
	if f.CreatedBy != 0 {
		q = q.Where("created_by = ?", f.CreatedBy)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var rows []wardformDatamodel.WardForm
	if err := q.Order("form_date DESC, shift ASC, ward_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*wardform.WardForm, 0, len(rows))
	for i := range rows {
		out = append(out, wardform.FromDataModel(&rows[i]))
	}
	return out, nil
}
