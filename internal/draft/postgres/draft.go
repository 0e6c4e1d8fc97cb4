package postgres

import (
	"context"
	"errors"
	"time"

	draftDatamodel "github.com/frahmantamala/ward-census/internal/core/datamodel/draft"
	"github.com/frahmantamala/ward-census/internal/draft"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DraftRepository struct {
	db *gorm.DB
}

func NewDraftRepository(db *gorm.DB) *DraftRepository {
	return &DraftRepository{db: db}
}

func (r *DraftRepository) keyed(ctx context.Context, k draft.Key) *gorm.DB {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND ward_id = ? AND shift = ? AND form_date = ?", k.UserID, k.WardID, k.Shift, k.FormDate)
}

func (r *DraftRepository) Upsert(ctx context.Context, d *draft.Draft) error {
	m := draft.ToDataModel(d)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "ward_id"}, {Name: "shift"}, {Name: "form_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "expires_at", "updated_at"}),
	}).Create(m).Error
}

func (r *DraftRepository) Get(ctx context.Context, k draft.Key) (*draft.Draft, error) {
	var m draftDatamodel.Draft
	if err := r.keyed(ctx, k).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, draft.ErrNotFound
		}
		return nil, err
	}
	return draft.FromDataModel(&m), nil
}

func (r *DraftRepository) Delete(ctx context.Context, k draft.Key) (bool, error) {
	res := r.keyed(ctx, k).Delete(&draftDatamodel.Draft{})
	return res.RowsAffected > 0, res.Error
}

func (r *DraftRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&draftDatamodel.Draft{})
	return res.RowsAffected, res.Error
}

func (r *DraftRepository) ListForUser(ctx context.Context, userID int64, now time.Time) ([]draft.Draft, error) {
	var rows []draftDatamodel.Draft
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND expires_at > ?", userID, now).
		Order("updated_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]draft.Draft, 0, len(rows))
	for i := range rows {
		out = append(out, *draft.FromDataModel(&rows[i]))
	}
	return out, nil
}
