package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sessionDatamodel "github.com/frahmantamala/ward-census/internal/core/datamodel/session"
	"github.com/frahmantamala/ward-census/internal/session"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Activate(ctx context.Context, s *session.Session) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(session.ToDataModel(s)).Error; err != nil {
			return fmt.Errorf("insert session record: %w", err)
		}

		current := &sessionDatamodel.Current{
			UserID:       s.UserID,
			SessionID:    s.ID,
			CreatedAt:    s.CreatedAt,
			LastActiveAt: s.LastActiveAt,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"session_id", "created_at", "last_active_at"}),
		}).Create(current).Error
		if err != nil {
			return fmt.Errorf("upsert current session: %w", err)
		}

		// compare against whatever the pointer holds now so concurrent
		// logins settle on the same winner
		currentID := tx.Model(&sessionDatamodel.Current{}).Select("session_id").Where("user_id = ?", s.UserID)
		err = tx.Model(&sessionDatamodel.Record{}).
			Where("user_id = ? AND is_active = ? AND id <> (?)", s.UserID, true, currentID).
			Updates(map[string]interface{}{
				"is_active":  false,
				"end_reason": string(session.ReasonSuperseded),
				"ended_at":   s.CreatedAt,
			}).Error
		if err != nil {
			return fmt.Errorf("supersede older sessions: %w", err)
		}
		return nil
	})
}

func (r *SessionRepository) GetCurrent(ctx context.Context, userID int64) (*session.Current, error) {
	var cur sessionDatamodel.Current
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&cur).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, session.ErrNotFound
		}
		return nil, err
	}
	return session.CurrentFromDataModel(&cur), nil
}

func (r *SessionRepository) Touch(ctx context.Context, userID int64, sessionID string, at time.Time) (bool, error) {
	var touched bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&sessionDatamodel.Current{}).
			Where("user_id = ? AND session_id = ?", userID, sessionID).
			Update("last_active_at", at)
		if res.Error != nil {
			return res.Error
		}
		touched = res.RowsAffected > 0
		if !touched {
			return nil
		}
		return tx.Model(&sessionDatamodel.Record{}).
			Where("id = ?", sessionID).
			Update("last_active_at", at).Error
	})
	return touched, err
}

func (r *SessionRepository) ClearCurrent(ctx context.Context, userID int64, sessionID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Delete(&sessionDatamodel.Current{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *SessionRepository) ClearAllForUser(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&sessionDatamodel.Current{}).Error
}

func (r *SessionRepository) EndRecord(ctx context.Context, sessionID string, reason session.EndReason, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&sessionDatamodel.Record{}).
		Where("id = ? AND is_active = ?", sessionID, true).
		Updates(map[string]interface{}{
			"is_active":  false,
			"end_reason": string(reason),
			"ended_at":   at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return session.ErrNotFound
	}
	return nil
}

func (r *SessionRepository) EndActiveRecords(ctx context.Context, userID int64, reason session.EndReason, at time.Time) error {
	return r.db.WithContext(ctx).Model(&sessionDatamodel.Record{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Updates(map[string]interface{}{
			"is_active":  false,
			"end_reason": string(reason),
			"ended_at":   at,
		}).Error
}

func (r *SessionRepository) ListIdle(ctx context.Context, before time.Time) ([]session.Current, error) {
	var rows []sessionDatamodel.Current
	if err := r.db.WithContext(ctx).Where("last_active_at < ?", before).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]session.Current, 0, len(rows))
	for i := range rows {
		out = append(out, *session.CurrentFromDataModel(&rows[i]))
	}
	return out, nil
}

func (r *SessionRepository) GetRecord(ctx context.Context, sessionID string) (*session.Session, error) {
	var rec sessionDatamodel.Record
	if err := r.db.WithContext(ctx).Where("id = ?", sessionID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, session.ErrNotFound
		}
		return nil, err
	}
	return session.FromDataModel(&rec), nil
}

func (r *SessionRepository) ListForUser(ctx context.Context, userID int64, limit int) ([]session.Session, error) {
	var rows []sessionDatamodel.Record
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]session.Session, 0, len(rows))
	for i := range rows {
		out = append(out, *session.FromDataModel(&rows[i]))
	}
	return out, nil
}
