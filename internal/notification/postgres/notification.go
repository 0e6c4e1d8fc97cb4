package postgres

import (
	"context"
	"time"

	notificationDatamodel "github.com/frahmantamala/ward-census/internal/core/datamodel/notification"
	"github.com/frahmantamala/ward-census/internal/notification"
	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m := notification.ToDataModel(n)
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		recipients := make([]notificationDatamodel.Recipient, 0, len(n.Recipients))
		for _, userID := range n.Recipients {
			recipients = append(recipients, notificationDatamodel.Recipient{NotificationID: m.ID, UserID: userID})
		}
		if len(recipients) > 0 {
			if err := tx.Create(&recipients).Error; err != nil {
				return err
			}
		}
		n.ID = m.ID
		return nil
	})
}

type inboxRow struct {
	notificationDatamodel.Notification
	IsRead bool       `gorm:"column:is_read"`
	ReadAt *time.Time `gorm:"column:read_at"`
}

func (r *NotificationRepository) inbox(ctx context.Context, userID int64, unreadOnly bool) *gorm.DB {
	q := r.db.WithContext(ctx).
		Table("notifications AS n").
		Joins("JOIN notification_recipients AS nr ON nr.notification_id = n.id").
		Where("nr.user_id = ?", userID)
	if unreadOnly {
		q = q.Where("nr.is_read = ?", false)
	}
	return q
}

func (r *NotificationRepository) ListForUser(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]*notification.Notification, int64, error) {
	var total int64
	if err := r.inbox(ctx, userID, unreadOnly).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []inboxRow
	err := r.inbox(ctx, userID, unreadOnly).
		Select("n.*, nr.is_read, nr.read_at").
		Order("n.created_at DESC, n.id DESC").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	out := make([]*notification.Notification, 0, len(rows))
	for i := range rows {
		n := notification.FromDataModel(&rows[i].Notification)
		n.IsRead = rows[i].IsRead
		n.ReadAt = rows[i].ReadAt
		out = append(out, n)
	}
	return out, total, nil
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&notificationDatamodel.Recipient{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	return n, err
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID int64, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&notificationDatamodel.Recipient{}).
		Where("notification_id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"is_read": true, "read_at": gorm.Expr("COALESCE(read_at, ?)", at)})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notification.ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int64, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&notificationDatamodel.Recipient{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

func (r *NotificationRepository) RemoveRecipient(ctx context.Context, ids []int64, userID int64) (int64, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("notification_id IN ? AND user_id = ?", ids, userID).
			Delete(&notificationDatamodel.Recipient{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		return tx.Where("id IN ? AND NOT EXISTS (SELECT 1 FROM notification_recipients WHERE notification_id = notifications.id)", ids).
			Delete(&notificationDatamodel.Notification{}).Error
	})
	return removed, err
}

func (r *NotificationRepository) Delete(ctx context.Context, ids []int64) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("notification_id IN ?", ids).Delete(&notificationDatamodel.Recipient{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&notificationDatamodel.Notification{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}

func (r *NotificationRepository) DeleteByType(ctx context.Context, t notification.Type) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub := tx.Model(&notificationDatamodel.Notification{}).Select("id").Where("type = ?", string(t))
		if err := tx.Where("notification_id IN (?)", sub).Delete(&notificationDatamodel.Recipient{}).Error; err != nil {
			return err
		}
		res := tx.Where("type = ?", string(t)).Delete(&notificationDatamodel.Notification{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}
