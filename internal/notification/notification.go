package notification

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/frahmantamala/ward-census/internal"
	notificationDatamodel "github.com/frahmantamala/ward-census/internal/core/datamodel/notification"
	"gorm.io/datatypes"
)

type Type string

const (
	TypeInfo    Type = "info"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
	TypeSuccess Type = "success"
)

func (t Type) Valid() bool {
	switch t {
	case TypeInfo, TypeWarning, TypeError, TypeSuccess:
		return true
	}
	return false
}

// Notification is a message as seen by one recipient. IsRead and ReadAt are
// that recipient's state and are zero on freshly created values.
type Notification struct {
	ID        int64           `json:"id"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Type      Type            `json:"type"`
	Link      string          `json:"link,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedBy *int64          `json:"created_by,omitempty"`
	CreatedAt time.Time       `json:"created_at"`

	Recipients []int64    `json:"recipients,omitempty"`
	IsRead     bool       `json:"is_read"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
}

var (
	ErrNotFound = errors.New("notification not found")

	ErrNotificationNotFound = internal.NewNotFoundError("Notification not found", internal.ErrCodeNotificationMissing)
)

type Repository interface {
	Create(ctx context.Context, n *Notification) error
	ListForUser(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]*Notification, int64, error)
	UnreadCount(ctx context.Context, userID int64) (int64, error)
	MarkRead(ctx context.Context, id, userID int64, at time.Time) error
	MarkAllRead(ctx context.Context, userID int64, at time.Time) (int64, error)
	// RemoveRecipient drops userID from the listed notifications; a
	// notification left with no recipients is deleted.
	RemoveRecipient(ctx context.Context, ids []int64, userID int64) (int64, error)
	Delete(ctx context.Context, ids []int64) (int64, error)
	DeleteByType(ctx context.Context, t Type) (int64, error)
}

func ToDataModel(n *Notification) *notificationDatamodel.Notification {
	return &notificationDatamodel.Notification{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      string(n.Type),
		Link:      n.Link,
		Metadata:  datatypes.JSON(n.Metadata),
		CreatedBy: n.CreatedBy,
		CreatedAt: n.CreatedAt,
	}
}

func FromDataModel(m *notificationDatamodel.Notification) *Notification {
	return &Notification{
		ID:        m.ID,
		Title:     m.Title,
		Message:   m.Message,
		Type:      Type(m.Type),
		Link:      m.Link,
		Metadata:  json.RawMessage(m.Metadata),
		CreatedBy: m.CreatedBy,
		CreatedAt: m.CreatedAt,
	}
}
