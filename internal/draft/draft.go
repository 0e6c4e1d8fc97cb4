package draft

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	draftDatamodel "github.com/frahmantamala/ward-census/internal/core/datamodel/draft"
	"gorm.io/datatypes"
)

// DefaultTTL is how long an untouched draft survives.
const DefaultTTL = 7 * 24 * time.Hour

var ErrNotFound = errors.New("draft not found")

// Key scopes a draft to one user editing one ward form slot.
type Key struct {
	UserID   int64  `json:"user_id"`
	WardID   string `json:"ward_id"`
	Shift    string `json:"shift"`
	FormDate string `json:"form_date"`
}

type Draft struct {
	Key
	Payload   json.RawMessage `json:"payload"`
	ExpiresAt time.Time       `json:"expires_at"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (d *Draft) Expired(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}

// Decode unmarshals the payload into v.
func (d *Draft) Decode(v interface{}) error {
	return json.Unmarshal(d.Payload, v)
}

type Repository interface {
	// Upsert replaces any draft stored under the same key.
	Upsert(ctx context.Context, d *Draft) error
	Get(ctx context.Context, key Key) (*Draft, error)
	Delete(ctx context.Context, key Key) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	ListForUser(ctx context.Context, userID int64, now time.Time) ([]Draft, error)
}

func ToDataModel(d *Draft) *draftDatamodel.Draft {
	return &draftDatamodel.Draft{
		UserID:    d.UserID,
		WardID:    d.WardID,
		Shift:     d.Shift,
		FormDate:  d.FormDate,
		Payload:   datatypes.JSON(d.Payload),
		ExpiresAt: d.ExpiresAt,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func FromDataModel(m *draftDatamodel.Draft) *Draft {
	return &Draft{
		Key: Key{
			UserID:   m.UserID,
			WardID:   m.WardID,
			Shift:    m.Shift,
			FormDate: m.FormDate,
		},
		Payload:   json.RawMessage(m.Payload),
		ExpiresAt: m.ExpiresAt,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
