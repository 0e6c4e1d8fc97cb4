package postgres

import (
	"context"
	"errors"
	"strings"

	userDatamodel "github.com/frahmantamala/ward-census/internal/core/datamodel/user"
	"github.com/frahmantamala/ward-census/internal/core/role"
	"github.com/frahmantamala/ward-census/internal/user"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	var u userDatamodel.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrNotFound
		}
		return nil, err
	}
	return user.FromDataModel(&u), nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).Where("LOWER(username) = LOWER(?)", username).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrNotFound
		}
		return nil, err
	}
	return user.FromDataModel(&u), nil
}

func (r *UserRepository) List(ctx context.Context, f user.Filter) ([]*user.User, int64, error) {
	q := r.db.WithContext(ctx).Model(&userDatamodel.User{})
	if f.Role != "" {
		q = q.Where("role = ?", string(f.Role))
	}
	if f.Active != nil {
		q = q.Where("is_active = ?", *f.Active)
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("LOWER(username) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", like, like, like)
	}

	var rows []userDatamodel.User
	if err := q.Order("username ASC").Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	// ward membership is filtered here so the query stays portable across
	// postgres arrays and the sqlite text encoding used in tests
	out := make([]*user.User, 0, len(rows))
	for i := range rows {
		u := user.FromDataModel(&rows[i])
		if f.WardID != "" && !u.CanAccessWard(f.WardID) {
			continue
		}
		out = append(out, u)
	}

	total := int64(len(out))
	if f.Offset >= len(out) {
		return []*user.User{}, total, nil
	}
	end := f.Offset + f.Limit
	if f.Limit <= 0 || end > len(out) {
		end = len(out)
	}
	return out[f.Offset:end], total, nil
}

func (r *UserRepository) ListByWardAndRoles(ctx context.Context, wardID string, roles []role.Role) ([]*user.User, error) {
	names := make([]string, len(roles))
	for i, rl := range roles {
		names[i] = string(rl)
	}

	var rows []userDatamodel.User
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND role IN ?", true, names).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]*user.User, 0, len(rows))
	for i := range rows {
		u := user.FromDataModel(&rows[i])
		if u.CanAccessWard(wardID) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("LOWER(username) = LOWER(?)", u.Username).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return user.ErrDuplicateName
	}

	m := user.ToDataModel(u)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return user.ErrDuplicateName
		}
		return err
	}
	u.ID = m.ID
	u.CreatedAt = m.CreatedAt
	u.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	m := user.ToDataModel(u)
	return r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("id = ?", u.ID).
		Select("first_name", "last_name", "role", "wards", "is_active", "updated_at").
		Updates(m).Error
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("id = ?", id).
		Update("password_hash", hash).Error
}

func (r *UserRepository) TouchLastActive(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("id = ?", id).
		Update("last_active_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}
