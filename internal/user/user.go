package user

import (
	"errors"
	"time"

	userDatamodel "github.com/frahmantamala/ward-census/internal/core/datamodel/user"
	"github.com/frahmantamala/ward-census/internal/core/role"
)

type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"` // Never expose password hash
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Role         role.Role  `json:"role"`
	Wards        []string   `json:"wards"`
	IsActive     bool       `json:"is_active"`
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	}
	return u.Username
}

func (u *User) CanAccessWard(wardID string) bool {
	if u.Role.AllWards() {
		return true
	}
	for _, w := range u.Wards {
		if w == wardID {
			return true
		}
	}
	return false
}

// Filter narrows ListUsers.
type Filter struct {
	Role   role.Role
	Active *bool
	WardID string
	Search string
	Limit  int
	Offset int
}

var (
	ErrNotFound      = errors.New("user not found")
	ErrDuplicateName = errors.New("username already exists")
)

func ToDataModel(u *User) *userDatamodel.User {
	return &userDatamodel.User{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Role:         string(u.Role),
		Wards:        userDatamodel.WardList(u.Wards),
		IsActive:     u.IsActive,
		LastActiveAt: u.LastActiveAt,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func FromDataModel(u *userDatamodel.User) *User {
	wards := []string(u.Wards)
	if wards == nil {
		wards = []string{}
	}
	return &User{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Role:         role.Role(u.Role),
		Wards:        wards,
		IsActive:     u.IsActive,
		LastActiveAt: u.LastActiveAt,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
