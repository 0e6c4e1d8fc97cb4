package user

import "github.com/frahmantamala/ward-census/internal/core/role"

type CreateUserDTO struct {
	Username  string    `json:"username" validate:"required,min=3,max=64"`
	Password  string    `json:"password" validate:"required,min=8,max=128"`
	FirstName string    `json:"first_name" validate:"max=100"`
	LastName  string    `json:"last_name" validate:"max=100"`
	Role      role.Role `json:"role" validate:"required,oneof=nurse approver admin super_admin developer"`
	Wards     []string  `json:"wards" validate:"dive,required"`
}

// UpdateUserDTO applies only the fields that are set.
type UpdateUserDTO struct {
	FirstName *string    `json:"first_name" validate:"omitempty,max=100"`
	LastName  *string    `json:"last_name" validate:"omitempty,max=100"`
	Role      *role.Role `json:"role" validate:"omitempty,oneof=nurse approver admin super_admin developer"`
	Wards     *[]string  `json:"wards"`
	IsActive  *bool      `json:"is_active"`
}

type ResetPasswordDTO struct {
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type ListUsersResponse struct {
	Users []*User `json:"users"`
	Total int64   `json:"total"`
}
