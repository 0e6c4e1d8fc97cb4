package auth

import (
	"time"

	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/internal/core/role"
	"github.com/frahmantamala/ward-census/internal/user"
)

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

// Profile is the non-sensitive view of the signed-in user. It is also the
// payload of the readable profile cookie.
type Profile struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      role.Role `json:"role"`
	Wards     []string  `json:"wards"`
}

func ProfileFromUser(u *user.User) Profile {
	return Profile{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		Wards:     u.Wards,
	}
}

func (p Profile) Principal(sessionID string) *internal.Principal {
	return &internal.Principal{
		UserID:    p.ID,
		Username:  p.Username,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Role:      p.Role,
		Wards:     p.Wards,
		SessionID: sessionID,
	}
}

type LoginResult struct {
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	SessionID string    `json:"session_id"`
	User      Profile   `json:"user"`
}

// SessionStatus answers the session check endpoint.
type SessionStatus struct {
	Valid     bool      `json:"valid"`
	SessionID string    `json:"session_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	User      *Profile  `json:"user,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

type CSRFResponse struct {
	Token string `json:"csrf_token"`
}
