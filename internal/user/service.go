package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/internal/core/common/validation"
	"github.com/frahmantamala/ward-census/internal/core/role"
	"github.com/frahmantamala/ward-census/internal/session"
	"golang.org/x/crypto/bcrypt"
)

type RepositoryAPI interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context, f Filter) ([]*User, int64, error)
	ListByWardAndRoles(ctx context.Context, wardID string, roles []role.Role) ([]*User, error)
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
}

// SessionTerminator ends a user's sessions when the account changes.
type SessionTerminator interface {
	EndAllForUser(ctx context.Context, userID int64, reason session.EndReason) error
}

type Service struct {
	repo       RepositoryAPI
	sessions   SessionTerminator
	bcryptCost int
	logger     *slog.Logger
}

func NewService(repo RepositoryAPI, sessions SessionTerminator, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, sessions: sessions, bcryptCost: bcryptCost, logger: logger}
}

func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, internal.NewNotFoundError("User not found", internal.ErrCodeUserNotFound)
		}
		return nil, internal.NewInternalError("failed to load user", err)
	}
	return u, nil
}

func (s *Service) List(ctx context.Context, f Filter) (*ListUsersResponse, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	users, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, internal.NewInternalError("failed to list users", err)
	}
	return &ListUsersResponse{Users: users, Total: total}, nil
}

// Approvers returns the active users who may review forms for wardID.
func (s *Service) Approvers(ctx context.Context, wardID string) ([]*User, error) {
	return s.repo.ListByWardAndRoles(ctx, wardID, []role.Role{role.Approver, role.Admin, role.SuperAdmin})
}

func (s *Service) Create(ctx context.Context, actor *internal.Principal, dto CreateUserDTO) (*User, error) {
	dto.Username = strings.TrimSpace(dto.Username)
	if verr := validation.Struct(dto); verr != nil {
		return nil, verr
	}
	if err := checkRank(actor, dto.Role); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), s.bcryptCost)
	if err != nil {
		return nil, internal.NewInternalError("failed to hash password", err)
	}

	u := &User{
		Username:     dto.Username,
		PasswordHash: string(hash),
		FirstName:    dto.FirstName,
		LastName:     dto.LastName,
		Role:         dto.Role,
		Wards:        normalizeWards(dto.Wards),
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicateName) {
			return nil, internal.NewConflictError("Username already exists", internal.ErrCodeUsernameTaken)
		}
		return nil, internal.NewInternalError("failed to create user", err)
	}

	s.logger.Info("user created", "user_id", u.ID, "username", u.Username, "role", u.Role, "by", actor.UserID)
	return u, nil
}

func (s *Service) Update(ctx context.Context, actor *internal.Principal, id int64, dto UpdateUserDTO) (*User, error) {
	if verr := validation.Struct(dto); verr != nil {
		return nil, verr
	}

	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkRank(actor, u.Role); err != nil {
		return nil, err
	}

	if dto.FirstName != nil {
		u.FirstName = *dto.FirstName
	}
	if dto.LastName != nil {
		u.LastName = *dto.LastName
	}
	if dto.Role != nil {
		if err := checkRank(actor, *dto.Role); err != nil {
			return nil, err
		}
		u.Role = *dto.Role
	}
	if dto.Wards != nil {
		u.Wards = normalizeWards(*dto.Wards)
	}
	deactivated := false
	if dto.IsActive != nil {
		if !*dto.IsActive && actor.UserID == u.ID {
			return nil, internal.NewValidationError("You cannot deactivate your own account", internal.ErrCodeValidationFailed)
		}
		deactivated = u.IsActive && !*dto.IsActive
		u.IsActive = *dto.IsActive
	}

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, internal.NewInternalError("failed to update user", err)
	}

	if deactivated {
		s.endSessions(ctx, u.ID, session.ReasonDeactivated)
	}
	s.logger.Info("user updated", "user_id", u.ID, "by", actor.UserID, "deactivated", deactivated)
	return u, nil
}

// Deactivate is the soft delete used by the admin API. The user's sessions
// are ended immediately so other devices are signed out on their next call.
func (s *Service) Deactivate(ctx context.Context, actor *internal.Principal, id int64) error {
	inactive := false
	_, err := s.Update(ctx, actor, id, UpdateUserDTO{IsActive: &inactive})
	return err
}

func (s *Service) ResetPassword(ctx context.Context, actor *internal.Principal, id int64, dto ResetPasswordDTO) error {
	if verr := validation.Struct(dto); verr != nil {
		return verr
	}
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := checkRank(actor, u.Role); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), s.bcryptCost)
	if err != nil {
		return internal.NewInternalError("failed to hash password", err)
	}
	if err := s.repo.UpdatePassword(ctx, id, string(hash)); err != nil {
		return internal.NewInternalError("failed to update password", err)
	}
	s.endSessions(ctx, id, session.ReasonPasswordReset)
	return nil
}

func (s *Service) endSessions(ctx context.Context, userID int64, reason session.EndReason) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.EndAllForUser(ctx, userID, reason); err != nil {
		s.logger.Error("failed to end sessions", "user_id", userID, "error", fmt.Errorf("end sessions: %w", err))
	}
}

func checkRank(actor *internal.Principal, target role.Role) error {
	if actor == nil {
		return internal.ErrInsufficientRole
	}
	if actor.Role == role.Developer || actor.Role == role.SuperAdmin {
		return nil
	}
	if !actor.Role.Outranks(target) {
		return internal.ErrInsufficientRole.WithMessage("You cannot manage users with this role")
	}
	return nil
}

func normalizeWards(wards []string) []string {
	seen := make(map[string]struct{}, len(wards))
	out := make([]string, 0, len(wards))
	for _, w := range wards {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
