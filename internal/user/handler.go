package user

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/internal/core/role"
	"github.com/frahmantamala/ward-census/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	List(ctx context.Context, f Filter) (*ListUsersResponse, error)
	Create(ctx context.Context, actor *internal.Principal, dto CreateUserDTO) (*User, error)
	Update(ctx context.Context, actor *internal.Principal, id int64, dto UpdateUserDTO) (*User, error)
	Deactivate(ctx context.Context, actor *internal.Principal, id int64) error
	ResetPassword(ctx context.Context, actor *internal.Principal, id int64, dto ResetPasswordDTO) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(base *transport.BaseHandler, svc ServiceAPI) *Handler {
	if base == nil {
		base = transport.NewBaseHandler(slog.Default())
	}
	return &Handler{BaseHandler: base, Service: svc}
}

// GetCurrentUser handles GET /users/me
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	p, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.ErrMissingToken)
		return
	}

	u, err := h.Service.GetByID(r.Context(), p.UserID)
	if err != nil {
		h.Logger.Error("GetCurrentUser: service GetByID failed", "user_id", p.UserID, "error", err)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, u)
}

// ListUsers handles GET /admin/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := Filter{
		Role:   role.Role(q.Get("role")),
		WardID: q.Get("ward"),
		Search: q.Get("q"),
	}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			h.WriteAppError(w, internal.NewValidationFieldError("active", "active must be true or false", internal.ErrCodeInvalidRequest))
			return
		}
		f.Active = &active
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))

	resp, err := h.Service.List(r.Context(), f)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, resp)
}

// GetUser handles GET /admin/users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	u, err := h.Service.GetByID(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, u)
}

// CreateUser handles POST /admin/users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := internal.PrincipalFromContext(r.Context())

	var dto CreateUserDTO
	if appErr := h.DecodeJSON(w, r, &dto); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	u, err := h.Service.Create(r.Context(), actor, dto)
	if err != nil {
		h.Logger.Warn("CreateUser: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusCreated, u)
}

// UpdateUser handles PUT /admin/users/{id}
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := internal.PrincipalFromContext(r.Context())
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	var dto UpdateUserDTO
	if appErr := h.DecodeJSON(w, r, &dto); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	u, err := h.Service.Update(r.Context(), actor, id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, u)
}

// DeleteUser handles DELETE /admin/users/{id}; accounts are deactivated,
// never removed, so their forms keep a valid author.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := internal.PrincipalFromContext(r.Context())
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := h.Service.Deactivate(r.Context(), actor, id); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteMessage(w, http.StatusOK, "User deactivated")
}

// ResetPassword handles POST /admin/users/{id}/password
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	actor, _ := internal.PrincipalFromContext(r.Context())
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	var dto ResetPasswordDTO
	if appErr := h.DecodeJSON(w, r, &dto); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}
	if err := h.Service.ResetPassword(r.Context(), actor, id, dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteMessage(w, http.StatusOK, "Password updated")
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.WriteAppError(w, internal.NewValidationFieldError("id", "invalid user id", internal.ErrCodeInvalidRequest))
		return 0, false
	}
	return id, true
}
