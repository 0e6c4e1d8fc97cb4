package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/internal/core/common/validation"
	"github.com/frahmantamala/ward-census/internal/ratelimit"
	"github.com/frahmantamala/ward-census/internal/session"
	"github.com/frahmantamala/ward-census/internal/transport"
	"github.com/frahmantamala/ward-census/internal/transport/middleware"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Cookies Cookies
}

func NewHandler(base *transport.BaseHandler, svc ServiceAPI, cookies Cookies) *Handler {
	if base == nil {
		base = transport.NewBaseHandler(slog.Default())
	}
	return &Handler{BaseHandler: base, Service: svc, Cookies: cookies}
}

type logoutRequest struct {
	Reason string `json:"reason"`
}

// IssueCSRF handles GET /auth/csrf
func (h *Handler) IssueCSRF(w http.ResponseWriter, r *http.Request) {
	token, err := middleware.IssueCSRFToken(w, h.Cookies.Secure)
	if err != nil {
		h.HandleServiceError(w, internal.NewInternalError("Failed to issue CSRF token", err))
		return
	}
	h.WriteSuccess(w, http.StatusOK, CSRFResponse{Token: token})
}

// Login handles POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if appErr := h.DecodeJSON(w, r, &dto); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}
	if verr := validation.Struct(dto); verr != nil {
		h.WriteAppError(w, verr)
		return
	}

	device := session.DeviceInfo{
		UserAgent: r.UserAgent(),
		IPAddress: ratelimit.ClientIP(r),
		Label:     r.Header.Get("X-Device-Label"),
	}

	res, err := h.Service.Login(r.Context(), dto, device)
	if err != nil {
		h.Logger.Info("Login: rejected", "username", dto.Username, "error", err)
		h.Cookies.Clear(w)
		h.HandleServiceError(w, err)
		return
	}

	h.Cookies.Set(w, res.Token, res.User)
	h.WriteSuccess(w, http.StatusOK, res)
}

// Logout handles POST /auth/logout. Cookies are cleared even when the
// token no longer names a live session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var body logoutRequest
	if r.ContentLength > 0 {
		_ = h.DecodeJSON(w, r, &body)
	}

	if claims, err := h.Service.ParseToken(TokenFromRequest(r)); err == nil {
		if err := h.Service.Logout(r.Context(), claims, session.EndReason(body.Reason)); err != nil {
			h.Logger.Error("Logout: service Logout failed", "user_id", claims.UserID, "error", err)
		}
	}

	h.Cookies.Clear(w)
	h.WriteMessage(w, http.StatusOK, "Logged out")
}

// CheckSession handles GET /auth/session
func (h *Handler) CheckSession(w http.ResponseWriter, r *http.Request) {
	status, err := h.Service.CheckSession(r.Context(), TokenFromRequest(r))
	if err != nil {
		h.clearOnAuthFailure(w, err)
		h.HandleServiceError(w, err)
		return
	}
	if !status.Valid {
		h.Cookies.Clear(w)
	}
	h.WriteSuccess(w, http.StatusOK, status)
}

// Heartbeat handles POST /auth/session/heartbeat
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	p, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.ErrMissingToken)
		return
	}

	if err := h.Service.Heartbeat(r.Context(), p); err != nil {
		h.clearOnAuthFailure(w, err)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"session_id":     p.SessionID,
		"last_active_at": time.Now().UTC(),
	})
}

// Me handles GET /auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.ErrMissingToken)
		return
	}
	h.WriteSuccess(w, http.StatusOK, Profile{
		ID:        p.UserID,
		Username:  p.Username,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Role:      p.Role,
		Wards:     p.Wards,
	})
}

// RejectRateLimited writes the 429 envelope for the login limiter.
func (h *Handler) RejectRateLimited(w http.ResponseWriter, r *http.Request, d ratelimit.Decision) {
	h.Logger.Warn("Login: rate limited", "ip", ratelimit.ClientIP(r), "retry_after", d.RetryAfter)
	h.WriteAppError(w, internal.NewTooManyRequestsError("Too many login attempts. Please try again later.").
		WithDetails(map[string]int{"retry_after_seconds": int(d.RetryAfter.Seconds())}))
}

func (h *Handler) clearOnAuthFailure(w http.ResponseWriter, err error) {
	appErr, ok := internal.IsAppError(err)
	if !ok {
		return
	}
	if appErr.StatusCode == http.StatusUnauthorized || appErr.Code == internal.ErrCodeAccountDeactivated {
		h.Cookies.Clear(w)
	}
}
