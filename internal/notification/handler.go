package notification

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	Create(ctx context.Context, actor *internal.Principal, dto CreateDTO) (*Notification, error)
	ListForUser(ctx context.Context, actor *internal.Principal, unreadOnly bool, limit, offset int) (*ListResponse, error)
	UnreadCount(ctx context.Context, actor *internal.Principal) (int64, error)
	MarkRead(ctx context.Context, actor *internal.Principal, id int64) error
	MarkAllRead(ctx context.Context, actor *internal.Principal) (int64, error)
	Delete(ctx context.Context, actor *internal.Principal, id int64) error
	DeleteMany(ctx context.Context, actor *internal.Principal, dto BulkDeleteDTO) (int64, error)
	DeleteByType(ctx context.Context, actor *internal.Principal, t Type) (int64, error)
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

// List handles GET /notifications?unread=&limit=&offset=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := internal.PrincipalFromContext(r.Context())
	q := r.URL.Query()
	unreadOnly, _ := strconv.ParseBool(q.Get("unread"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	resp, err := h.Service.ListForUser(r.Context(), actor, unreadOnly, limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, resp)
}

// UnreadCount handles GET /notifications/unread-count
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	actor, _ := internal.PrincipalFromContext(r.Context())
	n, err := h.Service.UnreadCount(r.Context(), actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, CountResponse{Count: n})
}

// Create handles POST /notifications
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := internal.PrincipalFromContext(r.Context())

	var dto CreateDTO
	if appErr := h.DecodeJSON(w, r, &dto); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	n, err := h.Service.Create(r.Context(), actor, dto)
	if err != nil {
		h.Logger.Warn("Create notification: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusCreated, n)
}

// MarkRead handles PATCH /notifications/{id}/read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, _ := internal.PrincipalFromContext(r.Context())
	id, ok := h.notificationID(w, r)
	if !ok {
		return
	}
	if err := h.Service.MarkRead(r.Context(), actor, id); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteMessage(w, http.StatusOK, "Notification marked as read")
}

// MarkAllRead handles PATCH /notifications/read-all
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	actor, _ := internal.PrincipalFromContext(r.Context())
	n, err := h.Service.MarkAllRead(r.Context(), actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, CountResponse{Count: n})
}

// Delete handles DELETE /notifications/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := internal.PrincipalFromContext(r.Context())
	id, ok := h.notificationID(w, r)
	if !ok {
		return
	}
	if err := h.Service.Delete(r.Context(), actor, id); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteMessage(w, http.StatusOK, "Notification deleted")
}

// BulkDelete handles POST /notifications/bulk-delete
func (h *Handler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	actor, _ := internal.PrincipalFromContext(r.Context())

	var dto BulkDeleteDTO
	if appErr := h.DecodeJSON(w, r, &dto); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	n, err := h.Service.DeleteMany(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, CountResponse{Count: n})
}

// DeleteByType handles DELETE /notifications/type/{type}
func (h *Handler) DeleteByType(w http.ResponseWriter, r *http.Request) {
	actor, _ := internal.PrincipalFromContext(r.Context())
	n, err := h.Service.DeleteByType(r.Context(), actor, Type(chi.URLParam(r, "type")))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, CountResponse{Count: n})
}

func (h *Handler) notificationID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.WriteAppError(w, internal.NewValidationFieldError("id", "invalid notification id", internal.ErrCodeInvalidRequest))
		return 0, false
	}
	return id, true
}
