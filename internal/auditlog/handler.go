package auditlog

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/internal/core/common/validation"
	"github.com/frahmantamala/ward-census/internal/transport"
)

type ServiceAPI interface {
	List(ctx context.Context, f Filter) (*ListResult, error)
	Cleanup(ctx context.Context, actor *internal.Principal, olderThanDays int) (int64, error)
}

type CleanupDTO struct {
	OlderThanDays int `json:"older_than_days" validate:"required,min=1"`
}

type CleanupResponse struct {
	Deleted int64 `json:"deleted"`
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(base *transport.BaseHandler, svc ServiceAPI) *Handler {
	return &Handler{BaseHandler: base, Service: svc}
}

// ListLogs handles GET /admin/logs
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := Filter{Level: Level(q.Get("level")), Type: q.Get("type")}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))
	if v := q.Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			h.WriteAppError(w, internal.NewValidationFieldError("user_id", "invalid user id", internal.ErrCodeInvalidRequest))
			return
		}
		f.UserID = &id
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.WriteAppError(w, internal.NewValidationFieldError("since", "since must be RFC3339", internal.ErrCodeInvalidDate))
			return
		}
		f.Since = &since
	}

	res, err := h.Service.List(r.Context(), f)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, res)
}

// CleanupLogs handles POST /admin/logs/cleanup
func (h *Handler) CleanupLogs(w http.ResponseWriter, r *http.Request) {
	actor, _ := internal.PrincipalFromContext(r.Context())

	var dto CleanupDTO
	if appErr := h.DecodeJSON(w, r, &dto); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}
	if verr := validation.Struct(dto); verr != nil {
		h.WriteAppError(w, verr)
		return
	}

	deleted, err := h.Service.Cleanup(r.Context(), actor, dto.OlderThanDays)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, CleanupResponse{Deleted: deleted})
}
