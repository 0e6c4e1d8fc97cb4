package dashboard

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/internal/transport"
)

type ServiceAPI interface {
	Summary(ctx context.Context, actor *internal.Principal, date string) (*Summary, error)
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

// GetSummary handles GET /dashboard?date=YYYY-MM-DD
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	actor, _ := internal.PrincipalFromContext(r.Context())
	s, err := h.Service.Summary(r.Context(), actor, r.URL.Query().Get("date"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, s)
}
