package ward

import (
	"context"
	"net/http"

	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/internal/transport"
)

type ServiceAPI interface {
	ListForPrincipal(ctx context.Context, p *internal.Principal) ([]WardResponse, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

// GetWards handles GET /wards
func (h *Handler) GetWards(w http.ResponseWriter, r *http.Request) {
	p, _ := internal.PrincipalFromContext(r.Context())

	wards, err := h.Service.ListForPrincipal(r.Context(), p)
	if err != nil {
		h.Logger.Error("GetWards: failed to get wards", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteSuccess(w, http.StatusOK, WardsResponse{Wards: wards})
}
