package wardform

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/internal/draft"
	"github.com/frahmantamala/ward-census/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	SaveDraft(ctx context.Context, actor *internal.Principal, dto FormDTO) (*WardForm, error)
	Finalize(ctx context.Context, actor *internal.Principal, dto FormDTO) (*WardForm, error)
	Approve(ctx context.Context, actor *internal.Principal, id int64) (*WardForm, error)
	Reject(ctx context.Context, actor *internal.Principal, id int64, dto RejectDTO) (*WardForm, error)
	Get(ctx context.Context, actor *internal.Principal, id int64) (*WardForm, error)
	GetBySlot(ctx context.Context, actor *internal.Principal, wardID, date string, shift Shift) (*WardForm, error)
	List(ctx context.Context, actor *internal.Principal, f ListFilter) (*ListResponse, error)
	ListPending(ctx context.Context, actor *internal.Principal) (*ListResponse, error)
	CalculatePreview(ctx context.Context, actor *internal.Principal, dto FormDTO) (*Preview, error)
	Autosave(ctx context.Context, actor *internal.Principal, dto AutosaveDTO) (*draft.Draft, error)
	LoadAutosave(ctx context.Context, actor *internal.Principal, wardID, date string, shift Shift) (*draft.Draft, error)
	DiscardAutosave(ctx context.Context, actor *internal.Principal, wardID, date string, shift Shift) error
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

// SaveDraft handles POST /forms
func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	actor, _ := internal.PrincipalFromContext(r.Context())

	var dto FormDTO
	if appErr := h.DecodeJSON(w, r, &dto); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	form, err := h.Service.SaveDraft(r.Context(), actor, dto)
	if err != nil {
		h.Logger.Warn("SaveDraft: service error", "ward_id", dto.WardID, "error", err)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, form)
}

// Finalize handles POST /forms/finalize
func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	actor, _ := internal.PrincipalFromContext(r.Context())

	var dto FormDTO
	if appErr := h.DecodeJSON(w, r, &dto); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	form, err := h.Service.Finalize(r.Context(), actor, dto)
	if err != nil {
		h.Logger.Warn("Finalize: service error", "ward_id", dto.WardID, "error", err)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, form)
}

// Preview handles POST /forms/preview
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	actor, _ := internal.PrincipalFromContext(r.Context())

	var dto FormDTO
	if appErr := h.DecodeJSON(w, r, &dto); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	p, err := h.Service.CalculatePreview(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, p)
}

// ListForms handles GET /forms
func (h *Handler) ListForms(w http.ResponseWriter, r *http.Request) {
	actor, _ := internal.PrincipalFromContext(r.Context())

	q := r.URL.Query()
	f := ListFilter{
		FormDate:       q.Get("date"),
		DateFrom:       q.Get("from"),
		DateTo:         q.Get("to"),
		Shift:          Shift(q.Get("shift")),
		Status:         q.Get("status"),
		ApprovalStatus: q.Get("approval_status"),
	}
	if v := q.Get("ward"); v != "" {
		f.WardIDs = strings.Split(v, ",")
	}
	if f.Shift != "" && !f.Shift.Valid() {
		h.WriteAppError(w, internal.NewValidationFieldError("shift", "shift must be morning or night", internal.ErrCodeInvalidShift))
		return
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))

	resp, err := h.Service.List(r.Context(), actor, f)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, resp)
}

// ListPending handles GET /forms/pending
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	actor, _ := internal.PrincipalFromContext(r.Context())
	resp, err := h.Service.ListPending(r.Context(), actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, resp)
}

// GetForm handles GET /forms/{id}
func (h *Handler) GetForm(w http.ResponseWriter, r *http.Request) {
	actor, _ := internal.PrincipalFromContext(r.Context())
	id, ok := h.formID(w, r)
	if !ok {
		return
	}
	form, err := h.Service.Get(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, form)
}

// GetSlot handles GET /forms/slot?ward=&date=&shift=
func (h *Handler) GetSlot(w http.ResponseWriter, r *http.Request) {
	actor, _ := internal.PrincipalFromContext(r.Context())
	wardID, date, shift, ok := h.slot(w, r)
	if !ok {
		return
	}
	form, err := h.Service.GetBySlot(r.Context(), actor, wardID, date, shift)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, form)
}

// Approve handles POST /forms/{id}/approve
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, _ := internal.PrincipalFromContext(r.Context())
	id, ok := h.formID(w, r)
	if !ok {
		return
	}
	form, err := h.Service.Approve(r.Context(), actor, id)
	if err != nil {
		h.Logger.Warn("Approve: service error", "form_id", id, "error", err)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, form)
}

// Reject handles POST /forms/{id}/reject
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, _ := internal.PrincipalFromContext(r.Context())
	id, ok := h.formID(w, r)
	if !ok {
		return
	}

	var dto RejectDTO
	if appErr := h.DecodeJSON(w, r, &dto); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	form, err := h.Service.Reject(r.Context(), actor, id, dto)
	if err != nil {
		h.Logger.Warn("Reject: service error", "form_id", id, "error", err)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, form)
}

// SaveAutosave handles PUT /forms/draft
func (h *Handler) SaveAutosave(w http.ResponseWriter, r *http.Request) {
	actor, _ := internal.PrincipalFromContext(r.Context())

	var dto AutosaveDTO
	if appErr := h.DecodeJSON(w, r, &dto); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	d, err := h.Service.Autosave(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, d)
}

// LoadAutosave handles GET /forms/draft?ward=&date=&shift=
func (h *Handler) LoadAutosave(w http.ResponseWriter, r *http.Request) {
	actor, _ := internal.PrincipalFromContext(r.Context())
	wardID, date, shift, ok := h.slot(w, r)
	if !ok {
		return
	}
	d, err := h.Service.LoadAutosave(r.Context(), actor, wardID, date, shift)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, d)
}

// DiscardAutosave handles DELETE /forms/draft?ward=&date=&shift=
func (h *Handler) DiscardAutosave(w http.ResponseWriter, r *http.Request) {
	actor, _ := internal.PrincipalFromContext(r.Context())
	wardID, date, shift, ok := h.slot(w, r)
	if !ok {
		return
	}
	if err := h.Service.DiscardAutosave(r.Context(), actor, wardID, date, shift); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteMessage(w, http.StatusOK, "Draft discarded")
}

func (h *Handler) formID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.WriteAppError(w, internal.NewValidationFieldError("id", "invalid form id", internal.ErrCodeInvalidRequest))
		return 0, false
	}
	return id, true
}

func (h *Handler) slot(w http.ResponseWriter, r *http.Request) (string, string, Shift, bool) {
	q := r.URL.Query()
	wardID, date, shift := q.Get("ward"), q.Get("date"), Shift(q.Get("shift"))
	if wardID == "" {
		h.WriteAppError(w, internal.NewValidationFieldError("ward", "ward is required", internal.ErrCodeInvalidRequest))
		return "", "", "", false
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		h.WriteAppError(w, internal.NewValidationFieldError("date", "date must be YYYY-MM-DD", internal.ErrCodeInvalidDate))
		return "", "", "", false
	}
	if !shift.Valid() {
		h.WriteAppError(w, internal.NewValidationFieldError("shift", "shift must be morning or night", internal.ErrCodeInvalidShift))
		return "", "", "", false
	}
	return wardID, date, shift, true
}
