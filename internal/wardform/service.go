package wardform

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/internal/core/common/validation"
	"github.com/frahmantamala/ward-census/internal/core/events"
	"github.com/frahmantamala/ward-census/internal/draft"
	"github.com/frahmantamala/ward-census/internal/ward"
)

// DraftStore caches in-progress form input per user and slot.
type DraftStore interface {
	Save(ctx context.Context, key draft.Key, payload interface{}) (*draft.Draft, error)
	Load(ctx context.Context, key draft.Key) (*draft.Draft, error)
	Discard(ctx context.Context, key draft.Key) error
}

type WardLookup interface {
	Get(ctx context.Context, id string) (*ward.Ward, error)
}

// Service handles ward form business logic
type Service struct {
	repo      Repository
	drafts    DraftStore
	wards     WardLookup
	publisher events.Publisher
	maxPerRN  int
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a new ward form service
func NewService(repo Repository, drafts DraftStore, wards WardLookup, publisher events.Publisher, maxPerRN int, logger *slog.Logger) *Service {
	if maxPerRN <= 0 {
		maxPerRN = DefaultMaxPatientsPerRN
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		drafts:    drafts,
		wards:     wards,
		publisher: publisher,
		maxPerRN:  maxPerRN,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// SaveDraft creates or updates the slot's form without submitting it.
func (s *Service) SaveDraft(ctx context.Context, actor *internal.Principal, dto FormDTO) (*WardForm, error) {
	form, _, err := s.upsert(ctx, actor, dto, false)
	if err != nil {
		return nil, err
	}
	s.logger.Info("ward form saved as draft", "form_id", form.ID, "ward_id", form.WardID, "user_id", actor.UserID)
	return s.decorate(form), nil
}

// Finalize submits the form for approval and locks it. A staffing breach
// fails with ErrStaffRatioWarning unless the caller acknowledges it.
func (s *Service) Finalize(ctx context.Context, actor *internal.Principal, dto FormDTO) (*WardForm, error) {
	form, previousMissing, err := s.upsert(ctx, actor, dto, true)
	if err != nil {
		return nil, err
	}

	if previousMissing {
		s.publish(ctx, events.NewFormEvent(events.EventTypeFormPreviousMissing, form.ID, form.WardID, form.FormDate, string(form.Shift), actor.UserID, form.CreatedBy, ""))
	}
	s.publish(ctx, events.NewFormEvent(events.EventTypeFormFinalized, form.ID, form.WardID, form.FormDate, string(form.Shift), actor.UserID, form.CreatedBy, ""))

	s.logger.Info("ward form finalized", "form_id", form.ID, "ward_id", form.WardID, "user_id", actor.UserID, "ratio_acknowledged", form.RatioAcknowledged)
	return s.decorate(form), nil
}

func (s *Service) upsert(ctx context.Context, actor *internal.Principal, dto FormDTO, finalizing bool) (*WardForm, bool, error) {
	dto.normalize()
	if verr := dto.Validate(s.now(), finalizing); verr != nil {
		return nil, false, verr
	}
	if !actor.CanAccessWard(dto.WardID) {
		return nil, false, internal.ErrWardAccessDenied
	}
	if _, err := s.wards.Get(ctx, dto.WardID); err != nil {
		return nil, false, err
	}

	existing, err := s.repo.GetBySlot(ctx, dto.WardID, dto.FormDate, dto.Shift)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, false, internal.NewInternalError("failed to load ward form", err)
	}
	if existing != nil {
		if existing.Locked() {
			return nil, false, ErrFormLocked
		}
		if existing.CreatedBy != actor.UserID && !actor.Role.IsAdmin() {
			return nil, false, ErrNotFormOwner
		}
	}

	previous, source, err := s.previousCensus(ctx, dto.WardID, dto.FormDate, dto.Shift, dto.Previous)
	if err != nil {
		return nil, false, err
	}

	form := existing
	if form == nil {
		form = &WardForm{
			WardID:         dto.WardID,
			FormDate:       dto.FormDate,
			Shift:          dto.Shift,
			CreatedBy:      actor.UserID,
			ApprovalStatus: ApprovalPending,
		}
	}
	apply(form, dto)
	form.Previous = previous
	form.CurrentCensus = CalculateCensus(form.CensusInput)
	form.Status = StatusDraft

	if finalizing {
		ratio := form.Ratio(s.maxPerRN)
		if !ratio.MeetsStandard && !dto.AcknowledgeWarnings {
			return nil, false, ErrStaffRatioWarning.WithDetails(ratio)
		}
		now := s.now().UTC()
		form.Status = StatusFinal
		form.ApprovalStatus = ApprovalPending
		form.RejectionReason = ""
		form.RatioAcknowledged = !ratio.MeetsStandard
		form.FinalizedAt = &now
	}

	if existing == nil {
		err = s.repo.Create(ctx, form)
	} else {
		err = s.repo.Update(ctx, form)
	}
	if err != nil {
		s.logger.Error("failed to store ward form", "ward_id", form.WardID, "form_date", form.FormDate, "shift", form.Shift, "error", err)
		return nil, false, internal.NewInternalError("failed to save ward form", err)
	}

	s.discardDraft(ctx, actor.UserID, form)
	return form, source == PreviousFromSubmitted, nil
}

// previousCensus prefers the closing census of the prior shift when that
// form has been finalized.
func (s *Service) previousCensus(ctx context.Context, wardID, date string, shift Shift, submitted int) (int, string, error) {
	prevDate, prevShift, err := PreviousShift(date, shift)
	if err != nil {
		return 0, "", internal.NewValidationFieldError("form_date", err.Error(), internal.ErrCodeInvalidDate)
	}

	prev, err := s.repo.GetBySlot(ctx, wardID, prevDate, prevShift)
	switch {
	case errors.Is(err, ErrNotFound):
		return submitted, PreviousFromSubmitted, nil
	case err != nil:
		return 0, "", internal.NewInternalError("failed to load previous shift", err)
	case prev.Status != StatusFinal:
		return submitted, PreviousFromSubmitted, nil
	}
	return prev.CurrentCensus, PreviousFromShift, nil
}

func (s *Service) Approve(ctx context.Context, actor *internal.Principal, id int64) (*WardForm, error) {
	form, err := s.reviewable(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	reviewer := actor.UserID
	form.ApprovalStatus = ApprovalApproved
	form.ApprovedBy = &reviewer
	form.ReviewedAt = &now
	if err := s.repo.Update(ctx, form); err != nil {
		return nil, internal.NewInternalError("failed to approve ward form", err)
	}

	s.publish(ctx, events.NewFormEvent(events.EventTypeFormApproved, form.ID, form.WardID, form.FormDate, string(form.Shift), actor.UserID, form.CreatedBy, ""))
	s.logger.Info("ward form approved", "form_id", form.ID, "approver_id", actor.UserID)
	return s.decorate(form), nil
}

// Reject sends a finalized form back to its author as an editable draft.
func (s *Service) Reject(ctx context.Context, actor *internal.Principal, id int64, dto RejectDTO) (*WardForm, error) {
	if verr := validation.Struct(dto); verr != nil {
		return nil, verr
	}
	form, err := s.reviewable(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	reviewer := actor.UserID
	form.Status = StatusDraft
	form.ApprovalStatus = ApprovalRejected
	form.RejectionReason = dto.Reason
	form.ApprovedBy = &reviewer
	form.ReviewedAt = &now
	form.FinalizedAt = nil
	if err := s.repo.Update(ctx, form); err != nil {
		return nil, internal.NewInternalError("failed to reject ward form", err)
	}

	s.publish(ctx, events.NewFormEvent(events.EventTypeFormRejected, form.ID, form.WardID, form.FormDate, string(form.Shift), actor.UserID, form.CreatedBy, dto.Reason))
	s.logger.Info("ward form rejected", "form_id", form.ID, "approver_id", actor.UserID)
	return s.decorate(form), nil
}

func (s *Service) reviewable(ctx context.Context, actor *internal.Principal, id int64) (*WardForm, error) {
	if !actor.Role.CanApprove() {
		return nil, internal.ErrInsufficientRole
	}
	form, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccessWard(form.WardID) {
		return nil, internal.ErrWardAccessDenied
	}
	if form.Status != StatusFinal || form.ApprovalStatus != ApprovalPending {
		return nil, ErrInvalidFormStatus
	}
	return form, nil
}

func (s *Service) Get(ctx context.Context, actor *internal.Principal, id int64) (*WardForm, error) {
	form, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccessWard(form.WardID) {
		return nil, internal.ErrWardAccessDenied
	}
	return s.decorate(form), nil
}

func (s *Service) GetBySlot(ctx context.Context, actor *internal.Principal, wardID, date string, shift Shift) (*WardForm, error) {
	if !actor.CanAccessWard(wardID) {
		return nil, internal.ErrWardAccessDenied
	}
	form, err := s.repo.GetBySlot(ctx, wardID, date, shift)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrFormNotFound
	}
	if err != nil {
		return nil, internal.NewInternalError("failed to load ward form", err)
	}
	return s.decorate(form), nil
}

// List returns forms in the caller's wards matching f.
func (s *Service) List(ctx context.Context, actor *internal.Principal, f ListFilter) (*ListResponse, error) {
	wards, err := scopeWards(actor, f.WardIDs)
	if err != nil {
		return nil, err
	}
	f.WardIDs = wards
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}

	forms, err := s.repo.List(ctx, f)
	if err != nil {
		s.logger.Error("failed to list ward forms", "error", err)
		return nil, internal.NewInternalError("failed to list ward forms", err)
	}
	for _, form := range forms {
		s.decorate(form)
	}
	if forms == nil {
		forms = []*WardForm{}
	}
	return &ListResponse{Forms: forms, Count: len(forms)}, nil
}

// ListPending returns finalized forms awaiting review in the caller's wards.
func (s *Service) ListPending(ctx context.Context, actor *internal.Principal) (*ListResponse, error) {
	if !actor.Role.CanApprove() {
		return nil, internal.ErrInsufficientRole
	}
	return s.List(ctx, actor, ListFilter{Status: StatusFinal, ApprovalStatus: ApprovalPending, Limit: 200})
}

// CalculatePreview runs the census and staffing calculations without
// storing anything.
func (s *Service) CalculatePreview(ctx context.Context, actor *internal.Principal, dto FormDTO) (*Preview, error) {
	dto.normalize()
	if verr := dto.Validate(s.now(), false); verr != nil {
		return nil, verr
	}
	if !actor.CanAccessWard(dto.WardID) {
		return nil, internal.ErrWardAccessDenied
	}

	previous, source, err := s.previousCensus(ctx, dto.WardID, dto.FormDate, dto.Shift, dto.Previous)
	if err != nil {
		return nil, err
	}
	in := dto.CensusInput
	in.Previous = previous
	census := CalculateCensus(in)
	ratio := CalculateStaffRatio(census, dto.RN, dto.PN, s.maxPerRN)

	p := &Preview{
		PreviousCensus: previous,
		PreviousSource: source,
		CurrentCensus:  census,
		Ratio:          ratio,
		Warnings:       []string{},
	}
	if w := ratio.Warning(); w != "" {
		p.Warnings = append(p.Warnings, w)
	}
	if source == PreviousFromSubmitted {
		p.Warnings = append(p.Warnings, "Previous shift data is missing; the entered patient census is used")
	}
	return p, nil
}

// Autosave caches raw input so an unfinished form survives a reload.
func (s *Service) Autosave(ctx context.Context, actor *internal.Principal, dto AutosaveDTO) (*draft.Draft, error) {
	if verr := validation.Struct(dto); verr != nil {
		return nil, verr
	}
	if !actor.CanAccessWard(dto.WardID) {
		return nil, internal.ErrWardAccessDenied
	}
	d, err := s.drafts.Save(ctx, draftKey(actor.UserID, dto.WardID, dto.FormDate, dto.Shift), dto.Data)
	if err != nil {
		return nil, internal.NewInternalError("failed to save draft", err)
	}
	return d, nil
}

func (s *Service) LoadAutosave(ctx context.Context, actor *internal.Principal, wardID, date string, shift Shift) (*draft.Draft, error) {
	if !actor.CanAccessWard(wardID) {
		return nil, internal.ErrWardAccessDenied
	}
	d, err := s.drafts.Load(ctx, draftKey(actor.UserID, wardID, date, shift))
	if errors.Is(err, draft.ErrNotFound) {
		return nil, internal.NewNotFoundError("No saved draft for this form", internal.ErrCodeDraftNotFound)
	}
	if err != nil {
		return nil, internal.NewInternalError("failed to load draft", err)
	}
	return d, nil
}

func (s *Service) DiscardAutosave(ctx context.Context, actor *internal.Principal, wardID, date string, shift Shift) error {
	if err := s.drafts.Discard(ctx, draftKey(actor.UserID, wardID, date, shift)); err != nil {
		return internal.NewInternalError("failed to discard draft", err)
	}
	return nil
}

func (s *Service) load(ctx context.Context, id int64) (*WardForm, error) {
	form, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrFormNotFound
	}
	if err != nil {
		return nil, internal.NewInternalError("failed to load ward form", err)
	}
	return form, nil
}

func (s *Service) decorate(f *WardForm) *WardForm {
	f.Warnings = nil
	if w := f.Ratio(s.maxPerRN).Warning(); w != "" {
		f.Warnings = append(f.Warnings, w)
	}
	return f
}

func (s *Service) discardDraft(ctx context.Context, userID int64, f *WardForm) {
	if s.drafts == nil {
		return
	}
	if err := s.drafts.Discard(ctx, draftKey(userID, f.WardID, f.FormDate, f.Shift)); err != nil {
		s.logger.Warn("failed to discard draft", "form_id", f.ID, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("failed to publish event", "event_type", e.EventType(), "error", err)
	}
}

func draftKey(userID int64, wardID, date string, shift Shift) draft.Key {
	return draft.Key{UserID: userID, WardID: wardID, FormDate: date, Shift: string(shift)}
}

// scopeWards narrows requested wards to those the actor may see. nil means
// every ward.
func scopeWards(actor *internal.Principal, requested []string) ([]string, error) {
	if actor.Role.AllWards() {
		return requested, nil
	}
	if len(requested) == 0 {
		if len(actor.Wards) == 0 {
			return []string{}, nil
		}
		return actor.Wards, nil
	}
	for _, w := range requested {
		if !actor.CanAccessWard(w) {
			return nil, internal.ErrWardAccessDenied
		}
	}
	return requested, nil
}

func apply(f *WardForm, dto FormDTO) {
	f.CensusInput = dto.CensusInput
	f.NurseManager = dto.NurseManager
	f.RN = dto.RN
	f.PN = dto.PN
	f.NA = dto.NA
	f.AdminStaff = dto.AdminStaff
	f.AvailableBeds = dto.AvailableBeds
	f.UnavailableBeds = dto.UnavailableBeds
	f.PlannedDischarges = dto.PlannedDischarges
	f.Comment = dto.Comment
	f.RecorderFirstName = dto.RecorderFirstName
	f.RecorderLastName = dto.RecorderLastName
}
