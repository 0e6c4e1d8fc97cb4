package wardform

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/ward-census/internal"
	wardformDatamodel "github.com/frahmantamala/ward-census/internal/core/datamodel/wardform"
)

const DateLayout = "2006-01-02"

type Shift string

const (
	ShiftMorning Shift = "morning"
	ShiftNight   Shift = "night"
)

func (s Shift) Valid() bool { return s == ShiftMorning || s == ShiftNight }

const (
	StatusDraft = "draft"
	StatusFinal = "final"

	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

type WardForm struct {
	ID       int64  `json:"id"`
	WardID   string `json:"ward_id"`
	FormDate string `json:"form_date"`
	Shift    Shift  `json:"shift"`

	CensusInput
	CurrentCensus int `json:"current_census"`

	NurseManager int `json:"nurse_manager"`
	RN           int `json:"rn"`
	PN           int `json:"pn"`
	NA           int `json:"na"`
	AdminStaff   int `json:"admin_staff"`

	AvailableBeds     int `json:"available_beds"`
	UnavailableBeds   int `json:"unavailable_beds"`
	PlannedDischarges int `json:"planned_discharges"`

	Comment           string `json:"comment"`
	RecorderFirstName string `json:"recorder_first_name"`
	RecorderLastName  string `json:"recorder_last_name"`

	Status            string     `json:"status"`
	ApprovalStatus    string     `json:"approval_status"`
	RejectionReason   string     `json:"rejection_reason,omitempty"`
	RatioAcknowledged bool       `json:"ratio_acknowledged"`
	CreatedBy         int64      `json:"created_by"`
	ApprovedBy        *int64     `json:"approved_by,omitempty"`
	FinalizedAt       *time.Time `json:"finalized_at,omitempty"`
	ReviewedAt        *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	Warnings []string `json:"warnings,omitempty"`
}

// Locked reports whether the form no longer accepts edits from its author.
func (f *WardForm) Locked() bool {
	return f.Status == StatusFinal
}

func (f *WardForm) Ratio(maxPerRN int) StaffRatio {
	return CalculateStaffRatio(f.CurrentCensus, f.RN, f.PN, maxPerRN)
}

var (
	ErrNotFound = errors.New("ward form not found")

	ErrFormNotFound      = internal.NewNotFoundError("Ward form not found", internal.ErrCodeFormNotFound)
	ErrFormLocked        = internal.NewConflictError("Form is finalized and can no longer be edited", internal.ErrCodeFormLocked)
	ErrInvalidFormStatus = internal.NewConflictError("Form is not awaiting review", internal.ErrCodeInvalidFormStatus)
	ErrStaffRatioWarning = internal.NewConflictError("Staffing ratio is below standard; acknowledge the warning to finalize", internal.ErrCodeStaffRatioWarning)
	ErrNotFormOwner      = internal.NewForbiddenError("Only the form's author can change it", internal.ErrCodeUnauthorizedAccess)
)

// ListFilter narrows List. Empty fields match everything.
type ListFilter struct {
	WardIDs        []string
	FormDate       string
	DateFrom       string
	DateTo         string
	Shift          Shift
	Status         string
	ApprovalStatus string
	CreatedBy      int64
	Limit          int
	Offset         int
}

type Repository interface {
	GetByID(ctx context.Context, id int64) (*WardForm, error)
	GetBySlot(ctx context.Context, wardID, formDate string, shift Shift) (*WardForm, error)
	Create(ctx context.Context, f *WardForm) error
	Update(ctx context.Context, f *WardForm) error
	List(ctx context.Context, f ListFilter) ([]*WardForm, error)
}

func ToDataModel(f *WardForm) *wardformDatamodel.WardForm {
	return &wardformDatamodel.WardForm{
		ID:                f.ID,
		WardID:            f.WardID,
		FormDate:          f.FormDate,
		Shift:             string(f.Shift),
		PatientCensus:     f.Previous,
		Admissions:        f.Admissions,
		TransferIn:        f.TransferIn,
		ReferIn:           f.ReferIn,
		TransferOut:       f.TransferOut,
		ReferOut:          f.ReferOut,
		Discharges:        f.Discharges,
		Deaths:            f.Deaths,
		CurrentCensus:     f.CurrentCensus,
		NurseManager:      f.NurseManager,
		RN:                f.RN,
		PN:                f.PN,
		NA:                f.NA,
		AdminStaff:        f.AdminStaff,
		AvailableBeds:     f.AvailableBeds,
		UnavailableBeds:   f.UnavailableBeds,
		PlannedDischarges: f.PlannedDischarges,
		Comment:           f.Comment,
		RecorderFirstName: f.RecorderFirstName,
		RecorderLastName:  f.RecorderLastName,
		Status:            f.Status,
		ApprovalStatus:    f.ApprovalStatus,
		RejectionReason:   f.RejectionReason,
		RatioAcknowledged: f.RatioAcknowledged,
		CreatedBy:         f.CreatedBy,
		ApprovedBy:        f.ApprovedBy,
		FinalizedAt:       f.FinalizedAt,
		ReviewedAt:        f.ReviewedAt,
		CreatedAt:         f.CreatedAt,
		UpdatedAt:         f.UpdatedAt,
	}
}

func FromDataModel(m *wardformDatamodel.WardForm) *WardForm {
	return &WardForm{
		ID:       m.ID,
		WardID:   m.WardID,
		FormDate: m.FormDate,
		Shift:    Shift(m.Shift),
		CensusInput: CensusInput{
			Previous:    m.PatientCensus,
			Admissions:  m.Admissions,
			TransferIn:  m.TransferIn,
			ReferIn:     m.ReferIn,
			TransferOut: m.TransferOut,
			ReferOut:    m.ReferOut,
			Discharges:  m.Discharges,
			Deaths:      m.Deaths,
		},
		CurrentCensus:     m.CurrentCensus,
		NurseManager:      m.NurseManager,
		RN:                m.RN,
		PN:                m.PN,
		NA:                m.NA,
		AdminStaff:        m.AdminStaff,
		AvailableBeds:     m.AvailableBeds,
		UnavailableBeds:   m.UnavailableBeds,
		PlannedDischarges: m.PlannedDischarges,
		Comment:           m.Comment,
		RecorderFirstName: m.RecorderFirstName,
		RecorderLastName:  m.RecorderLastName,
		Status:            m.Status,
		ApprovalStatus:    m.ApprovalStatus,
		RejectionReason:   m.RejectionReason,
		RatioAcknowledged: m.RatioAcknowledged,
		CreatedBy:         m.CreatedBy,
		ApprovedBy:        m.ApprovedBy,
		FinalizedAt:       m.FinalizedAt,
		ReviewedAt:        m.ReviewedAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
