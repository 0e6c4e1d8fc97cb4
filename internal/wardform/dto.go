package wardform

import (
	"strings"
	"time"

	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/internal/core/common/validation"
)

// maxCount caps every numeric field; no ward holds more.
const maxCount = 999

// FormDTO is the body of both save and finalize.
type FormDTO struct {
	WardID   string `json:"ward_id" validate:"required,max=32"`
	FormDate string `json:"form_date" validate:"required,datetime=2006-01-02"`
	Shift    Shift  `json:"shift" validate:"required,oneof=morning night"`

	CensusInput

	NurseManager int `json:"nurse_manager"`
	RN           int `json:"rn"`
	PN           int `json:"pn"`
	NA           int `json:"na"`
	AdminStaff   int `json:"admin_staff"`

	AvailableBeds     int `json:"available_beds"`
	UnavailableBeds   int `json:"unavailable_beds"`
	PlannedDischarges int `json:"planned_discharges"`

	Comment           string `json:"comment" validate:"max=2000"`
	RecorderFirstName string `json:"recorder_first_name" validate:"max=100"`
	RecorderLastName  string `json:"recorder_last_name" validate:"max=100"`

	// AcknowledgeWarnings lets a finalize go through a staffing breach.
	AcknowledgeWarnings bool `json:"acknowledge_warnings"`
}

func (d *FormDTO) normalize() {
	d.WardID = strings.TrimSpace(d.WardID)
	d.FormDate = strings.TrimSpace(d.FormDate)
	d.Comment = strings.TrimSpace(d.Comment)
	d.RecorderFirstName = strings.TrimSpace(d.RecorderFirstName)
	d.RecorderLastName = strings.TrimSpace(d.RecorderLastName)
}

// Validate checks structure and counts. finalizing adds the fields a
// submitted form cannot go without.
func (d FormDTO) Validate(now time.Time, finalizing bool) *internal.AppError {
	if err := validation.Struct(d); err != nil {
		return err
	}

	date, _ := time.Parse(DateLayout, d.FormDate)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	v := validation.NewValidator()
	v.Field("form_date", date).NotFuture(today)
	counts := map[string]int{
		"patient_census":     d.Previous,
		"admissions":         d.Admissions,
		"transfer_in":        d.TransferIn,
		"refer_in":           d.ReferIn,
		"transfer_out":       d.TransferOut,
		"refer_out":          d.ReferOut,
		"discharges":         d.Discharges,
		"deaths":             d.Deaths,
		"nurse_manager":      d.NurseManager,
		"rn":                 d.RN,
		"pn":                 d.PN,
		"na":                 d.NA,
		"admin_staff":        d.AdminStaff,
		"available_beds":     d.AvailableBeds,
		"unavailable_beds":   d.UnavailableBeds,
		"planned_discharges": d.PlannedDischarges,
	}
	for _, name := range countFields {
		v.Field(name, counts[name]).NonNegative().MaxInt(maxCount)
	}
	if finalizing {
		v.Field("recorder_first_name", d.RecorderFirstName).Required()
		v.Field("recorder_last_name", d.RecorderLastName).Required()
	}
	return v.Validate()
}

// countFields fixes the order field errors are reported in.
var countFields = []string{
	"patient_census", "admissions", "transfer_in", "refer_in",
	"transfer_out", "refer_out", "discharges", "deaths",
	"nurse_manager", "rn", "pn", "na", "admin_staff",
	"available_beds", "unavailable_beds", "planned_discharges",
}

// AutosaveDTO carries unvalidated in-progress input for the draft cache.
type AutosaveDTO struct {
	WardID   string                 `json:"ward_id" validate:"required,max=32"`
	FormDate string                 `json:"form_date" validate:"required,datetime=2006-01-02"`
	Shift    Shift                  `json:"shift" validate:"required,oneof=morning night"`
	Data     map[string]interface{} `json:"data" validate:"required"`
}

type RejectDTO struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// Preview is the live calculation shown while a form is edited.
type Preview struct {
	PreviousCensus int        `json:"previous_census"`
	PreviousSource string     `json:"previous_source"`
	CurrentCensus  int        `json:"current_census"`
	Ratio          StaffRatio `json:"ratio"`
	Warnings       []string   `json:"warnings"`
}

const (
	PreviousFromShift     = "previous_shift"
	PreviousFromSubmitted = "submitted"
)

type ListResponse struct {
	Forms []*WardForm `json:"forms"`
	Count int         `json:"count"`
}
