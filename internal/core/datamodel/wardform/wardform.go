package wardform

import "time"

type WardForm struct {
	ID                int64      `gorm:"primaryKey"`
	WardID            string     `gorm:"column:ward_id;not null;uniqueIndex:idx_ward_forms_slot"`
	FormDate          string     `gorm:"column:form_date;type:varchar(10);not null;uniqueIndex:idx_ward_forms_slot"`
	Shift             string     `gorm:"column:shift;not null;uniqueIndex:idx_ward_forms_slot"`
	PatientCensus     int        `gorm:"column:patient_census;not null;default:0"`
	Admissions        int        `gorm:"column:admissions;not null;default:0"`
	TransferIn        int        `gorm:"column:transfer_in;not null;default:0"`
	ReferIn           int        `gorm:"column:refer_in;not null;default:0"`
	TransferOut       int        `gorm:"column:transfer_out;not null;default:0"`
	ReferOut          int        `gorm:"column:refer_out;not null;default:0"`
	Discharges        int        `gorm:"column:discharges;not null;default:0"`
	Deaths            int        `gorm:"column:deaths;not null;default:0"`
	CurrentCensus     int        `gorm:"column:current_census;not null;default:0"`
	NurseManager      int        `gorm:"column:nurse_manager;not null;default:0"`
	RN                int        `gorm:"column:rn;not null;default:0"`
	PN                int        `gorm:"column:pn;not null;default:0"`
	NA                int        `gorm:"column:na;not null;default:0"`
	AdminStaff        int        `gorm:"column:admin_staff;not null;default:0"`
	AvailableBeds     int        `gorm:"column:available_beds;not null;default:0"`
	UnavailableBeds   int        `gorm:"column:unavailable_beds;not null;default:0"`
	PlannedDischarges int        `gorm:"column:planned_discharges;not null;default:0"`
	Comment           string     `gorm:"column:comment"`
	RecorderFirstName string     `gorm:"column:recorder_first_name"`
	RecorderLastName  string     `gorm:"column:recorder_last_name"`
	Status            string     `gorm:"column:status;not null;default:draft"`
	ApprovalStatus    string     `gorm:"column:approval_status;not null;default:pending"`
	RejectionReason   string     `gorm:"column:rejection_reason"`
	RatioAcknowledged bool       `gorm:"column:ratio_acknowledged;not null;default:false"`
	CreatedBy         int64      `gorm:"column:created_by;not null"`
	ApprovedBy        *int64     `gorm:"column:approved_by"`
	FinalizedAt       *time.Time `gorm:"column:finalized_at"`
	ReviewedAt        *time.Time `gorm:"column:reviewed_at"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (WardForm) TableName() string { return "ward_forms" }
