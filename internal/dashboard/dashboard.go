package dashboard

import "github.com/frahmantamala/ward-census/internal/wardform"

// ShiftSummary is one submitted shift as shown on the dashboard.
type ShiftSummary struct {
	FormID         int64               `json:"form_id"`
	Status         string              `json:"status"`
	ApprovalStatus string              `json:"approval_status"`
	PatientCensus  int                 `json:"patient_census"`
	Admissions     int                 `json:"admissions"`
	TransferIn     int                 `json:"transfer_in"`
	ReferIn        int                 `json:"refer_in"`
	TransferOut    int                 `json:"transfer_out"`
	ReferOut       int                 `json:"refer_out"`
	Discharges     int                 `json:"discharges"`
	Deaths         int                 `json:"deaths"`
	CurrentCensus  int                 `json:"current_census"`
	RN             int                 `json:"rn"`
	PN             int                 `json:"pn"`
	NA             int                 `json:"na"`
	AvailableBeds  int                 `json:"available_beds"`
	Ratio          wardform.StaffRatio `json:"ratio"`
}

type WardSummary struct {
	WardID      string        `json:"ward_id"`
	WardName    string        `json:"ward_name"`
	BedCapacity int           `json:"bed_capacity"`
	Morning     *ShiftSummary `json:"morning"`
	Night       *ShiftSummary `json:"night"`
	// Census is the latest closing census of the day, night first.
	Census int `json:"census"`
}

type Totals struct {
	Wards         int `json:"wards"`
	Submitted     int `json:"submitted"`
	Approved      int `json:"approved"`
	Pending       int `json:"pending"`
	Missing       int `json:"missing"`
	Census        int `json:"census"`
	Admissions    int `json:"admissions"`
	Discharges    int `json:"discharges"`
	Deaths        int `json:"deaths"`
	TransfersIn   int `json:"transfers_in"`
	TransfersOut  int `json:"transfers_out"`
	RatioBreaches int `json:"ratio_breaches"`
}

type Summary struct {
	Date   string        `json:"date"`
	Wards  []WardSummary `json:"wards"`
	Totals Totals        `json:"totals"`
}
