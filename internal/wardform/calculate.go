package wardform

import (
	"fmt"
	"math"
	"time"
)

// DefaultMaxPatientsPerRN is the staffing threshold: more patients per
// registered nurse than this breaches the standard.
const DefaultMaxPatientsPerRN = 8

// CensusInput carries the movement counts for one shift.
type CensusInput struct {
	Previous    int `json:"patient_census"`
	Admissions  int `json:"admissions"`
	TransferIn  int `json:"transfer_in"`
	ReferIn     int `json:"refer_in"`
	TransferOut int `json:"transfer_out"`
	ReferOut    int `json:"refer_out"`
	Discharges  int `json:"discharges"`
	Deaths      int `json:"deaths"`
}

// CalculateCensus derives the closing census of a shift. It never goes
// below zero.
func CalculateCensus(in CensusInput) int {
	census := in.Previous + in.Admissions + in.TransferIn + in.ReferIn -
		in.TransferOut - in.ReferOut - in.Discharges - in.Deaths
	if census < 0 {
		return 0
	}
	return census
}

type StaffRatio struct {
	// Ratio is patients per RN, rounded to two decimals. Zero when there
	// is no RN.
	Ratio          float64 `json:"ratio"`
	MeetsStandard  bool    `json:"meets_standard"`
	NoNursingStaff bool    `json:"no_nursing_staff"`
	TotalNurses    int     `json:"total_nurses"`
	MaxPerRN       int     `json:"max_per_rn"`
}

// CalculateStaffRatio checks patients against registered nurses. Patients
// with no RN on shift always breach the standard.
func CalculateStaffRatio(patients, rn, pn, maxPerRN int) StaffRatio {
	if maxPerRN <= 0 {
		maxPerRN = DefaultMaxPatientsPerRN
	}
	res := StaffRatio{TotalNurses: rn + pn, MaxPerRN: maxPerRN}

	if rn <= 0 {
		res.NoNursingStaff = patients > 0
		res.MeetsStandard = patients <= 0
		return res
	}

	res.Ratio = math.Round(float64(patients)/float64(rn)*100) / 100
	res.MeetsStandard = patients <= rn*maxPerRN
	return res
}

// Warning returns a human readable description of a breach, or "".
func (r StaffRatio) Warning() string {
	switch {
	case r.MeetsStandard:
		return ""
	case r.NoNursingStaff:
		return "No nursing staff: patients on shift without a registered nurse"
	}
	return fmt.Sprintf("Patient to RN ratio %.2f:1 exceeds the %d:1 standard", r.Ratio, r.MaxPerRN)
}

// PreviousShift returns the slot whose closing census opens date/shift:
// a morning follows the previous night, a night follows the same morning.
func PreviousShift(date string, shift Shift) (string, Shift, error) {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", "", fmt.Errorf("parse form date %q: %w", date, err)
	}
	switch shift {
	case ShiftMorning:
		return d.AddDate(0, 0, -1).Format(DateLayout), ShiftNight, nil
	case ShiftNight:
		return date, ShiftMorning, nil
	}
	return "", "", fmt.Errorf("unknown shift %q", shift)
}
