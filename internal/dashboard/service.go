package dashboard

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/internal/ward"
	"github.com/frahmantamala/ward-census/internal/wardform"
)

type WardLister interface {
	ListForPrincipal(ctx context.Context, p *internal.Principal) ([]ward.WardResponse, error)
}

type FormLister interface {
	List(ctx context.Context, actor *internal.Principal, f wardform.ListFilter) (*wardform.ListResponse, error)
}

type Service struct {
	wards    WardLister
	forms    FormLister
	maxPerRN int
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(wards WardLister, forms FormLister, maxPerRN int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{wards: wards, forms: forms, maxPerRN: maxPerRN, logger: logger, now: time.Now}
}

// Summary aggregates both shifts of date for every ward the actor can see.
// An empty date means today.
func (s *Service) Summary(ctx context.Context, actor *internal.Principal, date string) (*Summary, error) {
	if !actor.Role.CanApprove() {
		return nil, internal.ErrInsufficientRole
	}
	if date == "" {
		date = s.now().Format(wardform.DateLayout)
	}
	if _, err := time.Parse(wardform.DateLayout, date); err != nil {
		return nil, internal.NewValidationFieldError("date", "date must be YYYY-MM-DD", internal.ErrCodeInvalidDate)
	}

	wards, err := s.wards.ListForPrincipal(ctx, actor)
	if err != nil {
		return nil, err
	}
	resp, err := s.forms.List(ctx, actor, wardform.ListFilter{FormDate: date, Limit: 200})
	if err != nil {
		return nil, err
	}

	type slot struct {
		ward  string
		shift wardform.Shift
	}
	bySlot := make(map[slot]*wardform.WardForm, len(resp.Forms))
	for _, f := range resp.Forms {
		bySlot[slot{f.WardID, f.Shift}] = f
	}

	out := &Summary{Date: date, Wards: make([]WardSummary, 0, len(wards))}
	for _, w := range wards {
		ws := WardSummary{WardID: w.ID, WardName: w.Name, BedCapacity: w.BedCapacity}
		if f, ok := bySlot[slot{w.ID, wardform.ShiftMorning}]; ok {
			ws.Morning = s.shift(f)
			ws.Census = f.CurrentCensus
		}
		if f, ok := bySlot[slot{w.ID, wardform.ShiftNight}]; ok {
			ws.Night = s.shift(f)
			ws.Census = f.CurrentCensus
		}
		out.Totals.add(ws)
		out.Wards = append(out.Wards, ws)
	}
	out.Totals.Wards = len(out.Wards)

	s.logger.Debug("dashboard summary built", "date", date, "wards", len(out.Wards), "user_id", actor.UserID)
	return out, nil
}

func (s *Service) shift(f *wardform.WardForm) *ShiftSummary {
	return &ShiftSummary{
		FormID:         f.ID,
		Status:         f.Status,
		ApprovalStatus: f.ApprovalStatus,
		PatientCensus:  f.Previous,
		Admissions:     f.Admissions,
		TransferIn:     f.TransferIn,
		ReferIn:        f.ReferIn,
		TransferOut:    f.TransferOut,
		ReferOut:       f.ReferOut,
		Discharges:     f.Discharges,
		Deaths:         f.Deaths,
		CurrentCensus:  f.CurrentCensus,
		RN:             f.RN,
		PN:             f.PN,
		NA:             f.NA,
		AvailableBeds:  f.AvailableBeds,
		Ratio:          f.Ratio(s.maxPerRN),
	}
}

func (t *Totals) add(ws WardSummary) {
	t.Census += ws.Census
	for _, sh := range []*ShiftSummary{ws.Morning, ws.Night} {
		if sh == nil || sh.Status != wardform.StatusFinal {
			t.Missing++
			continue
		}
		t.Submitted++
		switch sh.ApprovalStatus {
		case wardform.ApprovalApproved:
			t.Approved++
		case wardform.ApprovalPending:
			t.Pending++
		}
		t.Admissions += sh.Admissions
		t.Discharges += sh.Discharges
		t.Deaths += sh.Deaths
		t.TransfersIn += sh.TransferIn + sh.ReferIn
		t.TransfersOut += sh.TransferOut + sh.ReferOut
		if !sh.Ratio.MeetsStandard {
			t.RatioBreaches++
		}
	}
}
