package dashboard_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/internal/core/role"
	"github.com/frahmantamala/ward-census/internal/dashboard"
	"github.com/frahmantamala/ward-census/internal/transport"
	"github.com/frahmantamala/ward-census/internal/ward"
	"github.com/frahmantamala/ward-census/internal/wardform"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestDashboard(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Dashboard Suite")
}

type stubWards struct{}

func (stubWards) ListForPrincipal(_ context.Context, p *internal.Principal) ([]ward.WardResponse, error) {
	all := []ward.WardResponse{{ID: "W1", Name: "Medical", BedCapacity: 30}, {ID: "W2", Name: "Surgical", BedCapacity: 24}}
	out := []ward.WardResponse{}
	for _, w := range all {
		if p.CanAccessWard(w.ID) {
			out = append(out, w)
		}
	}
	return out, nil
}

type stubForms struct {
	forms  []*wardform.WardForm
	filter wardform.ListFilter
}

func (s *stubForms) List(_ context.Context, _ *internal.Principal, f wardform.ListFilter) (*wardform.ListResponse, error) {
	s.filter = f
	return &wardform.ListResponse{Forms: s.forms, Count: len(s.forms)}, nil
}

func form(wardID string, shift wardform.Shift, status, approval string, census, rn int) *wardform.WardForm {
	return &wardform.WardForm{
		WardID: wardID, FormDate: "2024-03-02", Shift: shift,
		CensusInput:    wardform.CensusInput{Previous: census, Admissions: 2, Discharges: 1, TransferIn: 1},
		CurrentCensus:  census,
		RN:             rn,
		Status:         status,
		ApprovalStatus: approval,
	}
}

var _ = Describe("Summary", func() {
	var (
		forms *stubForms
		svc   *dashboard.Service
		head  = &internal.Principal{UserID: 5, Role: role.Approver, Wards: []string{"W1", "W2"}}
	)

	BeforeEach(func() {
		forms = &stubForms{forms: []*wardform.WardForm{
			form("W1", wardform.ShiftMorning, wardform.StatusFinal, wardform.ApprovalApproved, 16, 2),
			form("W1", wardform.ShiftNight, wardform.StatusFinal, wardform.ApprovalPending, 18, 2),
			form("W2", wardform.ShiftMorning, wardform.StatusDraft, wardform.ApprovalPending, 10, 2),
		}}
		svc = dashboard.NewService(stubWards{}, forms, 8, slog.New(slog.NewTextHandler(io.Discard, nil)))
	})

	It("aggregates both shifts per ward", func() {
		s, err := svc.Summary(context.Background(), head, "2024-03-02")
		Expect(err).NotTo(HaveOccurred())
		Expect(forms.filter.FormDate).To(Equal("2024-03-02"))
		Expect(s.Wards).To(HaveLen(2))

		w1 := s.Wards[0]
		Expect(w1.Morning.Ratio.MeetsStandard).To(BeTrue())
		Expect(w1.Night.Ratio.MeetsStandard).To(BeFalse())
		Expect(w1.Census).To(Equal(18))

		Expect(s.Totals.Wards).To(Equal(2))
		Expect(s.Totals.Submitted).To(Equal(2))
		Expect(s.Totals.Approved).To(Equal(1))
		Expect(s.Totals.Pending).To(Equal(1))
		Expect(s.Totals.Missing).To(Equal(2))
		Expect(s.Totals.Admissions).To(Equal(4))
		Expect(s.Totals.RatioBreaches).To(Equal(1))
		Expect(s.Totals.Census).To(Equal(28))
	})

	It("is closed to nurses", func() {
		_, err := svc.Summary(context.Background(), &internal.Principal{Role: role.Nurse}, "")
		Expect(err).To(MatchError(internal.ErrInsufficientRole))
	})

	It("rejects malformed dates through the handler", func() {
		h := dashboard.NewHandler(transport.NewBaseHandler(slog.New(slog.NewTextHandler(io.Discard, nil))), svc)
		req := httptest.NewRequest(http.MethodGet, "/dashboard?date=03-02-2024", nil)
		req = req.WithContext(internal.ContextWithPrincipal(req.Context(), head))
		w := httptest.NewRecorder()
		h.GetSummary(w, req)
		Expect(w.Code).To(Equal(http.StatusBadRequest))

		var body map[string]interface{}
		Expect(json.NewDecoder(w.Body).Decode(&body)).To(Succeed())
		Expect(body["success"]).To(Equal(false))
	})
})
