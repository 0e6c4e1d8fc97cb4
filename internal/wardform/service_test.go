package wardform_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/frahmantamala/ward-census/internal"
	draftDatamodel "github.com/frahmantamala/ward-census/internal/core/datamodel/draft"
	wardDatamodel "github.com/frahmantamala/ward-census/internal/core/datamodel/ward"
	wardformDatamodel "github.com/frahmantamala/ward-census/internal/core/datamodel/wardform"
	"github.com/frahmantamala/ward-census/internal/core/events"
	"github.com/frahmantamala/ward-census/internal/core/role"
	"github.com/frahmantamala/ward-census/internal/draft"
	draftPostgres "github.com/frahmantamala/ward-census/internal/draft/postgres"
	"github.com/frahmantamala/ward-census/internal/ward"
	wardPostgres "github.com/frahmantamala/ward-census/internal/ward/postgres"
	"github.com/frahmantamala/ward-census/internal/wardform"
	wardformPostgres "github.com/frahmantamala/ward-census/internal/wardform/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.FormEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	fe, _ := events.FormEventFromData(e)
	p.events = append(p.events, fe)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

func (p *recordingPublisher) last() *events.FormEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

type fixture struct {
	svc       *wardform.Service
	drafts    *draft.Service
	publisher *recordingPublisher
	now       time.Time
}

func newFixture() *fixture {
	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	Expect(err).NotTo(HaveOccurred())
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	Expect(db.AutoMigrate(&wardDatamodel.Ward{}, &wardformDatamodel.WardForm{}, &draftDatamodel.Draft{})).To(Succeed())

	wardRepo := wardPostgres.NewWardRepository(db)
	for _, w := range []*ward.Ward{
		{ID: "W1", Name: "Medical", BedCapacity: 30, SortOrder: 1, IsActive: true},
		{ID: "W2", Name: "Surgical", BedCapacity: 24, SortOrder: 2, IsActive: true},
	} {
		Expect(wardRepo.Upsert(context.Background(), w)).To(Succeed())
	}

	f := &fixture{
		publisher: &recordingPublisher{},
		now:       time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.drafts = draft.NewService(draftPostgres.NewDraftRepository(db), 0, slogger).WithClock(clock)
	f.svc = wardform.NewService(
		wardformPostgres.NewWardFormRepository(db),
		f.drafts,
		ward.NewService(wardRepo, slogger),
		f.publisher,
		8,
		slogger,
	).WithClock(clock)
	return f
}

var (
	nurse    = &internal.Principal{UserID: 10, Username: "nurse1", Role: role.Nurse, Wards: []string{"W1"}}
	nurse2   = &internal.Principal{UserID: 11, Username: "nurse2", Role: role.Nurse, Wards: []string{"W1"}}
	outsider = &internal.Principal{UserID: 12, Username: "nurse3", Role: role.Nurse, Wards: []string{"W2"}}
	approver = &internal.Principal{UserID: 20, Username: "head", Role: role.Approver, Wards: []string{"W1"}}
	admin    = &internal.Principal{UserID: 1, Username: "admin", Role: role.Admin}
)

func formDTO(date string, shift wardform.Shift) wardform.FormDTO {
	return wardform.FormDTO{
		WardID:   "W1",
		FormDate: date,
		Shift:    shift,
		CensusInput: wardform.CensusInput{
			Previous: 10, Admissions: 3, TransferOut: 1, Discharges: 2,
		},
		RN:                2,
		PN:                1,
		RecorderFirstName: "Ann",
		RecorderLastName:  "Lee",
	}
}

func appErrorOf(err error) *internal.AppError {
	appErr, ok := internal.IsAppError(err)
	Expect(ok).To(BeTrue(), "expected an AppError, got %v", err)
	return appErr
}

var _ = Describe("Service", func() {
	var (
		ctx context.Context
		f   *fixture
	)

	BeforeEach(func() {
		ctx = context.Background()
		f = newFixture()
	})

	Describe("SaveDraft", func() {
		It("stores the computed census as an editable draft", func() {
			form, err := f.svc.SaveDraft(ctx, nurse, formDTO("2024-03-02", wardform.ShiftMorning))
			Expect(err).NotTo(HaveOccurred())
			Expect(form.ID).NotTo(BeZero())
			Expect(form.CurrentCensus).To(Equal(10))
			Expect(form.Status).To(Equal(wardform.StatusDraft))
			Expect(form.CreatedBy).To(Equal(nurse.UserID))

			again, err := f.svc.SaveDraft(ctx, nurse, formDTO("2024-03-02", wardform.ShiftMorning))
			Expect(err).NotTo(HaveOccurred())
			Expect(again.ID).To(Equal(form.ID))
			Expect(f.publisher.types()).To(BeEmpty())
		})

		It("does not require recorder names", func() {
			dto := formDTO("2024-03-02", wardform.ShiftMorning)
			dto.RecorderFirstName = ""
			_, err := f.svc.SaveDraft(ctx, nurse, dto)
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects negative counts and future dates", func() {
			dto := formDTO("2024-03-02", wardform.ShiftMorning)
			dto.Admissions = -1
			_, err := f.svc.SaveDraft(ctx, nurse, dto)
			Expect(appErrorOf(err).StatusCode).To(Equal(http.StatusBadRequest))

			_, err = f.svc.SaveDraft(ctx, nurse, formDTO("2024-03-03", wardform.ShiftMorning))
			Expect(appErrorOf(err).StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("refuses wards outside the caller's assignment", func() {
			_, err := f.svc.SaveDraft(ctx, outsider, formDTO("2024-03-02", wardform.ShiftMorning))
			Expect(appErrorOf(err).Code).To(Equal(internal.ErrCodeWardAccessDenied))
		})

		It("stops another nurse from overwriting the form", func() {
			_, err := f.svc.SaveDraft(ctx, nurse, formDTO("2024-03-02", wardform.ShiftMorning))
			Expect(err).NotTo(HaveOccurred())

			_, err = f.svc.SaveDraft(ctx, nurse2, formDTO("2024-03-02", wardform.ShiftMorning))
			Expect(appErrorOf(err).StatusCode).To(Equal(http.StatusForbidden))

			_, err = f.svc.SaveDraft(ctx, admin, formDTO("2024-03-02", wardform.ShiftMorning))
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("Finalize", func() {
		It("locks the form and notifies reviewers", func() {
			form, err := f.svc.Finalize(ctx, nurse, formDTO("2024-03-02", wardform.ShiftMorning))
			Expect(err).NotTo(HaveOccurred())
			Expect(form.Status).To(Equal(wardform.StatusFinal))
			Expect(form.ApprovalStatus).To(Equal(wardform.ApprovalPending))
			Expect(form.FinalizedAt).NotTo(BeNil())
			Expect(f.publisher.types()).To(ContainElement(events.EventTypeFormFinalized))

			_, err = f.svc.SaveDraft(ctx, nurse, formDTO("2024-03-02", wardform.ShiftMorning))
			Expect(appErrorOf(err).Code).To(Equal(internal.ErrCodeFormLocked))
		})

		It("requires recorder names", func() {
			dto := formDTO("2024-03-02", wardform.ShiftMorning)
			dto.RecorderLastName = "  "
			_, err := f.svc.Finalize(ctx, nurse, dto)
			appErr := appErrorOf(err)
			Expect(appErr.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(appErr.Error()).To(ContainSubstring("recorder_last_name"))
		})

		It("blocks a staffing breach until acknowledged", func() {
			dto := formDTO("2024-03-02", wardform.ShiftMorning)
			dto.Previous = 17
			dto.Admissions, dto.TransferOut, dto.Discharges = 0, 0, 0

			_, err := f.svc.Finalize(ctx, nurse, dto)
			appErr := appErrorOf(err)
			Expect(appErr.Code).To(Equal(internal.ErrCodeStaffRatioWarning))
			ratio, ok := appErr.Details.(wardform.StaffRatio)
			Expect(ok).To(BeTrue())
			Expect(ratio.Ratio).To(Equal(8.5))

			_, err = f.svc.GetBySlot(ctx, nurse, "W1", "2024-03-02", wardform.ShiftMorning)
			Expect(appErrorOf(err).Code).To(Equal(internal.ErrCodeFormNotFound))

			dto.AcknowledgeWarnings = true
			form, err := f.svc.Finalize(ctx, nurse, dto)
			Expect(err).NotTo(HaveOccurred())
			Expect(form.RatioAcknowledged).To(BeTrue())
			Expect(form.Warnings).To(HaveLen(1))
		})

		It("reports a missing previous shift", func() {
			_, err := f.svc.Finalize(ctx, nurse, formDTO("2024-03-02", wardform.ShiftMorning))
			Expect(err).NotTo(HaveOccurred())
			Expect(f.publisher.types()).To(Equal([]string{events.EventTypeFormPreviousMissing, events.EventTypeFormFinalized}))
		})

		It("carries the previous shift's census forward", func() {
			night := formDTO("2024-03-01", wardform.ShiftNight)
			night.Previous = 12
			night.Admissions, night.TransferOut, night.Discharges = 0, 0, 0
			_, err := f.svc.Finalize(ctx, nurse, night)
			Expect(err).NotTo(HaveOccurred())
			f.publisher.events = nil

			morning := formDTO("2024-03-02", wardform.ShiftMorning)
			morning.Previous = 99
			form, err := f.svc.Finalize(ctx, nurse, morning)
			Expect(err).NotTo(HaveOccurred())
			Expect(form.Previous).To(Equal(12))
			Expect(form.CurrentCensus).To(Equal(12))
			Expect(f.publisher.types()).NotTo(ContainElement(events.EventTypeFormPreviousMissing))
		})

		It("discards the autosaved input", func() {
			_, err := f.svc.Autosave(ctx, nurse, wardform.AutosaveDTO{
				WardID: "W1", FormDate: "2024-03-02", Shift: wardform.ShiftMorning,
				Data: map[string]interface{}{"admissions": 3},
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = f.svc.LoadAutosave(ctx, nurse, "W1", "2024-03-02", wardform.ShiftMorning)
			Expect(err).NotTo(HaveOccurred())

			_, err = f.svc.Finalize(ctx, nurse, formDTO("2024-03-02", wardform.ShiftMorning))
			Expect(err).NotTo(HaveOccurred())

			_, err = f.svc.LoadAutosave(ctx, nurse, "W1", "2024-03-02", wardform.ShiftMorning)
			Expect(appErrorOf(err).Code).To(Equal(internal.ErrCodeDraftNotFound))
		})
	})

	Describe("review", func() {
		var form *wardform.WardForm

		BeforeEach(func() {
			var err error
			form, err = f.svc.Finalize(ctx, nurse, formDTO("2024-03-02", wardform.ShiftMorning))
			Expect(err).NotTo(HaveOccurred())
		})

		It("lets only approvers approve", func() {
			_, err := f.svc.Approve(ctx, nurse, form.ID)
			Expect(appErrorOf(err).Code).To(Equal(internal.ErrCodeInsufficientRole))

			approved, err := f.svc.Approve(ctx, approver, form.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(approved.ApprovalStatus).To(Equal(wardform.ApprovalApproved))
			Expect(*approved.ApprovedBy).To(Equal(approver.UserID))
			Expect(f.publisher.last().EventType()).To(Equal(events.EventTypeFormApproved))
			Expect(f.publisher.last().CreatorID).To(Equal(nurse.UserID))

			_, err = f.svc.Approve(ctx, approver, form.ID)
			Expect(appErrorOf(err).Code).To(Equal(internal.ErrCodeInvalidFormStatus))
		})

		It("returns a rejected form to its author", func() {
			_, err := f.svc.Reject(ctx, approver, form.ID, wardform.RejectDTO{})
			Expect(appErrorOf(err).StatusCode).To(Equal(http.StatusBadRequest))

			rejected, err := f.svc.Reject(ctx, approver, form.ID, wardform.RejectDTO{Reason: "recount discharges"})
			Expect(err).NotTo(HaveOccurred())
			Expect(rejected.Status).To(Equal(wardform.StatusDraft))
			Expect(rejected.ApprovalStatus).To(Equal(wardform.ApprovalRejected))
			Expect(f.publisher.last().Reason).To(Equal("recount discharges"))

			edited, err := f.svc.SaveDraft(ctx, nurse, formDTO("2024-03-02", wardform.ShiftMorning))
			Expect(err).NotTo(HaveOccurred())
			Expect(edited.RejectionReason).To(Equal("recount discharges"))

			resubmitted, err := f.svc.Finalize(ctx, nurse, formDTO("2024-03-02", wardform.ShiftMorning))
			Expect(err).NotTo(HaveOccurred())
			Expect(resubmitted.ApprovalStatus).To(Equal(wardform.ApprovalPending))
			Expect(resubmitted.RejectionReason).To(BeEmpty())
		})

		It("cannot review a draft", func() {
			draftForm, err := f.svc.SaveDraft(ctx, nurse, formDTO("2024-03-01", wardform.ShiftNight))
			Expect(err).NotTo(HaveOccurred())
			_, err = f.svc.Approve(ctx, approver, draftForm.ID)
			Expect(appErrorOf(err).Code).To(Equal(internal.ErrCodeInvalidFormStatus))
		})

		It("lists pending forms for approvers only", func() {
			resp, err := f.svc.ListPending(ctx, approver)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Count).To(Equal(1))

			_, err = f.svc.ListPending(ctx, nurse)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("List", func() {
		It("scopes nurses to their wards", func() {
			_, err := f.svc.SaveDraft(ctx, nurse, formDTO("2024-03-02", wardform.ShiftMorning))
			Expect(err).NotTo(HaveOccurred())
			w2 := formDTO("2024-03-02", wardform.ShiftMorning)
			w2.WardID = "W2"
			_, err = f.svc.SaveDraft(ctx, admin, w2)
			Expect(err).NotTo(HaveOccurred())

			resp, err := f.svc.List(ctx, nurse, wardform.ListFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Count).To(Equal(1))
			Expect(resp.Forms[0].WardID).To(Equal("W1"))

			resp, err = f.svc.List(ctx, admin, wardform.ListFilter{FormDate: "2024-03-02"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Count).To(Equal(2))

			_, err = f.svc.List(ctx, nurse, wardform.ListFilter{WardIDs: []string{"W2"}})
			Expect(appErrorOf(err).Code).To(Equal(internal.ErrCodeWardAccessDenied))
		})
	})

	Describe("CalculatePreview", func() {
		It("warns about the missing previous shift and the ratio", func() {
			dto := formDTO("2024-03-02", wardform.ShiftMorning)
			dto.RN = 0
			p, err := f.svc.CalculatePreview(ctx, nurse, dto)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.CurrentCensus).To(Equal(10))
			Expect(p.PreviousSource).To(Equal(wardform.PreviousFromSubmitted))
			Expect(p.Ratio.NoNursingStaff).To(BeTrue())
			Expect(p.Warnings).To(HaveLen(2))
		})
	})
})
