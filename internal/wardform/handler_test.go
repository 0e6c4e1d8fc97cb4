package wardform_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"

	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/internal/transport"
	"github.com/frahmantamala/ward-census/internal/wardform"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

var _ = Describe("Handler", func() {
	var (
		f      *fixture
		router chi.Router
		actor  *internal.Principal
	)

	BeforeEach(func() {
		f = newFixture()
		actor = nurse
		h := wardform.NewHandler(transport.NewBaseHandler(slog.New(slog.NewTextHandler(io.Discard, nil))), f.svc)

		router = chi.NewRouter()
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(internal.ContextWithPrincipal(r.Context(), actor)))
			})
		})
		router.Post("/forms", h.SaveDraft)
		router.Post("/forms/finalize", h.Finalize)
		router.Post("/forms/preview", h.Preview)
		router.Get("/forms", h.ListForms)
		router.Get("/forms/draft", h.LoadAutosave)
		router.Get("/forms/{id}", h.GetForm)
		router.Post("/forms/{id}/approve", h.Approve)
	})

	do := func(method, path string, body interface{}) (int, envelope) {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		var env envelope
		Expect(json.NewDecoder(w.Body).Decode(&env)).To(Succeed())
		return w.Code, env
	}

	It("saves, finalizes and approves through the API", func() {
		code, env := do(http.MethodPost, "/forms", formDTO("2024-03-02", wardform.ShiftMorning))
		Expect(code).To(Equal(http.StatusOK))
		Expect(env.Success).To(BeTrue())

		code, env = do(http.MethodPost, "/forms/finalize", formDTO("2024-03-02", wardform.ShiftMorning))
		Expect(code).To(Equal(http.StatusOK))
		var form wardform.WardForm
		Expect(json.Unmarshal(env.Data, &form)).To(Succeed())
		Expect(form.Status).To(Equal(wardform.StatusFinal))
		Expect(form.CurrentCensus).To(Equal(10))

		actor = approver
		code, env = do(http.MethodPost, "/forms/"+strconv.FormatInt(form.ID, 10)+"/approve", nil)
		Expect(code).To(Equal(http.StatusOK))
		Expect(json.Unmarshal(env.Data, &form)).To(Succeed())
		Expect(form.ApprovalStatus).To(Equal(wardform.ApprovalApproved))
	})

	It("returns the ratio with a staffing warning", func() {
		dto := formDTO("2024-03-02", wardform.ShiftMorning)
		dto.RN = 0
		code, env := do(http.MethodPost, "/forms/finalize", dto)
		Expect(code).To(Equal(http.StatusConflict))
		Expect(env.Success).To(BeFalse())
		Expect(env.Error.Code).To(Equal(string(internal.ErrCodeStaffRatioWarning)))

		var ratio wardform.StaffRatio
		Expect(json.Unmarshal(env.Error.Details, &ratio)).To(Succeed())
		Expect(ratio.NoNursingStaff).To(BeTrue())
	})

	It("previews without storing", func() {
		code, env := do(http.MethodPost, "/forms/preview", formDTO("2024-03-02", wardform.ShiftMorning))
		Expect(code).To(Equal(http.StatusOK))
		var p wardform.Preview
		Expect(json.Unmarshal(env.Data, &p)).To(Succeed())
		Expect(p.CurrentCensus).To(Equal(10))
		Expect(p.Ratio.MeetsStandard).To(BeTrue())

		code, env = do(http.MethodGet, "/forms", nil)
		Expect(code).To(Equal(http.StatusOK))
		var list wardform.ListResponse
		Expect(json.Unmarshal(env.Data, &list)).To(Succeed())
		Expect(list.Count).To(Equal(0))
	})

	It("validates path and query parameters", func() {
		code, _ := do(http.MethodGet, "/forms/abc", nil)
		Expect(code).To(Equal(http.StatusBadRequest))

		code, _ = do(http.MethodGet, "/forms/draft?ward=W1&date=2024-03-02&shift=evening", nil)
		Expect(code).To(Equal(http.StatusBadRequest))

		code, _ = do(http.MethodGet, "/forms?shift=evening", nil)
		Expect(code).To(Equal(http.StatusBadRequest))

		code, _ = do(http.MethodGet, "/forms/999", nil)
		Expect(code).To(Equal(http.StatusNotFound))
	})
})
