package ward_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/frahmantamala/ward-census/internal"
	wardDatamodel "github.com/frahmantamala/ward-census/internal/core/datamodel/ward"
	"github.com/frahmantamala/ward-census/internal/core/role"
	"github.com/frahmantamala/ward-census/internal/transport"
	"github.com/frahmantamala/ward-census/internal/ward"
	wardPostgres "github.com/frahmantamala/ward-census/internal/ward/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestWard(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Ward Suite")
}

var _ = Describe("Ward Handler Integration", func() {
	var (
		service *ward.Service
		handler *ward.Handler
	)

	BeforeEach(func() {
		slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(db.AutoMigrate(&wardDatamodel.Ward{})).To(Succeed())

		repo := wardPostgres.NewWardRepository(db)
		service = ward.NewService(repo, slogger)
		handler = ward.NewHandler(transport.NewBaseHandler(slogger), service)

		ctx := context.Background()
		for _, w := range []*ward.Ward{
			{ID: "W2", Name: "Surgical", BedCapacity: 24, SortOrder: 2, IsActive: true},
			{ID: "W1", Name: "Medical", BedCapacity: 30, SortOrder: 1, IsActive: true},
			{ID: "W9", Name: "Closed", SortOrder: 9, IsActive: false},
		} {
			Expect(repo.Upsert(ctx, w)).To(Succeed())
		}
	})

	get := func(p *internal.Principal) ward.WardsResponse {
		req := httptest.NewRequest(http.MethodGet, "/wards", nil)
		req = req.WithContext(internal.ContextWithPrincipal(req.Context(), p))
		w := httptest.NewRecorder()
		handler.GetWards(w, req)
		Expect(w.Code).To(Equal(http.StatusOK))

		var envelope struct {
			Success bool               `json:"success"`
			Data    ward.WardsResponse `json:"data"`
		}
		Expect(json.NewDecoder(w.Body).Decode(&envelope)).To(Succeed())
		Expect(envelope.Success).To(BeTrue())
		return envelope.Data
	}

	It("lists active wards in display order for admins", func() {
		resp := get(&internal.Principal{UserID: 1, Role: role.Admin})
		Expect(resp.Wards).To(HaveLen(2))
		Expect(resp.Wards[0].ID).To(Equal("W1"))
		Expect(resp.Wards[1].ID).To(Equal("W2"))
	})

	It("limits nurses to their assigned wards", func() {
		resp := get(&internal.Principal{UserID: 2, Role: role.Nurse, Wards: []string{"W2", "W9"}})
		Expect(resp.Wards).To(HaveLen(1))
		Expect(resp.Wards[0].Name).To(Equal("Surgical"))
	})

	It("hides inactive wards from Get", func() {
		_, err := service.Get(context.Background(), "W9")
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.StatusCode).To(Equal(http.StatusNotFound))
	})
})
