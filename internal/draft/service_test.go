package draft_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	draftDatamodel "github.com/frahmantamala/ward-census/internal/core/datamodel/draft"
	"github.com/frahmantamala/ward-census/internal/draft"
	draftPostgres "github.com/frahmantamala/ward-census/internal/draft/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestDraft(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Draft Suite")
}

type payload struct {
	Admissions int    `json:"admissions"`
	Comment    string `json:"comment"`
}

var _ = Describe("Service", func() {
	var (
		ctx context.Context
		svc *draft.Service
		now time.Time
		key draft.Key
	)

	BeforeEach(func() {
		ctx = context.Background()
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, _ := db.DB()
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(&draftDatamodel.Draft{})).To(Succeed())

		now = time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC)
		svc = draft.NewService(draftPostgres.NewDraftRepository(db), 0, slog.New(slog.NewTextHandler(io.Discard, nil))).
			WithClock(func() time.Time { return now })
		key = draft.Key{UserID: 1, WardID: "W1", Shift: "morning", FormDate: "2024-03-01"}
	})

	It("round-trips the payload and overwrites on resave", func() {
		_, err := svc.Save(ctx, key, payload{Admissions: 2})
		Expect(err).NotTo(HaveOccurred())
		_, err = svc.Save(ctx, key, payload{Admissions: 3, Comment: "bed 4 blocked"})
		Expect(err).NotTo(HaveOccurred())

		d, err := svc.Load(ctx, key)
		Expect(err).NotTo(HaveOccurred())
		var p payload
		Expect(d.Decode(&p)).To(Succeed())
		Expect(p).To(Equal(payload{Admissions: 3, Comment: "bed 4 blocked"}))
		Expect(d.ExpiresAt).To(BeTemporally("==", now.Add(draft.DefaultTTL)))
	})

	It("keeps drafts of different slots apart", func() {
		_, err := svc.Save(ctx, key, payload{Admissions: 1})
		Expect(err).NotTo(HaveOccurred())

		other := key
		other.Shift = "night"
		_, err = svc.Load(ctx, other)
		Expect(err).To(MatchError(draft.ErrNotFound))
	})

	It("treats a draft older than seven days as gone", func() {
		_, err := svc.Save(ctx, key, payload{Admissions: 1})
		Expect(err).NotTo(HaveOccurred())

		now = now.Add(draft.DefaultTTL)
		_, err = svc.Load(ctx, key)
		Expect(err).To(MatchError(draft.ErrNotFound))

		// the expired row was removed on read
		n, err := svc.PurgeExpired(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeZero())
	})

	It("discards and purges", func() {
		_, err := svc.Save(ctx, key, payload{})
		Expect(err).NotTo(HaveOccurred())
		Expect(svc.Discard(ctx, key)).To(Succeed())
		Expect(svc.Discard(ctx, key)).To(Succeed())

		_, err = svc.Save(ctx, key, payload{})
		Expect(err).NotTo(HaveOccurred())
		now = now.Add(8 * 24 * time.Hour)
		n, err := svc.PurgeExpired(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))
	})

	It("lists live drafts for a user", func() {
		_, err := svc.Save(ctx, key, payload{})
		Expect(err).NotTo(HaveOccurred())
		list, err := svc.ListForUser(ctx, key.UserID)
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(HaveLen(1))
		Expect(list[0].WardID).To(Equal("W1"))
	})
})
