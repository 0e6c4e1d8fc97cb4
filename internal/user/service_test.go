package user_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/frahmantamala/ward-census/internal"
	userDatamodel "github.com/frahmantamala/ward-census/internal/core/datamodel/user"
	"github.com/frahmantamala/ward-census/internal/core/role"
	"github.com/frahmantamala/ward-census/internal/session"
	"github.com/frahmantamala/ward-census/internal/user"
	userPostgres "github.com/frahmantamala/ward-census/internal/user/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestUser(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "User Suite")
}

type recordingTerminator struct {
	ended   []int64
	reasons []session.EndReason
}

func (r *recordingTerminator) EndAllForUser(_ context.Context, userID int64, reason session.EndReason) error {
	r.ended = append(r.ended, userID)
	r.reasons = append(r.reasons, reason)
	return nil
}

func newRepo() *userPostgres.UserRepository {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	Expect(err).NotTo(HaveOccurred())
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	Expect(db.AutoMigrate(&userDatamodel.User{})).To(Succeed())
	return userPostgres.NewUserRepository(db)
}

var (
	quiet = slog.New(slog.NewTextHandler(io.Discard, nil))
	admin = &internal.Principal{UserID: 100, Username: "admin", Role: role.Admin}
	dev   = &internal.Principal{UserID: 101, Username: "dev", Role: role.Developer}
)

var _ = Describe("Service", func() {
	var (
		ctx        context.Context
		repo       *userPostgres.UserRepository
		terminator *recordingTerminator
		svc        *user.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = newRepo()
		terminator = &recordingTerminator{}
		svc = user.NewService(repo, terminator, bcrypt.MinCost, quiet)
	})

	createNurse := func(name string, wards ...string) *user.User {
		u, err := svc.Create(ctx, admin, user.CreateUserDTO{
			Username: name, Password: "password123", Role: role.Nurse, Wards: wards,
		})
		Expect(err).NotTo(HaveOccurred())
		return u
	}

	Describe("Create", func() {
		It("hashes the password and stores ward assignments", func() {
			u := createNurse("nurse.ann", "W1", "W2", "W1", " ")
			Expect(u.ID).To(BeNumerically(">", 0))
			Expect(u.IsActive).To(BeTrue())
			Expect(bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("password123"))).To(Succeed())

			stored, err := repo.GetByUsername(ctx, "NURSE.ANN")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Wards).To(Equal([]string{"W1", "W2"}))
		})

		It("rejects duplicate usernames with a conflict", func() {
			createNurse("nurse.ann")
			_, err := svc.Create(ctx, admin, user.CreateUserDTO{Username: "Nurse.Ann", Password: "password123", Role: role.Nurse})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(409))
		})

		It("validates the body", func() {
			_, err := svc.Create(ctx, admin, user.CreateUserDTO{Username: "x", Password: "short", Role: "chief"})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(400))
		})

		It("stops admins from creating peers", func() {
			_, err := svc.Create(ctx, admin, user.CreateUserDTO{Username: "other.admin", Password: "password123", Role: role.Admin})
			Expect(err).To(MatchError(ContainSubstring("cannot manage")))

			_, err = svc.Create(ctx, dev, user.CreateUserDTO{Username: "other.admin", Password: "password123", Role: role.Admin})
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("Update", func() {
		It("deactivates and ends the user's sessions", func() {
			u := createNurse("nurse.bob")
			inactive := false
			updated, err := svc.Update(ctx, admin, u.ID, user.UpdateUserDTO{IsActive: &inactive})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.IsActive).To(BeFalse())
			Expect(terminator.ended).To(Equal([]int64{u.ID}))
			Expect(terminator.reasons).To(Equal([]session.EndReason{session.ReasonDeactivated}))

			stored, _ := repo.GetByID(ctx, u.ID)
			Expect(stored.IsActive).To(BeFalse())
		})

		It("changes role and wards", func() {
			u := createNurse("nurse.cat", "W1")
			approver := role.Approver
			wards := []string{"W3"}
			updated, err := svc.Update(ctx, admin, u.ID, user.UpdateUserDTO{Role: &approver, Wards: &wards})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Role).To(Equal(role.Approver))

			stored, _ := repo.GetByID(ctx, u.ID)
			Expect(stored.Wards).To(Equal([]string{"W3"}))
			Expect(terminator.ended).To(BeEmpty())
		})

		It("refuses self deactivation", func() {
			self, err := svc.Create(ctx, dev, user.CreateUserDTO{Username: "admin2", Password: "password123", Role: role.Nurse})
			Expect(err).NotTo(HaveOccurred())
			actor := &internal.Principal{UserID: self.ID, Role: role.Developer}
			Expect(svc.Deactivate(ctx, actor, self.ID)).NotTo(Succeed())
		})

		It("returns not found for unknown users", func() {
			_, err := svc.Update(ctx, admin, 999, user.UpdateUserDTO{})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(404))
		})
	})

	It("resets passwords and signs the user out", func() {
		u := createNurse("nurse.dan")
		Expect(svc.ResetPassword(ctx, admin, u.ID, user.ResetPasswordDTO{Password: "newpassword1"})).To(Succeed())
		stored, _ := repo.GetByID(ctx, u.ID)
		Expect(bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("newpassword1"))).To(Succeed())
		Expect(terminator.ended).To(Equal([]int64{u.ID}))
		Expect(terminator.reasons).To(Equal([]session.EndReason{session.ReasonPasswordReset}))
	})

	Describe("List", func() {
		BeforeEach(func() {
			createNurse("a.nurse", "W1")
			createNurse("b.nurse", "W2")
			_, err := svc.Create(ctx, admin, user.CreateUserDTO{Username: "c.approver", Password: "password123", Role: role.Approver, Wards: []string{"W1"}})
			Expect(err).NotTo(HaveOccurred())
		})

		It("filters by role and ward", func() {
			resp, err := svc.List(ctx, user.Filter{Role: role.Nurse})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Total).To(Equal(int64(2)))

			resp, err = svc.List(ctx, user.Filter{WardID: "W1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Users).To(HaveLen(2))
		})

		It("finds the approvers of a ward", func() {
			approvers, err := svc.Approvers(ctx, "W1")
			Expect(err).NotTo(HaveOccurred())
			Expect(approvers).To(HaveLen(1))
			Expect(approvers[0].Username).To(Equal("c.approver"))
		})
	})
})
