package notification_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/frahmantamala/ward-census/internal"
	notificationDatamodel "github.com/frahmantamala/ward-census/internal/core/datamodel/notification"
	"github.com/frahmantamala/ward-census/internal/core/events"
	"github.com/frahmantamala/ward-census/internal/core/role"
	"github.com/frahmantamala/ward-census/internal/notification"
	notificationPostgres "github.com/frahmantamala/ward-census/internal/notification/postgres"
	"github.com/frahmantamala/ward-census/internal/user"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestNotification(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Notification Suite")
}

var (
	quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

	alice = &internal.Principal{UserID: 1, Username: "alice", Role: role.Nurse, Wards: []string{"W1"}}
	bob   = &internal.Principal{UserID: 2, Username: "bob", Role: role.Nurse, Wards: []string{"W1"}}
	boss  = &internal.Principal{UserID: 9, Username: "boss", Role: role.Admin}
)

func newService() *notification.Service {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	Expect(err).NotTo(HaveOccurred())
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	Expect(db.AutoMigrate(&notificationDatamodel.Notification{}, &notificationDatamodel.Recipient{})).To(Succeed())
	return notification.NewService(notificationPostgres.NewNotificationRepository(db), quietLogger)
}

var _ = Describe("Service", func() {
	var (
		ctx context.Context
		svc *notification.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		svc = newService()
	})

	create := func(title string, t notification.Type, recipients ...int64) *notification.Notification {
		n, err := svc.Create(ctx, boss, notification.CreateDTO{
			Title: title, Message: "body", Type: t, Recipients: recipients,
		})
		Expect(err).NotTo(HaveOccurred())
		return n
	}

	It("validates the payload", func() {
		_, err := svc.Create(ctx, boss, notification.CreateDTO{Title: "x", Message: "y"})
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.StatusCode).To(Equal(http.StatusBadRequest))

		_, err = svc.Create(ctx, boss, notification.CreateDTO{Title: "x", Message: "y", Type: "urgent", Recipients: []int64{1}})
		Expect(err).To(HaveOccurred())
	})

	It("tracks read state per recipient", func() {
		n := create("Census due", notification.TypeInfo, 1, 2, 2)
		Expect(n.Recipients).To(ConsistOf(int64(1), int64(2)))
		Expect(*n.CreatedBy).To(Equal(boss.UserID))

		Expect(svc.MarkRead(ctx, alice, n.ID)).To(Succeed())

		aliceList, err := svc.ListForUser(ctx, alice, false, 0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(aliceList.Total).To(Equal(int64(1)))
		Expect(aliceList.Unread).To(BeZero())
		Expect(aliceList.Notifications[0].IsRead).To(BeTrue())
		Expect(aliceList.Notifications[0].ReadAt).NotTo(BeNil())

		bobCount, err := svc.UnreadCount(ctx, bob)
		Expect(err).NotTo(HaveOccurred())
		Expect(bobCount).To(Equal(int64(1)))
	})

	It("does not let outsiders mark a notification read", func() {
		n := create("Census due", notification.TypeInfo, 1)
		err := svc.MarkRead(ctx, bob, n.ID)
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Code).To(Equal(internal.ErrCodeNotificationMissing))
	})

	It("marks everything read and filters unread", func() {
		create("one", notification.TypeInfo, 1)
		create("two", notification.TypeWarning, 1)

		unread, err := svc.ListForUser(ctx, alice, true, 10, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(unread.Notifications).To(HaveLen(2))
		Expect(unread.Notifications[0].Title).To(Equal("two"))

		n, err := svc.MarkAllRead(ctx, alice)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(2)))

		unread, err = svc.ListForUser(ctx, alice, true, 10, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(unread.Notifications).To(BeEmpty())
	})

	It("removes only the caller's copy for non-admins", func() {
		n := create("shared", notification.TypeInfo, 1, 2)
		Expect(svc.Delete(ctx, alice, n.ID)).To(Succeed())

		aliceList, _ := svc.ListForUser(ctx, alice, false, 0, 0)
		Expect(aliceList.Total).To(BeZero())
		bobList, _ := svc.ListForUser(ctx, bob, false, 0, 0)
		Expect(bobList.Total).To(Equal(int64(1)))

		Expect(svc.Delete(ctx, alice, n.ID)).To(MatchError(notification.ErrNotificationNotFound))
	})

	It("lets admins delete for everyone", func() {
		a := create("a", notification.TypeInfo, 1, 2)
		b := create("b", notification.TypeInfo, 1)

		n, err := svc.DeleteMany(ctx, boss, notification.BulkDeleteDTO{IDs: []int64{a.ID, b.ID, a.ID}})
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(2)))

		bobList, _ := svc.ListForUser(ctx, bob, false, 0, 0)
		Expect(bobList.Total).To(BeZero())
	})

	It("deletes by type for admins only", func() {
		create("warn", notification.TypeWarning, 1)
		create("info", notification.TypeInfo, 1)

		_, err := svc.DeleteByType(ctx, alice, notification.TypeWarning)
		Expect(err).To(MatchError(internal.ErrInsufficientRole))

		n, err := svc.DeleteByType(ctx, boss, notification.TypeWarning)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))

		list, _ := svc.ListForUser(ctx, alice, false, 0, 0)
		Expect(list.Notifications).To(HaveLen(1))
		Expect(list.Notifications[0].Type).To(Equal(notification.TypeInfo))
	})
})

type fakeApprovers struct {
	users []*user.User
}

func (f *fakeApprovers) Approvers(_ context.Context, _ string) ([]*user.User, error) {
	return f.users, nil
}

var _ = Describe("Subscriber", func() {
	var (
		ctx context.Context
		svc *notification.Service
		bus *events.EventBus
	)

	BeforeEach(func() {
		ctx = context.Background()
		svc = newService()
		bus = events.NewEventBus(quietLogger)
		approvers := &fakeApprovers{users: []*user.User{{ID: 9}, {ID: 7}, {ID: 1}}}
		notification.NewSubscriber(svc, approvers, quietLogger).Register(bus)
	})

	inbox := func(p *internal.Principal) []*notification.Notification {
		list, err := svc.ListForUser(ctx, p, false, 0, 0)
		Expect(err).NotTo(HaveOccurred())
		return list.Notifications
	}

	It("notifies the ward's approvers when a form is finalized", func() {
		e := events.NewFormEvent(events.EventTypeFormFinalized, 5, "W1", "2024-03-02", "morning", 1, 1, "")
		Expect(bus.PublishSync(ctx, e)).To(Succeed())

		Expect(inbox(boss)).To(HaveLen(1))
		Expect(inbox(boss)[0].Link).To(Equal("/forms/5"))
		Expect(inbox(alice)).To(BeEmpty())
	})

	It("tells the author about review outcomes", func() {
		Expect(bus.PublishSync(ctx, events.NewFormEvent(events.EventTypeFormRejected, 5, "W1", "2024-03-02", "morning", 9, 1, "recount"))).To(Succeed())
		Expect(bus.PublishSync(ctx, events.NewFormEvent(events.EventTypeFormApproved, 5, "W1", "2024-03-02", "morning", 9, 1, ""))).To(Succeed())

		got := inbox(alice)
		Expect(got).To(HaveLen(2))
		types := []notification.Type{got[0].Type, got[1].Type}
		Expect(types).To(ConsistOf(notification.TypeError, notification.TypeSuccess))
	})

	It("warns the author about missing previous shift data", func() {
		e := events.NewFormEvent(events.EventTypeFormPreviousMissing, 5, "W1", "2024-03-02", "morning", 1, 1, "")
		Expect(bus.Publish(ctx, e)).To(Succeed())
		bus.Wait()

		got := inbox(alice)
		Expect(got).To(HaveLen(1))
		Expect(got[0].Type).To(Equal(notification.TypeWarning))
		Expect(string(got[0].Metadata)).To(ContainSubstring(`"form_id":5`))
	})
})
