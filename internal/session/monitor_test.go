package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/frahmantamala/ward-census/internal/session"
	sessionPostgres "github.com/frahmantamala/ward-census/internal/session/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeSource struct {
	mu       sync.Mutex
	current  string
	failures int
	reads    int
}

func (f *fakeSource) set(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = id
}

func (f *fakeSource) CurrentSessionID(_ context.Context, _ int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.failures > 0 {
		f.failures--
		return "", errors.New("network down")
	}
	return f.current, nil
}

func (f *fakeSource) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

var _ = Describe("Monitor", func() {
	const interval = 10 * time.Millisecond

	var (
		ctx    context.Context
		source *fakeSource
		fired  atomic.Int32
		mon    *session.Monitor
	)

	BeforeEach(func() {
		ctx = context.Background()
		source = &fakeSource{current: "s1"}
		fired.Store(0)
		mon = session.NewMonitor(source, interval, quietLogger)
	})

	AfterEach(func() {
		mon.Stop()
	})

	onForce := func() { fired.Add(1) }

	It("starts idle and moves to monitoring", func() {
		Expect(mon.State()).To(Equal(session.StateIdle))
		Expect(mon.Start(ctx, 1, "s1", onForce)).To(Succeed())
		Expect(mon.State()).To(Equal(session.StateMonitoring))
	})

	It("fires exactly once when another login takes over", func() {
		Expect(mon.Start(ctx, 1, "s1", onForce)).To(Succeed())
		Consistently(fired.Load, 5*interval).Should(BeZero())

		source.set("s2")
		Eventually(fired.Load).Should(Equal(int32(1)))
		Expect(mon.State()).To(Equal(session.StateTriggered))

		source.set("s3")
		Consistently(fired.Load, 5*interval).Should(Equal(int32(1)))
		Eventually(mon.Done()).Should(BeClosed())
	})

	It("detects a mismatch on the very first observation", func() {
		source.set("other")
		Expect(mon.Start(ctx, 1, "s1", onForce)).To(Succeed())
		Eventually(fired.Load).Should(Equal(int32(1)))
	})

	It("treats a cleared pointer as superseded", func() {
		Expect(mon.Start(ctx, 1, "s1", onForce)).To(Succeed())
		source.set("")
		Eventually(fired.Load).Should(Equal(int32(1)))
	})

	It("retries after read errors without firing", func() {
		source.failures = 3
		Expect(mon.Start(ctx, 1, "s1", onForce)).To(Succeed())
		Eventually(source.readCount).Should(BeNumerically(">", 3))
		Expect(fired.Load()).To(BeZero())
		Expect(mon.State()).To(Equal(session.StateMonitoring))
	})

	It("never fires after Stop", func() {
		Expect(mon.Start(ctx, 1, "s1", onForce)).To(Succeed())
		mon.Stop()
		source.set("s2")

		Consistently(fired.Load, 5*interval).Should(BeZero())
		Expect(mon.State()).To(Equal(session.StateStopped))
		Eventually(mon.Done()).Should(BeClosed())
	})

	It("tolerates repeated Stop calls, including before Start", func() {
		mon.Stop()
		Expect(mon.State()).To(Equal(session.StateIdle))
		Expect(mon.Start(ctx, 1, "s1", onForce)).To(Succeed())
		mon.Stop()
		mon.Stop()
		Expect(mon.State()).To(Equal(session.StateStopped))
	})

	It("can be stopped from inside the callback", func() {
		source.set("s2")
		Expect(mon.Start(ctx, 1, "s1", func() {
			fired.Add(1)
			mon.Stop()
		})).To(Succeed())
		Eventually(fired.Load).Should(Equal(int32(1)))
		Eventually(mon.Done()).Should(BeClosed())
		Expect(mon.State()).To(Equal(session.StateTriggered))
	})

	It("refuses a second Start", func() {
		Expect(mon.Start(ctx, 1, "s1", onForce)).To(Succeed())
		Expect(mon.Start(ctx, 1, "s1", onForce)).To(MatchError(session.ErrMonitorStarted))
	})

	It("stops when the parent context ends", func() {
		runCtx, cancel := context.WithCancel(ctx)
		Expect(mon.Start(runCtx, 1, "s1", onForce)).To(Succeed())
		cancel()
		Eventually(mon.Done()).Should(BeClosed())
		Expect(mon.State()).To(Equal(session.StateStopped))
	})

	Context("against the session manager", func() {
		It("forces the first device out when the user logs in again", func() {
			manager := session.NewManager(sessionPostgres.NewSessionRepository(openDB()), time.Hour, quietLogger)
			first, err := manager.CreateSession(ctx, 7, session.DeviceInfo{UserAgent: "tablet"})
			Expect(err).NotTo(HaveOccurred())

			m := session.NewMonitor(manager, interval, quietLogger)
			defer m.Stop()
			Expect(m.Start(ctx, 7, first, onForce)).To(Succeed())
			Consistently(fired.Load, 5*interval).Should(BeZero())

			_, err = manager.CreateSession(ctx, 7, session.DeviceInfo{UserAgent: "desktop"})
			Expect(err).NotTo(HaveOccurred())
			Eventually(fired.Load).Should(Equal(int32(1)))
		})
	})
})
