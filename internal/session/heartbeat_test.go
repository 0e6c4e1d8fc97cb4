package session_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/frahmantamala/ward-census/internal/session"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type scriptedBeater struct {
	mu     sync.Mutex
	script []error
	calls  int
}

func (b *scriptedBeater) Heartbeat(context.Context, int64, string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if len(b.script) == 0 {
		return nil
	}
	err := b.script[0]
	b.script = b.script[1:]
	return err
}

func (b *scriptedBeater) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

var _ = Describe("Heartbeat", func() {
	const interval = 10 * time.Millisecond

	It("keeps beating through transient errors", func() {
		beater := &scriptedBeater{script: []error{errors.New("timeout"), errors.New("timeout")}}
		hb := session.NewHeartbeat(beater, interval, quietLogger)
		defer hb.Stop()

		Expect(hb.Start(context.Background(), 1, "s1", nil)).To(Succeed())
		Eventually(beater.callCount).Should(BeNumerically(">=", 4))
		Expect(hb.Running()).To(BeTrue())
	})

	It("reports supersession once and stops", func() {
		beater := &scriptedBeater{script: []error{nil, session.ErrSessionSuperseded}}
		hb := session.NewHeartbeat(beater, interval, quietLogger)

		var (
			mu    sync.Mutex
			ended []error
		)
		Expect(hb.Start(context.Background(), 1, "s1", func(err error) {
			mu.Lock()
			defer mu.Unlock()
			ended = append(ended, err)
		})).To(Succeed())

		Eventually(func() int {
			mu.Lock()
			defer mu.Unlock()
			return len(ended)
		}).Should(Equal(1))
		Expect(ended[0]).To(MatchError(session.ErrSessionSuperseded))
		Expect(hb.Running()).To(BeFalse())

		calls := beater.callCount()
		Consistently(beater.callCount, 5*interval).Should(Equal(calls))
	})

	It("stops beating on Stop", func() {
		beater := &scriptedBeater{}
		hb := session.NewHeartbeat(beater, interval, quietLogger)
		Expect(hb.Start(context.Background(), 1, "s1", nil)).To(Succeed())
		Eventually(beater.callCount).Should(BeNumerically(">=", 1))

		hb.Stop()
		time.Sleep(2 * interval)
		calls := beater.callCount()
		Consistently(beater.callCount, 5*interval).Should(Equal(calls))
	})
})
