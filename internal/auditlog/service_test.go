package auditlog_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/internal/auditlog"
	"github.com/frahmantamala/ward-census/internal/core/role"
	"github.com/frahmantamala/ward-census/internal/transport"
	"github.com/frahmantamala/ward-census/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestAuditLog(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Audit Log Suite")
}

type memoryRepo struct {
	mu        sync.Mutex
	entries   []auditlog.Entry
	insertErr error
	cutoff    time.Time
}

func (m *memoryRepo) Insert(_ context.Context, e *auditlog.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	e.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memoryRepo) List(_ context.Context, f auditlog.Filter) ([]auditlog.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []auditlog.Entry
	for _, e := range m.entries {
		if f.Type != "" && e.Type != f.Type {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memoryRepo) Count(ctx context.Context, f auditlog.Filter) (int64, error) {
	list, _ := m.List(ctx, f)
	return int64(len(list)), nil
}

func (m *memoryRepo) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cutoff = before
	kept := m.entries[:0]
	var n int64
	for _, e := range m.entries {
		if e.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return n, nil
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

var _ = Describe("Recorder", func() {
	It("fills client details from the context", func() {
		repo := &memoryRepo{}
		rec := auditlog.NewRecorder(repo, quiet)
		ctx := internal.ContextWithClient(context.Background(), "10.1.1.1", "tablet")

		rec.Event(ctx, auditlog.Entry{Type: auditlog.TypeLogin, Message: "ok"})

		Expect(repo.entries).To(HaveLen(1))
		Expect(repo.entries[0].IPAddress).To(Equal("10.1.1.1"))
		Expect(repo.entries[0].Level).To(Equal(auditlog.LevelInfo))
		Expect(repo.entries[0].CreatedAt).NotTo(BeZero())
	})

	It("swallows storage failures", func() {
		rec := auditlog.NewRecorder(&memoryRepo{insertErr: errors.New("db down")}, quiet)
		Expect(func() { rec.Event(context.Background(), auditlog.Entry{Type: "x"}) }).NotTo(Panic())
	})

	It("persists error logs through the logger sink", func() {
		repo := &memoryRepo{}
		rec := auditlog.NewRecorder(repo, quiet)
		log := slog.New(logger.NewPersistingHandler(slog.NewTextHandler(io.Discard, nil), rec))

		log.Info("not stored")
		log.Error("form save failed", "ward", "W1")

		Expect(repo.entries).To(HaveLen(1))
		Expect(repo.entries[0].Type).To(Equal(auditlog.TypeAppError))
		Expect(string(repo.entries[0].Details)).To(ContainSubstring(`"ward":"W1"`))
	})
})

var _ = Describe("Handler", func() {
	var (
		repo    *memoryRepo
		handler *auditlog.Handler
		actor   = &internal.Principal{UserID: 1, Username: "root", Role: role.SuperAdmin}
	)

	BeforeEach(func() {
		repo = &memoryRepo{}
		rec := auditlog.NewRecorder(repo, quiet)
		svc := auditlog.NewService(repo, rec, quiet)
		handler = auditlog.NewHandler(transport.NewBaseHandler(quiet), svc)

		old := time.Now().Add(-40 * 24 * time.Hour)
		repo.entries = []auditlog.Entry{
			{ID: 1, Type: "app.error", CreatedAt: old},
			{ID: 2, Type: "auth.login", CreatedAt: time.Now()},
		}
	})

	cleanup := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/admin/logs/cleanup", bytes.NewBufferString(body))
		req = req.WithContext(internal.ContextWithPrincipal(req.Context(), actor))
		w := httptest.NewRecorder()
		handler.CleanupLogs(w, req)
		return w
	}

	It("deletes old entries and reports the count", func() {
		w := cleanup(`{"older_than_days": 30}`)
		Expect(w.Code).To(Equal(http.StatusOK))

		var resp struct {
			Success bool                     `json:"success"`
			Data    auditlog.CleanupResponse `json:"data"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Success).To(BeTrue())
		Expect(resp.Data.Deleted).To(Equal(int64(1)))

		// the cleanup itself is recorded
		Expect(repo.entries).To(HaveLen(2))
		Expect(repo.entries[1].Type).To(Equal(auditlog.TypeLogCleanup))
	})

	It("rejects a zero retention", func() {
		w := cleanup(`{"older_than_days": 0}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(w.Body.String()).To(ContainSubstring(`"success":false`))
	})

	It("lists entries filtered by type", func() {
		req := httptest.NewRequest(http.MethodGet, "/admin/logs?type=auth.login", nil)
		w := httptest.NewRecorder()
		handler.ListLogs(w, req)
		Expect(w.Code).To(Equal(http.StatusOK))

		var resp struct {
			Data auditlog.ListResult `json:"data"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Data.Total).To(Equal(int64(1)))
	})
})
