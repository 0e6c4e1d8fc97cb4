package auditlog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/pkg/logger"
)

// Recorder writes entries without ever failing the caller. It doubles as
// the logger.Sink that persists application error records.
type Recorder struct {
	repo    RepositoryAPI
	timeout time.Duration
	// fallback must not feed back into the persisting handler
	fallback *slog.Logger
	now      func() time.Time
}

func NewRecorder(repo RepositoryAPI, fallback *slog.Logger) *Recorder {
	if fallback == nil {
		fallback = slog.Default()
	}
	return &Recorder{repo: repo, timeout: 3 * time.Second, fallback: fallback, now: time.Now}
}

// Event stores e, filling client and time details from ctx when missing.
func (r *Recorder) Event(ctx context.Context, e Entry) {
	if r == nil || r.repo == nil {
		return
	}
	if e.Level == "" {
		e.Level = LevelInfo
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}
	if e.IPAddress == "" && e.UserAgent == "" {
		e.IPAddress, e.UserAgent = internal.ClientFromContext(ctx)
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	if err := r.repo.Insert(writeCtx, &e); err != nil {
		r.fallback.Warn("failed to persist system log", "type", e.Type, "error", err)
	}
}

// Persist implements logger.Sink.
func (r *Recorder) Persist(ctx context.Context, rec logger.Record) {
	details, err := json.Marshal(rec.Attrs)
	if err != nil {
		details = []byte("{}")
	}
	r.Event(ctx, Entry{
		Level:     LevelError,
		Type:      TypeAppError,
		Message:   rec.Message,
		Details:   details,
		CreatedAt: rec.Time.UTC(),
	})
}

// Details marshals v for Entry.Details, dropping it on failure.
func Details(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
