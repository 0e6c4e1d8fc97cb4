package auditlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/ward-census/internal"
)

const minRetentionDays = 1

type Service struct {
	repo     RepositoryAPI
	recorder *Recorder
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo RepositoryAPI, recorder *Recorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, recorder: recorder, logger: logger, now: time.Now}
}

func (s *Service) List(ctx context.Context, f Filter) (*ListResult, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	entries, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, internal.NewInternalError("failed to list logs", err)
	}
	total, err := s.repo.Count(ctx, f)
	if err != nil {
		return nil, internal.NewInternalError("failed to count logs", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return &ListResult{Entries: entries, Total: total}, nil
}

// Cleanup deletes entries older than olderThanDays and returns how many.
func (s *Service) Cleanup(ctx context.Context, actor *internal.Principal, olderThanDays int) (int64, error) {
	if olderThanDays < minRetentionDays {
		return 0, internal.NewValidationFieldError("older_than_days", "older_than_days must be at least 1", internal.ErrCodeValidationFailed)
	}
	return s.purge(ctx, actor, time.Duration(olderThanDays)*24*time.Hour)
}

// PurgeExpired applies the configured retention; used by maintenance.
func (s *Service) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	return s.purge(ctx, nil, retention)
}

func (s *Service) purge(ctx context.Context, actor *internal.Principal, age time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-age)
	deleted, err := s.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, internal.NewInternalError("failed to clean up logs", err)
	}

	s.logger.Info("system logs cleaned up", "deleted", deleted, "cutoff", cutoff)
	if actor != nil {
		uid := actor.UserID
		s.recorder.Event(ctx, Entry{
			Type:     TypeLogCleanup,
			UserID:   &uid,
			Username: actor.Username,
			Message:  "system logs cleaned up",
			Details:  Details(map[string]interface{}{"deleted": deleted, "cutoff": cutoff}),
		})
	}
	return deleted, nil
}
