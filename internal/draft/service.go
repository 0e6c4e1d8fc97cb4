package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

type Service struct {
	repo   Repository
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ttl: ttl, logger: logger, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Save stores payload under key and pushes the expiry a full TTL out.
func (s *Service) Save(ctx context.Context, key Key, payload interface{}) (*Draft, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode draft: %w", err)
	}

	now := s.now().UTC()
	d := &Draft{
		Key:       key,
		Payload:   raw,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Upsert(ctx, d); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	return d, nil
}

// Load returns the draft under key. An expired draft is deleted and
// reported as ErrNotFound.
func (s *Service) Load(ctx context.Context, key Key) (*Draft, error) {
	d, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if d.Expired(s.now()) {
		if _, err := s.repo.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to delete expired draft", "user_id", key.UserID, "ward_id", key.WardID, "error", err)
		}
		return nil, ErrNotFound
	}
	return d, nil
}

// Discard is a no-op when nothing is stored under key.
func (s *Service) Discard(ctx context.Context, key Key) error {
	if _, err := s.repo.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("discard draft: %w", err)
	}
	return nil
}

func (s *Service) ListForUser(ctx context.Context, userID int64) ([]Draft, error) {
	return s.repo.ListForUser(ctx, userID, s.now().UTC())
}

func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge drafts: %w", err)
	}
	if n > 0 {
		s.logger.Info("expired drafts purged", "count", n)
	}
	return n, nil
}
