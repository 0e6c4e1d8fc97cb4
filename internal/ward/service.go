package ward

import (
	"context"
	"errors"
	"log/slog"

	"github.com/frahmantamala/ward-census/internal"
)

type RepositoryAPI interface {
	ListActive(ctx context.Context) ([]*Ward, error)
	GetByID(ctx context.Context, id string) (*Ward, error)
	Upsert(ctx context.Context, w *Ward) error
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// ListForPrincipal returns the active wards the caller may see.
func (s *Service) ListForPrincipal(ctx context.Context, p *internal.Principal) ([]WardResponse, error) {
	wards, err := s.repo.ListActive(ctx)
	if err != nil {
		s.logger.Error("failed to list wards", "error", err)
		return nil, internal.NewInternalError("failed to list wards", err)
	}

	out := make([]WardResponse, 0, len(wards))
	for _, w := range wards {
		if p != nil && !p.CanAccessWard(w.ID) {
			continue
		}
		out = append(out, w.ToResponse())
	}
	return out, nil
}

// ActiveIDs lists every active ward code in display order.
func (s *Service) ActiveIDs(ctx context.Context) ([]string, error) {
	wards, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(wards))
	for i, w := range wards {
		ids[i] = w.ID
	}
	return ids, nil
}

// Get returns an active ward or a not-found AppError.
func (s *Service) Get(ctx context.Context, id string) (*Ward, error) {
	w, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, internal.NewNotFoundError("Ward not found", internal.ErrCodeWardNotFound)
		}
		return nil, internal.NewInternalError("failed to load ward", err)
	}
	if !w.IsActive {
		return nil, internal.NewNotFoundError("Ward not found", internal.ErrCodeWardNotFound)
	}
	return w, nil
}
