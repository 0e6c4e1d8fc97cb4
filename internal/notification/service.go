package notification

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/internal/core/common/validation"
)

type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Create stores a notification for every listed recipient. actor is nil
// for notifications raised by the system.
func (s *Service) Create(ctx context.Context, actor *internal.Principal, dto CreateDTO) (*Notification, error) {
	dto.Title = strings.TrimSpace(dto.Title)
	dto.Message = strings.TrimSpace(dto.Message)
	if dto.Type == "" {
		dto.Type = TypeInfo
	}
	if verr := validation.Struct(dto); verr != nil {
		return nil, verr
	}

	n := &Notification{
		Title:      dto.Title,
		Message:    dto.Message,
		Type:       dto.Type,
		Link:       dto.Link,
		CreatedAt:  s.now().UTC(),
		Recipients: uniqueIDs(dto.Recipients),
	}
	if actor != nil {
		id := actor.UserID
		n.CreatedBy = &id
	}
	if len(dto.Metadata) > 0 {
		raw, err := json.Marshal(dto.Metadata)
		if err != nil {
			return nil, internal.NewValidationFieldError("metadata", "metadata must be a JSON object", internal.ErrCodeInvalidRequest)
		}
		n.Metadata = raw
	}

	if err := s.repo.Create(ctx, n); err != nil {
		s.logger.Error("failed to create notification", "title", n.Title, "error", err)
		return nil, internal.NewInternalError("failed to create notification", err)
	}
	s.logger.Debug("notification created", "notification_id", n.ID, "recipients", len(n.Recipients))
	return n, nil
}

func (s *Service) ListForUser(ctx context.Context, actor *internal.Principal, unreadOnly bool, limit, offset int) (*ListResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	items, total, err := s.repo.ListForUser(ctx, actor.UserID, unreadOnly, limit, offset)
	if err != nil {
		return nil, internal.NewInternalError("failed to list notifications", err)
	}
	unread, err := s.repo.UnreadCount(ctx, actor.UserID)
	if err != nil {
		return nil, internal.NewInternalError("failed to count notifications", err)
	}
	if items == nil {
		items = []*Notification{}
	}
	return &ListResponse{Notifications: items, Total: total, Unread: unread}, nil
}

func (s *Service) UnreadCount(ctx context.Context, actor *internal.Principal) (int64, error) {
	n, err := s.repo.UnreadCount(ctx, actor.UserID)
	if err != nil {
		return 0, internal.NewInternalError("failed to count notifications", err)
	}
	return n, nil
}

// MarkRead only touches the caller's own recipient row.
func (s *Service) MarkRead(ctx context.Context, actor *internal.Principal, id int64) error {
	err := s.repo.MarkRead(ctx, id, actor.UserID, s.now().UTC())
	if errors.Is(err, ErrNotFound) {
		return ErrNotificationNotFound
	}
	if err != nil {
		return internal.NewInternalError("failed to mark notification read", err)
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, actor *internal.Principal) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, actor.UserID, s.now().UTC())
	if err != nil {
		return 0, internal.NewInternalError("failed to mark notifications read", err)
	}
	return n, nil
}

// Delete removes a notification everywhere for admins. Anyone else only
// removes it from their own inbox.
func (s *Service) Delete(ctx context.Context, actor *internal.Principal, id int64) error {
	n, err := s.delete(ctx, actor, []int64{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *Service) DeleteMany(ctx context.Context, actor *internal.Principal, dto BulkDeleteDTO) (int64, error) {
	if verr := validation.Struct(dto); verr != nil {
		return 0, verr
	}
	return s.delete(ctx, actor, uniqueIDs(dto.IDs))
}

func (s *Service) DeleteByType(ctx context.Context, actor *internal.Principal, t Type) (int64, error) {
	if !actor.Role.IsAdmin() {
		return 0, internal.ErrInsufficientRole
	}
	if !t.Valid() {
		return 0, internal.NewValidationFieldError("type", "type must be one of info, warning, error, success", internal.ErrCodeInvalidRequest)
	}
	n, err := s.repo.DeleteByType(ctx, t)
	if err != nil {
		return 0, internal.NewInternalError("failed to delete notifications", err)
	}
	s.logger.Info("notifications deleted by type", "type", t, "deleted", n, "user_id", actor.UserID)
	return n, nil
}

func (s *Service) delete(ctx context.Context, actor *internal.Principal, ids []int64) (int64, error) {
	var (
		n   int64
		err error
	)
	if actor.Role.IsAdmin() {
		n, err = s.repo.Delete(ctx, ids)
	} else {
		n, err = s.repo.RemoveRecipient(ctx, ids, actor.UserID)
	}
	if err != nil {
		return 0, internal.NewInternalError("failed to delete notifications", err)
	}
	return n, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
