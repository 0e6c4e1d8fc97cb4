package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/internal/core/events"
	"github.com/frahmantamala/ward-census/internal/user"
)

type Creator interface {
	Create(ctx context.Context, actor *internal.Principal, dto CreateDTO) (*Notification, error)
}

type ApproverLookup interface {
	Approvers(ctx context.Context, wardID string) ([]*user.User, error)
}

// Subscriber turns ward form lifecycle events into notifications.
type Subscriber struct {
	notifications Creator
	approvers     ApproverLookup
	logger        *slog.Logger
}

func NewSubscriber(notifications Creator, approvers ApproverLookup, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{notifications: notifications, approvers: approvers, logger: logger}
}

func (s *Subscriber) Register(bus *events.EventBus) {
	bus.Subscribe(events.EventTypeFormFinalized, s.onFinalized)
	bus.Subscribe(events.EventTypeFormApproved, s.onApproved)
	bus.Subscribe(events.EventTypeFormRejected, s.onRejected)
	bus.Subscribe(events.EventTypeFormPreviousMissing, s.onPreviousMissing)
}

func (s *Subscriber) onFinalized(ctx context.Context, e events.Event) error {
	fe, ok := events.FormEventFromData(e)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", e.EventType())
	}

	approvers, err := s.approvers.Approvers(ctx, fe.WardID)
	if err != nil {
		return fmt.Errorf("load approvers for ward %s: %w", fe.WardID, err)
	}
	recipients := make([]int64, 0, len(approvers))
	for _, u := range approvers {
		if u.ID != fe.ActorID {
			recipients = append(recipients, u.ID)
		}
	}
	if len(recipients) == 0 {
		s.logger.Warn("no approvers to notify", "ward_id", fe.WardID, "form_id", fe.FormID)
		return nil
	}

	return s.create(ctx, fe, CreateDTO{
		Title:      "Ward form awaiting approval",
		Message:    fmt.Sprintf("%s shift of %s for ward %s was submitted for approval", fe.Shift, fe.FormDate, fe.WardID),
		Type:       TypeInfo,
		Recipients: recipients,
	})
}

func (s *Subscriber) onApproved(ctx context.Context, e events.Event) error {
	fe, ok := events.FormEventFromData(e)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", e.EventType())
	}
	return s.create(ctx, fe, CreateDTO{
		Title:      "Ward form approved",
		Message:    fmt.Sprintf("Your %s shift form of %s for ward %s was approved", fe.Shift, fe.FormDate, fe.WardID),
		Type:       TypeSuccess,
		Recipients: []int64{fe.CreatorID},
	})
}

func (s *Subscriber) onRejected(ctx context.Context, e events.Event) error {
	fe, ok := events.FormEventFromData(e)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", e.EventType())
	}
	return s.create(ctx, fe, CreateDTO{
		Title:      "Ward form returned",
		Message:    fmt.Sprintf("Your %s shift form of %s for ward %s was rejected: %s", fe.Shift, fe.FormDate, fe.WardID, fe.Reason),
		Type:       TypeError,
		Recipients: []int64{fe.CreatorID},
	})
}

func (s *Subscriber) onPreviousMissing(ctx context.Context, e events.Event) error {
	fe, ok := events.FormEventFromData(e)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", e.EventType())
	}
	return s.create(ctx, fe, CreateDTO{
		Title:      "Previous shift data missing",
		Message:    fmt.Sprintf("No finalized form precedes the %s shift of %s for ward %s; the entered patient census was used", fe.Shift, fe.FormDate, fe.WardID),
		Type:       TypeWarning,
		Recipients: []int64{fe.CreatorID},
	})
}

func (s *Subscriber) create(ctx context.Context, fe *events.FormEvent, dto CreateDTO) error {
	dto.Link = fmt.Sprintf("/forms/%d", fe.FormID)
	dto.Metadata = map[string]interface{}{
		"event":     fe.EventType(),
		"form_id":   fe.FormID,
		"ward_id":   fe.WardID,
		"form_date": fe.FormDate,
		"shift":     fe.Shift,
	}
	if _, err := s.notifications.Create(ctx, nil, dto); err != nil {
		return fmt.Errorf("notify %s: %w", fe.EventType(), err)
	}
	return nil
}
