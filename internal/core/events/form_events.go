package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeFormFinalized       = "wardform.finalized"
	EventTypeFormApproved        = "wardform.approved"
	EventTypeFormRejected        = "wardform.rejected"
	EventTypeFormPreviousMissing = "wardform.previous_missing"
)

// FormEvent describes a ward form lifecycle step.
type FormEvent struct {
	BaseEvent
	FormID   int64  `json:"form_id"`
	WardID   string `json:"ward_id"`
	FormDate string `json:"form_date"`
	Shift    string `json:"shift"`
	// ActorID performed the step, CreatorID owns the form.
	ActorID   int64  `json:"actor_id"`
	CreatorID int64  `json:"creator_id"`
	Reason    string `json:"reason,omitempty"`
}

func NewFormEvent(eventType string, formID int64, wardID, formDate, shift string, actorID, creatorID int64, reason string) *FormEvent {
	return &FormEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"form_id":    formID,
				"ward_id":    wardID,
				"form_date":  formDate,
				"shift":      shift,
				"actor_id":   actorID,
				"creator_id": creatorID,
				"reason":     reason,
			},
		},
		FormID:    formID,
		WardID:    wardID,
		FormDate:  formDate,
		Shift:     shift,
		ActorID:   actorID,
		CreatorID: creatorID,
		Reason:    reason,
	}
}

// FormEventFromData rebuilds a FormEvent from a generic event's payload,
// e.g. one read back from the CLI publisher.
func FormEventFromData(e Event) (*FormEvent, bool) {
	if fe, ok := e.(*FormEvent); ok {
		return fe, true
	}
	data, ok := e.Payload().(map[string]interface{})
	if !ok {
		return nil, false
	}
	fe := &FormEvent{BaseEvent: BaseEvent{ID: e.EventID(), Type: e.EventType(), Timestamp: e.OccurredAt(), Data: data}}
	fe.FormID = toInt64(data["form_id"])
	fe.ActorID = toInt64(data["actor_id"])
	fe.CreatorID = toInt64(data["creator_id"])
	fe.WardID, _ = data["ward_id"].(string)
	fe.FormDate, _ = data["form_date"].(string)
	fe.Shift, _ = data["shift"].(string)
	fe.Reason, _ = data["reason"].(string)
	return fe, true
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
