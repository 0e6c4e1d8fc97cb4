package events

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

type Handler func(ctx context.Context, event Event) error

// Publisher is what producers depend on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// EventBus fans ward form events out to in-process subscribers such as the
// notification writer. A handler that panics is reported as a failed
// delivery and never takes the publisher down with it.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]Handler
	logger      *slog.Logger
	inflight    sync.WaitGroup
}

func NewEventBus(logger *slog.Logger) *EventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBus{
		subscribers: make(map[string][]Handler),
		logger:      logger.With("component", "event_bus"),
	}
}

func (eb *EventBus) Subscribe(eventType string, handler Handler) {
	eb.mu.Lock()
	eb.subscribers[eventType] = append(eb.subscribers[eventType], handler)
	n := len(eb.subscribers[eventType])
	eb.mu.Unlock()

	eb.logger.Info("subscriber registered", "event_type", eventType, "subscribers", n)
}

// Subscribers reports how many handlers listen for eventType.
func (eb *EventBus) Subscribers(eventType string) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers[eventType])
}

func (eb *EventBus) snapshot(eventType string) []Handler {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	hs := eb.subscribers[eventType]
	if len(hs) == 0 {
		return nil
	}
	out := make([]Handler, len(hs))
	copy(out, hs)
	return out
}

// Publish runs every handler in its own goroutine. Handlers outlive the
// request that published the event, so they get a context that is never
// cancelled.
func (eb *EventBus) Publish(ctx context.Context, event Event) error {
	handlers := eb.snapshot(event.EventType())
	if handlers == nil {
		eb.logger.Debug("no subscribers", "event_type", event.EventType())
		return nil
	}

	eb.logger.Debug("publishing event",
		"event_type", event.EventType(),
		"event_id", event.EventID(),
		"subscribers", len(handlers))

	detached := context.WithoutCancel(ctx)
	for _, h := range handlers {
		eb.inflight.Add(1)
		go func(h Handler) {
			defer eb.inflight.Done()
			_ = eb.deliver(detached, h, event)
		}(h)
	}
	return nil
}

// PublishSync delivers in registration order and stops at the first failure.
func (eb *EventBus) PublishSync(ctx context.Context, event Event) error {
	for _, h := range eb.snapshot(event.EventType()) {
		if err := eb.deliver(ctx, h, event); err != nil {
			return fmt.Errorf("deliver %s: %w", event.EventType(), err)
		}
	}
	return nil
}

func (eb *EventBus) deliver(ctx context.Context, h Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panic: %v", r)
			eb.logger.Error("subscriber panicked",
				"event_type", event.EventType(),
				"event_id", event.EventID(),
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	if err = h(ctx, event); err != nil {
		eb.logger.Error("subscriber failed",
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"error", err)
	}
	return err
}

// Wait blocks until asynchronous deliveries started so far have returned.
func (eb *EventBus) Wait() {
	eb.inflight.Wait()
}
