package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Beater records liveness for a session.
type Beater interface {
	Heartbeat(ctx context.Context, userID int64, sessionID string) error
}

type BeaterFunc func(ctx context.Context, userID int64, sessionID string) error

func (f BeaterFunc) Heartbeat(ctx context.Context, userID int64, sessionID string) error {
	return f(ctx, userID, sessionID)
}

// IsTerminal reports whether err means the session can never beat again.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrSessionSuperseded) || errors.Is(err, ErrSessionExpired)
}

// Heartbeat beats every interval until stopped or until the session is
// reported superseded or expired. Other errors are logged and the next tick
// tries again.
type Heartbeat struct {
	beater   Beater
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewHeartbeat(beater Beater, interval time.Duration, logger *slog.Logger) *Heartbeat {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Heartbeat{beater: beater, interval: interval, logger: logger}
}

// Start begins beating. onEnded receives the terminal error, at most once.
func (h *Heartbeat) Start(ctx context.Context, userID int64, sessionID string, onEnded func(error)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return errors.New("heartbeat already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.running = true
	h.done = make(chan struct{})

	go h.run(runCtx, userID, sessionID, onEnded, h.done)
	return nil
}

func (h *Heartbeat) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
	}
	h.running = false
}

func (h *Heartbeat) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

func (h *Heartbeat) run(ctx context.Context, userID int64, sessionID string, onEnded func(error), done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err := h.beater.Heartbeat(ctx, userID, sessionID)
		switch {
		case err == nil:
		case IsTerminal(err):
			if h.finish() && onEnded != nil {
				onEnded(err)
			}
			return
		case ctx.Err() != nil:
			return
		default:
			h.logger.Warn("heartbeat failed, retrying", "user_id", userID, "session_id", sessionID, "error", err)
		}
	}
}

// finish flips running off; false means Stop already did.
func (h *Heartbeat) finish() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return false
	}
	h.running = false
	return true
}
