package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

type State int32

const (
	StateIdle State = iota
	StateMonitoring
	StateTriggered
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMonitoring:
		return "monitoring"
	case StateTriggered:
		return "triggered"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

var ErrMonitorStarted = errors.New("session monitor already started")

// Source reports the session id currently recorded for a user, "" if none.
type Source interface {
	CurrentSessionID(ctx context.Context, userID int64) (string, error)
}

type SourceFunc func(ctx context.Context, userID int64) (string, error)

func (f SourceFunc) CurrentSessionID(ctx context.Context, userID int64) (string, error) {
	return f(ctx, userID)
}

// Monitor watches a user's current-session pointer and calls onForceLogout
// once when it stops naming the monitored session. A Monitor is single use:
// Idle -> Monitoring -> Triggered | Stopped.
type Monitor struct {
	source   Source
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor builds a monitor. A superseded session is noticed within one
// interval plus the latency of a single Source read.
func NewMonitor(source Source, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{source: source, interval: interval, logger: logger}
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Done is closed when the observation goroutine exits. Nil before Start.
func (m *Monitor) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done
}

func (m *Monitor) Start(ctx context.Context, userID int64, sessionID string, onForceLogout func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIdle {
		return ErrMonitorStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.state = StateMonitoring

	go m.run(runCtx, userID, sessionID, onForceLogout, m.done)
	return nil
}

// Stop ends observation. It never blocks, is safe to call repeatedly and
// from inside onForceLogout, and no callback starts after it returns.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateMonitoring {
		m.state = StateStopped
	}
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *Monitor) run(ctx context.Context, userID int64, sessionID string, onForceLogout func(), done chan struct{}) {
	defer close(done)
	defer m.settle()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if m.superseded(ctx, userID, sessionID) {
			if m.trigger() && onForceLogout != nil {
				onForceLogout()
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// superseded reads the pointer once. Read failures count as "still ours"
// and are retried on the next tick.
func (m *Monitor) superseded(ctx context.Context, userID int64, sessionID string) bool {
	current, err := m.source.CurrentSessionID(ctx, userID)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Warn("session check failed, retrying", "user_id", userID, "error", err)
		}
		return false
	}
	if current == sessionID {
		return false
	}
	m.logger.Info("session no longer current", "user_id", userID, "session_id", sessionID, "current_session_id", current)
	return true
}

func (m *Monitor) trigger() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateMonitoring {
		return false
	}
	m.state = StateTriggered
	return true
}

// settle marks a monitor whose context was cancelled by its parent.
func (m *Monitor) settle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateMonitoring {
		m.state = StateStopped
	}
	if m.cancel != nil {
		m.cancel()
	}
}
