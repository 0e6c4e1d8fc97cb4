package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	DefaultMaxAttempts   = 5
	DefaultWindow        = time.Minute
	DefaultBlockDuration = 10 * time.Minute
)

// Store keeps per-key attempt counters and blocks. Implementations expire
// their own entries.
type Store interface {
	// Increment adds one attempt to key's window, starting a new window of
	// length window when none is open, and returns the count so far.
	Increment(ctx context.Context, key string, window time.Duration) (int, error)
	// Block rejects key for d.
	Block(ctx context.Context, key string, d time.Duration) error
	// BlockedFor returns the remaining block time, zero if not blocked.
	BlockedFor(ctx context.Context, key string) (time.Duration, error)
	Reset(ctx context.Context, key string) error
}

var ErrStoreUnavailable = errors.New("rate limit store unavailable")

type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter is a fixed-window attempt counter with a hard block. Once the
// limit is exceeded the key stays blocked for the full block duration no
// matter what the caller sends.
type Limiter struct {
	store         Store
	maxAttempts   int
	window        time.Duration
	blockDuration time.Duration
	logger        *slog.Logger
}

type Option func(*Limiter)

func WithMaxAttempts(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

func WithWindow(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.window = d
		}
	}
}

func WithBlockDuration(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.blockDuration = d
		}
	}
}

func WithLogger(lg *slog.Logger) Option {
	return func(l *Limiter) {
		if lg != nil {
			l.logger = lg
		}
	}
}

func NewLimiter(store Store, opts ...Option) *Limiter {
	l := &Limiter{
		store:         store,
		maxAttempts:   DefaultMaxAttempts,
		window:        DefaultWindow,
		blockDuration: DefaultBlockDuration,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow counts one attempt for key. When the store fails the attempt is
// allowed and the failure logged, so a broken cache cannot lock everyone out.
func (l *Limiter) Allow(ctx context.Context, key string) Decision {
	blocked, err := l.store.BlockedFor(ctx, key)
	if err != nil {
		l.logger.Error("rate limit lookup failed", "key", key, "error", err)
		return Decision{Allowed: true}
	}
	if blocked > 0 {
		return Decision{Allowed: false, RetryAfter: blocked}
	}

	count, err := l.store.Increment(ctx, key, l.window)
	if err != nil {
		l.logger.Error("rate limit increment failed", "key", key, "error", err)
		return Decision{Allowed: true}
	}

	if count > l.maxAttempts {
		if err := l.store.Block(ctx, key, l.blockDuration); err != nil {
			l.logger.Error("rate limit block failed", "key", key, "error", err)
		}
		l.logger.Warn("rate limit exceeded, blocking", "key", key, "attempts", count, "block", l.blockDuration)
		return Decision{Allowed: false, RetryAfter: l.blockDuration}
	}

	return Decision{Allowed: true, Remaining: l.maxAttempts - count}
}

// Reset clears the attempt window, e.g. after a successful login. An
// active block is left in place.
func (l *Limiter) Reset(ctx context.Context, key string) {
	if err := l.store.Reset(ctx, key); err != nil {
		l.logger.Warn("rate limit reset failed", "key", key, "error", err)
	}
}

func (l *Limiter) MaxAttempts() int { return l.maxAttempts }
