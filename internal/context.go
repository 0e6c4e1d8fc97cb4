package internal

import (
	"context"
	"time"

	"github.com/frahmantamala/ward-census/internal/core/role"
)

type ctxKey string

const (
	ContextUserKey      ctxKey = "userID"
	ContextPrincipalKey ctxKey = "principal"
	ContextClientIPKey  ctxKey = "clientIP"
	ContextUserAgentKey ctxKey = "userAgent"
)

// Principal is the authenticated caller attached to a request.
type Principal struct {
	UserID    int64     `json:"id"`
	Username  string    `json:"username"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      role.Role `json:"role"`
	Wards     []string  `json:"wards"`
	SessionID string    `json:"-"`
}

func (p *Principal) CanAccessWard(wardID string) bool {
	if p.Role.AllWards() {
		return true
	}
	for _, w := range p.Wards {
		if w == wardID {
			return true
		}
	}
	return false
}

func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ContextPrincipalKey, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(ContextPrincipalKey).(*Principal)
	return p, ok && p != nil
}

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if userID, ok := ctx.Value(ContextUserKey).(string); ok {
		return userID
	}
	return ""
}

func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextUserKey, userID)
}

// ContextWithClient stores the caller's address and agent for audit entries.
func ContextWithClient(ctx context.Context, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextClientIPKey, ip)
	return context.WithValue(ctx, ContextUserAgentKey, userAgent)
}

func ClientFromContext(ctx context.Context) (ip, userAgent string) {
	if ctx == nil {
		return "", ""
	}
	ip, _ = ctx.Value(ContextClientIPKey).(string)
	userAgent, _ = ctx.Value(ContextUserAgentKey).(string)
	return ip, userAgent
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
