package auth

import (
	"context"
	"net/http"

	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/internal/core/role"
	"github.com/frahmantamala/ward-census/internal/transport"
	"github.com/frahmantamala/ward-census/pkg/logger"
)

type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*internal.Principal, error)
}

type Middleware struct {
	base     *transport.BaseHandler
	resolver SessionResolver
	cookies  Cookies
}

func NewMiddleware(base *transport.BaseHandler, resolver SessionResolver, cookies Cookies) *Middleware {
	return &Middleware{base: base, resolver: resolver, cookies: cookies}
}

// Authenticate puts the caller's principal in the request context. A
// replaced, expired or deactivated session is refused and its cookies
// cleared.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := m.resolver.ResolveSession(r.Context(), TokenFromRequest(r))
		if err != nil {
			appErr, ok := internal.IsAppError(err)
			if !ok {
				appErr = internal.NewInternalError("Internal server error", err)
			}
			if appErr.StatusCode == http.StatusUnauthorized || appErr.StatusCode == http.StatusForbidden {
				m.cookies.Clear(w)
			}
			m.base.WriteAppError(w, appErr)
			return
		}

		ctx := internal.ContextWithPrincipal(r.Context(), p)
		ctx = logger.With(ctx, "user_id", p.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRoles admits callers holding one of roles.
func RequireRoles(base *transport.BaseHandler, roles ...role.Role) func(http.Handler) http.Handler {
	return require(base, func(p *internal.Principal) bool {
		for _, rl := range roles {
			if p.Role == rl {
				return true
			}
		}
		return false
	})
}

func RequireApprover(base *transport.BaseHandler) func(http.Handler) http.Handler {
	return require(base, func(p *internal.Principal) bool { return p.Role.CanApprove() })
}

func RequireAdmin(base *transport.BaseHandler) func(http.Handler) http.Handler {
	return require(base, func(p *internal.Principal) bool { return p.Role.IsAdmin() })
}

func require(base *transport.BaseHandler, allow func(*internal.Principal) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := internal.PrincipalFromContext(r.Context())
			if !ok {
				base.WriteAppError(w, internal.ErrMissingToken)
				return
			}
			if !allow(p) {
				base.Logger.Warn("access denied: insufficient role", "user_id", p.UserID, "role", p.Role, "path", r.URL.Path)
				base.WriteAppError(w, internal.ErrInsufficientRole)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
