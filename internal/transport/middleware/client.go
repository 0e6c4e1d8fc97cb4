package middleware

import (
	"net/http"

	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/internal/ratelimit"
	"github.com/frahmantamala/ward-census/pkg/logger"
)

// ClientInfo resolves the caller's address once per request for the rate
// limiters, audit entries and request logs. Forwarding headers count only
// when they come from one of proxies.
func ClientInfo(proxies *ratelimit.TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := proxies.Resolve(r)
			ctx := internal.ContextWithClient(r.Context(), ip, r.UserAgent())
			ctx = logger.With(ctx, "client_ip", ip)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
