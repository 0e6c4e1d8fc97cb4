package ratelimit

import (
	"net/http"
	"strconv"
)

// RejectFunc writes the response for a blocked request.
type RejectFunc func(w http.ResponseWriter, r *http.Request, d Decision)

// Middleware counts every request against the caller's IP before the
// handler sees it, so a blocked caller is refused even with valid input.
func (l *Limiter) Middleware(scope string, reject RejectFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scope + ":" + ClientIP(r)
			d := l.Allow(r.Context(), key)
			if !d.Allowed {
				secs := int(d.RetryAfter.Seconds())
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				reject(w, r, d)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}
