package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/internal/transport"
)

const (
	CSRFCookieName = "csrf_token"
	CSRFHeaderName = "X-CSRF-Token"
)

// IssueCSRFToken sets a fresh double-submit token cookie and returns it.
// The cookie stays readable so the client can echo it in the header.
func IssueCSRFToken(w http.ResponseWriter, secure bool) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   24 * 60 * 60,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
	return token, nil
}

// CSRF rejects mutating requests whose header token does not match the
// cookie token.
func CSRF(base *transport.BaseHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(CSRFCookieName)
			header := r.Header.Get(CSRFHeaderName)
			if err != nil || cookie.Value == "" || header == "" ||
				subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
				base.Logger.Warn("CSRF: token mismatch", "method", r.Method, "path", r.URL.Path)
				base.WriteAppError(w, internal.ErrCSRFInvalid)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
