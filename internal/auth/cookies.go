package auth

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/frahmantamala/ward-census/internal/transport"
)

const (
	TokenCookieName   = "auth_token"
	ProfileCookieName = "user_profile"

	DefaultCookieMaxAge = 24 * time.Hour
)

// Cookies writes the signed token cookie and the readable profile cookie.
// Both are SameSite=Strict.
type Cookies struct {
	Secure bool
	MaxAge time.Duration
}

func NewCookies(secure bool) Cookies {
	return Cookies{Secure: secure, MaxAge: DefaultCookieMaxAge}
}

func (c Cookies) Set(w http.ResponseWriter, token string, profile Profile) {
	maxAge := int(c.MaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int(DefaultCookieMaxAge.Seconds())
	}

	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     ProfileCookieName,
		Value:    EncodeProfile(profile),
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (c Cookies) Clear(w http.ResponseWriter) {
	for _, name := range []string{TokenCookieName, ProfileCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: name == TokenCookieName,
			Secure:   c.Secure,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func EncodeProfile(p Profile) string {
	b, _ := json.Marshal(p)
	return base64.RawURLEncoding.EncodeToString(b)
}

func DecodeProfile(value string) (Profile, error) {
	var p Profile
	b, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return p, err
	}
	err = json.Unmarshal(b, &p)
	return p, err
}

// TokenFromRequest reads the auth cookie, falling back to a Bearer header
// for non-browser clients.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(TokenCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return transport.BearerToken(r)
}
