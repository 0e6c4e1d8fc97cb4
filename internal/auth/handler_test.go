package auth_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/internal/auth"
	"github.com/frahmantamala/ward-census/internal/core/role"
	"github.com/frahmantamala/ward-census/internal/ratelimit"
	"github.com/frahmantamala/ward-census/internal/transport"
	"github.com/frahmantamala/ward-census/internal/transport/middleware"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decode(w *httptest.ResponseRecorder) envelope {
	var env envelope
	Expect(json.Unmarshal(w.Body.Bytes(), &env)).To(Succeed())
	return env
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

var _ = Describe("Handler", func() {
	var (
		f      *fixture
		router http.Handler
		store  *ratelimit.MemoryStore
	)

	BeforeEach(func() {
		f = newFixture(0)
		f.addUser("nurse.kim", "secret-pass", role.Nurse, true, "W1")
		f.addUser("admin.ann", "secret-pass", role.Admin, true)

		base := transport.NewBaseHandler(quiet)
		cookies := auth.NewCookies(false)
		h := auth.NewHandler(base, f.svc, cookies)
		mw := auth.NewMiddleware(base, f.svc, cookies)

		store = ratelimit.NewMemoryStore(time.Minute)
		limiter := ratelimit.NewLimiter(store, ratelimit.WithLogger(quiet))

		r := chi.NewRouter()
		r.Use(middleware.CSRF(base))
		r.Get("/auth/csrf", h.IssueCSRF)
		r.With(limiter.Middleware("login", h.RejectRateLimited)).Post("/auth/login", h.Login)
		r.Post("/auth/logout", h.Logout)
		r.Get("/auth/session", h.CheckSession)
		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate)
			r.Post("/auth/session/heartbeat", h.Heartbeat)
			r.Get("/auth/me", h.Me)
			r.With(auth.RequireAdmin(base)).Get("/admin/ping", func(w http.ResponseWriter, _ *http.Request) {
				base.WriteMessage(w, http.StatusOK, "pong")
			})
		})
		router = r
	})

	AfterEach(func() {
		store.Close()
	})

	const csrf = "csrf-test-token"

	post := func(path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
		b, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
		req.RemoteAddr = "192.0.2.10:5555"
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(middleware.CSRFHeaderName, csrf)
		req.AddCookie(&http.Cookie{Name: middleware.CSRFCookieName, Value: csrf})
		for _, c := range cookies {
			req.AddCookie(c)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	get := func(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	login := func(username string) *http.Cookie {
		w := post("/auth/login", auth.LoginDTO{Username: username, Password: "secret-pass"})
		Expect(w.Code).To(Equal(http.StatusOK))
		c := findCookie(w, auth.TokenCookieName)
		Expect(c).NotTo(BeNil())
		return c
	}

	It("issues a CSRF token cookie", func() {
		w := get("/auth/csrf")
		Expect(w.Code).To(Equal(http.StatusOK))
		c := findCookie(w, middleware.CSRFCookieName)
		Expect(c).NotTo(BeNil())
		Expect(c.HttpOnly).To(BeFalse())
		Expect(w.Body.String()).To(ContainSubstring(c.Value))
	})

	It("refuses a login without the CSRF pair", func() {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		Expect(w.Code).To(Equal(http.StatusForbidden))
		Expect(decode(w).Error.Code).To(Equal(string(internal.ErrCodeCSRFInvalid)))
	})

	It("sets strict one-day cookies on login", func() {
		w := post("/auth/login", auth.LoginDTO{Username: "nurse.kim", Password: "secret-pass"})
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(decode(w).Success).To(BeTrue())

		token := findCookie(w, auth.TokenCookieName)
		Expect(token.HttpOnly).To(BeTrue())
		Expect(token.SameSite).To(Equal(http.SameSiteStrictMode))
		Expect(token.MaxAge).To(Equal(86400))

		profile := findCookie(w, auth.ProfileCookieName)
		Expect(profile.HttpOnly).To(BeFalse())
		Expect(profile.SameSite).To(Equal(http.SameSiteStrictMode))
		p, err := auth.DecodeProfile(profile.Value)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Username).To(Equal("nurse.kim"))
		Expect(p.Wards).To(ConsistOf("W1"))
	})

	It("returns 401 for bad credentials", func() {
		w := post("/auth/login", auth.LoginDTO{Username: "nurse.kim", Password: "nope"})
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(decode(w).Error.Code).To(Equal(string(internal.ErrCodeInvalidCredentials)))
	})

	It("blocks the sixth attempt in a minute even with valid credentials", func() {
		for i := 0; i < 5; i++ {
			w := post("/auth/login", auth.LoginDTO{Username: "nurse.kim", Password: "nope"})
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		}

		w := post("/auth/login", auth.LoginDTO{Username: "nurse.kim", Password: "secret-pass"})
		Expect(w.Code).To(Equal(http.StatusTooManyRequests))
		Expect(w.Header().Get("Retry-After")).To(Equal("600"))
		Expect(decode(w).Error.Code).To(Equal(string(internal.ErrCodeRateLimited)))

		w = post("/auth/login", auth.LoginDTO{Username: "nurse.kim", Password: "secret-pass"})
		Expect(w.Code).To(Equal(http.StatusTooManyRequests))
	})

	It("serves the profile and heartbeat for the current session", func() {
		token := login("nurse.kim")

		w := get("/auth/me", token)
		Expect(w.Code).To(Equal(http.StatusOK))
		var p auth.Profile
		Expect(json.Unmarshal(decode(w).Data, &p)).To(Succeed())
		Expect(p.Role).To(Equal(role.Nurse))

		w = post("/auth/session/heartbeat", nil, token)
		Expect(w.Code).To(Equal(http.StatusOK))
	})

	It("tells a replaced session why it was signed out", func() {
		first := login("nurse.kim")
		login("nurse.kim")

		w := post("/auth/session/heartbeat", nil, first)
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(decode(w).Error.Code).To(Equal(string(internal.ErrCodeSessionSuperseded)))
		cleared := findCookie(w, auth.TokenCookieName)
		Expect(cleared).NotTo(BeNil())
		Expect(cleared.MaxAge).To(BeNumerically("<", 0))

		w = get("/auth/session", first)
		Expect(w.Code).To(Equal(http.StatusOK))
		var status auth.SessionStatus
		Expect(json.Unmarshal(decode(w).Data, &status)).To(Succeed())
		Expect(status.Valid).To(BeFalse())
		Expect(status.Reason).To(Equal(string(internal.ErrCodeSessionSuperseded)))
	})

	It("logs out and clears cookies", func() {
		token := login("nurse.kim")

		w := post("/auth/logout", map[string]string{"reason": "logout"}, token)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(findCookie(w, auth.TokenCookieName).MaxAge).To(BeNumerically("<", 0))

		w = get("/auth/me", token)
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(decode(w).Error.Code).To(Equal(string(internal.ErrCodeSessionExpired)))
	})

	It("gates admin routes by role", func() {
		w := get("/admin/ping", login("nurse.kim"))
		Expect(w.Code).To(Equal(http.StatusForbidden))
		Expect(decode(w).Error.Code).To(Equal(string(internal.ErrCodeInsufficientRole)))

		w = get("/admin/ping", login("admin.ann"))
		Expect(w.Code).To(Equal(http.StatusOK))
	})
})
