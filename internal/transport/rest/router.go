package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/ward-census/api"
	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/internal/auditlog"
	"github.com/frahmantamala/ward-census/internal/auth"
	"github.com/frahmantamala/ward-census/internal/dashboard"
	"github.com/frahmantamala/ward-census/internal/notification"
	"github.com/frahmantamala/ward-census/internal/ratelimit"
	"github.com/frahmantamala/ward-census/internal/transport"
	"github.com/frahmantamala/ward-census/internal/transport/middleware"
	"github.com/frahmantamala/ward-census/internal/transport/swagger"
	"github.com/frahmantamala/ward-census/internal/user"
	"github.com/frahmantamala/ward-census/internal/ward"
	"github.com/frahmantamala/ward-census/internal/wardform"
	"github.com/go-chi/chi"
	"github.com/redis/go-redis/v9"
)

// Dependencies bundles what the router mounts. Nil handlers are skipped.
type Dependencies struct {
	DB             *sql.DB
	Redis          redis.Cmdable
	Base           *transport.BaseHandler
	Logger         *slog.Logger
	AllowedOrigins []string
	TrustedProxies *ratelimit.TrustedProxies

	LoginLimiter *ratelimit.Limiter
	Throttle     *ratelimit.Throttle
	Authn        *auth.Middleware

	Auth          *auth.Handler
	Users         *user.Handler
	Wards         *ward.Handler
	Forms         *wardform.Handler
	Notifications *notification.Handler
	Dashboard     *dashboard.Handler
	Logs          *auditlog.Handler
}

func RegisterAllRoutes(router *chi.Mux, deps Dependencies) {
	base := deps.Base
	if base == nil {
		base = transport.NewBaseHandler(deps.Logger)
	}
	healthHandler := NewHealthHandler(deps.DB, deps.Redis)

	router.Use(middleware.CORS(deps.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.ClientInfo(deps.TrustedProxies))
	router.Use(middleware.LoggingMiddleware(base.Logger))
	router.Use(middleware.RecoveryMiddleware(base))

	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(api.Spec)
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Group(func(r chi.Router) {
			if deps.Throttle != nil {
				r.Use(deps.Throttle.Middleware(func(w http.ResponseWriter, _ *http.Request) {
					base.WriteAppError(w, internal.NewTooManyRequestsError("Too many requests"))
				}))
			}
			r.Use(middleware.CSRF(base))

			if deps.Auth != nil {
				r.Route("/auth", func(ar chi.Router) {
					ar.Get("/csrf", deps.Auth.IssueCSRF)
					ar.Get("/session", deps.Auth.CheckSession)
					ar.Post("/logout", deps.Auth.Logout)
					ar.Group(func(lr chi.Router) {
						if deps.LoginLimiter != nil {
							lr.Use(deps.LoginLimiter.Middleware("login", deps.Auth.RejectRateLimited))
						}
						lr.Post("/login", deps.Auth.Login)
					})
					if deps.Authn != nil {
						ar.Group(func(pr chi.Router) {
							pr.Use(deps.Authn.Authenticate)
							pr.Post("/session/heartbeat", deps.Auth.Heartbeat)
							pr.Get("/me", deps.Auth.Me)
						})
					}
				})
			}

			if deps.Authn == nil {
				return
			}

			r.Group(func(pr chi.Router) {
				pr.Use(deps.Authn.Authenticate)

				if deps.Users != nil {
					pr.Get("/users/me", deps.Users.GetCurrentUser)
				}
				if deps.Wards != nil {
					pr.Get("/wards", deps.Wards.GetWards)
				}

				if h := deps.Forms; h != nil {
					pr.Route("/forms", func(fr chi.Router) {
						fr.Get("/", h.ListForms)
						fr.Post("/", h.SaveDraft)
						fr.Post("/finalize", h.Finalize)
						fr.Post("/preview", h.Preview)
						fr.Get("/slot", h.GetSlot)
						fr.Put("/draft", h.SaveAutosave)
						fr.Get("/draft", h.LoadAutosave)
						fr.Delete("/draft", h.DiscardAutosave)
						fr.Get("/{id}", h.GetForm)

						fr.Group(func(ar chi.Router) {
							ar.Use(auth.RequireApprover(base))
							ar.Get("/pending", h.ListPending)
							ar.Post("/{id}/approve", h.Approve)
							ar.Post("/{id}/reject", h.Reject)
						})
					})
				}

				if h := deps.Notifications; h != nil {
					pr.Route("/notifications", func(nr chi.Router) {
						nr.Get("/", h.List)
						nr.Get("/unread-count", h.UnreadCount)
						nr.Patch("/read-all", h.MarkAllRead)
						nr.Patch("/{id}/read", h.MarkRead)
						nr.Delete("/{id}", h.Delete)
						nr.Post("/bulk-delete", h.BulkDelete)

						nr.Group(func(ar chi.Router) {
							ar.Use(auth.RequireAdmin(base))
							ar.Post("/", h.Create)
							ar.Delete("/type/{type}", h.DeleteByType)
						})
					})
				}

				if deps.Dashboard != nil {
					pr.With(auth.RequireApprover(base)).Get("/dashboard", deps.Dashboard.GetSummary)
				}

				pr.Route("/admin", func(ar chi.Router) {
					ar.Use(auth.RequireAdmin(base))
					if h := deps.Users; h != nil {
						ar.Get("/users", h.ListUsers)
						ar.Post("/users", h.CreateUser)
						ar.Get("/users/{id}", h.GetUser)
						ar.Put("/users/{id}", h.UpdateUser)
						ar.Delete("/users/{id}", h.DeleteUser)
						ar.Post("/users/{id}/reset-password", h.ResetPassword)
					}
					if h := deps.Logs; h != nil {
						ar.Get("/logs", h.ListLogs)
						ar.Post("/logs/cleanup", h.CleanupLogs)
					}
				})
			})
		})
	})
}
