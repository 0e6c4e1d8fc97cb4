package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/internal/transport"
	"github.com/frahmantamala/ward-census/pkg/logger"
	chimw "github.com/go-chi/chi/middleware"
)

// RecoveryMiddleware turns a handler panic into the standard 500 envelope.
// The trace id is echoed in the error details so ward staff can quote it.
func RecoveryMiddleware(base *transport.BaseHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				lg, ok := logger.Lookup(r.Context())
				if !ok {
					lg = base.Logger
				}
				lg.ErrorContext(r.Context(), "panic recovered",
					"panic", fmt.Sprint(rec),
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()))

				appErr := internal.NewInternalError("Internal server error", fmt.Errorf("panic: %v", rec))
				if traceID := chimw.GetReqID(r.Context()); traceID != "" {
					appErr = appErr.WithDetails(map[string]string{"trace_id": traceID})
				}
				base.WriteAppError(w, appErr)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
