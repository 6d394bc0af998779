package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/warp/agenda/logger"
)

// AdminPasswordHeader carries the admin password.
const AdminPasswordHeader = "X-Admin-Password"

// HTTPObserver records per-request metrics.
type HTTPObserver interface {
	ObserveHTTP(route, method string, status int, elapsed time.Duration)
}

// RequestLogger logs one line per request through log.
func RequestLogger(log logger.Logger) func(http.Handler) http.Handler {
	log = log.Named("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := statusCode(ww)
			fields := []logger.Field{
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path),
				logger.Int("status", status),
				logger.Int("bytes", ww.BytesWritten()),
				logger.Duration("duration", time.Since(start)),
				logger.String("request_id", middleware.GetReqID(r.Context())),
			}
			if status >= http.StatusInternalServerError {
				log.Error(r.Context(), "request", fields...)
				return
			}
			log.Debug(r.Context(), "request", fields...)
		})
	}
}

// Metrics records request counts and durations by route pattern. Requests
// matching no route are reported under "unmatched".
func Metrics(obs HTTPObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			obs.ObserveHTTP(route, r.Method, statusCode(ww), time.Since(start))
		})
	}
}

// RequireAdmin rejects requests without the admin password. An empty
// password disables the guarded routes entirely.
func RequireAdmin(password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if password == "" {
				writeError(w, http.StatusForbidden, "Admin access is disabled", "admin_disabled", nil)
				return
			}
			got := r.Header.Get(AdminPasswordHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(password)) != 1 {
				writeError(w, http.StatusUnauthorized, "Invalid admin password", "unauthorized", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusCode defaults to 200 for handlers that never called WriteHeader.
func statusCode(ww middleware.WrapResponseWriter) int {
	if s := ww.Status(); s != 0 {
		return s
	}
	return http.StatusOK
}
