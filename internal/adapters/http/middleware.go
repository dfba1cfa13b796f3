package httpadapter

import (
	"fmt"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"

	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/PabloGalante/msgboard/internal/observability"
)

const requestIDHeader = "X-Request-ID"

// withRequestID reuses the caller's X-Request-ID or issues one.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" || len(reqID) > 128 {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)
		next.ServeHTTP(w, r.WithContext(observability.WithRequestID(r.Context(), reqID)))
	})
}

// withLogging wraps a handle and logs every request.
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		observability.LoggerFromContext(r.Context()).Info("handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", m.Code,
			"duration", m.Duration,
			"bytes", m.Written,
		)
	})
}

// withRecovery is the last-resort handler: a panic becomes a generic 500.
func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			observability.LoggerFromContext(r.Context()).Error("panic recovered",
				"stack", string(debug.Stack()),
			)
			internalError(w, r, fmt.Errorf("panic: %v", rec))
		}()
		next.ServeHTTP(w, r)
	})
}

// withCORS admits requests without an Origin header (server to server) and origins on
// the allow-list. Everything else gets a 403.
func withCORS(allowed []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Origin")
			if !originAllowed(origin, allowed) {
				observability.LoggerFromContext(r.Context()).Warn("origin rejected", "origin", origin)
				writeJSON(w, http.StatusForbidden, errorResponse{
					Error:   "Forbidden",
					Message: "Origin not allowed by CORS policy",
				})
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "600")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// originAllowed matches exact origins, and patterns of the form scheme://*.domain that
// admit any subdomain of domain (not domain itself).
func originAllowed(origin string, allowed []string) bool {
	if lo.Contains(allowed, origin) {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}

	return lo.SomeBy(allowed, func(pattern string) bool {
		scheme, host, found := strings.Cut(pattern, "://")
		if !found {
			scheme, host = "", pattern
		}
		if !strings.HasPrefix(host, "*.") {
			return false
		}
		if scheme != "" && scheme != u.Scheme {
			return false
		}
		suffix := host[1:]
		return strings.HasSuffix(u.Host, suffix) && len(u.Host) > len(suffix)
	})
}

// chainMiddlewares applies multiple middlewares in order.
// The first one listed is the innermost.
func chainMiddlewares(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for _, m := range middlewares {
		h = m(h)
	}
	return h
}
