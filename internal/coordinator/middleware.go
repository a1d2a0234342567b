package coordinator

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garnizeh/searchcoordinator/internal/logging"
)

// requestIDKey is an unexported type for context keys in this package.
type requestIDKey struct{}

// RequestIDContextKey is the context key used to store the request id.
var RequestIDContextKey = requestIDKey{}

// GetRequestID extracts the request id from the context or returns "".
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(RequestIDContextKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// RequestID middleware stamps every request with a uuid, exposed both in
// the context and as the X-Request-ID response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		ctx := context.WithValue(r.Context(), RequestIDContextKey, id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusCapturingResponseWriter wraps http.ResponseWriter to capture the
// status code for access logging.
type statusCapturingResponseWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusCapturingResponseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusCapturingResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("response write: %w", err)
	}
	return n, nil
}

// withAccessLog logs method, path, status and duration for every request
// through the shared structured logger.
func withAccessLog(log *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusCapturingResponseWriter{ResponseWriter: w}

		next.ServeHTTP(rw, r)

		status := rw.status
		if status == 0 {
			status = http.StatusOK
		}
		log.Info("request",
			zap.String("requestId", GetRequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// CORS sets permissive CORS headers and answers preflight OPTIONS, the
// same posture the teacher's middleware.go ships for a browser-facing
// status dashboard.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// unauthenticatedPaths lists the routes spec.md §4.3 marks read-only and
// unauthenticated.
var unauthenticatedPaths = []string{
	"/status",
	"/status/",
	"/configuration/job",
	"/health",
}

func isUnauthenticated(path string) bool {
	for _, p := range unauthenticatedPaths {
		if path == p || (strings.HasSuffix(p, "/") && strings.HasPrefix(path, p)) {
			return true
		}
	}
	return false
}

// bearerAuth enforces "Authorization: Bearer <apiKey>" on every mutating
// route. Per spec.md §4.3, a handful of read-only status/configuration
// routes are exempt.
func (s *Server) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isUnauthenticated(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok || token != s.apiKey {
			s.logger.Warning("authentication failure",
				zap.String("requestId", GetRequestID(r.Context())),
				zap.String("path", r.URL.Path),
			)
			writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	return strings.TrimPrefix(header, prefix), true
}
