package server

import (
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/dottapps/api-front/internal/config"
	jsonwriter "github.com/dottapps/api-front/internal/json"
	"github.com/dottapps/api-front/internal/log"
	"golang.org/x/crypto/bcrypt"
)

// MiddlewareFunc is a function that wraps an http.Handler
type MiddlewareFunc func(http.Handler) http.Handler

// ChainMiddleware chains multiple middleware functions
func ChainMiddleware(h http.Handler, middlewares ...MiddlewareFunc) http.Handler {
	for _, mw := range middlewares {
		h = mw(h)
	}
	return h
}

// NewCORSMiddleware adds CORS headers to responses
func NewCORSMiddleware(allowedOrigins []string) MiddlewareFunc {
	// Build a map for faster lookup
	allowedMap := make(map[string]bool)
	for _, origin := range allowedOrigins {
		allowedMap[origin] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Only set CORS headers if origin is allowed
			if origin != "" && allowedMap[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			} else if len(allowedOrigins) == 0 {
				// If no allowed origins configured, allow all (development mode)
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			// If origin not allowed, don't set Access-Control-Allow-Origin header

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Cache-Control")
			w.Header().Set("Access-Control-Max-Age", "3600")

			// Handle preflight requests
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// responseWriterDelegator wraps http.ResponseWriter to capture status and bytes written
// while properly delegating all optional interfaces through Unwrap
type responseWriterDelegator struct {
	http.ResponseWriter
	status      int
	written     int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriterDelegator {
	return &responseWriterDelegator{
		ResponseWriter: w,
		status:         http.StatusOK,
	}
}

func (r *responseWriterDelegator) Status() int {
	return r.status
}

func (r *responseWriterDelegator) BytesWritten() int {
	return r.written
}

func (r *responseWriterDelegator) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.status = code
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseWriterDelegator) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(b)
	r.written += n
	return n, err
}

// Unwrap returns the underlying ResponseWriter for interface detection
// This allows Go 1.20+ to automatically detect interfaces like http.Flusher
// when used with http.ResponseController
func (r *responseWriterDelegator) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Flush implements http.Flusher
func (r *responseWriterDelegator) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Verify interfaces
var _ http.ResponseWriter = (*responseWriterDelegator)(nil)
var _ http.Flusher = (*responseWriterDelegator)(nil)

// NewLoggerMiddleware adds request/response logging
func NewLoggerMiddleware(prefix string) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			// Log request with response details
			fields := map[string]any{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      wrapped.Status(),
				"duration_ms": time.Since(start).Milliseconds(),
				"bytes":       wrapped.BytesWritten(),
				"remote_addr": r.RemoteAddr,
			}

			// Add query string if present
			if r.URL.RawQuery != "" {
				fields["query"] = r.URL.RawQuery
			}

			log.LogInfoWithFields(prefix, "request", fields)
		})
	}
}

// NewRecoverMiddleware recovers from panics
func NewRecoverMiddleware(prefix string) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Logf("<%s> Recovered from panic: %v", prefix, err)
					jsonwriter.WriteInternalServerError(w, "Internal Server Error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// newAdminAuthMiddleware gates handlers behind HTTP basic auth checked
// against the configured admin username and bcrypt password hash
func newAdminAuthMiddleware(admin config.AdminConfig) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Basic ") {
				w.Header().Set("WWW-Authenticate", `Basic realm="api-front"`)
				jsonwriter.WriteUnauthorized(w, "Unauthorized")
				return
			}

			decoded, err := base64.StdEncoding.DecodeString(authHeader[6:])
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="api-front"`)
				jsonwriter.WriteUnauthorized(w, "Unauthorized")
				return
			}

			credentials := string(decoded)
			colonIdx := strings.IndexByte(credentials, ':')
			if colonIdx == -1 {
				w.Header().Set("WWW-Authenticate", `Basic realm="api-front"`)
				jsonwriter.WriteUnauthorized(w, "Unauthorized")
				return
			}

			username := credentials[:colonIdx]
			password := credentials[colonIdx+1:]

			if username != admin.Username ||
				bcrypt.CompareHashAndPassword([]byte(string(admin.HashedPassword)), []byte(password)) != nil {
				log.LogWarnWithFields("admin", "Admin auth failed", map[string]any{
					"username":    username,
					"remote_addr": r.RemoteAddr,
				})
				w.Header().Set("WWW-Authenticate", `Basic realm="api-front"`)
				jsonwriter.WriteUnauthorized(w, "Unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
