package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"usos/internal/log"
	"usos/internal/models"
	"usos/internal/security"
	"usos/internal/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const UserContextKey ContextKey = "user"

// Middleware holds dependencies for middleware functions
type Middleware struct {
	tokens            *security.TokenService
	profiles          *service.ProfileService
	limiter           *security.RateLimiter
	adminPasswordHash string
	logger            *log.Logger
}

// NewMiddleware creates a new middleware instance. A nil limiter disables rate limiting.
func NewMiddleware(tokens *security.TokenService, profiles *service.ProfileService, limiter *security.RateLimiter, adminPasswordHash string, logger *log.Logger) *Middleware {
	return &Middleware{
		tokens:            tokens,
		profiles:          profiles,
		limiter:           limiter,
		adminPasswordHash: adminPasswordHash,
		logger:            logger.WithComponent(log.ComponentHTTP),
	}
}

// bearerToken returns the token from the Authorization header. EventSource
// clients cannot set headers, so GET requests may pass access_token instead.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if r.Method == http.MethodGet {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

func (m *Middleware) verify(r *http.Request) (*security.Session, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, security.ErrInvalidToken
	}
	return m.tokens.Verify(token)
}

// RequireAuth is middleware that requires a valid user token. The caller's
// profile is created on first use and placed in the request context.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := m.verify(r)
		if err != nil {
			msg := ErrUnauthorized
			if errors.Is(err, security.ErrTokenExpired) {
				msg = ErrSessionExpired
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="usos"`)
			respondWithError(w, r, http.StatusUnauthorized, msg, "", nil)
			return
		}
		if session.Admin {
			respondWithError(w, r, http.StatusForbidden, ErrAdminTokenAsUser, "", nil)
			return
		}

		user, err := m.profiles.EnsureProfile(r.Context(), session.UserID, session.Email, session.Name)
		if err != nil {
			writeServiceError(w, r, err, "Failed to load profile")
			return
		}

		ctx := security.WithSession(r.Context(), session)
		ctx = context.WithValue(ctx, UserContextKey, user)
		next(w, r.WithContext(ctx))
	}
}

// RequireAdmin accepts an admin bearer token or HTTP basic auth checked
// against the configured bcrypt hash
func (m *Middleware) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, password, ok := r.BasicAuth(); ok {
			if err := security.CheckPassword(m.adminPasswordHash, password); err == nil {
				next(w, r)
				return
			}
		} else if session, err := m.verify(r); err == nil && session.Admin {
			next(w, r.WithContext(security.WithSession(r.Context(), session)))
			return
		}

		m.logger.WarnContext(r.Context(), "Rejected admin request",
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, security.GetClientIP(r),
			log.FieldErrorType, log.ErrorTypeAuth)
		w.Header().Set("WWW-Authenticate", `Basic realm="`+adminRealm+`"`)
		respondWithError(w, r, http.StatusUnauthorized, ErrUnauthorized, "", nil)
	}
}

// RateLimit rejects clients that exceed the per-IP budget
func (m *Middleware) RateLimit(next http.Handler) http.Handler {
	if m.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.limiter.Allow(security.GetClientIP(r)) {
			w.Header().Set("Retry-After", "60")
			respondWithError(w, r, http.StatusTooManyRequests, ErrTooManyRequests, "", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// Flush keeps event streams working through the wrapper
func (rec *statusRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// Logging middleware logs HTTP requests and puts the logger in the request context
func (m *Middleware) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r.WithContext(log.NewContext(r.Context(), m.logger)))

		fields := log.NewFields().
			WithHTTPRequest(r.Method, r.URL.Path, security.GetClientIP(r)).
			WithHTTPResponse(rec.status, time.Since(start).Milliseconds())
		m.logger.InfoContext(r.Context(), "HTTP request", fields.ToSlice()...)
	})
}

// GetUserFromContext retrieves the user from the request context
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}
