package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/finaccosolutions/vbastudio/internal/domain/accounts"
)

type contextKey string

const userIDKey contextKey = "user_id"

// userID returns the authenticated user id placed by requireAuth.
func userID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// requireAuth resolves the bearer token and stores the user id in the
// request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token", "authorization required")
			return
		}

		uid, err := s.accounts.Authenticate(r.Context(), token)
		if err != nil {
			code := "token_invalid"
			if errors.Is(err, accounts.ErrTokenRevoked) {
				code = "token_expired"
			}
			writeError(w, http.StatusUnauthorized, code, "session is not valid")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, uid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// generalLimit enforces the per-user request budget. Runs after
// requireAuth.
func (s *Server) generalLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := userID(r.Context())
		if !s.limiter.AllowGeneral(uid) {
			s.collector.RecordRateLimited()
			s.logger.Warn("rate limit exceeded", "user_id", uid, "limit", "general")
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// signupLimit enforces the per-address signup budget.
func (s *Server) signupLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := r.RemoteAddr
		if host, _, err := net.SplitHostPort(addr); err == nil {
			addr = host
		}
		if !s.limiter.AllowSignup(addr) {
			s.collector.RecordRateLimited()
			s.logger.Warn("rate limit exceeded", "remote", addr, "limit", "signup")
			w.Header().Set("Retry-After", s.limiter.SignupRetryAfter())
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many signup attempts")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// requestLogger logs each request and feeds the HTTP metrics, labeled
// by the matched route pattern rather than the raw path.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		elapsed := time.Since(start)

		s.collector.RecordHTTPRequest(route, rec.status, elapsed)
		s.logger.Info("request",
			"method", r.Method,
			"route", route,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds(),
		)
	})
}
