package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/erickerk/elitetrack/internal/auth"
	"github.com/erickerk/elitetrack/internal/session"
)

// DeviceIDHeader carries the client's device identifier
const DeviceIDHeader = "X-Device-ID"

type contextKey struct{}

// SessionVerifier checks a bearer token for a device
type SessionVerifier interface {
	CurrentSession(ctx context.Context, token, deviceID string) (*session.Session, error)
}

// BearerToken extracts the token from the Authorization header
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

// DeviceID returns the trimmed X-Device-ID header
func DeviceID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(DeviceIDHeader))
}

// RequireSession validates the bearer token against the request's device
// and attaches the session to the context
func RequireSession(v SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"error":  "Missing or invalid authorization header",
					"reason": "no_session",
				})
				return
			}

			sess, err := v.CurrentSession(r.Context(), token, DeviceID(r))
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"error":  "Invalid or expired session",
					"reason": SessionErrorReason(err),
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// ReasonPasswordChangeRequired is the 403 reason for temporary-password sessions
const ReasonPasswordChangeRequired = "password_change_required"

// RequirePasswordSet refuses sessions opened with a temporary password. It
// runs after RequireSession.
func RequirePasswordSet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error":  "Session not found in context",
				"reason": "no_session",
			})
			return
		}
		if sess.RequiresPasswordChange {
			writeJSON(w, http.StatusForbidden, map[string]string{
				"error":  "Choose a new password before continuing",
				"reason": ReasonPasswordChangeRequired,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionErrorReason maps a session error to the reason code clients act on
func SessionErrorReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrSessionExpired):
		return session.ReasonExpired.String()
	case errors.Is(err, auth.ErrDeviceMismatch):
		return session.ReasonDeviceMismatch.String()
	case errors.Is(err, auth.ErrNoSession):
		return "no_session"
	}
	return "invalid_token"
}

// RequireRole checks that the session user has at least minRole
func RequireRole(minRole auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := SessionFromContext(r.Context())
			if !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"error": "Session not found in context",
				})
				return
			}

			if !sess.User.Role.Valid() || sess.User.Role.Level() < minRole.Level() {
				writeJSON(w, http.StatusForbidden, map[string]string{
					"error": "Insufficient permissions",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WithSession returns ctx carrying sess
func WithSession(ctx context.Context, sess *session.Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// SessionFromContext returns the session attached by RequireSession
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(contextKey{}).(*session.Session)
	return sess, ok && sess != nil
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
