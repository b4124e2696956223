package api

import (
	"log/slog"
	"net/http"

	"github.com/erickerk/elitetrack/internal/access"
	"github.com/erickerk/elitetrack/internal/auth"
	"github.com/erickerk/elitetrack/internal/middleware"
	"github.com/erickerk/elitetrack/internal/session"
)

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Token    string `json:"token"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// ChangePasswordRequest represents the password change request body
type ChangePasswordRequest struct {
	Password string `json:"password"`
}

// SessionResponse is returned whenever a session is issued
type SessionResponse struct {
	AccessToken            string           `json:"access_token"`
	TokenType              string           `json:"token_type"`
	ExpiresIn              int              `json:"expires_in"`
	RequiresPasswordChange bool             `json:"requires_password_change"`
	Session                *session.Session `json:"session"`
}

// RateLimitResponse is the login page's view of a lockout
type RateLimitResponse struct {
	IsLocked          bool `json:"is_locked"`
	AttemptsUsed      int  `json:"attempts_used"`
	AttemptsRemaining int  `json:"attempts_remaining"`
	LockoutMinutes    int  `json:"lockout_minutes"`
}

func newSessionResponse(result *access.LoginResult) SessionResponse {
	return SessionResponse{
		AccessToken:            result.Token,
		TokenType:              "Bearer",
		ExpiresIn:              int(result.Session.ExpiresAt.Sub(result.Session.IssuedAt).Seconds()),
		RequiresPasswordChange: result.RequiresPasswordChange,
		Session:                result.Session,
	}
}

// NewLoginHandler creates the login handler. The device is taken from the
// X-Device-ID header.
func NewLoginHandler(svc *access.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		result, err := svc.Login(r.Context(), access.LoginRequest{
			Identifier: req.Email,
			Secret:     req.Password,
			ClientIP:   middleware.GetClientIP(r),
			DeviceID:   middleware.DeviceID(r),
		})
		if err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, newSessionResponse(result))
	}
}

// NewRateLimitInfoHandler reports the lockout state for ?email=
func NewRateLimitInfoHandler(svc *access.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := svc.RateLimitInfo(r.Context(), r.URL.Query().Get("email"), middleware.GetClientIP(r))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, RateLimitResponse{
			IsLocked:          info.IsLocked,
			AttemptsUsed:      info.AttemptsUsed,
			AttemptsRemaining: info.AttemptsRemaining,
			LockoutMinutes:    info.LockoutMinutes,
		})
	}
}

// NewRegisterHandler creates the invite registration handler
func NewRegisterHandler(svc *access.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		result, err := svc.Register(r.Context(), req.Token, access.AccountDraft{
			Name:     req.Name,
			Email:    req.Email,
			Phone:    req.Phone,
			Password: req.Password,
			DeviceID: middleware.DeviceID(r),
		})
		if err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, newSessionResponse(result))
	}
}

// NewSessionHandler returns the session attached by RequireSession
func NewSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := middleware.SessionFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Invalid or expired session", Reason: "no_session"})
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

// NewLogoutHandler creates the logout handler. Logout always succeeds.
func NewLogoutHandler(svc *access.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, _ := middleware.BearerToken(r)
		_ = svc.Logout(r.Context(), token, middleware.GetClientIP(r))
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "Logged out successfully",
		})
	}
}

// NewChangePasswordHandler sets a permanent password for the session's
// account and re-issues the session
func NewChangePasswordHandler(svc *access.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := middleware.SessionFromContext(r.Context())
		if !ok {
			writeError(w, logger, auth.ErrNoSession)
			return
		}

		var req ChangePasswordRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		result, err := svc.ChangePassword(r.Context(), sess, req.Password)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, newSessionResponse(result))
	}
}
