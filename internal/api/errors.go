package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erickerk/elitetrack/internal/access"
	"github.com/erickerk/elitetrack/internal/auth"
	"github.com/erickerk/elitetrack/internal/invite"
	"github.com/erickerk/elitetrack/internal/middleware"
	"github.com/erickerk/elitetrack/internal/session"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error             string `json:"error"`
	Reason            string `json:"reason,omitempty"`
	RetryAfterMinutes int    `json:"retry_after_minutes,omitempty"`
}

// Reason codes clients switch on
const (
	ReasonRateLimited          = "rate_limited"
	ReasonInvalidCredentials   = "invalid_credentials"
	ReasonRegistrationConflict = "registration_conflict"
	ReasonStoreUnavailable     = "store_unavailable"
)

// writeError maps err to a status code and a user-facing message. Invite
// states are shown verbatim; credential failures stay vague.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if minutes, ok := access.IsRateLimited(err); ok {
		w.Header().Set("Retry-After", strconv.Itoa(middleware.RetryAfterSeconds(minutes)))
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
			Error:             "Too many failed attempts, please try again later",
			Reason:            ReasonRateLimited,
			RetryAfterMinutes: minutes,
		})
		return
	}

	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Invalid credentials", Reason: ReasonInvalidCredentials})
	case errors.Is(err, auth.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Reason: invite.ResultNotFound.String()})
	case errors.Is(err, auth.ErrAlreadyUsed):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Reason: invite.ResultAlreadyUsed.String()})
	case errors.Is(err, auth.ErrRevoked):
		writeJSON(w, http.StatusGone, ErrorResponse{Error: err.Error(), Reason: invite.ResultRevoked.String()})
	case errors.Is(err, auth.ErrExpired):
		writeJSON(w, http.StatusGone, ErrorResponse{Error: err.Error(), Reason: invite.ResultExpired.String()})
	case errors.Is(err, auth.ErrRegistrationConflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:  "Your account was created but this invite was already used. Please log in.",
			Reason: ReasonRegistrationConflict,
		})
	case errors.Is(err, auth.ErrSessionExpired),
		errors.Is(err, auth.ErrDeviceMismatch),
		errors.Is(err, auth.ErrNoSession),
		errors.Is(err, session.ErrInvalidToken):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:  "Invalid or expired session",
			Reason: middleware.SessionErrorReason(err),
		})
	case errors.Is(err, access.ErrInvalidInput), errors.Is(err, invite.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, access.ErrForbidden):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "Insufficient permissions"})
	case errors.Is(err, auth.ErrStoreUnavailable):
		logger.Error("store unavailable", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error:  "Service temporarily unavailable, please try again",
			Reason: ReasonStoreUnavailable,
		})
	default:
		logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
	}
}

// decodeJSON reads a request body into dst, answering 400 or 413 on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if middleware.HandleMaxBytesError(w, err) {
			return false
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return false
	}
	return true
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Ignore error - response already started
}
