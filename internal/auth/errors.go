package auth

import (
	"errors"
	"fmt"
)

// Invite state errors are informational and safe to show to end users verbatim.
var (
	ErrNotFound    = errors.New("invite not found")
	ErrAlreadyUsed = errors.New("invite already used")
	ErrRevoked     = errors.New("invite revoked")
	ErrExpired     = errors.New("invite expired")
)

// Authentication errors. Callers must show deliberately vague text for these.
var (
	ErrRateLimited          = errors.New("too many failed attempts")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrStoreUnavailable     = errors.New("store unavailable")
	ErrDeviceMismatch       = errors.New("session bound to another device")
	ErrSessionExpired       = errors.New("session expired")
	ErrRegistrationConflict = errors.New("registration conflict")
	ErrNoSession            = errors.New("no active session")

	// ErrPasswordChangeRequired rejects a temporary-password session anywhere
	// but the password change and session endpoints
	ErrPasswordChangeRequired = errors.New("password change required")
)

// RateLimitedError reports a lockout together with the time left on it
type RateLimitedError struct {
	RemainingMinutes int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many failed attempts, try again in %d minutes", e.RemainingMinutes)
}

// Is lets errors.Is(err, ErrRateLimited) match
func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// Unavailable wraps a store failure so it matches ErrStoreUnavailable while
// keeping the underlying cause for logs.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
