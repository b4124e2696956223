package access

import (
	"context"
	"errors"

	"github.com/erickerk/elitetrack/internal/auth"
)

// LoginRequest is one login attempt
type LoginRequest struct {
	Identifier string
	Secret     string
	ClientIP   string
	DeviceID   string
}

// Login authenticates req and issues a session bound to req.DeviceID.
//
// A locked key fails with *auth.RateLimitedError before any verifier runs.
// Unknown accounts and wrong secrets both fail with auth.ErrInvalidCredentials.
// A failing credential store fails the attempt with auth.ErrStoreUnavailable
// without counting it against the key.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if err := requireDevice(req.DeviceID); err != nil {
		return nil, err
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	key := auth.RateKey(req.Identifier, req.ClientIP)

	status, err := s.limiter.IsLimited(ctx, key)
	if err != nil {
		s.logger.Error("rate limit check failed", "identifier", auth.TruncateIdentifier(key), "error", err)
		return nil, err
	}
	if status.Limited {
		s.record(auth.CreateLoginAuditLog(auth.AuditLoginRateLimited, nil, req.Identifier, "locked", req.ClientIP))
		return nil, &auth.RateLimitedError{RemainingMinutes: status.RemainingMinutes()}
	}

	match, err := s.chain.Verify(ctx, req.Identifier, req.Secret)
	if err != nil {
		s.logger.Error("credential verification failed", "identifier", auth.TruncateIdentifier(key), "error", err)
		s.record(auth.CreateLoginAuditLog(auth.AuditLoginFailure, nil, req.Identifier, "store_unavailable", req.ClientIP))
		return nil, err
	}

	if match == nil {
		attempt, err := s.limiter.RecordFailure(ctx, key)
		if err != nil {
			s.logger.Error("failed to record login failure", "identifier", auth.TruncateIdentifier(key), "error", err)
			return nil, err
		}
		reason := "invalid_credentials"
		if !attempt.Allowed {
			reason = "invalid_credentials_locked"
		}
		s.record(auth.CreateLoginAuditLog(auth.AuditLoginFailure, nil, req.Identifier, reason, req.ClientIP))
		return nil, auth.ErrInvalidCredentials
	}

	if err := s.limiter.Clear(ctx, key); err != nil {
		s.logger.Warn("failed to clear rate limit", "identifier", auth.TruncateIdentifier(key), "error", err)
	}

	result, err := s.issue(match.Account, req.DeviceID, match.RequiresPasswordChange())
	if err != nil {
		return nil, err
	}

	s.record(auth.CreateLoginAuditLog(auth.AuditLoginSuccess, &match.Account, req.Identifier, "", req.ClientIP))
	s.logger.Info("login succeeded",
		"account_id", match.Account.ID,
		"verifier", match.Kind.String(),
		"requires_password_change", result.RequiresPasswordChange,
	)
	return result, nil
}

// RateLimitInfo returns the lockout state shown on the login page
func (s *Service) RateLimitInfo(ctx context.Context, identifier, clientIP string) (auth.Info, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.limiter.Info(ctx, auth.RateKey(identifier, clientIP))
}

// IsRateLimited reports whether err is a lockout and the minutes left on it
func IsRateLimited(err error) (int, bool) {
	var rl *auth.RateLimitedError
	if errors.As(err, &rl) {
		return rl.RemainingMinutes, true
	}
	return 0, false
}
