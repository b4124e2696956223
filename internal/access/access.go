// Package access composes rate limiting, credential verification, invites
// and sessions into the portal's login and registration use cases.
package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/erickerk/elitetrack/internal/accounts"
	"github.com/erickerk/elitetrack/internal/auth"
	"github.com/erickerk/elitetrack/internal/clock"
	"github.com/erickerk/elitetrack/internal/invite"
	"github.com/erickerk/elitetrack/internal/session"
)

// DefaultStoreTimeout bounds one use case when the caller set no deadline
const DefaultStoreTimeout = 5 * time.Second

var (
	// ErrInvalidInput wraps validation failures of request fields
	ErrInvalidInput = errors.New("invalid input")

	// ErrForbidden is returned when the actor's role does not allow the operation
	ErrForbidden = errors.New("forbidden")
)

// Deps are the collaborators of a Service
type Deps struct {
	Limiter       *auth.RateLimiter
	Verifiers     *auth.Chain
	Invites       *invite.Service
	Accounts      accounts.Store
	TempPasswords auth.TempPasswordStore
	Passwords     *auth.PasswordService
	Sessions      *session.Codec
	Audit         auth.AuditLogger
	Clock         clock.Clock
	Logger        *slog.Logger
	StoreTimeout  time.Duration
}

// Service implements the access use cases
type Service struct {
	limiter   *auth.RateLimiter
	chain     *auth.Chain
	invites   *invite.Service
	accounts  accounts.Store
	temps     auth.TempPasswordStore
	passwords *auth.PasswordService
	codec     *session.Codec
	audit     auth.AuditLogger
	clock     clock.Clock
	logger    *slog.Logger
	timeout   time.Duration
}

// NewService checks d and builds a Service
func NewService(d Deps) (*Service, error) {
	switch {
	case d.Limiter == nil:
		return nil, errors.New("rate limiter is required")
	case d.Verifiers == nil:
		return nil, errors.New("verifier chain is required")
	case d.Invites == nil:
		return nil, errors.New("invite service is required")
	case d.Accounts == nil:
		return nil, errors.New("account store is required")
	case d.TempPasswords == nil:
		return nil, errors.New("temp password store is required")
	case d.Passwords == nil:
		return nil, errors.New("password service is required")
	case d.Sessions == nil:
		return nil, errors.New("session codec is required")
	}
	if d.Audit == nil {
		d.Audit = auth.NewInMemoryAuditLogger()
	}
	if d.Clock == nil {
		d.Clock = clock.System{}
	}
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	if d.StoreTimeout <= 0 {
		d.StoreTimeout = DefaultStoreTimeout
	}
	return &Service{
		limiter:   d.Limiter,
		chain:     d.Verifiers,
		invites:   d.Invites,
		accounts:  d.Accounts,
		temps:     d.TempPasswords,
		passwords: d.Passwords,
		codec:     d.Sessions,
		audit:     d.Audit,
		clock:     d.Clock,
		logger:    d.Logger,
		timeout:   d.StoreTimeout,
	}, nil
}

// Limits returns the login rate limits
func (s *Service) Limits() auth.Limits {
	return s.limiter.Limits()
}

func (s *Service) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Service) record(entry *auth.AuditLog) {
	if err := s.audit.Log(entry); err != nil {
		s.logger.Error("audit log write failed", "event", string(entry.EventType), "error", err)
	}
}

// LoginResult is a freshly issued session
type LoginResult struct {
	Session                *session.Session
	Token                  string
	RequiresPasswordChange bool
}

func (s *Service) issue(account auth.Account, deviceID string, requiresPasswordChange bool) (*LoginResult, error) {
	sess := s.codec.Policy().Issue(account, deviceID)
	sess.RequiresPasswordChange = requiresPasswordChange
	token, err := s.codec.Encode(sess)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Session:                sess,
		Token:                  token,
		RequiresPasswordChange: requiresPasswordChange,
	}, nil
}

func requireDevice(deviceID string) error {
	if strings.TrimSpace(deviceID) == "" {
		return fmt.Errorf("%w: device id is required", ErrInvalidInput)
	}
	return nil
}

func requireRole(actor session.User, role auth.Role) error {
	if actor.Role.Level() < role.Level() {
		return ErrForbidden
	}
	return nil
}

// CurrentSession verifies a bearer token for deviceID
func (s *Service) CurrentSession(ctx context.Context, token, deviceID string) (*session.Session, error) {
	if token == "" {
		return nil, auth.ErrNoSession
	}
	return s.codec.Verify(token, deviceID)
}

// IsAuthenticated reports whether token carries a valid session for deviceID
func (s *Service) IsAuthenticated(ctx context.Context, token, deviceID string) bool {
	_, err := s.CurrentSession(ctx, token, deviceID)
	return err == nil
}

// Logout records the end of a session. Sessions are bearer tokens, so the
// client discarding its token is what ends the session. Logout never fails.
func (s *Service) Logout(ctx context.Context, token, clientIP string) error {
	entry := &auth.AuditLog{
		EventType:  auth.AuditLogout,
		ActorType:  auth.ActorTypeAnonymous,
		TargetType: "session",
		ClientIP:   clientIP,
	}
	if sess, err := s.codec.Decode(token); err == nil {
		entry.ActorType = auth.ActorTypeUser
		entry.ActorID = sess.User.ID
		entry.TargetID = sess.ID
	}
	s.record(entry)
	return nil
}
