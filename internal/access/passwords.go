package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erickerk/elitetrack/internal/accounts"
	"github.com/erickerk/elitetrack/internal/auth"
	"github.com/erickerk/elitetrack/internal/session"
	"github.com/google/uuid"
)

const tempPasswordLength = 10

// TempPasswordRequest asks for a first-login password for a client
type TempPasswordRequest struct {
	Email     string
	ProjectID string

	// Password is generated when empty
	Password string
}

// IssuedTempPassword is returned once to the executor who hands it to the client
type IssuedTempPassword struct {
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueTempPassword creates a single-use password valid for
// auth.TempPasswordTTL. A client account without a password is created if
// the email is not registered yet. Staff accounts and accounts that already
// hold a permanent password are refused with ErrForbidden.
func (s *Service) IssueTempPassword(ctx context.Context, actor session.User, req TempPasswordRequest) (*IssuedTempPassword, error) {
	if err := requireRole(actor, auth.RoleExecutor); err != nil {
		return nil, err
	}
	if err := auth.ValidateEmail(req.Email); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if req.ProjectID != "" && !auth.IsValidProjectCode(req.ProjectID) {
		return nil, fmt.Errorf("%w: unrecognised project code %q", ErrInvalidInput, req.ProjectID)
	}

	password := req.Password
	if password == "" {
		var err error
		if password, err = s.passwords.GenerateTempPassword(tempPasswordLength); err != nil {
			return nil, fmt.Errorf("failed to generate temporary password: %w", err)
		}
	}
	hash, err := s.passwords.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash temporary password: %w", err)
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	email := auth.NormalizeIdentifier(req.Email)
	now := s.clock.Now()

	existing, existingHash, err := s.accounts.FindCredentials(ctx, email)
	if err != nil {
		return nil, auth.Unavailable("find account", err)
	}
	if existing != nil && (existing.Role != auth.RoleClient || existingHash != "") {
		s.logger.Warn("temporary password refused for established account",
			"actor_id", actor.ID, "identifier", auth.TruncateIdentifier(email), "role", existing.Role)
		return nil, fmt.Errorf("%w: account already has a permanent password", ErrForbidden)
	}
	if existing == nil {
		name := email
		if at := strings.Index(name, "@"); at > 0 {
			name = name[:at]
		}
		err := s.accounts.Create(ctx, auth.Account{
			ID:        uuid.NewString(),
			Name:      name,
			Email:     email,
			Role:      auth.RoleClient,
			ProjectID: req.ProjectID,
			CreatedAt: now,
		}, "")
		if err != nil && !errors.Is(err, accounts.ErrDuplicate) {
			return nil, auth.Unavailable("create account", err)
		}
	}

	tp := auth.TempPassword{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		ProjectID:    req.ProjectID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(auth.TempPasswordTTL),
	}
	if err := s.temps.Issue(ctx, tp); err != nil {
		return nil, auth.Unavailable("issue temp password", err)
	}

	s.record(&auth.AuditLog{
		EventType:  auth.AuditTempPasswordIssued,
		ActorType:  auth.ActorTypeUser,
		ActorID:    actor.ID,
		TargetType: "temp_password",
		TargetID:   tp.ID,
		Details:    map[string]interface{}{"project_id": req.ProjectID},
	})

	return &IssuedTempPassword{
		Email:     email,
		Password:  password,
		ExpiresAt: tp.ExpiresAt,
	}, nil
}

// ChangePassword sets a permanent password for the session's account and
// returns a new session without the password change requirement.
func (s *Service) ChangePassword(ctx context.Context, current *session.Session, newPassword string) (*LoginResult, error) {
	if current == nil {
		return nil, auth.ErrNoSession
	}
	if err := auth.ValidatePassword(newPassword); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	hash, err := s.passwords.HashPassword(newPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	account, err := s.accounts.FindByEmail(ctx, current.User.Email)
	if err != nil {
		return nil, auth.Unavailable("find account", err)
	}
	if account == nil {
		// sessions from a synthesized temp-password account have no row yet
		created := auth.Account{
			ID:        uuid.NewString(),
			Name:      current.User.Name,
			Email:     auth.NormalizeIdentifier(current.User.Email),
			Phone:     current.User.Phone,
			Role:      current.User.Role,
			Tier:      current.User.Tier,
			ProjectID: current.User.ProjectID,
			CreatedAt: s.clock.Now(),
		}
		if err := s.accounts.Create(ctx, created, hash); err != nil {
			return nil, auth.Unavailable("create account", err)
		}
		account = &created
	} else if err := s.accounts.SetPassword(ctx, account.ID, hash); err != nil {
		return nil, auth.Unavailable("set password", err)
	}

	s.record(&auth.AuditLog{
		EventType:  auth.AuditPasswordChanged,
		ActorType:  auth.ActorTypeUser,
		ActorID:    account.ID,
		TargetType: "account",
		TargetID:   account.ID,
	})

	return s.issue(*account, current.DeviceID, false)
}
