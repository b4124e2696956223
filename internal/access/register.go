package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erickerk/elitetrack/internal/accounts"
	"github.com/erickerk/elitetrack/internal/auth"
	"github.com/erickerk/elitetrack/internal/invite"
	"github.com/google/uuid"
)

// AccountDraft is the data a client submits to register
type AccountDraft struct {
	Name     string
	Email    string
	Phone    string
	Password string
	DeviceID string
}

// Validate checks the draft fields
func (d AccountDraft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if err := auth.ValidateEmail(d.Email); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := auth.ValidatePassword(d.Password); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return requireDevice(d.DeviceID)
}

// Register creates a client account from an invite and signs it in.
//
// Invite problems are returned as auth.ErrNotFound, auth.ErrAlreadyUsed,
// auth.ErrRevoked or auth.ErrExpired. If the invite is redeemed by someone
// else between validation and consumption, the new account is kept and
// auth.ErrRegistrationConflict is returned so the client can offer a login.
func (s *Service) Register(ctx context.Context, token string, draft AccountDraft) (*LoginResult, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	inv, result, err := s.invites.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	if result != invite.ResultValid {
		return nil, result.Err()
	}

	hash, err := s.passwords.HashPassword(draft.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := auth.Account{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(draft.Name),
		Email:     auth.NormalizeIdentifier(draft.Email),
		Phone:     strings.TrimSpace(draft.Phone),
		Role:      auth.RoleClient,
		ProjectID: inv.ProjectID,
		CreatedAt: s.clock.Now(),
	}

	if err := s.accounts.Create(ctx, account, hash); err != nil {
		if errors.Is(err, accounts.ErrDuplicate) {
			s.record(registerConflict(inv, account, "duplicate_account"))
			return nil, auth.ErrRegistrationConflict
		}
		return nil, auth.Unavailable("create account", err)
	}

	consumed, err := s.invites.Consume(ctx, token, account.ID)
	if err != nil {
		s.logger.Error("invite consume failed after account creation",
			"account_id", account.ID, "invite_id", inv.ID.String(), "error", err)
		return nil, err
	}
	if !consumed {
		s.record(registerConflict(inv, account, "invite_consumed_concurrently"))
		s.logger.Warn("registration lost invite race", "account_id", account.ID, "invite_id", inv.ID.String())
		return nil, auth.ErrRegistrationConflict
	}

	s.record(&auth.AuditLog{
		EventType:  auth.AuditRegisterSuccess,
		ActorType:  auth.ActorTypeUser,
		ActorID:    account.ID,
		TargetType: "account",
		TargetID:   account.ID,
		Details:    map[string]interface{}{"project_id": inv.ProjectID},
	})
	s.record(auth.CreateInviteAuditLog(auth.AuditInviteAccepted, account.ID, inv.ID.String(), inv.ProjectID))

	return s.issue(account, draft.DeviceID, false)
}

func registerConflict(inv *invite.Invite, account auth.Account, reason string) *auth.AuditLog {
	return &auth.AuditLog{
		EventType:  auth.AuditRegisterConflict,
		ActorType:  auth.ActorTypeAnonymous,
		TargetType: "invite",
		TargetID:   inv.ID.String(),
		Details: map[string]interface{}{
			"project_id": inv.ProjectID,
			"account_id": account.ID,
			"reason":     reason,
		},
	}
}
