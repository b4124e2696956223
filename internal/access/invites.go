package access

import (
	"context"

	"github.com/erickerk/elitetrack/internal/auth"
	"github.com/erickerk/elitetrack/internal/invite"
	"github.com/erickerk/elitetrack/internal/session"
	"github.com/google/uuid"
)

// GenerateInvite issues an invite on behalf of an executor or admin
func (s *Service) GenerateInvite(ctx context.Context, actor session.User, req invite.GenerateRequest) (*invite.Invite, error) {
	if err := requireRole(actor, auth.RoleExecutor); err != nil {
		return nil, err
	}
	req.CreatedBy = actor.ID

	inv, err := s.invites.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	s.record(auth.CreateInviteAuditLog(auth.AuditInviteCreated, actor.ID, inv.ID.String(), inv.ProjectID))
	return inv, nil
}

// RevokeInvite revokes a pending invite
func (s *Service) RevokeInvite(ctx context.Context, actor session.User, id uuid.UUID) error {
	if err := requireRole(actor, auth.RoleExecutor); err != nil {
		return err
	}
	if err := s.invites.Revoke(ctx, id); err != nil {
		return err
	}
	s.record(auth.CreateInviteAuditLog(auth.AuditInviteRevoked, actor.ID, id.String(), ""))
	return nil
}

// ListInvites lists invites with their effective status
func (s *Service) ListInvites(ctx context.Context, actor session.User, f invite.Filter) ([]invite.View, error) {
	if err := requireRole(actor, auth.RoleExecutor); err != nil {
		return nil, err
	}
	return s.invites.List(ctx, f)
}

// ValidateInviteToken reports the state of an invite token. It never
// modifies the invite.
func (s *Service) ValidateInviteToken(ctx context.Context, token string) (*invite.Invite, invite.Result, error) {
	return s.invites.Validate(ctx, token)
}
