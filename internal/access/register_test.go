package access

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/erickerk/elitetrack/internal/auth"
	"github.com/erickerk/elitetrack/internal/invite"
)

func TestRegister_Success(t *testing.T) {
	h := newHarness(t)
	inv := h.newInvite(t)
	ctx := context.Background()

	res, err := h.svc.Register(ctx, inv.Token, draft("New@Client.com"))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if res.Session.User.Email != "new@client.com" || res.Session.User.Role != auth.RoleClient || res.Session.User.ProjectID != "PRJ-2024-002" {
		t.Errorf("session user = %+v", res.Session.User)
	}

	stored, _ := h.inviteStore.FindByToken(ctx, inv.Token)
	if stored.Status != invite.StatusUsed || stored.UsedBy != res.Session.User.ID {
		t.Errorf("invite after register = %+v", stored)
	}

	if _, err := h.login("new@client.com", clientPassword); err != nil {
		t.Errorf("Login() with registered password error = %v", err)
	}
	if h.audit.Count(auth.AuditRegisterSuccess) != 1 || h.audit.Count(auth.AuditInviteAccepted) != 1 {
		t.Error("registration not audited")
	}
}

func TestRegister_InviteStates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	used := h.newInvite(t)
	if _, err := h.svc.Register(ctx, used.Token, draft("first@client.com")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	revoked := h.newInvite(t)
	_ = h.svc.RevokeInvite(ctx, executor, revoked.ID)
	expired := h.newInvite(t)

	tests := []struct {
		name  string
		token string
		setup func()
		want  error
	}{
		{"not found", "Hk7m-Q2xP-9aZr-WcD4", nil, auth.ErrNotFound},
		{"already used", used.Token, nil, auth.ErrAlreadyUsed},
		{"revoked", revoked.Token, nil, auth.ErrRevoked},
		{"expired", expired.Token, func() { h.clk.Advance(8 * 24 * time.Hour) }, auth.ErrExpired},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			_, err := h.svc.Register(ctx, tt.token, draft(fmt.Sprintf("c%d@client.com", i)))
			if !errors.Is(err, tt.want) {
				t.Errorf("Register() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRegister_InvalidDraft(t *testing.T) {
	h := newHarness(t)
	inv := h.newInvite(t)

	bad := []AccountDraft{
		{Name: "", Email: "a@b.com", Password: clientPassword, DeviceID: deviceA},
		{Name: "A", Email: "nope", Password: clientPassword, DeviceID: deviceA},
		{Name: "A", Email: "a@b.com", Password: "short", DeviceID: deviceA},
		{Name: "A", Email: "a@b.com", Password: clientPassword},
	}
	for _, d := range bad {
		if _, err := h.svc.Register(context.Background(), inv.Token, d); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Register(%+v) error = %v, want ErrInvalidInput", d, err)
		}
	}

	_, result, _ := h.invites.Validate(context.Background(), inv.Token)
	if result != invite.ResultValid {
		t.Errorf("invite state after rejected drafts = %s, want valid", result)
	}
}

func TestRegister_DuplicateEmailIsConflict(t *testing.T) {
	h := newHarness(t)
	h.addClient(t, clientEmail, clientPassword)
	inv := h.newInvite(t)

	if _, err := h.svc.Register(context.Background(), inv.Token, draft(clientEmail)); !errors.Is(err, auth.ErrRegistrationConflict) {
		t.Errorf("Register() error = %v, want ErrRegistrationConflict", err)
	}
	if _, result, _ := h.invites.Validate(context.Background(), inv.Token); result != invite.ResultValid {
		t.Errorf("invite = %s after duplicate account, want still valid", result)
	}
}

// Scenario: two parallel registrations with the same token
func TestScenario_ParallelRegister(t *testing.T) {
	h := newHarness(t)
	inv := h.newInvite(t)

	const n = 2
	results := make([]*LoginResult, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.svc.Register(context.Background(), inv.Token, draft(fmt.Sprintf("racer%d@client.com", i)))
		}(i)
	}
	wg.Wait()

	var sessions, conflicts int
	for i := 0; i < n; i++ {
		switch {
		case errs[i] == nil && results[i] != nil:
			sessions++
		case errors.Is(errs[i], auth.ErrRegistrationConflict), errors.Is(errs[i], auth.ErrAlreadyUsed):
			conflicts++
		default:
			t.Errorf("Register() #%d = %v, %v", i, results[i], errs[i])
		}
	}
	if sessions != 1 || conflicts != 1 {
		t.Fatalf("sessions = %d, conflicts = %d, want 1 and 1", sessions, conflicts)
	}
}

// RED: the loser of a consume race keeps a usable account
func TestRegister_ConsumeRaceKeepsAccount(t *testing.T) {
	h := newHarness(t)
	inv := h.newInvite(t)
	ctx := context.Background()

	racing := &racingStore{MemoryStore: h.inviteStore, token: inv.Token}
	h.svc.invites = invite.NewService(racing, h.clk, invite.Config{}, nil)

	_, err := h.svc.Register(ctx, inv.Token, draft("loser@client.com"))
	if !errors.Is(err, auth.ErrRegistrationConflict) {
		t.Fatalf("Register() error = %v, want ErrRegistrationConflict", err)
	}
	if _, err := h.login("loser@client.com", clientPassword); err != nil {
		t.Errorf("Login() for the losing registrant error = %v", err)
	}
	if h.audit.Count(auth.AuditRegisterConflict) != 1 {
		t.Error("conflict not audited")
	}
}

// racingStore lets another redeemer consume the token right before the first CAS
type racingStore struct {
	*invite.MemoryStore
	token string
	once  sync.Once
}

func (s *racingStore) CompareAndSetStatus(ctx context.Context, token string, expected, next invite.Status, t invite.Transition) (bool, error) {
	s.once.Do(func() {
		_, _ = s.MemoryStore.CompareAndSetStatus(ctx, s.token, invite.StatusPending, invite.StatusUsed,
			invite.Transition{At: t.At, By: "someone-else", ValidAt: t.ValidAt})
	})
	return s.MemoryStore.CompareAndSetStatus(ctx, token, expected, next, t)
}
