package access

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erickerk/elitetrack/internal/accounts"
	"github.com/erickerk/elitetrack/internal/auth"
	"github.com/erickerk/elitetrack/internal/clock"
	"github.com/erickerk/elitetrack/internal/invite"
	"github.com/erickerk/elitetrack/internal/session"
	"golang.org/x/crypto/bcrypt"
)

var start = time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

const (
	clientEmail    = "user@x.com"
	clientPassword = "SecurePass123!"
	deviceA        = "device-a"
)

var executor = session.User{ID: "exec-1", Email: "executor@elite.com", Role: auth.RoleExecutor}

type harness struct {
	svc         *Service
	clk         *clock.Fake
	accounts    *accounts.MemoryStore
	invites     *invite.Service
	inviteStore *invite.MemoryStore
	temps       *auth.MemoryTempPasswordStore
	passwords   *auth.PasswordService
	audit       *auth.InMemoryAuditLogger
	entries     *auth.MemoryEntryStore
}

func newHarness(t *testing.T, verifiers ...auth.Verifier) *harness {
	t.Helper()

	h := &harness{
		clk:         clock.NewFake(start),
		accounts:    accounts.NewMemoryStore(),
		inviteStore: invite.NewMemoryStore(),
		temps:       auth.NewMemoryTempPasswordStore(),
		passwords:   auth.NewPasswordService(bcrypt.MinCost),
		audit:       auth.NewInMemoryAuditLogger(),
		entries:     auth.NewMemoryEntryStore(time.Minute, time.Hour, 1000),
	}
	t.Cleanup(h.entries.Stop)

	h.invites = invite.NewService(h.inviteStore, h.clk, invite.Config{}, nil)

	if len(verifiers) == 0 {
		verifiers = []auth.Verifier{
			auth.NewPasswordVerifier(h.accounts, h.passwords),
			auth.NewStaticVerifier([]auth.StaticUser{{
				Account:  auth.Account{ID: "dev-admin", Email: "admin@elite.com", Role: auth.RoleAdmin},
				Password: "dev-admin-password",
			}}),
			auth.NewTempPasswordVerifier(h.temps, h.accounts, h.passwords, h.clk),
		}
	}
	chain, err := auth.NewChain(verifiers...)
	if err != nil {
		t.Fatalf("NewChain() error = %v", err)
	}

	policy := session.NewPolicy(h.clk, 0)
	codec, err := session.NewCodec("test-session-secret-at-least-32-characters-long", policy)
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}

	h.svc, err = NewService(Deps{
		Limiter:       auth.NewRateLimiter(h.entries, auth.DefaultLimits(), h.clk),
		Verifiers:     chain,
		Invites:       h.invites,
		Accounts:      h.accounts,
		TempPasswords: h.temps,
		Passwords:     h.passwords,
		Sessions:      codec,
		Audit:         h.audit,
		Clock:         h.clk,
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return h
}

func (h *harness) addClient(t *testing.T, email, password string) auth.Account {
	t.Helper()
	hash, _ := h.passwords.HashPassword(password)
	account := auth.Account{ID: "acc-" + email, Name: "Client", Email: email, Role: auth.RoleClient, ProjectID: "PRJ-2024-002"}
	if err := h.accounts.Create(context.Background(), account, hash); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return account
}

func (h *harness) login(identifier, secret string) (*LoginResult, error) {
	return h.svc.Login(context.Background(), LoginRequest{
		Identifier: identifier,
		Secret:     secret,
		ClientIP:   "203.0.113.7",
		DeviceID:   deviceA,
	})
}

func (h *harness) newInvite(t *testing.T) *invite.Invite {
	t.Helper()
	inv, err := h.svc.GenerateInvite(context.Background(), executor, invite.GenerateRequest{
		ProjectID: "PRJ-2024-002",
		Owner:     invite.Owner{Name: "Maria Souza"},
	})
	if err != nil {
		t.Fatalf("GenerateInvite() error = %v", err)
	}
	return inv
}

func draft(email string) AccountDraft {
	return AccountDraft{Name: "Maria Souza", Email: email, Password: clientPassword, DeviceID: deviceA}
}

// failingVerifier reports a store failure
type failingVerifier struct{ calls int32 }

func (v *failingVerifier) Kind() auth.VerifierKind { return auth.KindPrimary }

func (v *failingVerifier) Verify(ctx context.Context, identifier, secret string) (*auth.Account, error) {
	atomic.AddInt32(&v.calls, 1)
	return nil, errors.New("connection reset")
}

func TestNewService_RequiresDeps(t *testing.T) {
	if _, err := NewService(Deps{}); err == nil {
		t.Error("NewService(Deps{}) error = nil, want error")
	}
}
