// Package apitest runs the HTTP API in-process over memory stores for client tests.
package apitest

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erickerk/elitetrack/internal/access"
	"github.com/erickerk/elitetrack/internal/accounts"
	"github.com/erickerk/elitetrack/internal/api"
	"github.com/erickerk/elitetrack/internal/auth"
	"github.com/erickerk/elitetrack/internal/clock"
	"github.com/erickerk/elitetrack/internal/invite"
	"github.com/erickerk/elitetrack/internal/session"
	"golang.org/x/crypto/bcrypt"
)

// Fixed staff credentials served by the fallback verifier
const (
	ExecutorEmail    = "executor@elite.com"
	ExecutorPassword = "executor-dev-password"
)

// Server is a running API with access to its stores
type Server struct {
	*httptest.Server

	Accounts      *accounts.MemoryStore
	TempPasswords *auth.MemoryTempPasswordStore
	Audit         *auth.InMemoryAuditLogger
}

// NewServer starts the API on the system clock. It is closed when t ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		Accounts:      accounts.NewMemoryStore(),
		TempPasswords: auth.NewMemoryTempPasswordStore(),
		Audit:         auth.NewInMemoryAuditLogger(),
	}
	passwords := auth.NewPasswordService(bcrypt.MinCost)
	entries := auth.NewMemoryEntryStore(time.Minute, time.Hour, 1000)
	t.Cleanup(entries.Stop)

	chain, err := auth.NewChain(
		auth.NewPasswordVerifier(s.Accounts, passwords),
		auth.NewStaticVerifier([]auth.StaticUser{{
			Account:  auth.Account{ID: "exec-1", Name: "Executor", Email: ExecutorEmail, Role: auth.RoleExecutor},
			Password: ExecutorPassword,
		}}),
		auth.NewTempPasswordVerifier(s.TempPasswords, s.Accounts, passwords, nil),
	)
	if err != nil {
		t.Fatalf("NewChain() error = %v", err)
	}
	codec, err := session.NewCodec("apitest-session-secret-at-least-32-chars", session.NewPolicy(clock.System{}, 0))
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	svc, err := access.NewService(access.Deps{
		Limiter:       auth.NewRateLimiter(entries, auth.DefaultLimits(), nil),
		Verifiers:     chain,
		Invites:       invite.NewService(invite.NewMemoryStore(), nil, invite.Config{}, nil),
		Accounts:      s.Accounts,
		TempPasswords: s.TempPasswords,
		Passwords:     passwords,
		Sessions:      codec,
		Audit:         s.Audit,
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	s.Server = httptest.NewServer(api.NewRouter(api.RouterConfig{Access: svc}))
	t.Cleanup(s.Server.Close)
	return s
}
