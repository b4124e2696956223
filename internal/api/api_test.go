package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/erickerk/elitetrack/internal/access"
	"github.com/erickerk/elitetrack/internal/accounts"
	"github.com/erickerk/elitetrack/internal/auth"
	"github.com/erickerk/elitetrack/internal/clock"
	"github.com/erickerk/elitetrack/internal/invite"
	"github.com/erickerk/elitetrack/internal/middleware"
	"github.com/erickerk/elitetrack/internal/session"
	"golang.org/x/crypto/bcrypt"
)

var start = time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

const (
	executorEmail    = "executor@elite.com"
	executorPassword = "executor-dev-password"
	clientPassword   = "SecurePass123!"
	deviceA          = "device-a"
)

type testServer struct {
	handler  http.Handler
	clk      *clock.Fake
	accounts *accounts.MemoryStore
	audit    *auth.InMemoryAuditLogger
}

func newTestServer(t *testing.T, verifiers ...auth.Verifier) *testServer {
	t.Helper()

	ts := &testServer{
		clk:      clock.NewFake(start),
		accounts: accounts.NewMemoryStore(),
		audit:    auth.NewInMemoryAuditLogger(),
	}
	passwords := auth.NewPasswordService(bcrypt.MinCost)
	temps := auth.NewMemoryTempPasswordStore()
	entries := auth.NewMemoryEntryStore(time.Minute, time.Hour, 1000)
	t.Cleanup(entries.Stop)

	if len(verifiers) == 0 {
		verifiers = []auth.Verifier{
			auth.NewPasswordVerifier(ts.accounts, passwords),
			auth.NewStaticVerifier([]auth.StaticUser{{
				Account:  auth.Account{ID: "exec-1", Name: "Executor", Email: executorEmail, Role: auth.RoleExecutor},
				Password: executorPassword,
			}}),
			auth.NewTempPasswordVerifier(temps, ts.accounts, passwords, ts.clk),
		}
	}
	chain, err := auth.NewChain(verifiers...)
	if err != nil {
		t.Fatalf("NewChain() error = %v", err)
	}
	codec, err := session.NewCodec("api-test-session-secret-at-least-32-chars", session.NewPolicy(ts.clk, 0))
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}

	svc, err := access.NewService(access.Deps{
		Limiter:       auth.NewRateLimiter(entries, auth.DefaultLimits(), ts.clk),
		Verifiers:     chain,
		Invites:       invite.NewService(invite.NewMemoryStore(), ts.clk, invite.Config{}, nil),
		Accounts:      ts.accounts,
		TempPasswords: temps,
		Passwords:     passwords,
		Sessions:      codec,
		Audit:         ts.audit,
		Clock:         ts.clk,
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	ts.handler = NewRouter(RouterConfig{
		Access:       svc,
		MaxBodyBytes: 4096,
		Health: func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		},
	})
	return ts
}

type call struct {
	method string
	path   string
	body   interface{}
	token  string
	device string
}

func (ts *testServer) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if c.body != nil {
		if s, ok := c.body.(string); ok {
			body.WriteString(s)
		} else if err := json.NewEncoder(&body).Encode(c.body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(c.method, c.path, &body)
	req.RemoteAddr = "203.0.113.7:4000"
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.device != "" {
		req.Header.Set(middleware.DeviceIDHeader, c.device)
	}
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response (status %d): %v", rr.Code, err)
	}
	return v
}

func (ts *testServer) loginAs(t *testing.T, email, password string) SessionResponse {
	t.Helper()
	rr := ts.do(t, call{method: http.MethodPost, path: "/auth/login", body: LoginRequest{Email: email, Password: password}, device: deviceA})
	if rr.Code != http.StatusOK {
		t.Fatalf("login %s: status = %d, body = %s", email, rr.Code, rr.Body.String())
	}
	return decode[SessionResponse](t, rr)
}

func (ts *testServer) createInvite(t *testing.T, staffToken string) invite.Invite {
	t.Helper()
	rr := ts.do(t, call{
		method: http.MethodPost,
		path:   "/invites",
		body: invite.GenerateRequest{
			ProjectID:    "PRJ-2024-002",
			VehiclePlate: "ABC1D23",
			VehicleInfo:  "Toyota SW4 2024",
			Owner:        invite.Owner{Name: "Maria Souza", Email: "maria@x.com"},
		},
		token:  staffToken,
		device: deviceA,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create invite: status = %d, body = %s", rr.Code, rr.Body.String())
	}
	return decode[invite.Invite](t, rr)
}

func registerBody(token, email string) RegisterRequest {
	return RegisterRequest{Token: token, Name: "Maria Souza", Email: email, Password: clientPassword}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, call{method: http.MethodGet, path: "/health"})
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

func TestLogin_Success(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.loginAs(t, executorEmail, executorPassword)

	if resp.AccessToken == "" || resp.TokenType != "Bearer" {
		t.Errorf("response = %+v", resp)
	}
	if resp.ExpiresIn != int(session.DefaultTTL.Seconds()) {
		t.Errorf("ExpiresIn = %d, want %d", resp.ExpiresIn, int(session.DefaultTTL.Seconds()))
	}
	if resp.Session == nil || resp.Session.DeviceID != deviceA || resp.Session.User.Role != auth.RoleExecutor {
		t.Errorf("Session = %+v", resp.Session)
	}
}

func TestLogin_RequiresDevice(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, call{method: http.MethodPost, path: "/auth/login", body: LoginRequest{Email: executorEmail, Password: executorPassword}})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestLogin_VagueFailures(t *testing.T) {
	ts := newTestServer(t)

	unknown := ts.do(t, call{method: http.MethodPost, path: "/auth/login", body: LoginRequest{Email: "nobody@x.com", Password: "whatever"}, device: deviceA})
	wrong := ts.do(t, call{method: http.MethodPost, path: "/auth/login", body: LoginRequest{Email: executorEmail, Password: "wrong"}, device: deviceA})

	if unknown.Code != http.StatusUnauthorized || wrong.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d/%d, want 401/401", unknown.Code, wrong.Code)
	}
	if unknown.Body.String() != wrong.Body.String() {
		t.Errorf("bodies differ: %q vs %q", unknown.Body.String(), wrong.Body.String())
	}
}

func TestLogin_MalformedBody(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, call{method: http.MethodPost, path: "/auth/login", body: "{not json", device: deviceA})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestLogin_BodyTooLarge(t *testing.T) {
	ts := newTestServer(t)
	big := `{"email":"` + strings.Repeat("a", 5000) + `"}`
	rr := ts.do(t, call{method: http.MethodPost, path: "/auth/login", body: big, device: deviceA})
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rr.Code)
	}
}

func TestLogin_Lockout(t *testing.T) {
	ts := newTestServer(t)
	bad := call{method: http.MethodPost, path: "/auth/login", body: LoginRequest{Email: executorEmail, Password: "wrong"}, device: deviceA}

	for i := 0; i < 5; i++ {
		if rr := ts.do(t, bad); rr.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status = %d, want 401", i+1, rr.Code)
		}
	}

	rr := ts.do(t, call{method: http.MethodPost, path: "/auth/login", body: LoginRequest{Email: executorEmail, Password: executorPassword}, device: deviceA})
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "1800" {
		t.Errorf("Retry-After = %q, want 1800", got)
	}
	body := decode[ErrorResponse](t, rr)
	if body.Reason != ReasonRateLimited || body.RetryAfterMinutes != 30 {
		t.Errorf("body = %+v", body)
	}

	info := ts.do(t, call{method: http.MethodGet, path: "/auth/rate-limit?email=" + executorEmail})
	got := decode[RateLimitResponse](t, info)
	if !got.IsLocked || got.LockoutMinutes != 30 {
		t.Errorf("rate limit info = %+v", got)
	}

	ts.clk.Advance(31 * time.Minute)
	ts.loginAs(t, executorEmail, executorPassword)
}

func TestLogin_StoreUnavailable(t *testing.T) {
	ts := newTestServer(t, brokenVerifier{})
	rr := ts.do(t, call{method: http.MethodPost, path: "/auth/login", body: LoginRequest{Email: "a@b.com", Password: "x"}, device: deviceA})
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

type brokenVerifier struct{}

func (brokenVerifier) Kind() auth.VerifierKind { return auth.KindPrimary }

func (brokenVerifier) Verify(context.Context, string, string) (*auth.Account, error) {
	return nil, errors.New("connection refused")
}

func TestSession_DeviceBinding(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.loginAs(t, executorEmail, executorPassword)

	ok := ts.do(t, call{method: http.MethodGet, path: "/auth/session", token: resp.AccessToken, device: deviceA})
	if ok.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", ok.Code)
	}
	if got := decode[session.Session](t, ok); got.ID != resp.Session.ID {
		t.Errorf("session ID = %q, want %q", got.ID, resp.Session.ID)
	}

	other := ts.do(t, call{method: http.MethodGet, path: "/auth/session", token: resp.AccessToken, device: "device-b"})
	if other.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", other.Code)
	}
	if got := decode[ErrorResponse](t, other); got.Reason != "device_mismatch" {
		t.Errorf("reason = %q, want device_mismatch", got.Reason)
	}

	ts.clk.Advance(session.DefaultTTL)
	expired := ts.do(t, call{method: http.MethodGet, path: "/auth/session", token: resp.AccessToken, device: deviceA})
	if got := decode[ErrorResponse](t, expired); got.Reason != "expired" {
		t.Errorf("reason = %q, want expired", got.Reason)
	}
}

func TestLogout_AlwaysSucceeds(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.loginAs(t, executorEmail, executorPassword)

	for _, token := range []string{resp.AccessToken, "", "garbage"} {
		rr := ts.do(t, call{method: http.MethodPost, path: "/auth/logout", token: token})
		if rr.Code != http.StatusOK {
			t.Errorf("logout with %q: status = %d, want 200", token, rr.Code)
		}
	}
	if got := ts.audit.Count(auth.AuditLogout); got != 3 {
		t.Errorf("logout audit entries = %d, want 3", got)
	}
}

func TestInviteLifecycle(t *testing.T) {
	ts := newTestServer(t)
	staff := ts.loginAs(t, executorEmail, executorPassword)
	inv := ts.createInvite(t, staff.AccessToken)

	if !invite.WellFormed(inv.Token) || inv.CreatedBy != "exec-1" {
		t.Fatalf("invite = %+v", inv)
	}

	valid := ts.do(t, call{method: http.MethodGet, path: "/invites/" + inv.Token})
	if valid.Code != http.StatusOK {
		t.Fatalf("validate: status = %d", valid.Code)
	}
	if got := decode[ValidateInviteResponse](t, valid); got.Status != "valid" || got.Invite.VehiclePlate != "ABC1D23" {
		t.Errorf("validate = %+v", got)
	}

	reg := ts.do(t, call{method: http.MethodPost, path: "/auth/register", body: registerBody(inv.Token, "maria@x.com"), device: deviceA})
	if reg.Code != http.StatusCreated {
		t.Fatalf("register: status = %d, body = %s", reg.Code, reg.Body.String())
	}
	created := decode[SessionResponse](t, reg)
	if created.Session.User.Role != auth.RoleClient || created.Session.User.ProjectID != "PRJ-2024-002" {
		t.Errorf("registered user = %+v", created.Session.User)
	}

	used := ts.do(t, call{method: http.MethodGet, path: "/invites/" + inv.Token})
	if used.Code != http.StatusConflict {
		t.Errorf("validate used: status = %d, want 409", used.Code)
	}
	again := ts.do(t, call{method: http.MethodPost, path: "/auth/register", body: registerBody(inv.Token, "other@x.com"), device: deviceA})
	if again.Code != http.StatusConflict {
		t.Errorf("register used: status = %d, want 409", again.Code)
	}
	if got := decode[ErrorResponse](t, again); got.Reason != "already_used" {
		t.Errorf("reason = %q, want already_used", got.Reason)
	}

	ts.loginAs(t, "maria@x.com", clientPassword)
}

func TestInviteStates(t *testing.T) {
	ts := newTestServer(t)
	staff := ts.loginAs(t, executorEmail, executorPassword)

	missing := ts.do(t, call{method: http.MethodGet, path: "/invites/ABCD-EFGH-JKMN-PQRS"})
	if missing.Code != http.StatusNotFound {
		t.Errorf("missing: status = %d, want 404", missing.Code)
	}
	if got := decode[ErrorResponse](t, missing); got.Error != auth.ErrNotFound.Error() {
		t.Errorf("missing message = %q, want verbatim %q", got.Error, auth.ErrNotFound.Error())
	}

	revoked := ts.createInvite(t, staff.AccessToken)
	rr := ts.do(t, call{method: http.MethodPost, path: "/invites/" + revoked.ID.String() + "/revoke", token: staff.AccessToken, device: deviceA})
	if rr.Code != http.StatusOK {
		t.Fatalf("revoke: status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if got := ts.do(t, call{method: http.MethodGet, path: "/invites/" + revoked.Token}); got.Code != http.StatusGone {
		t.Errorf("revoked: status = %d, want 410", got.Code)
	}

	expiring := ts.createInvite(t, staff.AccessToken)
	ts.clk.Advance(invite.DefaultTTL + time.Second)
	if got := ts.do(t, call{method: http.MethodGet, path: "/invites/" + expiring.Token}); got.Code != http.StatusGone {
		t.Errorf("expired: status = %d, want 410", got.Code)
	}
}

func TestRevokeInvite_BadID(t *testing.T) {
	ts := newTestServer(t)
	staff := ts.loginAs(t, executorEmail, executorPassword)

	rr := ts.do(t, call{method: http.MethodPost, path: "/invites/not-a-uuid/revoke", token: staff.AccessToken, device: deviceA})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestListInvites(t *testing.T) {
	ts := newTestServer(t)
	staff := ts.loginAs(t, executorEmail, executorPassword)
	ts.createInvite(t, staff.AccessToken)
	ts.createInvite(t, staff.AccessToken)

	rr := ts.do(t, call{method: http.MethodGet, path: "/invites?project_id=PRJ-2024-002", token: staff.AccessToken, device: deviceA})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	views := decode[[]invite.View](t, rr)
	if len(views) != 2 {
		t.Fatalf("len = %d, want 2", len(views))
	}
	for _, v := range views {
		if v.Effective != invite.EffectivePending {
			t.Errorf("effective = %q, want pending", v.Effective)
		}
	}

	empty := ts.do(t, call{method: http.MethodGet, path: "/invites?project_id=PRJ-2024-999", token: staff.AccessToken, device: deviceA})
	if got := strings.TrimSpace(empty.Body.String()); got != "[]" {
		t.Errorf("empty list body = %q, want []", got)
	}
}

func TestStaffRoutes_RequireRole(t *testing.T) {
	ts := newTestServer(t)
	staff := ts.loginAs(t, executorEmail, executorPassword)
	inv := ts.createInvite(t, staff.AccessToken)
	reg := ts.do(t, call{method: http.MethodPost, path: "/auth/register", body: registerBody(inv.Token, "maria@x.com"), device: deviceA})
	client := decode[SessionResponse](t, reg)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"client generate", http.MethodPost, "/invites", client.AccessToken, http.StatusForbidden},
		{"client list", http.MethodGet, "/invites", client.AccessToken, http.StatusForbidden},
		{"client temp password", http.MethodPost, "/temp-passwords", client.AccessToken, http.StatusForbidden},
		{"anonymous generate", http.MethodPost, "/invites", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, call{method: tt.method, path: tt.path, body: map[string]string{}, token: tt.token, device: deviceA})
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestTempPasswordFlow(t *testing.T) {
	ts := newTestServer(t)
	staff := ts.loginAs(t, executorEmail, executorPassword)

	rr := ts.do(t, call{
		method: http.MethodPost,
		path:   "/temp-passwords",
		body:   TempPasswordRequest{Email: "joao@x.com", ProjectID: "PRJ-2024-002"},
		token:  staff.AccessToken,
		device: deviceA,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("issue: status = %d, body = %s", rr.Code, rr.Body.String())
	}
	issued := decode[access.IssuedTempPassword](t, rr)

	first := ts.loginAs(t, "joao@x.com", issued.Password)
	if !first.RequiresPasswordChange {
		t.Fatal("expected password change to be required")
	}

	// until the password is changed only the session and password endpoints answer
	if rr := ts.do(t, call{method: http.MethodGet, path: "/auth/session", token: first.AccessToken, device: deviceA}); rr.Code != http.StatusOK {
		t.Errorf("GET /auth/session with temp session: status = %d, want 200", rr.Code)
	}
	for _, c := range []call{
		{method: http.MethodGet, path: "/invites", token: first.AccessToken, device: deviceA},
		{method: http.MethodPost, path: "/invites", body: invite.GenerateRequest{ProjectID: "PRJ-2024-002", Owner: invite.Owner{Name: "X"}}, token: first.AccessToken, device: deviceA},
		{method: http.MethodPost, path: "/temp-passwords", body: TempPasswordRequest{Email: "outro@x.com"}, token: first.AccessToken, device: deviceA},
	} {
		rr := ts.do(t, c)
		if rr.Code != http.StatusForbidden {
			t.Errorf("%s %s with temp session: status = %d, want 403", c.method, c.path, rr.Code)
			continue
		}
		if got := decode[map[string]string](t, rr)["reason"]; got != middleware.ReasonPasswordChangeRequired {
			t.Errorf("%s %s reason = %q, want %q", c.method, c.path, got, middleware.ReasonPasswordChangeRequired)
		}
	}

	change := ts.do(t, call{
		method: http.MethodPost,
		path:   "/auth/password",
		body:   ChangePasswordRequest{Password: clientPassword},
		token:  first.AccessToken,
		device: deviceA,
	})
	if change.Code != http.StatusOK {
		t.Fatalf("change password: status = %d, body = %s", change.Code, change.Body.String())
	}
	if got := decode[SessionResponse](t, change); got.RequiresPasswordChange {
		t.Error("re-issued session still requires a password change")
	}

	// the temporary password was single use
	reuse := ts.do(t, call{method: http.MethodPost, path: "/auth/login", body: LoginRequest{Email: "joao@x.com", Password: issued.Password}, device: deviceA})
	if reuse.Code != http.StatusUnauthorized {
		t.Errorf("reuse: status = %d, want 401", reuse.Code)
	}
	ts.loginAs(t, "joao@x.com", clientPassword)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	ts.handler = NewRouter(RouterConfig{Access: nil, AllowedOrigins: []string{"https://portal.elitetrack.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
	req.Header.Set("Origin", "https://portal.elitetrack.com")
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rr.Code)
	}
}
