package main

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/erickerk/elitetrack/internal/api/apitest"
	"github.com/erickerk/elitetrack/internal/client"
	"github.com/erickerk/elitetrack/internal/invite"
	"github.com/erickerk/elitetrack/internal/keychain"
	"github.com/erickerk/elitetrack/internal/session"
)

func newTestManager() *session.Manager {
	return session.NewManager(keychain.NewMockKeychain(), nil, nil)
}

var (
	tokenLine = regexp.MustCompile(`Invite token: (\S+)`)
	idLine    = regexp.MustCompile(`Invite ID:\s+(\S+)`)
)

func TestInviteCommands(t *testing.T) {
	server := apitest.NewServer(t)
	setupTestConfig(t, server.URL)
	login(t)

	got, err := execute(t, inviteCmd, "", "invite", "generate",
		"--project", "PRJ-2024-001", "--plate", "ABC1D23", "--vehicle", "Toyota Hilux",
		"--owner-name", "Ana Lima", "--owner-email", "ana@example.com")
	if err != nil {
		t.Fatalf("invite generate failed: %v", err)
	}
	token := tokenLine.FindStringSubmatch(got)
	id := idLine.FindStringSubmatch(got)
	if token == nil || id == nil {
		t.Fatalf("token or id missing from output: %s", got)
	}
	if !invite.WellFormed(token[1]) {
		t.Errorf("malformed token %q", token[1])
	}

	got, err = execute(t, inviteCmd, "", "invite", "validate", " "+token[1]+" ")
	if err != nil {
		t.Fatalf("invite validate failed: %v", err)
	}
	for _, part := range []string{"Status:  valid", "Project: PRJ-2024-001", "Owner:   Ana Lima", "Vehicle: Toyota Hilux ABC1D23"} {
		if !strings.Contains(got, part) {
			t.Errorf("validate output missing %q:\n%s", part, got)
		}
	}

	got, err = execute(t, inviteCmd, "", "invite", "list", "--project", "PRJ-2024-001")
	if err != nil {
		t.Fatalf("invite list failed: %v", err)
	}
	if !strings.Contains(got, id[1]) || !strings.Contains(got, "pending") {
		t.Errorf("list output: %s", got)
	}

	if _, err := execute(t, inviteCmd, "", "invite", "revoke", id[1]); err != nil {
		t.Fatalf("invite revoke failed: %v", err)
	}
	if _, err := execute(t, inviteCmd, "", "invite", "validate", token[1]); err == nil || !strings.Contains(err.Error(), "revoked") {
		t.Errorf("validate after revoke error = %v", err)
	}

	got, _ = execute(t, inviteCmd, "", "invite", "list", "--project", "PRJ-2099-001")
	if !strings.Contains(got, "No invites found.") {
		t.Errorf("empty list output: %s", got)
	}
}

func TestInviteGenerate_RequiresStaff(t *testing.T) {
	server := apitest.NewServer(t)
	setupTestConfig(t, server.URL)

	_, err := execute(t, inviteCmd, "", "invite", "generate", "--project", "PRJ-2024-001", "--owner-name", "Ana")
	if err == nil || !strings.Contains(err.Error(), client.ErrNotAuthenticated.Error()) {
		t.Errorf("generate without session error = %v", err)
	}

	_, err = execute(t, inviteCmd, "", "invite", "generate", "--owner-name", "Ana")
	if err == nil || !strings.Contains(err.Error(), "project") {
		t.Errorf("missing required flag error = %v", err)
	}
}

func TestRegisterCommand(t *testing.T) {
	server := apitest.NewServer(t)
	setupTestConfig(t, server.URL)

	staff := client.NewAuthClient(server.URL, newTestManager())
	ctx := context.Background()
	if _, err := staff.Login(ctx, apitest.ExecutorEmail, apitest.ExecutorPassword); err != nil {
		t.Fatal(err)
	}
	inv, err := staff.GenerateInvite(ctx, invite.GenerateRequest{
		ProjectID: "PRJ-2024-002",
		Owner:     invite.Owner{Name: "Maria Souza"},
	})
	if err != nil {
		t.Fatal(err)
	}

	stdin := "maria@example.com\nSecurePass123!\nSecurePass123!\n"
	got, err := execute(t, registerCmd, stdin, "register", inv.Token)
	if err != nil {
		t.Fatalf("register command failed: %v\n%s", err, got)
	}
	if !strings.Contains(got, "Invite for project PRJ-2024-002") {
		t.Errorf("invite summary missing: %s", got)
	}
	if !strings.Contains(got, "Welcome, Maria Souza! Your account for project PRJ-2024-002 is ready.") {
		t.Errorf("unexpected output: %s", got)
	}

	// the invite is single use
	_, err = execute(t, registerCmd, "", "register", inv.Token,
		"--email", "joao@example.com", "--password", "SecurePass123!")
	if err == nil || !strings.Contains(err.Error(), "invite cannot be used") {
		t.Errorf("second register error = %v", err)
	}
}

func TestRegisterCommand_PasswordMismatch(t *testing.T) {
	server := apitest.NewServer(t)
	setupTestConfig(t, server.URL)

	staff := client.NewAuthClient(server.URL, newTestManager())
	ctx := context.Background()
	if _, err := staff.Login(ctx, apitest.ExecutorEmail, apitest.ExecutorPassword); err != nil {
		t.Fatal(err)
	}
	inv, err := staff.GenerateInvite(ctx, invite.GenerateRequest{ProjectID: "PRJ-2024-002", Owner: invite.Owner{Name: "Maria"}})
	if err != nil {
		t.Fatal(err)
	}

	_, err = execute(t, registerCmd, "maria@example.com\nSecurePass123!\nDifferent123!\n", "register", inv.Token)
	if err == nil || !strings.Contains(err.Error(), "passwords do not match") {
		t.Errorf("error = %v", err)
	}

	// the invite is still usable
	v, err := staff.ValidateInvite(ctx, inv.Token)
	if err != nil || v.Status != "valid" {
		t.Errorf("invite consumed by failed registration: %+v, %v", v, err)
	}
}

func TestRegisterCommand_UnknownToken(t *testing.T) {
	server := apitest.NewServer(t)
	setupTestConfig(t, server.URL)

	_, err := execute(t, registerCmd, "", "register", "ABCD-EFGH-JKLM-NPQR")
	if err == nil || !strings.Contains(err.Error(), "invite cannot be used") {
		t.Errorf("error = %v", err)
	}
}

func TestTempPasswordCommand(t *testing.T) {
	server := apitest.NewServer(t)
	setupTestConfig(t, server.URL)
	login(t)

	got, err := execute(t, tempPasswordCmd, "", "temp-password", "Owner@Example.com", "--project", "PRJ-2024-003")
	if err != nil {
		t.Fatalf("temp-password failed: %v", err)
	}
	if !strings.Contains(got, "Temporary password for owner@example.com: ") {
		t.Errorf("unexpected output: %s", got)
	}
}
