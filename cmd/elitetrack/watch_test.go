package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/erickerk/elitetrack/internal/auth"
	"github.com/erickerk/elitetrack/internal/keychain"
	"github.com/erickerk/elitetrack/internal/session"
)

func TestWatchCommand_EndsOnExpiry(t *testing.T) {
	mockKC := setupTestConfig(t, "http://localhost:8080")
	ctx := context.Background()

	mgr := session.NewManager(mockKC, nil, nil)
	deviceID, err := mgr.DeviceID(ctx)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	err = mgr.Save(ctx, session.Stored{Token: "t", Session: session.Session{
		ID:        "s-1",
		User:      session.User{ID: "u-1", Email: "owner@example.com", Role: auth.RoleClient},
		IssuedAt:  now,
		ExpiresAt: now.Add(300 * time.Millisecond),
		DeviceID:  deviceID,
	}})
	if err != nil {
		t.Fatal(err)
	}

	got, err := execute(t, watchCmd, "", "watch", "--interval", "50ms")
	if !errors.Is(err, auth.ErrSessionExpired) {
		t.Fatalf("watch error = %v, want ErrSessionExpired", err)
	}
	if !strings.Contains(got, "Watching session for owner@example.com") || !strings.Contains(got, "Session ended") {
		t.Errorf("unexpected output: %s", got)
	}
	if mockKC.Has(keychain.KeySession) {
		t.Error("expired session should be cleared")
	}
}

func TestWatchCommand_NoSession(t *testing.T) {
	setupTestConfig(t, "http://localhost:8080")

	if _, err := execute(t, watchCmd, "", "watch"); !errors.Is(err, auth.ErrNoSession) {
		t.Errorf("watch error = %v, want ErrNoSession", err)
	}
}
