package session

import (
	"testing"
	"time"

	"github.com/erickerk/elitetrack/internal/auth"
	"github.com/erickerk/elitetrack/internal/clock"
)

var start = time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

func testAccount() auth.Account {
	return auth.Account{
		ID:        "acc-1",
		Name:      "Maria Souza",
		Email:     "maria@example.com",
		Phone:     "+55 11 99999-0000",
		Role:      auth.RoleClient,
		Tier:      auth.TierPlatinum,
		ProjectID: "PRJ-2024-002",
	}
}

func TestPolicy_Issue(t *testing.T) {
	clk := clock.NewFake(start.Add(500 * time.Millisecond))
	p := NewPolicy(clk, 0)

	s := p.Issue(testAccount(), "device-a")

	if !s.IssuedAt.Equal(start) {
		t.Errorf("IssuedAt = %v, want %v", s.IssuedAt, start)
	}
	if !s.ExpiresAt.Equal(start.Add(24 * time.Hour)) {
		t.Errorf("ExpiresAt = %v, want issued + 24h", s.ExpiresAt)
	}
	if s.DeviceID != "device-a" || s.ID == "" {
		t.Errorf("session = %+v", s)
	}
	if s.User.Tier != auth.TierPlatinum || s.User.Email != "maria@example.com" {
		t.Errorf("User = %+v", s.User)
	}
}

func TestPolicy_SnapshotIsNotLive(t *testing.T) {
	p := NewPolicy(clock.NewFake(start), 0)
	account := testAccount()

	s := p.Issue(account, "device-a")
	account.Name = "Renamed"

	if s.User.Name != "Maria Souza" {
		t.Errorf("User.Name = %q, want snapshot value", s.User.Name)
	}
}

func TestPolicy_Check(t *testing.T) {
	clk := clock.NewFake(start)
	p := NewPolicy(clk, 0)
	s := p.Issue(testAccount(), "device-a")

	tests := []struct {
		name   string
		now    time.Time
		device string
		want   Reason
	}{
		{"valid", start.Add(time.Hour), "device-a", ReasonValid},
		{"one second before expiry", s.ExpiresAt.Add(-time.Second), "device-a", ReasonValid},
		{"at expiry", s.ExpiresAt, "device-a", ReasonExpired},
		{"device mismatch before expiry", start.Add(time.Hour), "device-b", ReasonDeviceMismatch},
		{"expired and mismatched reports expired", s.ExpiresAt.Add(time.Hour), "device-b", ReasonExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk.Set(tt.now)
			if got := p.Check(s, tt.device); got != tt.want {
				t.Errorf("Check() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestReason_Err(t *testing.T) {
	if ReasonValid.Err() != nil {
		t.Error("ReasonValid.Err() != nil")
	}
	if ReasonExpired.Err() != auth.ErrSessionExpired {
		t.Errorf("ReasonExpired.Err() = %v", ReasonExpired.Err())
	}
	if ReasonDeviceMismatch.Err() != auth.ErrDeviceMismatch {
		t.Errorf("ReasonDeviceMismatch.Err() = %v", ReasonDeviceMismatch.Err())
	}
}
