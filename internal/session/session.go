// Package session issues and validates time-bounded, device-bound sessions.
package session

import (
	"time"

	"github.com/erickerk/elitetrack/internal/auth"
	"github.com/erickerk/elitetrack/internal/clock"
	"github.com/google/uuid"
)

const (
	// DefaultTTL is the lifetime of a session. Sessions are not renewed.
	DefaultTTL = 24 * time.Hour

	// DefaultRevalidateInterval is how often a running client re-checks its session
	DefaultRevalidateInterval = 5 * time.Minute
)

// User is a snapshot of the account taken when the session was issued. It
// does not follow later changes to the account.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Role      auth.Role `json:"role"`
	Tier      auth.Tier `json:"tier,omitempty"`
	ProjectID string    `json:"project_id,omitempty"`
}

// Snapshot copies the display fields of account
func Snapshot(account auth.Account) User {
	return User{
		ID:        account.ID,
		Name:      account.Name,
		Email:     account.Email,
		Phone:     account.Phone,
		Role:      account.Role,
		Tier:      account.Tier,
		ProjectID: account.ProjectID,
	}
}

// Session is proof of authentication for one device
type Session struct {
	ID                     string    `json:"id"`
	User                   User      `json:"user"`
	IssuedAt               time.Time `json:"issued_at"`
	ExpiresAt              time.Time `json:"expires_at"`
	DeviceID               string    `json:"device_id"`
	RequiresPasswordChange bool      `json:"requires_password_change,omitempty"`
}

// Reason is the outcome of a session check
type Reason int

const (
	ReasonValid Reason = iota
	ReasonExpired
	ReasonDeviceMismatch
)

func (r Reason) String() string {
	switch r {
	case ReasonValid:
		return "valid"
	case ReasonExpired:
		return "expired"
	case ReasonDeviceMismatch:
		return "device_mismatch"
	}
	return "unknown"
}

// Err maps an invalid reason to its error, or nil for ReasonValid
func (r Reason) Err() error {
	switch r {
	case ReasonExpired:
		return auth.ErrSessionExpired
	case ReasonDeviceMismatch:
		return auth.ErrDeviceMismatch
	}
	return nil
}

// Policy stamps and checks sessions against a clock
type Policy struct {
	clock clock.Clock
	ttl   time.Duration
}

// NewPolicy creates a policy. A nil clock uses the system clock and a
// non-positive ttl uses DefaultTTL.
func NewPolicy(clk clock.Clock, ttl time.Duration) *Policy {
	if clk == nil {
		clk = clock.System{}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Policy{clock: clk, ttl: ttl}
}

// TTL returns the session lifetime
func (p *Policy) TTL() time.Duration {
	return p.ttl
}

// Issue creates a session for account bound to deviceID. Timestamps are
// truncated to whole seconds so they survive token encoding unchanged.
func (p *Policy) Issue(account auth.Account, deviceID string) *Session {
	now := p.clock.Now().Truncate(time.Second)
	return &Session{
		ID:        uuid.NewString(),
		User:      Snapshot(account),
		IssuedAt:  now,
		ExpiresAt: now.Add(p.ttl),
		DeviceID:  deviceID,
	}
}

// Check validates s for deviceID. Expiry is reported ahead of a device mismatch.
func (p *Policy) Check(s *Session, deviceID string) Reason {
	if !p.clock.Now().Before(s.ExpiresAt) {
		return ReasonExpired
	}
	if s.DeviceID != deviceID {
		return ReasonDeviceMismatch
	}
	return ReasonValid
}
