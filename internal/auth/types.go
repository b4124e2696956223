package auth

import (
	"strings"
	"time"
)

// Role is the portal role of an account
type Role string

const (
	RoleClient   Role = "client"
	RoleExecutor Role = "executor"
	RoleAdmin    Role = "admin"
)

// Level orders roles for permission checks
func (r Role) Level() int {
	switch r {
	case RoleClient:
		return 1
	case RoleExecutor:
		return 2
	case RoleAdmin:
		return 3
	}
	return 0
}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r.Level() > 0
}

// Tier is the optional client service tier
type Tier string

const (
	TierStandard Tier = "standard"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// Account represents a portal account as seen by the access subsystem
type Account struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Role      Role
	Tier      Tier
	ProjectID string
	CreatedAt time.Time
}

// VerifierKind orders credential verifiers. A chain must try them in
// ascending kind order.
type VerifierKind int

const (
	KindPrimary VerifierKind = iota + 1
	KindFallback
	KindTempPassword
)

func (k VerifierKind) String() string {
	switch k {
	case KindPrimary:
		return "primary"
	case KindFallback:
		return "fallback"
	case KindTempPassword:
		return "temp_password"
	}
	return "unknown"
}

// TempPassword represents a single-use first-login password issued by an executor
type TempPassword struct {
	ID           string
	Email        string
	PasswordHash string
	ProjectID    string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	UsedAt       *time.Time
}

// NormalizeIdentifier lower-cases and trims an email-like identifier
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
