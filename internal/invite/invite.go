// Package invite issues, validates and consumes single-use registration invites.
package invite

import (
	"errors"
	"time"

	"github.com/erickerk/elitetrack/internal/auth"
	"github.com/google/uuid"
)

// Status is the persisted invite state. Expiry is not a persisted state, see Derive.
type Status string

const (
	StatusPending Status = "pending"
	StatusUsed    Status = "used"
	StatusRevoked Status = "revoked"
)

// Terminal reports whether no further transition is allowed from s
func (s Status) Terminal() bool {
	return s == StatusUsed || s == StatusRevoked
}

// EffectiveStatus is the status an invite has at a given instant
type EffectiveStatus string

const (
	EffectivePending EffectiveStatus = "pending"
	EffectiveUsed    EffectiveStatus = "used"
	EffectiveRevoked EffectiveStatus = "revoked"
	EffectiveExpired EffectiveStatus = "expired"
)

// Invite grants the right to register one account against one project
type Invite struct {
	ID           uuid.UUID  `json:"id"`
	Token        string     `json:"token"`
	ProjectID    string     `json:"project_id"`
	VehiclePlate string     `json:"vehicle_plate"`
	VehicleInfo  string     `json:"vehicle_info"`
	OwnerName    string     `json:"owner_name"`
	OwnerEmail   string     `json:"owner_email,omitempty"`
	OwnerPhone   string     `json:"owner_phone,omitempty"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	UsedAt       *time.Time `json:"used_at,omitempty"`
	UsedBy       string     `json:"used_by,omitempty"`
	CreatedBy    string     `json:"created_by"`
}

// Derive computes the effective status of inv at now. A pending invite is
// expired from ExpiresAt onwards.
func Derive(inv Invite, now time.Time) EffectiveStatus {
	switch inv.Status {
	case StatusUsed:
		return EffectiveUsed
	case StatusRevoked:
		return EffectiveRevoked
	}
	if !now.Before(inv.ExpiresAt) {
		return EffectiveExpired
	}
	return EffectivePending
}

// Result is the outcome of validating a token
type Result int

const (
	ResultValid Result = iota
	ResultNotFound
	ResultAlreadyUsed
	ResultRevoked
	ResultExpired
)

func (r Result) String() string {
	switch r {
	case ResultValid:
		return "valid"
	case ResultNotFound:
		return "not_found"
	case ResultAlreadyUsed:
		return "already_used"
	case ResultRevoked:
		return "revoked"
	case ResultExpired:
		return "expired"
	}
	return "unknown"
}

// Err returns the error for an invalid result, or nil for ResultValid
func (r Result) Err() error {
	switch r {
	case ResultValid:
		return nil
	case ResultNotFound:
		return auth.ErrNotFound
	case ResultAlreadyUsed:
		return auth.ErrAlreadyUsed
	case ResultRevoked:
		return auth.ErrRevoked
	case ResultExpired:
		return auth.ErrExpired
	}
	return errors.New("unknown invite result")
}

func resultFor(s EffectiveStatus) Result {
	switch s {
	case EffectiveUsed:
		return ResultAlreadyUsed
	case EffectiveRevoked:
		return ResultRevoked
	case EffectiveExpired:
		return ResultExpired
	}
	return ResultValid
}

// View is an invite together with its effective status
type View struct {
	Invite
	Effective EffectiveStatus `json:"effective_status"`
}
