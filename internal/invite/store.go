package invite

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrDuplicateToken is returned by Store.Insert when the token already exists
var ErrDuplicateToken = errors.New("invite token already exists")

// Transition carries the metadata of a status change.
//
// At and By are recorded as UsedAt/UsedBy when the new status is used. When
// ValidAt is set the store applies the change only if ValidAt is before the
// invite's ExpiresAt, in the same conditional write as the status check.
type Transition struct {
	At      time.Time
	By      string
	ValidAt time.Time
}

// Filter selects invites for List. Empty fields match everything.
type Filter struct {
	ProjectID string
	CreatedBy string
	Statuses  []Status
}

// Match reports whether inv passes the filter
func (f Filter) Match(inv Invite) bool {
	if f.ProjectID != "" && inv.ProjectID != f.ProjectID {
		return false
	}
	if f.CreatedBy != "" && inv.CreatedBy != f.CreatedBy {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if inv.Status == s {
			return true
		}
	}
	return false
}

// Store persists invites.
//
// FindByToken and FindByID return (nil, nil) when no invite matches.
// CompareAndSetStatus must be a single atomic conditional write: it reports
// true only if it moved the invite from expected to next.
// List returns invites newest first.
type Store interface {
	Insert(ctx context.Context, inv Invite) error
	FindByToken(ctx context.Context, token string) (*Invite, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Invite, error)
	CompareAndSetStatus(ctx context.Context, token string, expected, next Status, t Transition) (bool, error)
	List(ctx context.Context, f Filter) ([]Invite, error)
}
