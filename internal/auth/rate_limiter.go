package auth

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/erickerk/elitetrack/internal/clock"
)

// Limits configures the failed-attempt window and lockout
type Limits struct {
	MaxAttempts int
	Window      time.Duration
	Lockout     time.Duration
}

// DefaultLimits returns 5 attempts per 15 minutes with a 30 minute lockout
func DefaultLimits() Limits {
	return Limits{
		MaxAttempts: 5,
		Window:      15 * time.Minute,
		Lockout:     30 * time.Minute,
	}
}

// Validate checks that the limits are usable
func (l Limits) Validate() error {
	if l.MaxAttempts < 1 {
		return errors.New("max attempts must be at least 1")
	}
	if l.Window <= 0 {
		return errors.New("window must be positive")
	}
	if l.Lockout <= 0 {
		return errors.New("lockout must be positive")
	}
	return nil
}

// Entry is the persisted failure counter for one key
type Entry struct {
	Key         string     `json:"key"`
	Attempts    int        `json:"attempts"`
	WindowStart time.Time  `json:"window_start"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
}

// EntryStore persists rate limit entries.
//
// Update must run fn as an atomic read-modify-write for key: fn receives the
// current entry (nil if absent) and returns the entry to store, or nil to
// delete it.
type EntryStore interface {
	Update(ctx context.Context, key string, fn func(*Entry) *Entry) error
	Delete(ctx context.Context, key string) error
}

// Status is the result of a limit check
type Status struct {
	Limited      bool
	Remaining    time.Duration
	AttemptsUsed int
}

// RemainingMinutes rounds the remaining lockout up to whole minutes
func (s Status) RemainingMinutes() int {
	if s.Remaining <= 0 {
		return 0
	}
	return int(math.Ceil(s.Remaining.Minutes()))
}

// Attempt is the result of recording a failure
type Attempt struct {
	Allowed           bool
	AttemptsRemaining int
	LockedUntil       *time.Time
}

// Info is the login-page view of a key's state
type Info struct {
	IsLocked          bool
	AttemptsUsed      int
	AttemptsRemaining int
	LockoutMinutes    int
}

// RateLimiter bounds failed authentication attempts per key.
//
// The lockout is applied eagerly: the failure that brings the count to
// MaxAttempts sets LockedUntil. IsLimited never locks, it only observes and
// lazily resets entries whose window or lockout has elapsed.
type RateLimiter struct {
	store  EntryStore
	limits Limits
	clock  clock.Clock
}

// NewRateLimiter creates a rate limiter over store
func NewRateLimiter(store EntryStore, limits Limits, clk clock.Clock) *RateLimiter {
	if clk == nil {
		clk = clock.System{}
	}
	return &RateLimiter{
		store:  store,
		limits: limits,
		clock:  clk,
	}
}

// Limits returns the configured limits
func (rl *RateLimiter) Limits() Limits {
	return rl.limits
}

// settle drops an entry whose lockout or window has elapsed
func (rl *RateLimiter) settle(e *Entry, now time.Time) *Entry {
	if e == nil {
		return nil
	}
	if e.LockedUntil != nil {
		if !now.Before(*e.LockedUntil) {
			return nil
		}
		return e
	}
	if now.Sub(e.WindowStart) >= rl.limits.Window {
		return nil
	}
	return e
}

// IsLimited reports whether key is locked out
func (rl *RateLimiter) IsLimited(ctx context.Context, key string) (Status, error) {
	now := rl.clock.Now()
	var status Status

	err := rl.store.Update(ctx, key, func(e *Entry) *Entry {
		e = rl.settle(e, now)
		if e == nil {
			status = Status{}
			return nil
		}
		if e.LockedUntil != nil {
			status = Status{
				Limited:      true,
				Remaining:    e.LockedUntil.Sub(now),
				AttemptsUsed: e.Attempts,
			}
			return e
		}
		status = Status{AttemptsUsed: e.Attempts}
		return e
	})
	if err != nil {
		return Status{}, Unavailable("check rate limit", err)
	}
	return status, nil
}

// RecordFailure counts one failed attempt for key
func (rl *RateLimiter) RecordFailure(ctx context.Context, key string) (Attempt, error) {
	now := rl.clock.Now()
	var result Attempt

	err := rl.store.Update(ctx, key, func(e *Entry) *Entry {
		e = rl.settle(e, now)
		if e != nil && e.LockedUntil != nil {
			lockedUntil := *e.LockedUntil
			result = Attempt{Allowed: false, LockedUntil: &lockedUntil}
			return e
		}

		if e == nil {
			e = &Entry{Key: key, WindowStart: now}
		}
		e.Attempts++

		if e.Attempts >= rl.limits.MaxAttempts {
			lockedUntil := now.Add(rl.limits.Lockout)
			e.LockedUntil = &lockedUntil
			result = Attempt{Allowed: false, LockedUntil: &lockedUntil}
			return e
		}

		result = Attempt{
			Allowed:           true,
			AttemptsRemaining: rl.limits.MaxAttempts - e.Attempts,
		}
		return e
	})
	if err != nil {
		return Attempt{}, Unavailable("record failed attempt", err)
	}
	return result, nil
}

// Clear resets key after a successful authentication
func (rl *RateLimiter) Clear(ctx context.Context, key string) error {
	if err := rl.store.Delete(ctx, key); err != nil {
		return Unavailable("clear rate limit", err)
	}
	return nil
}

// Info summarizes key's state for display
func (rl *RateLimiter) Info(ctx context.Context, key string) (Info, error) {
	status, err := rl.IsLimited(ctx, key)
	if err != nil {
		return Info{}, err
	}
	if status.Limited {
		return Info{
			IsLocked:       true,
			AttemptsUsed:   status.AttemptsUsed,
			LockoutMinutes: status.RemainingMinutes(),
		}, nil
	}
	return Info{
		AttemptsUsed:      status.AttemptsUsed,
		AttemptsRemaining: rl.limits.MaxAttempts - status.AttemptsUsed,
	}, nil
}

// Limiter key namespaces. Login keys and per-address keys never overlap, so
// a submitted identifier can not name another client's address key.
const (
	identifierKeyPrefix = "id:"
	anonymousKeyPrefix  = "anon:"
	addressKeyPrefix    = "ip:"
)

// RateKey picks the limiter key for a login attempt: the normalized
// identifier, or the client IP when no identifier was submitted.
func RateKey(identifier, clientIP string) string {
	if key := NormalizeIdentifier(identifier); key != "" {
		return identifierKeyPrefix + key
	}
	return anonymousKeyPrefix + strings.TrimSpace(clientIP)
}

// AddressKey is the key for the per-address limiter in front of the auth routes
func AddressKey(clientIP string) string {
	return addressKeyPrefix + strings.TrimSpace(clientIP)
}
