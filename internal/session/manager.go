package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/erickerk/elitetrack/internal/auth"
	"github.com/erickerk/elitetrack/internal/keychain"
	"github.com/google/uuid"
)

// Stored is the session material kept on the client
type Stored struct {
	Token   string  `json:"token"`
	Session Session `json:"session"`
}

// Manager keeps the current device's session in a keychain
type Manager struct {
	*Policy

	keychain keychain.Keychain
	logger   *slog.Logger

	// guards device ID generation so concurrent first calls agree
	deviceMu sync.Mutex
}

// NewManager creates a manager over kc. A nil logger discards.
func NewManager(kc keychain.Keychain, policy *Policy, logger *slog.Logger) *Manager {
	if policy == nil {
		policy = NewPolicy(nil, 0)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		Policy:   policy,
		keychain: kc,
		logger:   logger,
	}
}

// DeviceID returns this client's device identifier, generating and
// persisting it on first use
func (m *Manager) DeviceID(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.deviceMu.Lock()
	defer m.deviceMu.Unlock()

	id, err := m.keychain.Get(keychain.KeyDeviceID)
	if err == nil && id != "" {
		return id, nil
	}
	if err != nil && !errors.Is(err, keychain.ErrNotFound) {
		return "", fmt.Errorf("failed to read device id: %w", err)
	}

	id = uuid.NewString()
	if err := m.keychain.Set(keychain.KeyDeviceID, id); err != nil {
		return "", fmt.Errorf("failed to persist device id: %w", err)
	}
	m.logger.Info("device id generated")
	return id, nil
}

// Create issues a session for account bound to this device
func (m *Manager) Create(ctx context.Context, account auth.Account) (*Session, error) {
	deviceID, err := m.DeviceID(ctx)
	if err != nil {
		return nil, err
	}
	return m.Issue(account, deviceID), nil
}

// Validate checks s against this device
func (m *Manager) Validate(ctx context.Context, s *Session) (bool, Reason, error) {
	deviceID, err := m.DeviceID(ctx)
	if err != nil {
		return false, ReasonValid, err
	}
	reason := m.Check(s, deviceID)
	return reason == ReasonValid, reason, nil
}

// Save stores st as the current session
func (m *Manager) Save(ctx context.Context, st Stored) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	blob, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := m.keychain.Set(keychain.KeySession, string(blob)); err != nil {
		return err
	}
	if st.Session.RequiresPasswordChange {
		return m.keychain.Set(keychain.KeyRequiresPasswordChange, "true")
	}
	return m.keychain.Delete(keychain.KeyRequiresPasswordChange)
}

// Current returns the stored session if it is still valid. An invalid
// session is removed before its error is returned.
func (m *Manager) Current(ctx context.Context) (*Stored, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	blob, err := m.keychain.Get(keychain.KeySession)
	if errors.Is(err, keychain.ErrNotFound) {
		return nil, auth.ErrNoSession
	}
	if err != nil {
		return nil, err
	}

	var st Stored
	if err := json.Unmarshal([]byte(blob), &st); err != nil {
		m.logger.Warn("discarding unreadable session", "error", err)
		if err := m.Invalidate(ctx); err != nil {
			return nil, err
		}
		return nil, auth.ErrNoSession
	}

	ok, reason, err := m.Validate(ctx, &st.Session)
	if err != nil {
		return nil, err
	}
	if !ok {
		m.logger.Info("clearing invalid session", "reason", reason.String())
		if err := m.Invalidate(ctx); err != nil {
			return nil, err
		}
		return nil, reason.Err()
	}
	return &st, nil
}

// RequiresPasswordChange reports whether the stored session still has to set a password
func (m *Manager) RequiresPasswordChange(ctx context.Context) bool {
	v, err := m.keychain.Get(keychain.KeyRequiresPasswordChange)
	return err == nil && v == "true"
}

// Invalidate removes all local session material except the device ID. It is
// a no-op when there is no session.
func (m *Manager) Invalidate(ctx context.Context) error {
	for _, key := range []string{keychain.KeySession, keychain.KeyRequiresPasswordChange} {
		if err := m.keychain.Delete(key); err != nil && !errors.Is(err, keychain.ErrNotFound) {
			return fmt.Errorf("failed to clear %s: %w", key, err)
		}
	}
	return nil
}

// Revalidate re-checks the stored session. Call it when the application
// returns to the foreground.
func (m *Manager) Revalidate(ctx context.Context) error {
	_, err := m.Current(ctx)
	return err
}

// Watch re-checks the stored session every interval until ctx is done or
// the session becomes invalid, in which case onInvalid is called once with
// the reason. Keychain failures are logged and retried on the next tick.
func (m *Manager) Watch(ctx context.Context, interval time.Duration, onInvalid func(error)) {
	if interval <= 0 {
		interval = DefaultRevalidateInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := m.Revalidate(ctx)
			switch {
			case err == nil:
			case errors.Is(err, auth.ErrSessionExpired),
				errors.Is(err, auth.ErrDeviceMismatch),
				errors.Is(err, auth.ErrNoSession):
				if onInvalid != nil {
					onInvalid(err)
				}
				return
			case ctx.Err() != nil:
				return
			default:
				m.logger.Warn("session revalidation failed", "error", err)
			}
		}
	}
}
