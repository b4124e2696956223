// Package keychain stores the local session blob and device identifier.
package keychain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"
)

// ErrNotFound is returned by Get for a key that was never stored
var ErrNotFound = errors.New("key not found in keychain")

// Entry names. All three are cleared together on logout except KeyDeviceID,
// which lives for as long as the installation does.
const (
	KeySession                = "elitetrack-session"
	KeyDeviceID               = "elitetrack-device-id"
	KeyRequiresPasswordChange = "elitetrack-requires-password-change"

	// ServiceName is the OS keychain service entries are filed under
	ServiceName = "elitetrack"
)

// Keychain is scoped key-value storage for local session material
type Keychain interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
}

// MockKeychain is an in-memory keychain for tests. FailWith simulates a
// locked or unavailable OS keychain.
type MockKeychain struct {
	mu      sync.RWMutex
	entries map[string]string
	failure error
}

// NewMockKeychain returns an empty mock keychain
func NewMockKeychain() *MockKeychain {
	return &MockKeychain{entries: map[string]string{}}
}

// FailWith makes every later call return err. A nil err restores normal behaviour.
func (m *MockKeychain) FailWith(err error) {
	m.mu.Lock()
	m.failure = err
	m.mu.Unlock()
}

func (m *MockKeychain) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure == nil {
		m.entries[key] = value
	}
	return m.failure
}

func (m *MockKeychain) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failure != nil {
		return "", m.failure
	}
	if value, ok := m.entries[key]; ok {
		return value, nil
	}
	return "", ErrNotFound
}

func (m *MockKeychain) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure == nil {
		delete(m.entries, key)
	}
	return m.failure
}

// Has reports whether key is set, ignoring any injected failure
func (m *MockKeychain) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[key]
	return ok
}

// SystemKeychain stores entries in the OS keychain (macOS Keychain,
// Secret Service, Windows Credential Manager)
type SystemKeychain struct {
	service string
}

// NewSystemKeychain files entries under service, or ServiceName when empty
func NewSystemKeychain(service string) *SystemKeychain {
	if service == "" {
		service = ServiceName
	}
	return &SystemKeychain{service: service}
}

func (s *SystemKeychain) Set(key, value string) error {
	return wrap("store", key, keyring.Set(s.service, key, value))
}

func (s *SystemKeychain) Get(key string) (string, error) {
	value, err := keyring.Get(s.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return value, wrap("read", key, err)
}

// Delete removes key. A key that is already absent is not an error.
func (s *SystemKeychain) Delete(key string) error {
	err := keyring.Delete(s.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return wrap("delete", key, err)
}

func wrap(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("keychain %s %s: %w", op, key, err)
}
