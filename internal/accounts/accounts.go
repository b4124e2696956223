// Package accounts defines the account store the access subsystem writes
// registrations to and reads credentials from.
package accounts

import (
	"context"
	"errors"
	"sync"

	"github.com/erickerk/elitetrack/internal/auth"
)

var (
	// ErrDuplicate is returned by Create when the email is already registered
	ErrDuplicate = errors.New("account already exists")

	// ErrNotFound is returned by SetPassword for unknown accounts
	ErrNotFound = errors.New("account not found")
)

// Store persists accounts and their password hashes.
//
// FindByEmail, FindByID and FindCredentials return nil for unknown accounts.
// An account created with an empty hash cannot log in with a password until
// SetPassword is called.
type Store interface {
	Create(ctx context.Context, account auth.Account, passwordHash string) error
	FindByEmail(ctx context.Context, email string) (*auth.Account, error)
	FindByID(ctx context.Context, id string) (*auth.Account, error)
	SetPassword(ctx context.Context, id, passwordHash string) error
	FindCredentials(ctx context.Context, email string) (*auth.Account, string, error)
}

type record struct {
	account auth.Account
	hash    string
}

// MemoryStore is an in-process Store
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*record
	byEmail map[string]*record
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*record),
		byEmail: make(map[string]*record),
	}
}

// Create stores account with passwordHash
func (s *MemoryStore) Create(ctx context.Context, account auth.Account, passwordHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	account.Email = auth.NormalizeIdentifier(account.Email)
	if _, exists := s.byEmail[account.Email]; exists {
		return ErrDuplicate
	}
	if _, exists := s.byID[account.ID]; exists {
		return ErrDuplicate
	}
	r := &record{account: account, hash: passwordHash}
	s.byID[account.ID] = r
	s.byEmail[account.Email] = r
	return nil
}

// FindByEmail looks up an account by email
func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	account, _, err := s.FindCredentials(ctx, email)
	return account, err
}

// FindByID looks up an account by ID
func (s *MemoryStore) FindByID(ctx context.Context, id string) (*auth.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	account := r.account
	return &account, nil
}

// SetPassword replaces the stored hash for id
func (s *MemoryStore) SetPassword(ctx context.Context, id, passwordHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	r.hash = passwordHash
	return nil
}

// FindCredentials returns the account for email together with its hash
func (s *MemoryStore) FindCredentials(ctx context.Context, email string) (*auth.Account, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byEmail[auth.NormalizeIdentifier(email)]
	if !ok {
		return nil, "", nil
	}
	account := r.account
	return &account, r.hash, nil
}
