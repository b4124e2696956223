package auth

import (
	"context"
	"sort"
	"sync"
	"time"
)

// TempPasswordTTL is how long an issued temporary password stays usable
const TempPasswordTTL = 7 * 24 * time.Hour

// TempPasswordStore persists temporary passwords.
//
// FindActive returns unused, unexpired entries for email, newest first.
// MarkUsed sets UsedAt only if the entry is still unused and reports whether
// it did.
type TempPasswordStore interface {
	Issue(ctx context.Context, tp TempPassword) error
	FindActive(ctx context.Context, email string, now time.Time) ([]TempPassword, error)
	MarkUsed(ctx context.Context, id string, at time.Time) (bool, error)
}

// MemoryTempPasswordStore is an in-memory TempPasswordStore
type MemoryTempPasswordStore struct {
	mu      sync.Mutex
	entries map[string]TempPassword
}

// NewMemoryTempPasswordStore creates an empty store
func NewMemoryTempPasswordStore() *MemoryTempPasswordStore {
	return &MemoryTempPasswordStore{entries: make(map[string]TempPassword)}
}

// Issue stores tp
func (s *MemoryTempPasswordStore) Issue(ctx context.Context, tp TempPassword) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tp.Email = NormalizeIdentifier(tp.Email)
	s.entries[tp.ID] = tp
	return nil
}

// FindActive returns unused, unexpired entries for email
func (s *MemoryTempPasswordStore) FindActive(ctx context.Context, email string, now time.Time) ([]TempPassword, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = NormalizeIdentifier(email)
	var out []TempPassword
	for _, tp := range s.entries {
		if tp.Email == email && tp.UsedAt == nil && now.Before(tp.ExpiresAt) {
			out = append(out, tp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// MarkUsed consumes the entry if still unused
func (s *MemoryTempPasswordStore) MarkUsed(ctx context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tp, ok := s.entries[id]
	if !ok || tp.UsedAt != nil {
		return false, nil
	}
	tp.UsedAt = &at
	s.entries[id] = tp
	return true, nil
}
