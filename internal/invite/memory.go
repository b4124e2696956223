package invite

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store
type MemoryStore struct {
	mu      sync.Mutex
	byToken map[string]*Invite
	byID    map[uuid.UUID]*Invite
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byToken: make(map[string]*Invite),
		byID:    make(map[uuid.UUID]*Invite),
	}
}

func clone(inv *Invite) *Invite {
	c := *inv
	if inv.UsedAt != nil {
		at := *inv.UsedAt
		c.UsedAt = &at
	}
	return &c
}

// Insert stores inv
func (s *MemoryStore) Insert(ctx context.Context, inv Invite) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byToken[inv.Token]; exists {
		return ErrDuplicateToken
	}
	stored := clone(&inv)
	s.byToken[inv.Token] = stored
	s.byID[inv.ID] = stored
	return nil
}

// FindByToken looks up an invite by token
func (s *MemoryStore) FindByToken(ctx context.Context, token string) (*Invite, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.byToken[token]
	if !ok {
		return nil, nil
	}
	return clone(inv), nil
}

// FindByID looks up an invite by ID
func (s *MemoryStore) FindByID(ctx context.Context, id uuid.UUID) (*Invite, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	return clone(inv), nil
}

// CompareAndSetStatus moves the invite from expected to next under the store lock
func (s *MemoryStore) CompareAndSetStatus(ctx context.Context, token string, expected, next Status, t Transition) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.byToken[token]
	if !ok || inv.Status != expected {
		return false, nil
	}
	if !t.ValidAt.IsZero() && !t.ValidAt.Before(inv.ExpiresAt) {
		return false, nil
	}

	inv.Status = next
	if next == StatusUsed {
		at := t.At
		inv.UsedAt = &at
		inv.UsedBy = t.By
	}
	return true, nil
}

// List returns matching invites newest first
func (s *MemoryStore) List(ctx context.Context, f Filter) ([]Invite, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Invite, 0)
	for _, inv := range s.byID {
		if f.Match(*inv) {
			out = append(out, *clone(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
