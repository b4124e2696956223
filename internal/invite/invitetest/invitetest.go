// Package invitetest holds behaviour tests shared by every invite.Store implementation.
package invitetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erickerk/elitetrack/internal/invite"
	"github.com/google/uuid"
)

// Start is the creation time used by the fixtures
var Start = time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

// Fixture returns a pending invite for projectID created at Start
func Fixture(token, projectID string) invite.Invite {
	return invite.Invite{
		ID:           uuid.New(),
		Token:        token,
		ProjectID:    projectID,
		VehiclePlate: "ABC1D23",
		VehicleInfo:  "BMW X5 2024",
		OwnerName:    "Maria Souza",
		OwnerEmail:   "maria@example.com",
		Status:       invite.StatusPending,
		CreatedAt:    Start,
		ExpiresAt:    Start.Add(invite.DefaultTTL),
		CreatedBy:    "executor-1",
	}
}

// RunStoreTests exercises the Store contract against stores built by newStore.
// newStore must return an empty store.
func RunStoreTests(t *testing.T, newStore func(t *testing.T) invite.Store) {
	t.Helper()

	t.Run("InsertAndFind", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		inv := Fixture("Abcd-Efgh-Jkmn-Pqrs", "PRJ-2024-002")

		if err := s.Insert(ctx, inv); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}

		byToken, err := s.FindByToken(ctx, inv.Token)
		if err != nil || byToken == nil {
			t.Fatalf("FindByToken() = %v, %v", byToken, err)
		}
		if byToken.ID != inv.ID || byToken.ProjectID != inv.ProjectID || byToken.OwnerName != inv.OwnerName {
			t.Errorf("FindByToken() = %+v, want %+v", byToken, inv)
		}
		if !byToken.ExpiresAt.Equal(inv.ExpiresAt) || !byToken.CreatedAt.Equal(inv.CreatedAt) {
			t.Errorf("timestamps = %v/%v, want %v/%v", byToken.CreatedAt, byToken.ExpiresAt, inv.CreatedAt, inv.ExpiresAt)
		}
		if byToken.UsedAt != nil || byToken.UsedBy != "" {
			t.Error("new invite has used metadata")
		}

		byID, err := s.FindByID(ctx, inv.ID)
		if err != nil || byID == nil || byID.Token != inv.Token {
			t.Errorf("FindByID() = %v, %v", byID, err)
		}
	})

	t.Run("FindMissing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		inv, err := s.FindByToken(ctx, "Zzzz-Zzzz-Zzzz-Zzzz")
		if err != nil || inv != nil {
			t.Errorf("FindByToken(missing) = %v, %v, want nil, nil", inv, err)
		}
		inv, err = s.FindByID(ctx, uuid.New())
		if err != nil || inv != nil {
			t.Errorf("FindByID(missing) = %v, %v, want nil, nil", inv, err)
		}
	})

	t.Run("DuplicateToken", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.Insert(ctx, Fixture("Abcd-Efgh-Jkmn-Pqrs", "PRJ-2024-002")); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
		err := s.Insert(ctx, Fixture("Abcd-Efgh-Jkmn-Pqrs", "PRJ-2024-003"))
		if !errors.Is(err, invite.ErrDuplicateToken) {
			t.Errorf("Insert(duplicate) error = %v, want ErrDuplicateToken", err)
		}
	})

	t.Run("CompareAndSetUsed", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		inv := Fixture("Abcd-Efgh-Jkmn-Pqrs", "PRJ-2024-002")
		_ = s.Insert(ctx, inv)

		at := Start.Add(time.Hour)
		ok, err := s.CompareAndSetStatus(ctx, inv.Token, invite.StatusPending, invite.StatusUsed,
			invite.Transition{At: at, By: "account-1", ValidAt: at})
		if err != nil || !ok {
			t.Fatalf("CompareAndSetStatus() = %v, %v, want true", ok, err)
		}

		got, _ := s.FindByToken(ctx, inv.Token)
		if got.Status != invite.StatusUsed || got.UsedBy != "account-1" || got.UsedAt == nil || !got.UsedAt.Equal(at) {
			t.Errorf("after consume = %+v", got)
		}

		ok, err = s.CompareAndSetStatus(ctx, inv.Token, invite.StatusPending, invite.StatusUsed,
			invite.Transition{At: at, By: "account-2", ValidAt: at})
		if err != nil || ok {
			t.Errorf("second CompareAndSetStatus() = %v, %v, want false", ok, err)
		}
		got, _ = s.FindByToken(ctx, inv.Token)
		if got.UsedBy != "account-1" {
			t.Errorf("UsedBy = %q, want account-1", got.UsedBy)
		}
	})

	t.Run("CompareAndSetRespectsExpiry", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		inv := Fixture("Abcd-Efgh-Jkmn-Pqrs", "PRJ-2024-002")
		_ = s.Insert(ctx, inv)

		ok, err := s.CompareAndSetStatus(ctx, inv.Token, invite.StatusPending, invite.StatusUsed,
			invite.Transition{At: inv.ExpiresAt, By: "account-1", ValidAt: inv.ExpiresAt})
		if err != nil || ok {
			t.Errorf("CompareAndSetStatus(at expiry) = %v, %v, want false", ok, err)
		}

		got, _ := s.FindByToken(ctx, inv.Token)
		if got.Status != invite.StatusPending {
			t.Errorf("Status = %q, want pending", got.Status)
		}

		justBefore := inv.ExpiresAt.Add(-time.Second)
		ok, err = s.CompareAndSetStatus(ctx, inv.Token, invite.StatusPending, invite.StatusUsed,
			invite.Transition{At: justBefore, By: "account-1", ValidAt: justBefore})
		if err != nil || !ok {
			t.Errorf("CompareAndSetStatus(1s before expiry) = %v, %v, want true", ok, err)
		}
	})

	t.Run("RevokeLeavesNoUsedMetadata", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		inv := Fixture("Abcd-Efgh-Jkmn-Pqrs", "PRJ-2024-002")
		_ = s.Insert(ctx, inv)

		ok, err := s.CompareAndSetStatus(ctx, inv.Token, invite.StatusPending, invite.StatusRevoked,
			invite.Transition{At: Start.Add(time.Minute)})
		if err != nil || !ok {
			t.Fatalf("revoke = %v, %v, want true", ok, err)
		}
		got, _ := s.FindByToken(ctx, inv.Token)
		if got.Status != invite.StatusRevoked || got.UsedAt != nil || got.UsedBy != "" {
			t.Errorf("after revoke = %+v", got)
		}

		ok, _ = s.CompareAndSetStatus(ctx, inv.Token, invite.StatusPending, invite.StatusUsed,
			invite.Transition{At: Start, By: "account-1", ValidAt: Start})
		if ok {
			t.Error("revoked invite was consumed")
		}
	})

	t.Run("ConcurrentConsume", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		inv := Fixture("Abcd-Efgh-Jkmn-Pqrs", "PRJ-2024-002")
		_ = s.Insert(ctx, inv)

		const n = 20
		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ok, err := s.CompareAndSetStatus(ctx, inv.Token, invite.StatusPending, invite.StatusUsed,
					invite.Transition{At: Start, By: uuid.NewString(), ValidAt: Start})
				if err != nil {
					t.Errorf("CompareAndSetStatus() error = %v", err)
				}
				if ok {
					atomic.AddInt32(&wins, 1)
				}
			}(i)
		}
		wg.Wait()

		if wins != 1 {
			t.Errorf("successful consumes = %d, want 1", wins)
		}
	})

	t.Run("List", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a := Fixture("Aaaa-Aaaa-Aaaa-Aaaa", "PRJ-2024-002")
		b := Fixture("Bbbb-Bbbb-Bbbb-Bbbb", "PRJ-2024-002")
		b.CreatedAt = Start.Add(time.Hour)
		b.ExpiresAt = b.CreatedAt.Add(invite.DefaultTTL)
		c := Fixture("Cccc-Cccc-Cccc-Cccc", "PRJ-2024-003")
		c.CreatedBy = "executor-2"
		for _, inv := range []invite.Invite{a, b, c} {
			if err := s.Insert(ctx, inv); err != nil {
				t.Fatalf("Insert() error = %v", err)
			}
		}
		_, _ = s.CompareAndSetStatus(ctx, a.Token, invite.StatusPending, invite.StatusRevoked, invite.Transition{At: Start})

		got, err := s.List(ctx, invite.Filter{ProjectID: "PRJ-2024-002"})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(got) != 2 || got[0].Token != b.Token || got[1].Token != a.Token {
			t.Errorf("List(project) = %v, want [b a]", tokens(got))
		}

		got, _ = s.List(ctx, invite.Filter{Statuses: []invite.Status{invite.StatusPending}})
		if len(got) != 2 {
			t.Errorf("List(pending) = %v, want 2 invites", tokens(got))
		}

		got, _ = s.List(ctx, invite.Filter{CreatedBy: "executor-2"})
		if len(got) != 1 || got[0].Token != c.Token {
			t.Errorf("List(created_by) = %v, want [c]", tokens(got))
		}

		got, _ = s.List(ctx, invite.Filter{ProjectID: "PRJ-9999-999"})
		if len(got) != 0 {
			t.Errorf("List(unknown project) = %v, want empty", tokens(got))
		}
	})
}

func tokens(invites []invite.Invite) []string {
	out := make([]string, len(invites))
	for i, inv := range invites {
		out[i] = inv.Token
	}
	return out
}
