// Package accountstest holds behaviour tests shared by every accounts.Store implementation.
package accountstest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erickerk/elitetrack/internal/accounts"
	"github.com/erickerk/elitetrack/internal/auth"
)

// RunStoreTests exercises the Store contract against stores built by newStore
func RunStoreTests(t *testing.T, newStore func(t *testing.T) accounts.Store) {
	t.Helper()

	account := auth.Account{
		ID:        "acc-1",
		Name:      "Maria Souza",
		Email:     "Maria@Example.com",
		Phone:     "+55 11 99999-0000",
		Role:      auth.RoleClient,
		Tier:      auth.TierGold,
		ProjectID: "PRJ-2024-002",
		CreatedAt: time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC),
	}

	t.Run("CreateAndFind", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.Create(ctx, account, "hash-1"); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		got, hash, err := s.FindCredentials(ctx, " maria@example.com")
		if err != nil || got == nil {
			t.Fatalf("FindCredentials() = %v, %v", got, err)
		}
		if hash != "hash-1" {
			t.Errorf("hash = %q, want hash-1", hash)
		}
		if got.Email != "maria@example.com" || got.Role != auth.RoleClient || got.Tier != auth.TierGold || got.ProjectID != "PRJ-2024-002" {
			t.Errorf("FindCredentials() account = %+v", got)
		}

		byID, err := s.FindByID(ctx, "acc-1")
		if err != nil || byID == nil || byID.Name != "Maria Souza" {
			t.Errorf("FindByID() = %v, %v", byID, err)
		}

		byEmail, err := s.FindByEmail(ctx, "MARIA@example.com")
		if err != nil || byEmail == nil || byEmail.ID != "acc-1" {
			t.Errorf("FindByEmail() = %v, %v", byEmail, err)
		}
	})

	t.Run("Missing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if a, hash, err := s.FindCredentials(ctx, "nobody@example.com"); a != nil || hash != "" || err != nil {
			t.Errorf("FindCredentials(missing) = %v, %q, %v", a, hash, err)
		}
		if a, err := s.FindByID(ctx, "nope"); a != nil || err != nil {
			t.Errorf("FindByID(missing) = %v, %v", a, err)
		}
		if err := s.SetPassword(ctx, "nope", "x"); !errors.Is(err, accounts.ErrNotFound) {
			t.Errorf("SetPassword(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("Duplicate", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_ = s.Create(ctx, account, "hash-1")
		dup := account
		dup.ID = "acc-2"
		dup.Email = "maria@EXAMPLE.com"
		if err := s.Create(ctx, dup, "hash-2"); !errors.Is(err, accounts.ErrDuplicate) {
			t.Errorf("Create(duplicate email) error = %v, want ErrDuplicate", err)
		}
	})

	t.Run("SetPassword", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_ = s.Create(ctx, account, "")
		if err := s.SetPassword(ctx, "acc-1", "hash-2"); err != nil {
			t.Fatalf("SetPassword() error = %v", err)
		}
		_, hash, _ := s.FindCredentials(ctx, "maria@example.com")
		if hash != "hash-2" {
			t.Errorf("hash = %q, want hash-2", hash)
		}
	})
}
