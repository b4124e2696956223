package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erickerk/elitetrack/internal/accounts"
	"github.com/erickerk/elitetrack/internal/auth"
)

// AccountStore implements accounts.Store
type AccountStore struct {
	db *sql.DB
}

var _ accounts.Store = (*AccountStore)(nil)

// Create stores account with passwordHash
func (s *AccountStore) Create(ctx context.Context, account auth.Account, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO accounts
(id, name, email, phone, role, tier, project_id, password_hash, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID, account.Name, auth.NormalizeIdentifier(account.Email), account.Phone,
		string(account.Role), string(account.Tier), account.ProjectID, passwordHash, toMillis(account.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return accounts.ErrDuplicate
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *AccountStore) find(ctx context.Context, where string, arg any) (*auth.Account, string, error) {
	var a auth.Account
	var role, tier, hash string
	var createdAt int64

	err := s.db.QueryRowContext(ctx, `SELECT id, name, email, phone, role, tier, project_id, password_hash, created_at
FROM accounts WHERE `+where, arg).
		Scan(&a.ID, &a.Name, &a.Email, &a.Phone, &role, &tier, &a.ProjectID, &hash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("find account: %w", err)
	}
	a.Role = auth.Role(role)
	a.Tier = auth.Tier(tier)
	a.CreatedAt = fromMillis(createdAt)
	return &a, hash, nil
}

// FindByEmail looks up an account by email
func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	a, _, err := s.find(ctx, "email = ?", auth.NormalizeIdentifier(email))
	return a, err
}

// FindByID looks up an account by ID
func (s *AccountStore) FindByID(ctx context.Context, id string) (*auth.Account, error) {
	a, _, err := s.find(ctx, "id = ?", id)
	return a, err
}

// FindCredentials returns the account for email together with its hash
func (s *AccountStore) FindCredentials(ctx context.Context, email string) (*auth.Account, string, error) {
	return s.find(ctx, "email = ?", auth.NormalizeIdentifier(email))
}

// SetPassword replaces the stored hash for id
func (s *AccountStore) SetPassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n == 0 {
		return accounts.ErrNotFound
	}
	return nil
}
