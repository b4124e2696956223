// Package postgres implements the invite, account and temp-password stores over PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

//go:embed schema.sql
var schema string

// uniqueViolation is the SQLSTATE for unique_violation
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// Store is one PostgreSQL database holding all access tables
type Store struct {
	sqlDB *sql.DB
}

// Open connects to dsn and creates missing tables. The DSN is expected to
// have passed database.ValidateDatabaseURL.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database url is required")
	}
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres db: %w", err)
	}
	if _, err := sqlDB.ExecContext(ctx, schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the connection pool
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// Invites returns the invite store
func (s *Store) Invites() *InviteStore {
	return &InviteStore{db: s.sqlDB}
}

// Accounts returns the account store
func (s *Store) Accounts() *AccountStore {
	return &AccountStore{db: s.sqlDB}
}

// TempPasswords returns the temp-password store
func (s *Store) TempPasswords() *TempPasswordStore {
	return &TempPasswordStore{db: s.sqlDB}
}

// args collects query arguments and hands out $n placeholders
type args []any

func (a *args) add(v any) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}
