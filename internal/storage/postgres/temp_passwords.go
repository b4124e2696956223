package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erickerk/elitetrack/internal/auth"
)

// TempPasswordStore implements auth.TempPasswordStore
type TempPasswordStore struct {
	db *sql.DB
}

var _ auth.TempPasswordStore = (*TempPasswordStore)(nil)

// Issue stores tp
func (s *TempPasswordStore) Issue(ctx context.Context, tp auth.TempPassword) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO temp_passwords
(id, email, password_hash, project_id, created_at, expires_at, used_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tp.ID, auth.NormalizeIdentifier(tp.Email), tp.PasswordHash, tp.ProjectID,
		tp.CreatedAt.UTC(), tp.ExpiresAt.UTC(), tp.UsedAt)
	if err != nil {
		return fmt.Errorf("insert temp password: %w", err)
	}
	return nil
}

// FindActive returns unused, unexpired entries for email, newest first
func (s *TempPasswordStore) FindActive(ctx context.Context, email string, now time.Time) ([]auth.TempPassword, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, email, password_hash, project_id, created_at, expires_at
FROM temp_passwords
WHERE email = $1 AND used_at IS NULL AND expires_at > $2
ORDER BY created_at DESC`, auth.NormalizeIdentifier(email), now.UTC())
	if err != nil {
		return nil, fmt.Errorf("find temp passwords: %w", err)
	}
	defer rows.Close()

	var out []auth.TempPassword
	for rows.Next() {
		var tp auth.TempPassword
		if err := rows.Scan(&tp.ID, &tp.Email, &tp.PasswordHash, &tp.ProjectID, &tp.CreatedAt, &tp.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan temp password: %w", err)
		}
		tp.CreatedAt = tp.CreatedAt.UTC()
		tp.ExpiresAt = tp.ExpiresAt.UTC()
		out = append(out, tp)
	}
	return out, rows.Err()
}

// MarkUsed consumes the entry if it is still unused
func (s *TempPasswordStore) MarkUsed(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE temp_passwords SET used_at = $1 WHERE id = $2 AND used_at IS NULL`, at.UTC(), id)
	if err != nil {
		return false, fmt.Errorf("mark temp password used: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark temp password used: %w", err)
	}
	return n == 1, nil
}
