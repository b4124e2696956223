package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/erickerk/elitetrack/internal/invite"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const inviteColumns = `id, token, project_id, vehicle_plate, vehicle_info, owner_name, owner_email,
owner_phone, status, created_at, expires_at, used_at, used_by, created_by`

// InviteStore implements invite.Store
type InviteStore struct {
	db *sql.DB
}

var _ invite.Store = (*InviteStore)(nil)

type scanner interface {
	Scan(dest ...any) error
}

func scanInvite(row scanner) (*invite.Invite, error) {
	var inv invite.Invite
	var status string
	var usedAt sql.NullTime
	var usedBy sql.NullString

	err := row.Scan(&inv.ID, &inv.Token, &inv.ProjectID, &inv.VehiclePlate, &inv.VehicleInfo,
		&inv.OwnerName, &inv.OwnerEmail, &inv.OwnerPhone, &status, &inv.CreatedAt, &inv.ExpiresAt,
		&usedAt, &usedBy, &inv.CreatedBy)
	if err != nil {
		return nil, err
	}
	inv.Status = invite.Status(status)
	inv.CreatedAt = inv.CreatedAt.UTC()
	inv.ExpiresAt = inv.ExpiresAt.UTC()
	if usedAt.Valid {
		at := usedAt.Time.UTC()
		inv.UsedAt = &at
	}
	inv.UsedBy = usedBy.String
	return &inv, nil
}

// Insert stores inv
func (s *InviteStore) Insert(ctx context.Context, inv invite.Invite) error {
	var usedBy sql.NullString
	if inv.UsedBy != "" {
		usedBy = sql.NullString{String: inv.UsedBy, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO invites (`+inviteColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		inv.ID, inv.Token, inv.ProjectID, inv.VehiclePlate, inv.VehicleInfo,
		inv.OwnerName, inv.OwnerEmail, inv.OwnerPhone, string(inv.Status),
		inv.CreatedAt.UTC(), inv.ExpiresAt.UTC(), inv.UsedAt, usedBy, inv.CreatedBy)
	if err != nil {
		if isUniqueViolation(err) {
			return invite.ErrDuplicateToken
		}
		return fmt.Errorf("insert invite: %w", err)
	}
	return nil
}

func (s *InviteStore) findOne(ctx context.Context, where string, arg any) (*invite.Invite, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+inviteColumns+` FROM invites WHERE `+where, arg)
	inv, err := scanInvite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find invite: %w", err)
	}
	return inv, nil
}

// FindByToken looks up an invite by token
func (s *InviteStore) FindByToken(ctx context.Context, token string) (*invite.Invite, error) {
	return s.findOne(ctx, "token = $1", token)
}

// FindByID looks up an invite by ID
func (s *InviteStore) FindByID(ctx context.Context, id uuid.UUID) (*invite.Invite, error) {
	return s.findOne(ctx, "id = $1", id)
}

// CompareAndSetStatus applies the transition in a single conditional UPDATE
func (s *InviteStore) CompareAndSetStatus(ctx context.Context, token string, expected, next invite.Status, t invite.Transition) (bool, error) {
	var a args
	set := "status = " + a.add(string(next))
	if next == invite.StatusUsed {
		set += ", used_at = " + a.add(t.At.UTC()) + ", used_by = " + a.add(t.By)
	}
	where := "token = " + a.add(token) + " AND status = " + a.add(string(expected))
	if !t.ValidAt.IsZero() {
		where += " AND expires_at > " + a.add(t.ValidAt.UTC())
	}

	res, err := s.db.ExecContext(ctx, "UPDATE invites SET "+set+" WHERE "+where, a...)
	if err != nil {
		return false, fmt.Errorf("update invite status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update invite status: %w", err)
	}
	return n == 1, nil
}

// List returns matching invites newest first
func (s *InviteStore) List(ctx context.Context, f invite.Filter) ([]invite.Invite, error) {
	var a args
	var clauses []string
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id = "+a.add(f.ProjectID))
	}
	if f.CreatedBy != "" {
		clauses = append(clauses, "created_by = "+a.add(f.CreatedBy))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		clauses = append(clauses, "status = ANY("+a.add(pq.Array(statuses))+")")
	}

	query := `SELECT ` + inviteColumns + ` FROM invites`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := s.db.QueryContext(ctx, query, a...)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	defer rows.Close()

	out := make([]invite.Invite, 0)
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invite: %w", err)
		}
		out = append(out, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	return out, nil
}
