package exceptions

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for exceptional
// permissions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert creates an exceptional permission row.
func (r *Repository) Insert(ctx context.Context, p Permission) (Permission, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO exceptional_permissions
		(user_id, capability_code, kind, authorized_by, reason, starts_at, expires_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		RETURNING id, user_id, capability_code, kind, authorized_by, reason, starts_at, expires_at, active, created_at`,
		p.UserID, p.CapabilityCode, string(p.Kind), p.AuthorizedBy, p.Reason, p.StartsAt.UTC(), nullableTime(p.ExpiresAt))
	return scanPermission(row)
}

// Get fetches an exceptional permission by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Permission, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, user_id, capability_code, kind, authorized_by, reason, starts_at, expires_at, active, created_at
		FROM exceptional_permissions WHERE id = $1`, id)
	p, err := scanPermission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, ErrPermissionNotFound
		}
		return Permission{}, err
	}
	return p, nil
}

// Deactivate flips the row to inactive. Rows referenced by audit entries are
// never physically removed.
func (r *Repository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE exceptional_permissions SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPermissionNotFound
	}
	return nil
}

// ListForUser returns every override row of a user, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID int64) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, capability_code, kind, authorized_by, reason, starts_at, expires_at, active, created_at
		FROM exceptional_permissions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

// DeactivateExpired flips long-expired rows to inactive. Hygiene only: the
// InEffect check already excludes them.
func (r *Repository) DeactivateExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE exceptional_permissions SET active = FALSE
		WHERE active = TRUE AND expires_at IS NOT NULL AND expires_at < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPermission(row rowScanner) (Permission, error) {
	var p Permission
	var kind string
	if err := row.Scan(&p.ID, &p.UserID, &p.CapabilityCode, &kind, &p.AuthorizedBy, &p.Reason, &p.StartsAt, &p.ExpiresAt, &p.Active, &p.CreatedAt); err != nil {
		return Permission{}, err
	}
	p.Kind = Kind(kind)
	return p, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
