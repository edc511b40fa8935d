package groups

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence for groups and
// memberships.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertGroup creates a group row, failing with ErrDuplicateGroup on a code
// collision.
func (r *Repository) InsertGroup(ctx context.Context, group Group) (Group, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO groups (code, display_name, access_type, active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id, code, display_name, access_type, active, created_at, updated_at`,
		group.Code, group.DisplayName, string(group.AccessType))
	stored, err := scanGroup(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Group{}, ErrDuplicateGroup
		}
		return Group{}, err
	}
	return stored, nil
}

// GetGroup fetches a group by code.
func (r *Repository) GetGroup(ctx context.Context, code string) (Group, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, code, display_name, access_type, active, created_at, updated_at
		FROM groups WHERE code = $1`, code)
	group, err := scanGroup(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Group{}, ErrGroupNotFound
		}
		return Group{}, err
	}
	return group, nil
}

// DeactivateGroup soft-deactivates the group, idempotently.
func (r *Repository) DeactivateGroup(ctx context.Context, code string) error {
	_, err := r.pool.Exec(ctx, `UPDATE groups SET active = FALSE, updated_at = NOW() WHERE code = $1`, code)
	return err
}

// SetCapabilities replaces the capability set of a group with the given
// capability IDs. Existing links outside the new set are detached.
func (r *Repository) SetCapabilities(ctx context.Context, groupID int64, capabilityIDs []int64) error {
	existing := make(map[int64]struct{})
	rows, err := r.pool.Query(ctx, `SELECT capability_id FROM group_capabilities WHERE group_id = $1`, groupID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		existing[id] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	keep := make(map[int64]struct{}, len(capabilityIDs))
	for _, id := range capabilityIDs {
		keep[id] = struct{}{}
		if _, ok := existing[id]; !ok {
			if _, err := r.pool.Exec(ctx, `INSERT INTO group_capabilities (group_id, capability_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, groupID, id); err != nil {
				return err
			}
		}
	}
	for id := range existing {
		if _, ok := keep[id]; !ok {
			if _, err := r.pool.Exec(ctx, `DELETE FROM group_capabilities WHERE group_id = $1 AND capability_id = $2`, groupID, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// GroupCapabilityCodes lists the capability codes owned by a group.
func (r *Repository) GroupCapabilityCodes(ctx context.Context, groupID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT c.code
		FROM group_capabilities gc
		JOIN capabilities c ON c.id = gc.capability_id
		WHERE gc.group_id = $1
		ORDER BY c.code`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return codes, nil
}

// ActiveMembership returns the active membership row for (user, group), or
// ErrMembershipNotFound when none exists.
func (r *Repository) ActiveMembership(ctx context.Context, userID, groupID int64) (Membership, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, user_id, group_id, assigned_by, assigned_at, expires_at, active
		FROM group_memberships WHERE user_id = $1 AND group_id = $2 AND active = TRUE`, userID, groupID)
	membership, err := scanMembership(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Membership{}, ErrMembershipNotFound
		}
		return Membership{}, err
	}
	return membership, nil
}

// InsertMembership creates a membership row. A partial unique index on
// (user_id, group_id) WHERE active guards the one-active-row invariant at the
// storage level as well.
func (r *Repository) InsertMembership(ctx context.Context, m Membership) (Membership, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO group_memberships (user_id, group_id, assigned_by, assigned_at, expires_at, active)
		VALUES ($1, $2, $3, NOW(), $4, TRUE)
		RETURNING id, user_id, group_id, assigned_by, assigned_at, expires_at, active`,
		m.UserID, m.GroupID, m.AssignedBy, nullableTime(m.ExpiresAt))
	stored, err := scanMembership(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Membership{}, ErrDuplicateMembership
		}
		return Membership{}, err
	}
	return stored, nil
}

// GetMembership fetches a membership by ID.
func (r *Repository) GetMembership(ctx context.Context, id int64) (Membership, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, user_id, group_id, assigned_by, assigned_at, expires_at, active
		FROM group_memberships WHERE id = $1`, id)
	membership, err := scanMembership(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Membership{}, ErrMembershipNotFound
		}
		return Membership{}, err
	}
	return membership, nil
}

// DeactivateMembership flips the membership to inactive. Rows are never
// physically removed once audited.
func (r *Repository) DeactivateMembership(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE group_memberships SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMembershipNotFound
	}
	return nil
}

// UserMemberships lists every membership row of a user, newest first.
func (r *Repository) UserMemberships(ctx context.Context, userID int64) ([]Membership, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, group_id, assigned_by, assigned_at, expires_at, active
		FROM group_memberships WHERE user_id = $1 ORDER BY assigned_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var memberships []Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return memberships, nil
}

// DeactivateExpiredMemberships flips long-expired rows to inactive. Purely
// hygiene: InEffect already treats them as not in effect.
func (r *Repository) DeactivateExpiredMemberships(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE group_memberships SET active = FALSE
		WHERE active = TRUE AND expires_at IS NOT NULL AND expires_at < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (Group, error) {
	var group Group
	var accessType string
	if err := row.Scan(&group.ID, &group.Code, &group.DisplayName, &accessType, &group.Active, &group.CreatedAt, &group.UpdatedAt); err != nil {
		return Group{}, err
	}
	group.AccessType = AccessType(accessType)
	return group, nil
}

func scanMembership(row rowScanner) (Membership, error) {
	var m Membership
	if err := row.Scan(&m.ID, &m.UserID, &m.GroupID, &m.AssignedBy, &m.AssignedAt, &m.ExpiresAt, &m.Active); err != nil {
		return Membership{}, err
	}
	return m, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
