package resolver

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/centinela-ac/centinela/internal/audit"
	"github.com/centinela-ac/centinela/internal/platform/db"
)

// PGRepository opens RepeatableRead snapshots against PostgreSQL. The three
// permission reads and the audit insert of one HasPermission call share a
// single transaction.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs the repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// WithSnapshot runs fn inside one transaction.
func (r *PGRepository) WithSnapshot(ctx context.Context, fn func(ctx context.Context, snap Snapshot) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgSnapshot{tx: tx})
	})
}

type pgSnapshot struct {
	tx pgx.Tx
}

func (s *pgSnapshot) UserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := s.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	return exists, err
}

// GroupCapabilities unions the capability codes of every in-effect membership,
// restricted to active groups and active capabilities.
func (s *pgSnapshot) GroupCapabilities(ctx context.Context, userID int64, now time.Time) ([]string, error) {
	rows, err := s.tx.Query(ctx, `SELECT DISTINCT c.code
		FROM group_memberships gm
		JOIN groups g ON g.id = gm.group_id AND g.active = TRUE
		JOIN group_capabilities gc ON gc.group_id = g.id
		JOIN capabilities c ON c.id = gc.capability_id AND c.active = TRUE
		WHERE gm.user_id = $1
		  AND gm.active = TRUE
		  AND (gm.expires_at IS NULL OR gm.expires_at > $2)`,
		userID, now)
	if err != nil {
		return nil, err
	}
	return collectCodes(rows)
}

func (s *pgSnapshot) GrantedCapabilities(ctx context.Context, userID int64, now time.Time) ([]string, error) {
	return s.overrideCodes(ctx, userID, "grant", now)
}

func (s *pgSnapshot) RevokedCapabilities(ctx context.Context, userID int64, now time.Time) ([]string, error) {
	return s.overrideCodes(ctx, userID, "revoke", now)
}

func (s *pgSnapshot) overrideCodes(ctx context.Context, userID int64, kind string, now time.Time) ([]string, error) {
	rows, err := s.tx.Query(ctx, `SELECT DISTINCT capability_code
		FROM exceptional_permissions
		WHERE user_id = $1
		  AND kind = $2
		  AND active = TRUE
		  AND starts_at <= $3
		  AND (expires_at IS NULL OR expires_at > $3)`,
		userID, kind, now)
	if err != nil {
		return nil, err
	}
	return collectCodes(rows)
}

// CapabilityRequiresAudit reports the requires_audit flag, false for unknown
// codes.
func (s *pgSnapshot) CapabilityRequiresAudit(ctx context.Context, code string) (bool, error) {
	var requiresAudit bool
	err := s.tx.QueryRow(ctx, `SELECT requires_audit FROM capabilities WHERE code = $1`, code).Scan(&requiresAudit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return requiresAudit, nil
}

func (s *pgSnapshot) AppendAudit(ctx context.Context, entry audit.Entry) error {
	return audit.RecordWith(ctx, s.tx, entry)
}

func collectCodes(rows pgx.Rows) ([]string, error) {
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
