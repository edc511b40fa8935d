package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence for the capability catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertCapability creates a capability row. Returns ErrDuplicateCapability on
// a code collision.
func (r *Repository) InsertCapability(ctx context.Context, cap Capability) (Capability, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO capabilities (code, sensitivity, requires_audit, active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id, code, sensitivity, requires_audit, active, created_at, updated_at`,
		cap.Code, string(cap.Sensitivity), cap.RequiresAudit)
	stored, err := scanCapability(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Capability{}, ErrDuplicateCapability
		}
		return Capability{}, err
	}
	return stored, nil
}

// GetCapability fetches a capability by code (case-sensitive exact match).
func (r *Repository) GetCapability(ctx context.Context, code string) (Capability, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, code, sensitivity, requires_audit, active, created_at, updated_at
		FROM capabilities WHERE code = $1`, code)
	cap, err := scanCapability(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Capability{}, ErrCapabilityNotFound
		}
		return Capability{}, err
	}
	return cap, nil
}

// DeactivateCapability soft-deactivates the capability. Deactivating an
// already inactive or unknown code is a no-op.
func (r *Repository) DeactivateCapability(ctx context.Context, code string) error {
	_, err := r.pool.Exec(ctx, `UPDATE capabilities SET active = FALSE, updated_at = NOW() WHERE code = $1`, code)
	return err
}

// ListCapabilities returns all capabilities ordered by code.
func (r *Repository) ListCapabilities(ctx context.Context) ([]Capability, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, sensitivity, requires_audit, active, created_at, updated_at
		FROM capabilities ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var caps []Capability
	for rows.Next() {
		cap, err := scanCapability(rows)
		if err != nil {
			return nil, err
		}
		caps = append(caps, cap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return caps, nil
}

// InsertFunction creates a function row, failing with ErrDuplicateFunction on
// a full_name collision.
func (r *Repository) InsertFunction(ctx context.Context, fn Function) (Function, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO functions (full_name, domain, category, active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id, full_name, domain, category, active, created_at, updated_at`,
		fn.FullName, fn.Domain, fn.Category)
	stored, err := scanFunction(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Function{}, ErrDuplicateFunction
		}
		return Function{}, err
	}
	return stored, nil
}

// GetFunction fetches a function by full name.
func (r *Repository) GetFunction(ctx context.Context, fullName string) (Function, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, full_name, domain, category, active, created_at, updated_at
		FROM functions WHERE full_name = $1`, fullName)
	fn, err := scanFunction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Function{}, ErrFunctionNotFound
		}
		return Function{}, err
	}
	return fn, nil
}

// DeactivateFunction soft-deactivates the function, idempotently.
func (r *Repository) DeactivateFunction(ctx context.Context, fullName string) error {
	_, err := r.pool.Exec(ctx, `UPDATE functions SET active = FALSE, updated_at = NOW() WHERE full_name = $1`, fullName)
	return err
}

// UpsertLink attaches a capability to a function, updating the per-link flags
// when the pair already exists. Idempotent for seeding.
func (r *Repository) UpsertLink(ctx context.Context, link FunctionCapability) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO function_capabilities (function_id, capability_id, required, visible_in_ui)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (function_id, capability_id)
		DO UPDATE SET required = EXCLUDED.required, visible_in_ui = EXCLUDED.visible_in_ui`,
		link.FunctionID, link.CapabilityID, link.Required, link.VisibleInUI)
	return err
}

// FunctionCapabilities lists the links of a function with capability codes.
func (r *Repository) FunctionCapabilities(ctx context.Context, functionID int64) ([]FunctionCapability, error) {
	rows, err := r.pool.Query(ctx, `SELECT fc.function_id, fc.capability_id, c.code, fc.required, fc.visible_in_ui
		FROM function_capabilities fc
		JOIN capabilities c ON c.id = fc.capability_id
		WHERE fc.function_id = $1
		ORDER BY c.code`, functionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var links []FunctionCapability
	for rows.Next() {
		var link FunctionCapability
		if err := rows.Scan(&link.FunctionID, &link.CapabilityID, &link.Code, &link.Required, &link.VisibleInUI); err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return links, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCapability(row rowScanner) (Capability, error) {
	var cap Capability
	var sensitivity string
	if err := row.Scan(&cap.ID, &cap.Code, &sensitivity, &cap.RequiresAudit, &cap.Active, &cap.CreatedAt, &cap.UpdatedAt); err != nil {
		return Capability{}, err
	}
	cap.Sensitivity = Sensitivity(sensitivity)
	return cap, nil
}

func scanFunction(row rowScanner) (Function, error) {
	var fn Function
	if err := row.Scan(&fn.ID, &fn.FullName, &fn.Domain, &fn.Category, &fn.Active, &fn.CreatedAt, &fn.UpdatedAt); err != nil {
		return Function{}, err
	}
	return fn, nil
}
