package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Execer matches both pgxpool.Pool and pgx.Tx, so entries can be written inside
// the resolver's decision transaction.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store persists audit entries in audit_entries. Insert-only: there is no
// update or delete path.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore returns a new Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const insertEntrySQL = `INSERT INTO audit_entries
	(id, user_id, capability_code, action, outcome, resource, endpoint, ip_address, user_agent, context, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, NOW()))`

// Record appends the entry using the store's own pool.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	if s == nil {
		return errors.New("audit: store not initialised")
	}
	return RecordWith(ctx, s.pool, entry)
}

// RecordWith appends the entry through the given executor, typically a
// transaction owned by the resolver.
func RecordWith(ctx context.Context, exec Execer, entry Entry) error {
	if exec == nil {
		return errors.New("audit: executor required")
	}
	if entry.Action == "" || entry.Outcome == "" {
		return errors.New("audit: entry requires action and outcome")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	var occurredAt any
	if !entry.OccurredAt.IsZero() {
		occurredAt = entry.OccurredAt.UTC()
	}
	contextJSON, err := json.Marshal(entry.Context)
	if err != nil {
		return err
	}
	_, err = exec.Exec(ctx, insertEntrySQL,
		entry.ID,
		entry.UserID,
		entry.CapabilityCode,
		string(entry.Action),
		string(entry.Outcome),
		entry.Resource,
		entry.Endpoint,
		entry.IPAddress,
		entry.UserAgent,
		contextJSON,
		occurredAt,
	)
	return err
}

// Query returns entries matching the filters ordered by occurred_at descending.
// It fetches one row beyond the page size so the caller can detect a next page.
func (s *Store) Query(ctx context.Context, f Filters, limit, offset int) ([]Entry, error) {
	if s == nil {
		return nil, errors.New("audit: store not initialised")
	}
	rows, err := s.pool.Query(ctx, `SELECT id, user_id, capability_code, action, outcome, resource, endpoint, ip_address, user_agent, context, occurred_at
		FROM audit_entries
		WHERE ($1 = 0 OR user_id = $1)
		  AND ($2 = '' OR capability_code = $2)
		  AND ($3 = '' OR action = $3)
		  AND ($4::timestamptz IS NULL OR occurred_at >= $4)
		  AND ($5::timestamptz IS NULL OR occurred_at < $5)
		ORDER BY occurred_at DESC
		LIMIT $6 OFFSET $7`,
		f.UserID, f.CapabilityCode, string(f.Action), nullableTime(f.From), nullableTime(f.To), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var contextJSON []byte
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.CapabilityCode, &entry.Action, &entry.Outcome,
			&entry.Resource, &entry.Endpoint, &entry.IPAddress, &entry.UserAgent, &contextJSON, &entry.OccurredAt); err != nil {
			return nil, err
		}
		if len(contextJSON) > 0 {
			if err := json.Unmarshal(contextJSON, &entry.Context); err != nil {
				return nil, err
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
