package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action enumerates the auditable permission events.
type Action string

const (
	ActionAccessGranted    Action = "access_granted"
	ActionAccessDenied     Action = "access_denied"
	ActionGroupAssigned    Action = "group_assigned"
	ActionGroupRevoked     Action = "group_revoked"
	ActionExceptionApplied Action = "exception_applied"
)

// Outcome records whether the audited operation succeeded.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Entry is an immutable audit record. Entries are terminal facts: once written
// they are never updated or deleted, and the store interface exposes no way to
// do either.
type Entry struct {
	ID             uuid.UUID
	UserID         int64
	CapabilityCode string
	Action         Action
	Outcome        Outcome
	Resource       string
	Endpoint       string
	IPAddress      string
	UserAgent      string
	Context        map[string]any
	OccurredAt     time.Time
}

// Filters narrows audit queries. Zero values mean "no filter".
type Filters struct {
	UserID         int64
	CapabilityCode string
	Action         Action
	From           time.Time
	To             time.Time
	Page           int
	PageSize       int
}
