package exceptions

import "time"

// Kind distinguishes exceptional grants from exceptional revocations.
type Kind string

const (
	KindGrant  Kind = "grant"
	KindRevoke Kind = "revoke"
)

// Permission is a time-bounded per-user override layered atop group-derived
// access. Revocations are first-class rows: they coexist with any active grant
// or group capability instead of deleting them.
type Permission struct {
	ID             int64
	UserID         int64
	CapabilityCode string
	Kind           Kind
	AuthorizedBy   int64
	Reason         string
	StartsAt       time.Time
	ExpiresAt      *time.Time
	Active         bool
	CreatedAt      time.Time
}

// InEffect reports whether the override currently applies.
func (p Permission) InEffect(now time.Time) bool {
	if !p.Active {
		return false
	}
	if p.StartsAt.After(now) {
		return false
	}
	if p.ExpiresAt != nil && !p.ExpiresAt.After(now) {
		return false
	}
	return true
}
