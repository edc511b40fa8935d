package groups

import "time"

// AccessType classifies how a group is meant to be used.
type AccessType string

const (
	AccessOperational AccessType = "operational"
	AccessSupervisory AccessType = "supervisory"
	AccessAdmin       AccessType = "admin"
)

// Group is a non-hierarchical bundle of capabilities assignable to users.
type Group struct {
	ID          int64
	Code        string
	DisplayName string
	AccessType  AccessType
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Membership links a user to a group for a bounded time.
type Membership struct {
	ID         int64
	UserID     int64
	GroupID    int64
	AssignedBy int64
	AssignedAt time.Time
	ExpiresAt  *time.Time
	Active     bool
}

// InEffect reports whether the membership currently applies. An expired
// membership is never in effect, regardless of the active flag.
func (m Membership) InEffect(now time.Time) bool {
	if !m.Active {
		return false
	}
	if m.ExpiresAt != nil && !m.ExpiresAt.After(now) {
		return false
	}
	return true
}
