package identity

import "time"

// User is an account in the identity store. The resolver only consumes the
// existence check; everything else serves the service's own login surface.
type User struct {
	ID        int64
	Email     string
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
