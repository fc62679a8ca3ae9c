package users

import "time"

// User represents a managed account. Roles carries role names; the user's
// effective permissions are always derived from them, never stored here.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Roles []string
}
