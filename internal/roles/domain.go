package roles

import "time"

// Role is a named, reusable bundle of permissions.
type Role struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time

	// Permissions holds the role's permission names, sorted. May be empty.
	Permissions []string
}

// HasPermission reports whether the role carries the named permission.
func (r Role) HasPermission(name string) bool {
	for _, p := range r.Permissions {
		if p == name {
			return true
		}
	}
	return false
}
