package rbac

import (
	"sort"
	"strings"
	"time"
)

// Permission represents an atomic named capability gating one action.
// Permissions are created by the seeder and immutable afterwards; the name,
// never the id, is the stable key used for checks and UI.
type Permission struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Group returns the resource prefix of a permission name, e.g. "users" for
// "users index". Used only for grouping checkboxes in forms.
func (p Permission) Group() string {
	if i := strings.IndexByte(p.Name, ' '); i > 0 {
		return p.Name[:i]
	}
	return p.Name
}

// PermissionSet is a user's effective permission set: the union of the
// permissions of every role the user holds. A user with no roles has an
// empty set, never a nil one.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from permission names.
func NewPermissionSet(names []string) PermissionSet {
	set := make(PermissionSet, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// Has reports membership of a single permission name. An empty set is
// authorized for nothing; there is no wildcard.
func (s PermissionSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the members in sorted order.
func (s PermissionSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
