package rbac

// The fixed permission catalog. These are seed data: runtime CRUD never
// creates, renames, or deletes a permission, because renaming one would
// silently change what every holder is allowed to do.
const (
	PermUsersIndex  = "users index"
	PermUsersCreate = "users create"
	PermUsersEdit   = "users edit"
	PermUsersDelete = "users delete"

	PermRolesIndex  = "roles index"
	PermRolesCreate = "roles create"
	PermRolesEdit   = "roles edit"
	PermRolesDelete = "roles delete"
)

var registry = []string{
	PermUsersIndex,
	PermUsersCreate,
	PermUsersEdit,
	PermUsersDelete,
	PermRolesIndex,
	PermRolesCreate,
	PermRolesEdit,
	PermRolesDelete,
}

// AllPermissions returns the full catalog in declaration order.
func AllPermissions() []string {
	out := make([]string, len(registry))
	copy(out, registry)
	return out
}

// PermissionExists reports whether name is part of the catalog.
func PermissionExists(name string) bool {
	for _, p := range registry {
		if p == name {
			return true
		}
	}
	return false
}
