package rbac

import (
	"fmt"
	"sort"
)

// Action identifies a protected route. Typed constants keep the
// action-to-permission table free of stringly-typed typos.
type Action string

const (
	ActionUsersIndex  Action = "users.index"
	ActionUsersCreate Action = "users.create"
	ActionUsersEdit   Action = "users.edit"
	ActionUsersDelete Action = "users.delete"

	ActionRolesIndex  Action = "roles.index"
	ActionRolesCreate Action = "roles.create"
	ActionRolesEdit   Action = "roles.edit"
	ActionRolesDelete Action = "roles.delete"
)

var allActions = []Action{
	ActionUsersIndex,
	ActionUsersCreate,
	ActionUsersEdit,
	ActionUsersDelete,
	ActionRolesIndex,
	ActionRolesCreate,
	ActionRolesEdit,
	ActionRolesDelete,
}

// Policy maps each protected action to the single permission it requires.
// The gate is fail-closed: an action missing from the policy denies every
// request, so forgetting an entry can never silently open a route.
type Policy map[Action]string

// DefaultPolicy returns the action-to-permission table for the admin panel.
func DefaultPolicy() Policy {
	return Policy{
		ActionUsersIndex:  PermUsersIndex,
		ActionUsersCreate: PermUsersCreate,
		ActionUsersEdit:   PermUsersEdit,
		ActionUsersDelete: PermUsersDelete,

		ActionRolesIndex:  PermRolesIndex,
		ActionRolesCreate: PermRolesCreate,
		ActionRolesEdit:   PermRolesEdit,
		ActionRolesDelete: PermRolesDelete,
	}
}

// Required resolves the permission for an action. ok is false when the
// action is not declared, which callers must treat as deny.
func (p Policy) Required(action Action) (string, bool) {
	perm, ok := p[action]
	return perm, ok
}

// Validate checks the policy at startup: every known action must be mapped,
// and every mapped permission must exist in the catalog.
func (p Policy) Validate() error {
	for _, action := range allActions {
		perm, ok := p[action]
		if !ok {
			return fmt.Errorf("rbac: action %q has no required permission", action)
		}
		if !PermissionExists(perm) {
			return fmt.Errorf("rbac: action %q requires unknown permission %q", action, perm)
		}
	}
	declared := make([]string, 0, len(p))
	for action := range p {
		declared = append(declared, string(action))
	}
	sort.Strings(declared)
	for _, action := range declared {
		if !knownAction(Action(action)) {
			return fmt.Errorf("rbac: policy declares unknown action %q", action)
		}
	}
	return nil
}

func knownAction(a Action) bool {
	for _, known := range allActions {
		if known == a {
			return true
		}
	}
	return false
}
