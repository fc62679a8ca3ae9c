package rbac

import "context"

type grantedContextKey struct{}

// ContextWithGranted stashes the caller's resolved permission set so the
// presentation layer can hide controls without re-querying. Hiding is a UX
// convenience; the gate remains the only enforcement point.
func ContextWithGranted(ctx context.Context, set PermissionSet) context.Context {
	return context.WithValue(ctx, grantedContextKey{}, set)
}

// GrantedFromContext returns the stashed permission set, or an empty set.
func GrantedFromContext(ctx context.Context) PermissionSet {
	if set, ok := ctx.Value(grantedContextKey{}).(PermissionSet); ok {
		return set
	}
	return PermissionSet{}
}
