package authz

import (
	"context"

	"taskhive.io/internal/identity"
)

// PermissionContext is the record of a decision, attached to the request on
// allow so downstream handlers and audit logging can read the resolved role
// and decision without recomputing it.
type PermissionContext struct {
	Identity identity.Claims
	Role     identity.Role
	Resource Resource
	Action   Action
	Context  *ResourceContext
	Allowed  bool
}

type permissionContextKey struct{}

// ContextWithPermission attaches the decision record to the context.
func ContextWithPermission(ctx context.Context, pc PermissionContext) context.Context {
	return context.WithValue(ctx, permissionContextKey{}, &pc)
}

// PermissionFromContext extracts the decision record from the context.
func PermissionFromContext(ctx context.Context) (PermissionContext, bool) {
	if ctx == nil {
		return PermissionContext{}, false
	}
	v, ok := ctx.Value(permissionContextKey{}).(*PermissionContext)
	if !ok || v == nil {
		return PermissionContext{}, false
	}
	return *v, true
}
