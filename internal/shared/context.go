package shared

import (
	"context"
	"errors"
)

type tenantContextKey struct{}

// ErrNoTenant indicates a request reached tenant-scoped code without a
// tenant bound to its context.
var ErrNoTenant = errors.New("no tenant in context")

// ContextWithTenant stores the tenant id in context.
func ContextWithTenant(ctx context.Context, tenantID int64) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tenantID)
}

// TenantFromContext extracts the tenant id from context.
func TenantFromContext(ctx context.Context) (int64, error) {
	id, ok := ctx.Value(tenantContextKey{}).(int64)
	if !ok || id == 0 {
		return 0, ErrNoTenant
	}
	return id, nil
}
