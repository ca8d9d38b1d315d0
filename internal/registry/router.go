// internal/registry/router.go
//
// Connection router: the only tenant-aware surface the persistence layer
// sees.  Query code asks the router for a pool and stays ignorant of both
// the context binding and the registry, so tenant routing can change
// without touching a single query.
package registry

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/harborlane/strata/internal/tenantctx"
)

// Router is a stateless adapter over the Registry and the bound tenant
// context.
type Router struct {
	registry      *Registry
	defaultTenant string
}

// NewRouter wires a Router.  defaultTenant may be empty, in which case an
// unbound context yields ErrTenantNotFound on the first connection ask.
func NewRouter(r *Registry, defaultTenant string) *Router {
	return &Router{registry: r, defaultTenant: defaultTenant}
}

// ResolveTenantKey returns the tenant id the current request is bound to,
// falling back to the configured default when unbound.
func (ro *Router) ResolveTenantKey(ctx context.Context) string {
	return tenantctx.CurrentOr(ctx, ro.defaultTenant)
}

// ConnectionFor hands back the pool for tenantID, provisioning lazily.
func (ro *Router) ConnectionFor(ctx context.Context, tenantID string) (*sqlx.DB, error) {
	return ro.registry.GetOrCreate(ctx, tenantID)
}

// Connection resolves the current tenant and returns its pool in one step.
// This is the call sites' common path.
func (ro *Router) Connection(ctx context.Context) (*sqlx.DB, error) {
	return ro.ConnectionFor(ctx, ro.ResolveTenantKey(ctx))
}
