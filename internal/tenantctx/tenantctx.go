// internal/tenantctx/tenantctx.go
//
// Request-scoped current-tenant binding.
//
// Context
// -------
// The binding travels inside context.Context, so it is scoped to exactly
// the call tree that carries the derived context.  Two concurrent requests can
// never observe each other's tenant, and "clearing" on request completion
// is structural: the derived context dies with the request.  Goroutines
// spawned with a fresh background context inherit nothing; any component
// that crosses an asynchronous boundary must Bind again explicitly.
package tenantctx

import "context"

// key is unexported to avoid context-key collisions.
type key struct{}

// Bind returns a child context carrying tenantID as the current tenant.
func Bind(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, key{}, tenantID)
}

// Clear returns a child context with no tenant bound, shadowing any binding
// in ctx.  Downstream Current calls see "unbound" again.
func Clear(ctx context.Context) context.Context {
	return context.WithValue(ctx, key{}, "")
}

// Current returns the bound tenant id.  ok is false when no tenant is
// bound (or the binding was cleared).
func Current(ctx context.Context) (string, bool) {
	id, _ := ctx.Value(key{}).(string)
	return id, id != ""
}

// CurrentOr returns the bound tenant id, or fallback when unbound.  The
// connection router uses this to fall back to the catalog tenant.
func CurrentOr(ctx context.Context, fallback string) string {
	if id, ok := Current(ctx); ok {
		return id
	}
	return fallback
}

// WithTenant binds tenantID, runs fn with the bound context, and returns
// fn's error.  The binding cannot outlive the call: fn receives a derived
// context and the caller's ctx is never mutated, so the contract "cleared
// on every exit path, including panic" holds by construction.
func WithTenant(ctx context.Context, tenantID string, fn func(context.Context) error) error {
	return fn(Bind(ctx, tenantID))
}
