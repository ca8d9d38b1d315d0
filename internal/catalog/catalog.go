// internal/catalog/catalog.go
//
// Read contracts consumed by the tenant filter, the connection registry,
// and the token decoder.  Implementations: SQL (production) and memory
// (tests, dev seeding).
package catalog

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a tenant id has no row.  Callers treat an
// inactive tenant the same way, but that mapping is the caller's job; the
// catalog reports rows as stored.
var ErrNotFound = errors.New("catalog: tenant not found")

// Tenants is the read side of the tenant table.
type Tenants interface {
	// FindByID returns the row for id, active or not, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*Tenant, error)

	// AllActive returns every active tenant, used for eager provisioning
	// at startup.
	AllActive(ctx context.Context) ([]Tenant, error)
}

// Providers is the read side of the identity-provider table.
type Providers interface {
	// ActiveByTenant returns all active providers owned by tenantID.  An
	// empty slice is not an error; it simply means no issuer can match.
	ActiveByTenant(ctx context.Context, tenantID string) ([]IdentityProvider, error)
}
