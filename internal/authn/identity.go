// internal/authn/identity.go
//
// Verified caller identity, plus the context plumbing handlers use to
// read it.
package authn

import (
	"context"
)

// Identity is the outcome of a successful verification on either path.
// Tenant carries the token's tenant claim when present; the middleware
// compares it against the header-derived tenant and rejects disagreement.
type Identity struct {
	Subject string
	Tenant  string
	Issuer  string
	Scopes  []string
}

// identityKey is unexported to avoid context-key collisions.
type identityKey struct{}

// WithIdentity returns a child context carrying the verified identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext retrieves the identity stored by the auth middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
