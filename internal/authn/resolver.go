// internal/authn/resolver.go
//
// Per-request dispatch between the JWT-verification path and the
// opaque-token-introspection path.
//
// The dispatch is an ordered strategy list: each strategy declares what it
// supports, the first match wins, and the final opaque strategy matches
// unconditionally so nothing ever falls off the end of the table.
package authn

import (
	"context"
	"net/http"
	"strings"
)

// Introspector validates opaque bearer tokens against an external
// endpoint.  See HTTPIntrospector for the RFC 7662 implementation.
type Introspector interface {
	Introspect(ctx context.Context, token string) (Identity, error)
}

type strategy struct {
	name     string
	supports func(raw string) bool
	verify   func(ctx context.Context, raw string) (Identity, error)
}

// Resolver routes a raw bearer token to a verification strategy.
type Resolver struct {
	strategies []strategy
}

// NewResolver builds the strategy table.  intro may be nil, in which case
// opaque tokens are rejected with ErrOpaqueNotConfigured.
func NewResolver(dec *Decoder, intro Introspector) *Resolver {
	return &Resolver{strategies: []strategy{
		{
			name:     "jwt",
			supports: looksLikeJWT,
			verify:   dec.Decode,
		},
		{
			name:     "opaque",
			supports: func(string) bool { return true }, // unconditional fallback
			verify: func(ctx context.Context, raw string) (Identity, error) {
				if intro == nil {
					return Identity{}, ErrOpaqueNotConfigured
				}
				return intro.Introspect(ctx, raw)
			},
		},
	}}
}

// Resolve runs the first matching strategy.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Identity, error) {
	for _, s := range r.strategies {
		if s.supports(raw) {
			return s.verify(ctx, raw)
		}
	}
	// Unreachable while the opaque fallback matches everything.
	return Identity{}, ErrInvalidToken
}

// BearerFromRequest extracts the bearer token from the Authorization
// header.  Absent header, wrong scheme, or empty token all yield
// ErrNoBearerToken, short-circuiting before any verification path runs.
func BearerFromRequest(r *http.Request) (string, error) {
	authz := r.Header.Get("Authorization")
	if authz == "" {
		return "", ErrNoBearerToken
	}
	scheme, token, ok := strings.Cut(authz, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrNoBearerToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrNoBearerToken
	}
	return token, nil
}

// looksLikeJWT reports whether raw has the three non-empty dot-separated
// segments of a compact JWS.  Anything else routes to introspection.
func looksLikeJWT(raw string) bool {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}
