// internal/authn/errors.go
//
// Failure taxonomy for the authentication path.  Every rejection the
// boundary can produce is a distinct sentinel so callers branch with
// errors.Is instead of string matching, and the HTTP layer maps each one
// to a stable category and status.
package authn

import "errors"

var (
	// ErrNoTenantContext means Decode ran before the tenant filter bound
	// a tenant.  That is an ordering defect in the middleware chain, not
	// a normal authentication failure, and it maps to a 500.
	ErrNoTenantContext = errors.New("authn: no tenant bound to request context")

	// ErrNoProviderForIssuer means the bound tenant has no active
	// identity provider whose issuer matches the token's iss claim.
	ErrNoProviderForIssuer = errors.New("authn: no identity provider matches token issuer")

	// ErrAmbiguousProvider means two or more active providers for the
	// tenant match the same issuer.  That is a catalog integrity problem;
	// the decoder refuses to pick one.
	ErrAmbiguousProvider = errors.New("authn: multiple identity providers match token issuer")

	// ErrInvalidToken covers signature, issuer, and time-claim failures
	// during full verification, and tokens too mangled to pre-parse.
	ErrInvalidToken = errors.New("authn: token verification failed")

	// ErrNoBearerToken means the Authorization header is absent or not of
	// the form "Bearer <token>".
	ErrNoBearerToken = errors.New("authn: missing or malformed bearer token")

	// ErrTenantMismatch means a verified token carries a tenant claim
	// that disagrees with the header-derived tenant.  Forbidden, not
	// unauthorized: the credential is genuine, just for the wrong door.
	ErrTenantMismatch = errors.New("authn: token tenant does not match request tenant")

	// ErrOpaqueNotConfigured means an opaque bearer token arrived but no
	// introspection endpoint is configured.
	ErrOpaqueNotConfigured = errors.New("authn: opaque tokens not supported, no introspection endpoint")
)
