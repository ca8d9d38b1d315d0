// internal/middleware/auth.go
//
// Bearer-token authentication middleware.
//
// Sits after the tenant filter: extraction → strategy dispatch (JWT or
// opaque) → verification → tenant-claim cross-check → identity into
// context.  Every failure is a structured rejection; nothing proceeds
// unauthenticated.
package middleware

import (
	"fmt"
	"net/http"

	"github.com/harborlane/strata/internal/authn"
	"github.com/harborlane/strata/internal/httperr"
	"github.com/harborlane/strata/internal/tenantctx"
)

// Auth authenticates every request not listed in skipPaths.
func Auth(resolver *authn.Resolver, skipPaths []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, skip := range skipPaths {
				if r.URL.Path == skip {
					next.ServeHTTP(w, r)
					return
				}
			}

			raw, err := authn.BearerFromRequest(r)
			if err != nil {
				httperr.Reject(w, err)
				return
			}

			id, err := resolver.Resolve(r.Context(), raw)
			if err != nil {
				httperr.Reject(w, err)
				return
			}

			// A verified token may carry its own tenant claim.  If both
			// sides are known and disagree, the credential is genuine but
			// aimed at the wrong tenant: forbidden, not unauthorized.
			// Either side empty means no cross-check is possible.
			if bound, ok := tenantctx.Current(r.Context()); ok && id.Tenant != "" && id.Tenant != bound {
				httperr.Reject(w, fmt.Errorf("%w: request tenant %q, token tenant %q",
					authn.ErrTenantMismatch, bound, id.Tenant))
				return
			}

			next.ServeHTTP(w, r.WithContext(authn.WithIdentity(r.Context(), id)))
		})
	}
}
