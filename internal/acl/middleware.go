// internal/acl/middleware.go
//
// Chi middleware helpers that enforce authorization on top of the
// verified identity: coarse scope checks straight off the token, and
// role checks against the tenant database the request routes to.
package acl

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/harborlane/strata/internal/authn"
	"github.com/harborlane/strata/internal/httperr"
	"github.com/harborlane/strata/internal/registry"
)

// RequireScope ensures the verified token carries ANY of the supplied
// scopes.  No database round-trip.
func RequireScope(scopes ...string) func(http.Handler) http.Handler {
	if len(scopes) == 0 {
		panic("acl.RequireScope: at least one scope must be supplied")
	}
	allowSet := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		allowSet[s] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := authn.FromContext(r.Context())
			if !ok {
				httperr.RejectWith(w, http.StatusUnauthorized,
					httperr.CategoryInvalidToken, "no verified identity")
				return
			}
			for _, s := range id.Scopes {
				if _, ok := allowSet[s]; ok {
					next.ServeHTTP(w, r)
					return
				}
			}
			httperr.RejectWith(w, http.StatusForbidden,
				httperr.CategoryForbidden, "insufficient scope")
		})
	}
}

// RequirePermission verifies that the subject's roles, read from the
// tenant database the request routes to, allow resource/action.
func RequirePermission(router *registry.Router, resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := authn.FromContext(r.Context())
			if !ok {
				httperr.RejectWith(w, http.StatusUnauthorized,
					httperr.CategoryInvalidToken, "no verified identity")
				return
			}

			db, err := router.Connection(r.Context())
			if err != nil {
				httperr.Reject(w, err)
				return
			}

			roles, err := SubjectRoles(r.Context(), db, id.Subject)
			if err != nil {
				zap.L().Error("acl subject roles", zap.Error(err))
				httperr.RejectWith(w, http.StatusInternalServerError,
					httperr.CategoryInternal, "internal error")
				return
			}

			allowed, err := RolesAllowed(r.Context(), db, roles, resource, action)
			if err != nil {
				zap.L().Error("acl roles allowed", zap.Error(err))
				httperr.RejectWith(w, http.StatusInternalServerError,
					httperr.CategoryInternal, "internal error")
				return
			}
			if !allowed {
				httperr.RejectWith(w, http.StatusForbidden,
					httperr.CategoryForbidden, "permission denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
