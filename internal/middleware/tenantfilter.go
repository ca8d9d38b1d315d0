// internal/middleware/tenantfilter.go
//
// Tenant resolution filter.
//
// Context
// -------
// Runs before any authentication step, because the token decoder needs a
// bound tenant to select identity providers.  Per request:
//
//	header read → catalog validation → bind → downstream → unbind
//
// Any failure before bind short-circuits into a structured rejection; the
// request never reaches downstream half-resolved.  Unknown and inactive
// tenants produce byte-identical responses, and an inactive tenant
// additionally has its cached resources evicted so the next activation
// reprovisions from fresh catalog state.
//
// Unbinding needs no explicit step: the binding lives only in the derived
// request context, which dies with the request on every exit path,
// including panics unwinding through the recover middleware.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/harborlane/strata/internal/catalog"
	"github.com/harborlane/strata/internal/httperr"
	"github.com/harborlane/strata/internal/registry"
	"github.com/harborlane/strata/internal/tenantctx"
)

// CacheEvictor releases per-tenant cached resources.  The pool registry
// satisfies it; the decoder cache hangs off the registry's eviction hooks.
type CacheEvictor interface {
	Evict(tenantID string)
}

// FilterConfig tunes the tenant filter.
type FilterConfig struct {
	// HeaderName is the inbound tenant header, canonically X-Tenant-ID.
	HeaderName string

	// DefaultTenant substitutes for an absent header.  A missing header
	// is explicitly not a rejection on its own; empty DefaultTenant plus
	// a missing header resolves to blank and is rejected as unknown.
	DefaultTenant string

	// SkipPaths bypass tenant resolution entirely (health, metrics).
	SkipPaths []string
}

// TenantFilter validates the request's tenant and binds it into the
// request context for everything downstream.
func TenantFilter(tenants catalog.Tenants, evictor CacheEvictor, cfg FilterConfig) func(http.Handler) http.Handler {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "X-Tenant-ID"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, skip := range cfg.SkipPaths {
				if r.URL.Path == skip {
					next.ServeHTTP(w, r)
					return
				}
			}

			id := strings.TrimSpace(r.Header.Get(cfg.HeaderName))
			if id == "" {
				id = cfg.DefaultTenant
			}
			if id == "" {
				httperr.Reject(w, registry.ErrTenantNotFound)
				return
			}

			rec, err := tenants.FindByID(r.Context(), id)
			if err != nil {
				if !errors.Is(err, catalog.ErrNotFound) {
					zap.S().Errorw("tenant catalog lookup failed", "tenant", id, "err", err)
				}
				httperr.Reject(w, registry.ErrTenantNotFound)
				return
			}
			if !rec.IsActive {
				// Same rejection as not-found, plus cache teardown.
				evictor.Evict(id)
				zap.S().Infow("inactive tenant rejected", "tenant", id, "path", r.URL.Path)
				httperr.Reject(w, registry.ErrTenantNotFound)
				return
			}

			next.ServeHTTP(w, r.WithContext(tenantctx.Bind(r.Context(), rec.ID)))
		})
	}
}
