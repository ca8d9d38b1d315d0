// internal/httperr/httperr.go
//
// Structured rejection bodies for the request boundary.
//
// Every tenant/auth failure leaves the process as a small JSON document
// with a numeric status, a stable category string, and a human-readable
// message.  Nothing else: no stack detail, and unknown-versus-inactive
// tenants share one category so responses never confirm that a tenant
// exists.
package httperr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/harborlane/strata/internal/authn"
	"github.com/harborlane/strata/internal/catalog"
	"github.com/harborlane/strata/internal/metrics"
	"github.com/harborlane/strata/internal/registry"
)

// Rejection categories, stable across releases; clients switch on these.
const (
	CategoryTenantNotFound       = "tenant_not_found"
	CategoryTenantMismatch       = "tenant_mismatch"
	CategoryNoTenantContext      = "no_tenant_context"
	CategoryNoProviderForIssuer  = "no_provider_for_issuer"
	CategoryAmbiguousProvider    = "ambiguous_provider"
	CategoryInvalidToken         = "invalid_token"
	CategoryNoBearerToken        = "no_bearer_token"
	CategoryCredentialDecryption = "credential_decryption"
	CategoryForbidden            = "forbidden"
	CategoryInternal             = "internal"
)

// Body is the wire shape of a rejection.
type Body struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Classify maps an error to its boundary status and category.
func Classify(err error) (status int, category string) {
	switch {
	case errors.Is(err, registry.ErrTenantNotFound), errors.Is(err, catalog.ErrNotFound):
		return http.StatusUnauthorized, CategoryTenantNotFound
	case errors.Is(err, authn.ErrTenantMismatch):
		return http.StatusForbidden, CategoryTenantMismatch
	case errors.Is(err, authn.ErrNoTenantContext):
		return http.StatusInternalServerError, CategoryNoTenantContext
	case errors.Is(err, authn.ErrNoProviderForIssuer):
		return http.StatusUnauthorized, CategoryNoProviderForIssuer
	case errors.Is(err, authn.ErrAmbiguousProvider):
		return http.StatusInternalServerError, CategoryAmbiguousProvider
	case errors.Is(err, authn.ErrInvalidToken), errors.Is(err, authn.ErrOpaqueNotConfigured):
		return http.StatusUnauthorized, CategoryInvalidToken
	case errors.Is(err, authn.ErrNoBearerToken):
		return http.StatusUnauthorized, CategoryNoBearerToken
	case errors.Is(err, registry.ErrCredentialDecryption):
		return http.StatusInternalServerError, CategoryCredentialDecryption
	default:
		return http.StatusInternalServerError, CategoryInternal
	}
}

// Reject writes the rejection for err and bumps the per-category counter.
// Internal-category errors keep a generic message; taxonomy errors carry
// their own text, which is written for clients, not operators.
func Reject(w http.ResponseWriter, err error) {
	status, category := Classify(err)
	msg := err.Error()
	if category == CategoryInternal {
		msg = "internal error"
	}
	metrics.AuthRejectTotal.WithLabelValues(category).Inc()
	write(w, Body{Status: status, Error: category, Message: msg})
}

// RejectWith writes an explicit status/category/message triple.
func RejectWith(w http.ResponseWriter, status int, category, message string) {
	metrics.AuthRejectTotal.WithLabelValues(category).Inc()
	write(w, Body{Status: status, Error: category, Message: message})
}

func write(w http.ResponseWriter, b Body) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.Status)
	_ = json.NewEncoder(w).Encode(b)
}
