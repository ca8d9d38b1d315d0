// internal/middleware/tenantfilter_test.go
//
// Filter behaviour tests over an in-memory catalog.
//
// Each sub-test:
//
//  1. Seeds the catalog and a recording evictor.
//  2. Wraps a probe handler that records the bound tenant.
//  3. Fires an httptest request and asserts status, body category, the
//     binding, and eviction side effects.
package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harborlane/strata/internal/catalog"
	"github.com/harborlane/strata/internal/httperr"
	"github.com/harborlane/strata/internal/tenantctx"
)

type recordingEvictor struct {
	evicted []string
}

func (e *recordingEvictor) Evict(id string) { e.evicted = append(e.evicted, id) }

type filterHarness struct {
	cat     *catalog.Memory
	evictor *recordingEvictor
	handler http.Handler

	called bool
	bound  string
	hadOK  bool
}

func newFilterHarness(cfg FilterConfig) *filterHarness {
	h := &filterHarness{cat: catalog.NewMemory(), evictor: &recordingEvictor{}}
	probe := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.called = true
		h.bound, h.hadOK = tenantctx.Current(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h.handler = TenantFilter(h.cat, h.evictor, cfg)(probe)
	return h
}

func (h *filterHarness) get(t *testing.T, tenantHeader string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/v1/things", nil)
	if tenantHeader != "" {
		req.Header.Set("X-Tenant-ID", tenantHeader)
	}
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) httperr.Body {
	t.Helper()
	var b httperr.Body
	if err := json.Unmarshal(rr.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return b
}

func TestFilterUnknownTenant(t *testing.T) {
	h := newFilterHarness(FilterConfig{})

	rr := h.get(t, "ghost")

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if b := decodeBody(t, rr); b.Error != httperr.CategoryTenantNotFound {
		t.Fatalf("category = %q, want tenant_not_found", b.Error)
	}
	if h.called {
		t.Fatal("downstream ran for an unknown tenant")
	}
}

func TestFilterInactiveTenantEvictsAndMatchesUnknown(t *testing.T) {
	h := newFilterHarness(FilterConfig{})
	h.cat.PutTenant(catalog.Tenant{ID: "acme", IsActive: false})

	inactive := h.get(t, "acme")
	unknown := h.get(t, "ghost")

	if inactive.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", inactive.Code)
	}
	if len(h.evictor.evicted) != 1 || h.evictor.evicted[0] != "acme" {
		t.Fatalf("evictions = %v, want [acme]", h.evictor.evicted)
	}
	// Fail closed: the response must not reveal that "acme" exists.
	if inactive.Body.String() != unknown.Body.String() {
		t.Fatalf("inactive body %q differs from unknown body %q",
			inactive.Body.String(), unknown.Body.String())
	}
	if h.called {
		t.Fatal("downstream ran for an inactive tenant")
	}
}

func TestFilterBindsActiveTenant(t *testing.T) {
	h := newFilterHarness(FilterConfig{})
	h.cat.PutTenant(catalog.Tenant{ID: "acme", IsActive: true})

	rr := h.get(t, "acme")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !h.hadOK || h.bound != "acme" {
		t.Fatalf("downstream saw tenant (%q, %v), want (acme, true)", h.bound, h.hadOK)
	}
	if len(h.evictor.evicted) != 0 {
		t.Fatalf("unexpected evictions: %v", h.evictor.evicted)
	}
}

func TestFilterDefaultTenantFallback(t *testing.T) {
	h := newFilterHarness(FilterConfig{DefaultTenant: "catalog"})
	h.cat.PutTenant(catalog.Tenant{ID: "catalog", IsActive: true})

	rr := h.get(t, "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if h.bound != "catalog" {
		t.Fatalf("bound tenant = %q, want catalog", h.bound)
	}
}

func TestFilterBlankWithoutDefaultRejects(t *testing.T) {
	h := newFilterHarness(FilterConfig{})

	rr := h.get(t, "")

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if h.called {
		t.Fatal("downstream ran without any tenant")
	}
}

func TestFilterSkipPaths(t *testing.T) {
	h := newFilterHarness(FilterConfig{SkipPaths: []string{"/healthz"}})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if h.hadOK {
		t.Fatal("skip path unexpectedly bound a tenant")
	}
}
