// internal/catalog/memory.go
//
// In-memory catalog for tests and single-node dev bring-up.  Mirrors the
// SQL readers' semantics exactly, including ErrNotFound and "inactive rows
// are still findable by id".
package catalog

import (
	"context"
	"sync"
)

// Memory holds tenant and provider rows in maps.  Safe for concurrent use.
type Memory struct {
	mu        sync.RWMutex
	tenants   map[string]Tenant
	providers map[string][]IdentityProvider // tenant id → providers
}

// NewMemory returns an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{
		tenants:   make(map[string]Tenant),
		providers: make(map[string][]IdentityProvider),
	}
}

// PutTenant inserts or replaces a tenant row.
func (m *Memory) PutTenant(t Tenant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[t.ID] = t
}

// PutProvider appends a provider row for its owning tenant.
func (m *Memory) PutProvider(p IdentityProvider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[p.TenantID] = append(m.providers[p.TenantID], p)
}

func (m *Memory) FindByID(_ context.Context, id string) (*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := t
	return &cp, nil
}

func (m *Memory) AllActive(_ context.Context) ([]Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Tenant
	for _, t := range m.tenants {
		if t.IsActive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *Memory) ActiveByTenant(_ context.Context, tenantID string) ([]IdentityProvider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []IdentityProvider
	for _, p := range m.providers[tenantID] {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}
