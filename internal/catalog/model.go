// internal/catalog/model.go
//
// Catalog records for tenants and their identity providers.
//
// Context
// -------
// The catalog is the control-plane store: one row per tenant, and one row
// per identity provider owned by a tenant.  Administration of these rows
// happens elsewhere; this module only reads them, so the records carry
// read-side fields and nothing else.
package catalog

import "time"

// Tenant mirrors one row in the `tenant` table.
//
// DBPassword is encrypted at rest (see internal/secrets); the registry
// decrypts it immediately before opening the tenant's pool.  DSN, when
// set, overrides the process-wide DSN template for this tenant.
type Tenant struct {
	ID         string    `db:"id"`
	Name       string    `db:"name"`
	DBUser     string    `db:"db_user"`
	DBName     string    `db:"db_name"`
	DBPassword string    `db:"db_password"`
	DSN        string    `db:"dsn"`
	IsActive   bool      `db:"is_active"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// IdentityProvider mirrors one row in the `identity_provider` table.
//
// Issuer is matched against the iss claim of inbound JWTs (exact or
// prefix, case-sensitive).  For a given tenant at most one active row
// should match any issuer string; overlap is a configuration error that
// the token decoder refuses to resolve by guessing.
type IdentityProvider struct {
	ID        string `db:"id"`
	TenantID  string `db:"tenant_id"`
	Issuer    string `db:"issuer"`
	JWKSetURL string `db:"jwk_set_url"`
	IsOpaque  bool   `db:"is_opaque"`
	IsActive  bool   `db:"is_active"`
}
