// internal/config/model.go
//
// Typed configuration model.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   - optional `conf/.env`                     – dotenv values,
//   - `conf/global.yaml`                       – primary static file,
//   - `STRATA_`-prefixed environment overrides – highest precedence.
//
// Any string value that begins with `vault:` is resolved through the Vault
// client after the overlay merge, so the model only ever stores plain
// strings; secret URIs never reach consumers.
//
// Validation happens immediately after unmarshal; the process fails fast
// if required fields are missing.
package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
}

//
// Tenancy section
//

// Tenancy controls tenant resolution and the pool registry.
//
// DefaultTenant is the id substituted when the tenant header is absent.
// Leaving it empty makes the header mandatory: requests without one are
// rejected as unknown-tenant.
type Tenancy struct {
	HeaderName    string        `koanf:"header_name"    validate:"required"`
	DefaultTenant string        `koanf:"default_tenant"`
	PoolIdleTTL   time.Duration `koanf:"pool_idle_ttl"`
	MaxPools      int           `koanf:"max_pools"`
	EagerLoad     bool          `koanf:"eager_load"`
}

//
// Database section
//

// Database holds the control-plane DSN and the per-tenant DSN template.
//
// The template is kept in YAML so operators can tweak host, port, or flags
// without touching Vault; it contains three %s verbs filled with the
// tenant's db_user, decrypted password, and db_name, in that order.  A
// tenant row may override the template wholesale via its dsn column.
type Database struct {
	CatalogDSN        string `koanf:"catalog_dsn"         validate:"required"`
	TenantDSNTemplate string `koanf:"tenant_dsn_template" validate:"required"`
}

//
// Secrets section
//

// Secrets carries the master key for the credential cipher.  In production
// the value is a `vault:` reference, never a literal key.
type Secrets struct {
	CipherKey string `koanf:"cipher_key" validate:"required"`
}

//
// Auth section
//

// Auth tunes token verification.  IntrospectionURL may be empty, in which
// case opaque bearer tokens are rejected outright.
type Auth struct {
	JWKSTTL                   time.Duration `koanf:"jwks_ttl"`
	ClockSkew                 time.Duration `koanf:"clock_skew"`
	IntrospectionURL          string        `koanf:"introspection_url"`
	IntrospectionClientID     string        `koanf:"introspection_client_id"`
	IntrospectionClientSecret string        `koanf:"introspection_client_secret"`
}

//
// Geo section
//

// Geo points at an optional GeoLite2 database for request-info enrichment.
// Empty path disables geo lookups; nothing else changes.
type Geo struct {
	DBPath string `koanf:"db_path"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root string // STRATA_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the process lifetime.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	Tenancy  Tenancy  `koanf:"tenancy"`
	Database Database `koanf:"database"`
	Secrets  Secrets  `koanf:"secrets"`
	Auth     Auth     `koanf:"auth"`
	Geo      Geo      `koanf:"geo"`
	Paths    Paths    `koanf:"-"` // not loaded from config files
}
