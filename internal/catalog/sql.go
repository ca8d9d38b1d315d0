// internal/catalog/sql.go
//
// sqlx-backed catalog readers against the control-plane database.
package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// SQL reads tenant and provider rows from the control-plane DB.  One
// instance is shared process-wide; *sqlx.DB is safe for concurrent use.
type SQL struct {
	db *sqlx.DB
}

// NewSQL wraps the control-plane pool.
func NewSQL(db *sqlx.DB) *SQL { return &SQL{db: db} }

// FindByID fetches a single tenant row by id.  The caller supplies a
// context so the lookup respects request deadlines.
func (s *SQL) FindByID(ctx context.Context, id string) (*Tenant, error) {
	const q = `
        SELECT id, name, db_user, db_name, db_password, dsn,
               is_active, created_at, updated_at
        FROM   tenant
        WHERE  id = ?
        LIMIT  1`
	var t Tenant
	if err := s.db.GetContext(ctx, &t, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// AllActive returns every tenant with is_active = 1.  Used once at boot by
// the registry's eager loader, not on the request path.
func (s *SQL) AllActive(ctx context.Context) ([]Tenant, error) {
	const q = `
        SELECT id, name, db_user, db_name, db_password, dsn,
               is_active, created_at, updated_at
        FROM   tenant
        WHERE  is_active = 1`
	var rows []Tenant
	if err := s.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	return rows, nil
}

// ActiveByTenant returns the active identity providers owned by tenantID.
func (s *SQL) ActiveByTenant(ctx context.Context, tenantID string) ([]IdentityProvider, error) {
	const q = `
        SELECT id, tenant_id, issuer, jwk_set_url, is_opaque, is_active
        FROM   identity_provider
        WHERE  tenant_id = ?
          AND  is_active = 1`
	var rows []IdentityProvider
	if err := s.db.SelectContext(ctx, &rows, q, tenantID); err != nil {
		return nil, err
	}
	return rows, nil
}
