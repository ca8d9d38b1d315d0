// internal/acl/store.go
//
// Small query helpers for role-based authorization.
//
// Context
// -------
// The ACL model lives entirely inside each tenant database, keyed by the
// token subject:
//
//	role          (id PK, name, enabled)
//	role_grant    (role_id, resource, action, permitted)
//	subject_role  (subject, role_id)
//
// Middleware needs fast answers to two questions:
//  1. Which *role names* does subject X have?      → `SubjectRoles()`
//  2. Do any of these roles permit resource/action? → `RolesAllowed()`
//
// These helpers accept the pool already routed to the caller's tenant and
// perform simple parameterised queries.  They are thin; callers may wrap
// the results in their own per-request cache.
package acl

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// SubjectRoles returns the role names bound to subject.  Disabled roles
// are filtered out.
func SubjectRoles(ctx context.Context, db *sqlx.DB, subject string) ([]string, error) {
	const q = `SELECT r.name
                 FROM subject_role sr
                 JOIN role r ON r.id = sr.role_id
                WHERE sr.subject = ? AND r.enabled = TRUE`

	roles := make([]string, 0, 4)
	if err := db.SelectContext(ctx, &roles, q, subject); err != nil {
		return nil, err
	}
	return roles, nil
}

// RolesAllowed reports whether any of the candidate roles is permitted
// for the given resource + action.  Empty roles slice returns false, nil.
func RolesAllowed(ctx context.Context, db *sqlx.DB, roles []string, resource, action string) (bool, error) {
	if len(roles) == 0 {
		return false, nil
	}

	q, args, err := sqlx.In(`SELECT 1
            FROM role_grant rg
            JOIN role r ON r.id = rg.role_id
           WHERE r.name IN (?)
             AND rg.resource = ?
             AND rg.action   = ?
             AND rg.permitted = TRUE
           LIMIT 1`, roles, resource, action)
	if err != nil {
		return false, err
	}

	var dummy int
	err = db.QueryRowxContext(ctx, db.Rebind(q), args...).Scan(&dummy)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
