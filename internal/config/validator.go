// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `internal/config/loader.go` calls `validateStruct` immediately after it
// unmarshals the merged Koanf tree into a `Config` instance.  Any tag
// mismatch or validation error aborts startup, so the binary never runs
// with partial or malformed configuration.  The DSN-template rule below
// exists because a template with the wrong verb count would otherwise only
// surface on the first tenant provisioning attempt, deep in the request
// path.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

//
// validator instance (package-level singleton)
//

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New()
	// tenant_dsn_template must carry exactly three %s verbs:
	// user, password, database name.
	_ = val.RegisterValidation("dsn_template", func(fl validator.FieldLevel) bool {
		return strings.Count(fl.Field().String(), "%s") == 3
	})
	return val
}

//
// public API
//

// validateStruct returns the first validation error, or nil on success.
func validateStruct(c *Config) error {
	if err := v.Struct(c); err != nil {
		return err
	}
	if err := v.Var(c.Database.TenantDSNTemplate, "dsn_template"); err != nil {
		return err
	}

	// An unresolved reference means no secret backend was configured.
	// Refuse to run with a vault: URI standing in for the real value.
	for name, val := range map[string]string{
		"secrets.cipher_key":               c.Secrets.CipherKey,
		"database.catalog_dsn":             c.Database.CatalogDSN,
		"auth.introspection_client_secret": c.Auth.IntrospectionClientSecret,
	} {
		if strings.HasPrefix(val, secretPrefix) {
			return fmt.Errorf("config: %s holds an unresolved secret reference", name)
		}
	}
	return nil
}
