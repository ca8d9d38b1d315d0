// internal/config/loader.go
//
// Configuration loader.
//
/*
Context
--------
`Load()` builds one immutable `Config` struct from three layers (highest
precedence last):

  1. Optional `<root>/conf/.env` dotenv file.
  2. `conf/global.yaml`.
  3. Environment variables prefixed `STRATA_`, where `__` maps to “.”
     (e.g., `STRATA_HTTP__LISTEN_ADDR → http.listen_addr`).

After merging, string values prefixed `vault:` are resolved through the
supplied SecretResolver, the tree is unmarshalled into strongly-typed
structs, validated, enriched with the runtime root path, and cached in an
`atomic.Pointer` for lock-free reads.  `Reload()` calls `Load()` again and
swaps the pointer.

Logs use the global sugared logger (`zap.S()`) so early boot issues surface
on the bootstrap console even before the file logger is installed.
*/
package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

// SecretResolver turns a `vault:mount/path#key` reference into its secret
// value.  internal/vault satisfies this; tests inject a stub.
type SecretResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// secretPrefix marks config values that must be resolved before use.
const secretPrefix = "vault:"

var current atomic.Pointer[Config]

/*──────────────────────────── root discovery ───────────────────────────────*/

// rootDir resolves STRATA_ROOT or climbs directories until conf/global.yaml
// is found.  Falls back to the executable heuristic for production layout.
func rootDir() string {
	if r := os.Getenv("STRATA_ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "conf", "global.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir { // reached filesystem root
			break
		}
		dir = parent
	}

	exe, _ := os.Executable()
	if filepath.Base(filepath.Dir(exe)) == "bin" {
		return filepath.Dir(filepath.Dir(exe))
	}
	return wd
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// Load reads .env, YAML, and env overrides, resolves vault: references,
// validates, and caches the Config.  resolver may be nil when no secret
// backend is configured; a vault: value then fails validation loudly
// instead of leaking the raw reference into consumers.
func Load(ctx context.Context, resolver SecretResolver) (*Config, error) {
	root := rootDir()
	zap.S().Debugw("config root resolved", "root", root)

	// .env (optional, no error if missing)
	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")

	yamlPath := filepath.Join(root, "conf", "global.yaml")
	if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
		zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
		return nil, err
	}

	// Env overrides: STRATA_HTTP__LISTEN_ADDR → http.listen_addr
	if err := k.Load(env.Provider("STRATA_", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "__", "."))
	}), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	if err := resolveSecretRefs(ctx, k, resolver); err != nil {
		zap.S().Errorw("config secret resolution failed", "err", err)
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, err
	}

	cfg.Paths.Root = root
	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	current.Store(&cfg)
	zap.S().Infow("config loaded",
		"listen_addr", cfg.HTTP.ListenAddr,
		"tenant_header", cfg.Tenancy.HeaderName,
		"default_tenant", cfg.Tenancy.DefaultTenant,
		"root", cfg.Paths.Root,
	)
	return &cfg, nil
}

// resolveSecretRefs rewrites every `vault:`-prefixed leaf in place.  With
// no resolver configured the references are left intact so validation can
// reject them downstream rather than silently running with a URI as key.
func resolveSecretRefs(ctx context.Context, k *koanf.Koanf, resolver SecretResolver) error {
	if resolver == nil {
		return nil
	}
	for _, name := range k.Keys() {
		val, ok := k.Get(name).(string)
		if !ok || !strings.HasPrefix(val, secretPrefix) {
			continue
		}
		plain, err := resolver.Resolve(ctx, strings.TrimPrefix(val, secretPrefix))
		if err != nil {
			return err
		}
		if err := k.Set(name, plain); err != nil {
			return err
		}
	}
	return nil
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

func Get() *Config { return current.Load() }

func Reload(ctx context.Context, resolver SecretResolver) error {
	_, err := Load(ctx, resolver)
	return err
}
