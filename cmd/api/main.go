// cmd/api/main.go
//
// Strata – HTTP entry point.
//
// Boot sequence
// -------------
//
//  1. Load env vars (jail-wide file → .env fallback).
//
//  2. Start daily rotating logger (tees to console when running in a TTY).
//
//  3. Connect Vault when VAULT_ADDR is set; load and validate config,
//     resolving vault: secret references.
//
//  4. Open the catalog (control-plane) DB and log active-tenant count.
//
//  5. Build the pool registry (lazy-loads each tenant on first hit) and
//     the token decoder, wired so a registry eviction also drops the
//     tenant's cached verifiers.
//
//  6. Assemble the middleware chain: request-id → request-info →
//     recover → security headers → tenant filter → auth.
//
//  7. Serve /healthz and /metrics outside the chain, /v1 inside it;
//     drain gracefully on SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harborlane/strata/internal/acl"
	"github.com/harborlane/strata/internal/authn"
	"github.com/harborlane/strata/internal/catalog"
	"github.com/harborlane/strata/internal/config"
	"github.com/harborlane/strata/internal/database"
	"github.com/harborlane/strata/internal/httperr"
	"github.com/harborlane/strata/internal/logger"
	"github.com/harborlane/strata/internal/middleware"
	"github.com/harborlane/strata/internal/registry"
	"github.com/harborlane/strata/internal/requestinfo"
	"github.com/harborlane/strata/internal/secrets"
	"github.com/harborlane/strata/internal/server"
	"github.com/harborlane/strata/internal/vault"
)

const serverEnvPath = "/usr/local/etc/strata/global.env"

// loadEnv prefers the jail-wide env file; on dev it falls back to .env.
func loadEnv() {
	if _, err := os.Stat(serverEnvPath); err == nil {
		_ = godotenv.Load(serverEnvPath)
		return
	}
	_ = godotenv.Load()
}

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func init() { loadEnv() }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootDir, _ := os.Getwd()
	logOut, err := logger.New(rootDir, runningInTTY())
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}

	//
	// ── 1.  Secrets backend and config ─────────────────────────────────
	//
	var resolver config.SecretResolver
	if os.Getenv("VAULT_ADDR") != "" {
		vc, err := vault.New(ctx, logOut.Infof)
		if err != nil {
			logOut.Fatalf("connect vault: %v", err)
		}
		resolver = vc
	}

	cfg, err := config.Load(ctx, resolver)
	if err != nil {
		logOut.Fatalf("load config: %v", err)
	}

	//
	// ── 2.  Catalog DB connect ─────────────────────────────────────────
	//
	logOut.Infow("connecting to catalog DB")
	catalogDB, err := database.Open(ctx, cfg.Database.CatalogDSN)
	if err != nil {
		logOut.Fatalf("connect catalog DB: %v", err)
	}
	defer catalogDB.Close()

	cat := catalog.NewSQL(catalogDB)

	// Log active-tenant count as an early sanity check.
	if tenants, err := cat.AllActive(ctx); err == nil {
		logOut.Infow("catalog DB online", "active_tenants", len(tenants))
	} else {
		logOut.Warnw("catalog DB online, tenant count failed", "err", err)
	}

	//
	// ── 3.  Credential cipher and pool registry ────────────────────────
	//
	cipher, err := secrets.New(cfg.Secrets.CipherKey)
	if err != nil {
		logOut.Fatalf("init credential cipher: %v", err)
	}

	reg := registry.New(cat, cipher, cfg.Database.TenantDSNTemplate, logOut, registry.Options{
		IdleTTL:  cfg.Tenancy.PoolIdleTTL,
		MaxPools: cfg.Tenancy.MaxPools,
	})
	defer reg.Close()

	if cfg.Tenancy.EagerLoad {
		if pools, err := reg.LoadAllActive(ctx); err != nil {
			logOut.Warnw("eager pool load failed", "err", err)
		} else {
			logOut.Infow("eager pool load complete", "pools", len(pools))
		}
	}

	//
	// ── 4.  Token verification ─────────────────────────────────────────
	//
	decoder := authn.NewDecoder(cat, logOut, authn.DecoderOptions{
		JWKSTTL:   cfg.Auth.JWKSTTL,
		ClockSkew: cfg.Auth.ClockSkew,
	})
	// Catalog-driven evictions (deactivation, credential rotation) also
	// invalidate the tenant's cached verifiers.
	reg.OnEvict(decoder.EvictTenant)

	var intro authn.Introspector
	if cfg.Auth.IntrospectionURL != "" {
		intro = authn.NewHTTPIntrospector(
			cfg.Auth.IntrospectionURL,
			cfg.Auth.IntrospectionClientID,
			cfg.Auth.IntrospectionClientSecret,
		)
	}
	resolverAuth := authn.NewResolver(decoder, intro)

	//
	// ── 5.  Optional geo enrichment ────────────────────────────────────
	//
	if cfg.Geo.DBPath != "" {
		if err := requestinfo.InitGeo(cfg.Geo.DBPath); err != nil {
			logOut.Warnw("geo database unavailable", "path", cfg.Geo.DBPath, "err", err)
		}
	}

	//
	// ── 6.  Router ─────────────────────────────────────────────────────
	//
	router := registry.NewRouter(reg, cfg.Tenancy.DefaultTenant)

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RequestID)
		r.Use(requestinfo.Enrich)
		r.Use(middleware.Recover)
		r.Use(middleware.Security)
		r.Use(middleware.TenantFilter(cat, reg, middleware.FilterConfig{
			HeaderName:    cfg.Tenancy.HeaderName,
			DefaultTenant: cfg.Tenancy.DefaultTenant,
		}))
		r.Use(middleware.Auth(resolverAuth, nil))

		r.Get("/whoami", whoami(router))
		r.With(acl.RequireScope("reports.read")).
			With(acl.RequirePermission(router, "reports", "read")).
			Get("/reports", reports(router))
	})

	//
	// ── 7.  Serve and drain ────────────────────────────────────────────
	//
	srv := server.New(cfg.HTTP.ListenAddr, r)
	go func() {
		logOut.Infow("listening", "addr", cfg.HTTP.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logOut.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logOut.Infow("shutting down")
	if err := server.Shutdown(srv); err != nil {
		logOut.Errorw("shutdown incomplete", "err", err)
	}
}

// whoami reports the verified caller and which tenant database the
// request routes to.  Doubles as an end-to-end smoke check: a 200 here
// proves tenant resolution, token verification, and pool routing.
func whoami(router *registry.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := authn.FromContext(r.Context())

		db, err := router.Connection(r.Context())
		if err != nil {
			httperr.Reject(w, err)
			return
		}
		var dbName sql.NullString
		if err := db.GetContext(r.Context(), &dbName, "SELECT DATABASE()"); err != nil {
			httperr.Reject(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"subject":    id.Subject,
			"tenant":     router.ResolveTenantKey(r.Context()),
			"issuer":     id.Issuer,
			"scopes":     id.Scopes,
			"database":   dbName.String,
			"request_id": middleware.RequestIDFrom(r.Context()),
		})
	}
}

// reports lists the newest report rows from the caller's tenant database.
func reports(router *registry.Router) http.HandlerFunc {
	type report struct {
		ID        int64     `db:"id"         json:"id"`
		Title     string    `db:"title"      json:"title"`
		CreatedAt time.Time `db:"created_at" json:"created_at"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		db, err := router.Connection(r.Context())
		if err != nil {
			httperr.Reject(w, err)
			return
		}

		rows := make([]report, 0, 50)
		const q = `SELECT id, title, created_at
                     FROM report
                 ORDER BY created_at DESC
                    LIMIT 50`
		if err := db.SelectContext(r.Context(), &rows, q); err != nil {
			httperr.Reject(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(rows)
	}
}
