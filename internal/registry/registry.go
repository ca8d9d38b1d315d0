// internal/registry/registry.go
//
// Lazy, singleflight-guarded registry of per-tenant connection pools.
//
// Context
// -------
// Every tenant owns a dedicated database, so each one needs its own pool.
// Pools are expensive to open (network round-trips, credential decryption),
// so the registry creates them on first use, caches them in a sync.Map,
// and guarantees at-most-once construction per tenant id even when N
// requests miss concurrently: all callers collapse onto one provisioning
// attempt behind a singleflight barrier keyed by tenant id, and unrelated
// tenants never contend.
//
// A failed provisioning attempt stores nothing, so a later request simply
// retries from current catalog state.  Inactive tenants are evicted and
// reported exactly like absent ones; callers cannot distinguish the two.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/harborlane/strata/internal/catalog"
	"github.com/harborlane/strata/internal/database"
	"github.com/harborlane/strata/internal/metrics"
	"github.com/harborlane/strata/internal/secrets"
)

// Static defaults.  Overridable via Options.
const (
	DefaultIdleTTL       = 30 * time.Minute
	DefaultMaxPools      = 100
	DefaultEvictInterval = 5 * time.Minute
)

var (
	// ErrTenantNotFound covers both unknown and inactive tenants.  The
	// collapse is deliberate: responses must not confirm that a tenant
	// exists but was switched off.
	ErrTenantNotFound = errors.New("registry: tenant not found")

	// ErrCredentialDecryption means the stored password could not be
	// opened.  Fatal for that tenant's provisioning attempt; the cache is
	// left untouched.
	ErrCredentialDecryption = errors.New("registry: credential decryption failed")
)

// Opener turns a DSN into a live pool.  Production uses the database
// package; tests inject a counter.
type Opener func(ctx context.Context, dsn string) (*sqlx.DB, error)

type entry struct {
	db       *sqlx.DB
	lastSeen int64 // UnixNano, touched on every hit
}

// Options tunes one Registry.
type Options struct {
	IdleTTL       time.Duration // 0 → DefaultIdleTTL
	MaxPools      int           // 0 → DefaultMaxPools, <0 → unbounded
	EvictInterval time.Duration // 0 → DefaultEvictInterval
	Opener        Opener        // nil → small sqlx/mysql pool
}

// Registry maps tenant id → cached pool.  Safe for concurrent use.
type Registry struct {
	tenants catalog.Tenants
	cipher  *secrets.Cipher
	dsnTmpl string
	opener  Opener
	log     *zap.SugaredLogger

	sfg singleflight.Group
	m   sync.Map // tenant id → *entry

	idleTTL     time.Duration
	maxPools    int
	evictTicker *time.Ticker
	stop        chan struct{}

	onEvictMu sync.RWMutex
	onEvict   []func(tenantID string)
}

// New constructs a Registry and starts the background evictor.  dsnTmpl is
// the process-wide template filled with db_user, decrypted password, and
// db_name; a tenant row's dsn column overrides it.
func New(tenants catalog.Tenants, cipher *secrets.Cipher, dsnTmpl string, log *zap.SugaredLogger, opts Options) *Registry {
	if opts.IdleTTL == 0 {
		opts.IdleTTL = DefaultIdleTTL
	}
	if opts.MaxPools == 0 {
		opts.MaxPools = DefaultMaxPools
	}
	if opts.EvictInterval == 0 {
		opts.EvictInterval = DefaultEvictInterval
	}
	if opts.Opener == nil {
		opts.Opener = func(ctx context.Context, dsn string) (*sqlx.DB, error) {
			return database.OpenWithOptions(ctx, dsn, database.Options{
				MaxOpenConns: 5,
				MaxIdleConns: 2,
				Retries:      2,
			})
		}
	}

	r := &Registry{
		tenants:  tenants,
		cipher:   cipher,
		dsnTmpl:  dsnTmpl,
		opener:   opts.Opener,
		log:      log,
		idleTTL:  opts.IdleTTL,
		maxPools: opts.MaxPools,
		stop:     make(chan struct{}),
	}
	r.evictTicker = time.NewTicker(opts.EvictInterval)
	go r.evictLoop()
	return r
}

// OnEvict registers a hook invoked whenever a tenant's pool is removed by
// Evict or AddOrReplace.  The token-decoder cache subscribes here so a
// deactivated or reconfigured tenant loses its verifiers in the same
// breath as its pool.
func (r *Registry) OnEvict(fn func(tenantID string)) {
	r.onEvictMu.Lock()
	defer r.onEvictMu.Unlock()
	r.onEvict = append(r.onEvict, fn)
}

// GetOrCreate returns the cached pool for tenantID, provisioning it on
// first use.  Concurrent misses on the same id collapse into one creation;
// all callers receive the same *sqlx.DB.
func (r *Registry) GetOrCreate(ctx context.Context, tenantID string) (*sqlx.DB, error) {
	if tenantID == "" {
		return nil, ErrTenantNotFound
	}
	if v, ok := r.m.Load(tenantID); ok {
		ent := v.(*entry)
		atomic.StoreInt64(&ent.lastSeen, time.Now().UnixNano())
		return ent.db, nil
	}

	// Provisioning is shared work: N collapsed callers ride on whichever
	// request arrived first, so that request's cancellation must not fail
	// the attempt for everyone else.
	pctx := context.WithoutCancel(ctx)

	v, err, _ := r.sfg.Do(tenantID, func() (interface{}, error) {
		// Double-check after the singleflight barrier.
		if v, ok := r.m.Load(tenantID); ok {
			ent := v.(*entry)
			atomic.StoreInt64(&ent.lastSeen, time.Now().UnixNano())
			return ent.db, nil
		}
		db, err := r.provision(pctx, tenantID)
		if err != nil {
			metrics.TenantPoolLoadErrorsTotal.Inc()
			return nil, err
		}
		r.m.Store(tenantID, &entry{db: db, lastSeen: time.Now().UnixNano()})
		metrics.TenantPoolLoadTotal.Inc()
		metrics.ActiveTenantPools.Inc()
		r.log.Infow("tenant pool online", "tenant", tenantID)
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sqlx.DB), nil
}

// LoadAllActive eagerly provisions pools for every active tenant.  Used at
// startup; individual failures are logged and skipped so one broken tenant
// cannot block the boot of the rest.
func (r *Registry) LoadAllActive(ctx context.Context) (map[string]*sqlx.DB, error) {
	rows, err := r.tenants.AllActive(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*sqlx.DB, len(rows))
	for _, t := range rows {
		db, err := r.GetOrCreate(ctx, t.ID)
		if err != nil {
			r.log.Errorw("eager tenant provisioning failed", "tenant", t.ID, "err", err)
			continue
		}
		out[t.ID] = db
	}
	return out, nil
}

// Evict removes and closes tenantID's pool, if cached.  Subsequent
// GetOrCreate calls reprovision from current catalog state.
func (r *Registry) Evict(tenantID string) {
	r.remove(tenantID, "explicit")
	r.fireEvict(tenantID)
}

// AddOrReplace reprovisions the pool for a tenant whose catalog row
// changed.  The old pool (if any) is closed first so in-flight borrowers
// drain against the closed handle rather than a stale credential.
func (r *Registry) AddOrReplace(ctx context.Context, tenantID string) (*sqlx.DB, error) {
	r.remove(tenantID, "replace")
	r.fireEvict(tenantID)
	return r.GetOrCreate(ctx, tenantID)
}

// Close stops the evictor and releases every cached pool.  Called once at
// process shutdown.
func (r *Registry) Close() {
	close(r.stop)
	r.evictTicker.Stop()
	r.m.Range(func(key, value any) bool {
		_ = value.(*entry).db.Close()
		r.m.Delete(key)
		metrics.ActiveTenantPools.Dec()
		return true
	})
}

/*──────────────────────────── provisioning ────────────────────────────────*/

// provision turns tenant id → open pool.  Steps:
//
//  1. Fetch the tenant row; absent → ErrTenantNotFound.
//  2. Inactive → drop any stale cache entry, then ErrTenantNotFound.
//  3. Decrypt the stored password.
//  4. Build the DSN and open a small pool.
func (r *Registry) provision(ctx context.Context, tenantID string) (*sqlx.DB, error) {
	rec, err := r.tenants.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	if !rec.IsActive {
		r.remove(tenantID, "inactive")
		return nil, ErrTenantNotFound
	}

	password := rec.DBPassword
	if secrets.IsEncrypted(password) {
		password, err = r.cipher.Decrypt(password)
		if err != nil {
			return nil, fmt.Errorf("%w: tenant %s", ErrCredentialDecryption, tenantID)
		}
	}

	dsn := rec.DSN
	if dsn == "" {
		dsn = fmt.Sprintf(r.dsnTmpl, rec.DBUser, password, rec.DBName)
	}

	db, err := r.opener(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("registry: open pool for tenant %s: %w", tenantID, err)
	}
	return db, nil
}

// remove deletes and closes one cached entry.  reason feeds the log line
// only.
func (r *Registry) remove(tenantID, reason string) {
	v, ok := r.m.LoadAndDelete(tenantID)
	if !ok {
		return
	}
	_ = v.(*entry).db.Close()
	metrics.TenantPoolEvictTotal.Inc()
	metrics.ActiveTenantPools.Dec()
	r.log.Infow("tenant pool evicted", "tenant", tenantID, "reason", reason)
}

func (r *Registry) fireEvict(tenantID string) {
	r.onEvictMu.RLock()
	hooks := r.onEvict
	r.onEvictMu.RUnlock()
	for _, fn := range hooks {
		fn(tenantID)
	}
}
