// internal/registry/registry_test.go
//
// Registry behaviour tests.
//
// Workflow / Structure
// --------------------
// countingOpener ── Opener that returns sqlmock-backed pools and counts
// constructions, so the singleflight guarantee is assertable.
//
// Each test seeds an in-memory catalog, builds a Registry with the
// counting opener, and exercises one contract: at-most-once creation,
// fail-closed lookups, eviction, or cache non-poisoning.
package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/harborlane/strata/internal/catalog"
	"github.com/harborlane/strata/internal/secrets"
)

const dsnTemplate = "%s:%s@tcp(127.0.0.1:3306)/%s?parseTime=true"

type countingOpener struct {
	calls int64
}

func (c *countingOpener) open(context.Context, string) (*sqlx.DB, error) {
	atomic.AddInt64(&c.calls, 1)
	db, _, err := sqlmock.New()
	if err != nil {
		return nil, err
	}
	return sqlx.NewDb(db, "sqlmock"), nil
}

func newTestRegistry(t *testing.T, cat *catalog.Memory) (*Registry, *countingOpener) {
	t.Helper()
	cipher, err := secrets.New("registry-test-key")
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	op := &countingOpener{}
	r := New(cat, cipher, dsnTemplate, zap.NewNop().Sugar(), Options{Opener: op.open})
	t.Cleanup(r.Close)
	return r, op
}

func seedTenant(t *testing.T, cat *catalog.Memory, id string, active bool) {
	t.Helper()
	cipher, _ := secrets.New("registry-test-key")
	pw, err := cipher.Encrypt("hunter2")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	cat.PutTenant(catalog.Tenant{
		ID:         id,
		Name:       id,
		DBUser:     id + "_rw",
		DBName:     id + "_db",
		DBPassword: pw,
		IsActive:   active,
	})
}

func TestProvisioningDetachedFromCallerCancel(t *testing.T) {
	// Provisioning is shared by every collapsed caller, so the initiating
	// request's cancellation must not reach the opener.
	cat := catalog.NewMemory()
	seedTenant(t, cat, "acme", true)

	cipher, err := secrets.New("registry-test-key")
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	opener := func(ctx context.Context, _ string) (*sqlx.DB, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		db, _, err := sqlmock.New()
		if err != nil {
			return nil, err
		}
		return sqlx.NewDb(db, "sqlmock"), nil
	}
	reg := New(cat, cipher, dsnTemplate, zap.NewNop().Sugar(), Options{Opener: opener})
	t.Cleanup(reg.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := reg.GetOrCreate(ctx, "acme"); err != nil {
		t.Fatalf("GetOrCreate with canceled caller context: %v", err)
	}
}

func TestGetOrCreateSingleFlight(t *testing.T) {
	cat := catalog.NewMemory()
	seedTenant(t, cat, "acme", true)
	reg, op := newTestRegistry(t, cat)

	const n = 32
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		pools = make(map[*sqlx.DB]struct{})
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			db, err := reg.GetOrCreate(context.Background(), "acme")
			if err != nil {
				t.Errorf("GetOrCreate: %v", err)
				return
			}
			mu.Lock()
			pools[db] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&op.calls); got != 1 {
		t.Fatalf("pool constructed %d times, want exactly 1", got)
	}
	if len(pools) != 1 {
		t.Fatalf("callers observed %d distinct pools, want 1", len(pools))
	}
}

func TestGetOrCreateUnknownTenant(t *testing.T) {
	reg, op := newTestRegistry(t, catalog.NewMemory())

	_, err := reg.GetOrCreate(context.Background(), "ghost")
	if !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("got %v, want ErrTenantNotFound", err)
	}
	if op.calls != 0 {
		t.Fatal("opener ran for an unknown tenant")
	}
}

func TestInactiveTenantFailsClosedAndEvicts(t *testing.T) {
	cat := catalog.NewMemory()
	seedTenant(t, cat, "acme", true)
	reg, _ := newTestRegistry(t, cat)

	if _, err := reg.GetOrCreate(context.Background(), "acme"); err != nil {
		t.Fatalf("initial provision: %v", err)
	}

	// Deactivate and reprovision: the stale pool must go and the error
	// must be indistinguishable from "no such tenant".
	seedTenant(t, cat, "acme", false)

	_, err := reg.AddOrReplace(context.Background(), "acme")
	if !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("got %v, want ErrTenantNotFound", err)
	}
	if _, ok := reg.m.Load("acme"); ok {
		t.Fatal("stale pool survived deactivation")
	}
}

func TestDecryptFailureDoesNotPoisonCache(t *testing.T) {
	cat := catalog.NewMemory()
	cat.PutTenant(catalog.Tenant{
		ID: "acme", DBUser: "u", DBName: "d",
		DBPassword: "enc2:AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", // undecryptable
		IsActive:   true,
	})
	reg, op := newTestRegistry(t, cat)

	_, err := reg.GetOrCreate(context.Background(), "acme")
	if !errors.Is(err, ErrCredentialDecryption) {
		t.Fatalf("got %v, want ErrCredentialDecryption", err)
	}
	if _, ok := reg.m.Load("acme"); ok {
		t.Fatal("failed provisioning left a cache entry behind")
	}

	// Fix the row; the next request must retry and succeed.
	seedTenant(t, cat, "acme", true)
	if _, err := reg.GetOrCreate(context.Background(), "acme"); err != nil {
		t.Fatalf("retry after fix: %v", err)
	}
	if op.calls != 1 {
		t.Fatalf("opener calls = %d, want 1", op.calls)
	}
}

func TestEvictRecreatesAndFiresHooks(t *testing.T) {
	cat := catalog.NewMemory()
	seedTenant(t, cat, "acme", true)
	reg, op := newTestRegistry(t, cat)

	var evicted []string
	reg.OnEvict(func(id string) { evicted = append(evicted, id) })

	first, _ := reg.GetOrCreate(context.Background(), "acme")
	reg.Evict("acme")
	second, err := reg.GetOrCreate(context.Background(), "acme")
	if err != nil {
		t.Fatalf("recreate: %v", err)
	}

	if first == second {
		t.Fatal("eviction did not produce a fresh pool")
	}
	if op.calls != 2 {
		t.Fatalf("opener calls = %d, want 2", op.calls)
	}
	if len(evicted) != 1 || evicted[0] != "acme" {
		t.Fatalf("OnEvict hooks saw %v, want [acme]", evicted)
	}
}

func TestLoadAllActive(t *testing.T) {
	cat := catalog.NewMemory()
	seedTenant(t, cat, "acme", true)
	seedTenant(t, cat, "beta", true)
	seedTenant(t, cat, "dormant", false)
	reg, _ := newTestRegistry(t, cat)

	pools, err := reg.LoadAllActive(context.Background())
	if err != nil {
		t.Fatalf("LoadAllActive: %v", err)
	}
	if len(pools) != 2 {
		t.Fatalf("provisioned %d pools, want 2", len(pools))
	}
	if _, ok := pools["dormant"]; ok {
		t.Fatal("inactive tenant was eagerly provisioned")
	}
}

func TestPlaintextPasswordPassesThrough(t *testing.T) {
	// Dev rows may hold unencrypted passwords; the format probe routes
	// them past the cipher untouched.
	cat := catalog.NewMemory()
	cat.PutTenant(catalog.Tenant{
		ID: "dev", DBUser: "u", DBName: "d", DBPassword: "plaintext", IsActive: true,
	})
	reg, _ := newTestRegistry(t, cat)

	if _, err := reg.GetOrCreate(context.Background(), "dev"); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
}
