// internal/tenantctx/tenantctx_test.go
package tenantctx

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestBindAndCurrent(t *testing.T) {
	ctx := context.Background()

	if id, ok := Current(ctx); ok || id != "" {
		t.Fatalf("unbound context: got (%q, %v), want empty", id, ok)
	}

	bound := Bind(ctx, "acme")
	if id, ok := Current(bound); !ok || id != "acme" {
		t.Fatalf("bound context: got (%q, %v), want (acme, true)", id, ok)
	}

	// The parent context must be untouched.
	if _, ok := Current(ctx); ok {
		t.Fatal("binding leaked into the parent context")
	}
}

func TestClearShadowsBinding(t *testing.T) {
	ctx := Bind(context.Background(), "acme")
	cleared := Clear(ctx)

	if _, ok := Current(cleared); ok {
		t.Fatal("Current returned a tenant after Clear")
	}
	if id, _ := Current(ctx); id != "acme" {
		t.Fatal("Clear mutated the original context")
	}
}

func TestCurrentOrFallback(t *testing.T) {
	if got := CurrentOr(context.Background(), "default"); got != "default" {
		t.Fatalf("CurrentOr on unbound = %q, want default", got)
	}
	if got := CurrentOr(Bind(context.Background(), "beta"), "default"); got != "beta" {
		t.Fatalf("CurrentOr on bound = %q, want beta", got)
	}
}

func TestWithTenantScopesBinding(t *testing.T) {
	root := context.Background()

	var seen string
	err := WithTenant(root, "acme", func(ctx context.Context) error {
		seen, _ = Current(ctx)
		return nil
	})
	if err != nil {
		t.Fatalf("WithTenant: %v", err)
	}
	if seen != "acme" {
		t.Fatalf("fn observed tenant %q, want acme", seen)
	}
	if _, ok := Current(root); ok {
		t.Fatal("binding observed outside WithTenant scope")
	}
}

func TestWithTenantPropagatesError(t *testing.T) {
	want := errors.New("downstream failed")
	err := WithTenant(context.Background(), "acme", func(context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("got %v, want %v", err, want)
	}
}

func TestWithTenantClearsOnPanic(t *testing.T) {
	root := context.Background()

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("panic did not propagate")
			}
		}()
		_ = WithTenant(root, "acme", func(context.Context) error {
			panic("boom")
		})
	}()

	if _, ok := Current(root); ok {
		t.Fatal("binding survived a panic")
	}
}

func TestNoCrossGoroutineLeak(t *testing.T) {
	// Two concurrent "requests" must each observe only their own tenant.
	var wg sync.WaitGroup
	for _, id := range []string{"alpha", "beta", "gamma", "delta"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			ctx := Bind(context.Background(), id)
			for i := 0; i < 1000; i++ {
				if got, _ := Current(ctx); got != id {
					t.Errorf("goroutine %s observed %s", id, got)
					return
				}
			}
		}(id)
	}
	wg.Wait()
}
