// internal/authn/jwks_test.go
package authn

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestJWKSCacheCollapsesConcurrentFetches(t *testing.T) {
	s := newSigner(t)
	cache := newJWKSCache()

	const callers = 32
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	start := make(chan struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := cache.get(context.Background(), s.server.URL, time.Hour); err != nil {
				errs <- err
			}
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("get: %v", err)
	}
	if n := atomic.LoadInt64(&s.fetches); n != 1 {
		t.Fatalf("jwks fetches = %d, want 1 for %d concurrent callers", n, callers)
	}
}

func TestJWKSCacheRefetchesAfterTTL(t *testing.T) {
	s := newSigner(t)
	cache := newJWKSCache()
	ctx := context.Background()

	if _, err := cache.get(ctx, s.server.URL, -time.Second); err != nil {
		t.Fatalf("first get: %v", err)
	}
	if _, err := cache.get(ctx, s.server.URL, time.Hour); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if n := atomic.LoadInt64(&s.fetches); n != 2 {
		t.Fatalf("jwks fetches = %d, want 2 after an expired entry", n)
	}
}
