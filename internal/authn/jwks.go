// internal/authn/jwks.go
//
// TTL cache of fetched JWKS sets, keyed by URL.
//
// Key sets are fetched over the network, so verifiers share one cache and
// refetch only after the TTL lapses.  The TTL also bounds how long a
// rotated signing key stays trusted without a process restart.  Cold
// fetches collapse behind a per-URL singleflight barrier; the map mutex
// covers only loads and stores, so unrelated URLs never contend.
package authn

import (
	"context"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"golang.org/x/sync/singleflight"
)

type jwksCache struct {
	mu   sync.RWMutex
	sets map[string]cachedJWKS
	sfg  singleflight.Group
}

type cachedJWKS struct {
	set     jwk.Set
	expires time.Time
}

func newJWKSCache() *jwksCache {
	return &jwksCache{sets: make(map[string]cachedJWKS)}
}

func (c *jwksCache) get(ctx context.Context, url string, ttl time.Duration) (jwk.Set, error) {
	if set, ok := c.lookup(url); ok {
		return set, nil
	}

	v, err, _ := c.sfg.Do(url, func() (interface{}, error) {
		// Double-check after the singleflight barrier.
		if set, ok := c.lookup(url); ok {
			return set, nil
		}
		set, err := jwk.Fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.sets[url] = cachedJWKS{set: set, expires: time.Now().Add(ttl)}
		c.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(jwk.Set), nil
}

func (c *jwksCache) lookup(url string) (jwk.Set, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.sets[url]; ok && time.Now().Before(e.expires) {
		return e.set, true
	}
	return nil, false
}

// drop removes every cached set fetched from the given URLs.
func (c *jwksCache) drop(urls []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range urls {
		delete(c.sets, u)
	}
}
