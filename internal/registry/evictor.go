// evictor.go houses the background eviction loop for Registry.  Every
// EvictInterval it scans the map and removes:
//
//   - tenant pools idle longer than idleTTL
//   - least-recently-used pools when map size exceeds maxPools
//
// Each eviction event is logged and updates the Prometheus counters.  The
// loop only reclaims resources; it never fires the OnEvict hooks, because
// an idle pool says nothing about the tenant's catalog state and the
// decoder cache must not be flushed for a tenant that is merely quiet.
package registry

import (
	"sort"
	"sync/atomic"
	"time"
)

func (r *Registry) evictLoop() {
	for {
		select {
		case <-r.stop:
			return
		case <-r.evictTicker.C:
		}

		now := time.Now().UnixNano()
		var count int

		// Idle pass.
		r.m.Range(func(key, value any) bool {
			count++
			ent := value.(*entry)
			idle := time.Duration(now - atomic.LoadInt64(&ent.lastSeen))
			if idle > r.idleTTL {
				r.remove(key.(string), "idle "+idle.Truncate(time.Second).String())
				count--
			}
			return true
		})

		// LRU pass.
		if r.maxPools > 0 && count > r.maxPools {
			type kv struct {
				key string
				at  int64
			}
			var all []kv
			r.m.Range(func(key, value any) bool {
				ent := value.(*entry)
				all = append(all, kv{key: key.(string), at: atomic.LoadInt64(&ent.lastSeen)})
				return true
			})
			sort.Slice(all, func(i, j int) bool { return all[i].at < all[j].at })
			for i := 0; i < len(all)-r.maxPools; i++ {
				r.remove(all[i].key, "lru pressure")
			}
		}
	}
}
