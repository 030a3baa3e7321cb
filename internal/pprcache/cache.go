// Package pprcache implements the PPR Cache (spec.md §4.H): a tiered-
// TTL cache over PPR Engine results, with a dependency index for
// targeted invalidation, a warmup job, and hit/miss/staleness metrics.
//
// Grounded on the reference codebase's pkg/cache/query_cache.go LRU
// cache (map + atomic counters for hits/misses), extended with the
// tiered-TTL and dependency-index machinery of spec.md §4.H. Unlike that
// cache it has no capacity bound and no LRU eviction: entries are never
// removed, and staleness or TTL expiry only forces a recompute.
package pprcache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oneiron-dev/oneiron-helix/internal/ppr"
)

// Entry is one cached PPR result (spec.md §4.H's key/value layout).
type Entry struct {
	Results      []ppr.Result
	GraphVersion uint64
	WrittenAt    time.Time
	LastAccess   time.Time
	Stale        bool
}

// Cache holds every cached PPR entry and the entity_id -> cache_key
// dependency index used for targeted invalidation.
type Cache struct {
	mu           sync.RWMutex
	entries      map[string]*Entry
	dependencies map[string]map[string]bool // entity id -> set of cache keys
	graphVersion uint64

	ttlRecent time.Duration
	ttlWarm   time.Duration
	ttlCold   time.Duration

	metrics internalMetrics

	accessMu  sync.Mutex
	accessLog map[string][]time.Time // entity id -> recent access timestamps
}

// New builds a PPR Cache with the tiered TTLs spec.md §4.H names as
// defaults (24h/72h/168h), overridable via internal/config.CacheConfig.
func New(ttlRecent, ttlWarm, ttlCold time.Duration) *Cache {
	return &Cache{
		entries:      make(map[string]*Entry),
		dependencies: make(map[string]map[string]bool),
		accessLog:    make(map[string][]time.Time),
		ttlRecent:    ttlRecent,
		ttlWarm:      ttlWarm,
		ttlCold:      ttlCold,
	}
}

// BuildKey constructs spec.md §4.H's cache key: ppr:{vault_id}:
// {entity_type}:{entity_id}:{depth}.
func BuildKey(vaultID, entityType, entityID string, depth int) string {
	return "ppr:" + vaultID + ":" + entityType + ":" + entityID + ":" + itoa(depth)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// tierTTL picks the TTL tier by how recently entry was last accessed,
// relative to now, per spec.md §4.H's 24h/72h/168h bands.
func (c *Cache) tierTTL(lastAccess, now time.Time) time.Duration {
	age := now.Sub(lastAccess)
	switch {
	case age <= 24*time.Hour:
		return c.ttlRecent
	case age <= 72*time.Hour:
		return c.ttlWarm
	default:
		return c.ttlCold
	}
}

// ttlExpired reports whether entry has aged past its access-recency-
// tiered TTL, measured from when it was last (re)computed.
func (c *Cache) ttlExpired(e *Entry, now time.Time) bool {
	return now.Sub(e.WrittenAt) > c.tierTTL(e.LastAccess, now)
}

// Lookup implements ppr_with_cache (spec.md §4.H): read the entry; if
// absent, stale, or TTL-expired, compute live via compute, write back
// best-effort, and return the live result. Otherwise bump last_access
// and return the cached value. dependsOn is the set of entity ids this
// computation's correctness depends on, recorded in the dependency
// index so invalidate_for_entity can target this key later.
func (c *Cache) Lookup(key string, dependsOn []string, now time.Time, compute func() ([]ppr.Result, error)) (results []ppr.Result, cached bool, err error) {
	lookupStart := time.Now()
	defer func() { c.metrics.cacheLookupMs.Observe(msSince(lookupStart)) }()
	c.recordAccess(dependsOn, now)

	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && !entry.Stale && !c.ttlExpired(entry, now) {
		entry.LastAccess = now
		results = append([]ppr.Result(nil), entry.Results...)
		c.mu.Unlock()
		atomic.AddUint64(&c.metrics.hits, 1)
		return results, true, nil
	}
	wasStale := ok && entry.Stale
	c.mu.Unlock()

	if wasStale {
		atomic.AddUint64(&c.metrics.staleHits, 1)
	} else {
		atomic.AddUint64(&c.metrics.misses, 1)
	}

	liveStart := time.Now()
	live, err := compute()
	c.metrics.liveLatencyMs.Observe(msSince(liveStart))
	if err != nil {
		return nil, false, err
	}

	c.put(key, live, dependsOn, now)
	return live, false, nil
}

func (c *Cache) put(key string, results []ppr.Result, dependsOn []string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &Entry{
		Results:      results,
		GraphVersion: c.graphVersion,
		WrittenAt:    now,
		LastAccess:   now,
		Stale:        false,
	}
	for _, entityID := range dependsOn {
		set, ok := c.dependencies[entityID]
		if !ok {
			set = make(map[string]bool)
			c.dependencies[entityID] = set
		}
		set[key] = true
	}
}

// MarkStale sets stale=true on a single key.
func (c *Cache) MarkStale(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.Stale = true
	}
}

// InvalidateForEntity marks every cache key depending on entityID
// stale, a targeted invalidation rather than a full flush (spec.md
// §4.H).
func (c *Cache) InvalidateForEntity(entityID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.dependencies[entityID] {
		if e, ok := c.entries[key]; ok {
			e.Stale = true
		}
	}
}

// BumpGraphVersion increments the graph version every mutation
// advances, recorded on each newly written entry.
func (c *Cache) BumpGraphVersion() uint64 {
	return atomic.AddUint64(&c.graphVersion, 1)
}

// Metrics returns a snapshot of the cache's counters and latency
// histograms (spec.md §4.H).
func (c *Cache) Metrics() MetricsSnapshot {
	liveCount, liveAvg := c.metrics.liveLatencyMs.Snapshot()
	lookupCount, lookupAvg := c.metrics.cacheLookupMs.Snapshot()
	return MetricsSnapshot{
		Hits:             atomic.LoadUint64(&c.metrics.hits),
		Misses:           atomic.LoadUint64(&c.metrics.misses),
		StaleHits:        atomic.LoadUint64(&c.metrics.staleHits),
		WarmupComputed:   atomic.LoadUint64(&c.metrics.warmupComputed),
		LiveLatencyCount: liveCount,
		LiveLatencyAvgMs: liveAvg,
		CacheLookupCount: lookupCount,
		CacheLookupAvgMs: lookupAvg,
	}
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

// recordAccess logs now against every entity a lookup depended on, the
// raw material for the warmup job's recency-weighted scoring.
func (c *Cache) recordAccess(entityIDs []string, now time.Time) {
	if len(entityIDs) == 0 {
		return
	}
	c.accessMu.Lock()
	defer c.accessMu.Unlock()
	for _, id := range entityIDs {
		c.accessLog[id] = append(c.accessLog[id], now)
	}
}

// TopEntities scores every entity by its access count within window of
// now (spec.md §4.H's default warmup scoring), prunes timestamps older
// than window, and returns up to n ids, most-accessed first.
func (c *Cache) TopEntities(n int, window time.Duration, now time.Time) []string {
	c.accessMu.Lock()
	defer c.accessMu.Unlock()

	type scored struct {
		id    string
		score int
	}
	var candidates []scored
	for id, accesses := range c.accessLog {
		kept := accesses[:0]
		for _, t := range accesses {
			if now.Sub(t) <= window {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			delete(c.accessLog, id)
			continue
		}
		c.accessLog[id] = kept
		candidates = append(candidates, scored{id: id, score: len(kept)})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].id < candidates[j].id
	})

	if n > 0 && len(candidates) > n {
		candidates = candidates[:n]
	}
	ids := make([]string, len(candidates))
	for i, cand := range candidates {
		ids[i] = cand.id
	}
	return ids
}

// WarmupTarget is one entity's cache key, dependency set, and live
// compute function, resolved by the caller (the query runtime owns the
// mapping from entity id to a concrete ppr() invocation).
type WarmupTarget struct {
	Key       string
	DependsOn []string
	Compute   func() ([]ppr.Result, error)
}

// Warmup runs spec.md §4.H's warmup job: selects the topN entities by
// recency-weighted access score, computes live PPR for each via
// targetFor, and populates the cache, stopping once budget elapses or
// ctx is cancelled. Entities for which targetFor returns ok=false are
// skipped. Returns the number of entries computed.
func (c *Cache) Warmup(ctx context.Context, now time.Time, budget time.Duration, topN int, recencyWindow time.Duration, targetFor func(entityID string) (target WarmupTarget, ok bool)) (int, error) {
	deadline := time.Now().Add(budget)
	computed := 0
	for _, id := range c.TopEntities(topN, recencyWindow, now) {
		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return computed, ctx.Err()
		default:
		}

		target, ok := targetFor(id)
		if !ok || target.Compute == nil {
			continue
		}
		results, err := target.Compute()
		if err != nil {
			continue
		}
		c.put(target.Key, results, target.DependsOn, time.Now())
		atomic.AddUint64(&c.metrics.warmupComputed, 1)
		computed++
	}
	return computed, nil
}

// staleOrExpiredKeys lists every cache key currently stale or past its
// tiered TTL, as of now.
func (c *Cache) staleOrExpiredKeys(now time.Time) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var keys []string
	for key, e := range c.entries {
		if e.Stale || c.ttlExpired(e, now) {
			keys = append(keys, key)
		}
	}
	return keys
}

// RefreshStaleAndExpired implements spec.md §4.H's second warmup pass:
// recompute every stale or TTL-expired entry, bounded by budget. keyTarget
// resolves a cache key back to its dependency set and compute function;
// keys for which it returns ok=false are left as-is. Returns the number
// of entries refreshed.
func (c *Cache) RefreshStaleAndExpired(ctx context.Context, now time.Time, budget time.Duration, keyTarget func(key string) (target WarmupTarget, ok bool)) (int, error) {
	deadline := time.Now().Add(budget)
	refreshed := 0
	for _, key := range c.staleOrExpiredKeys(now) {
		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return refreshed, ctx.Err()
		default:
		}

		target, ok := keyTarget(key)
		if !ok || target.Compute == nil {
			continue
		}
		results, err := target.Compute()
		if err != nil {
			continue
		}
		c.put(key, results, target.DependsOn, time.Now())
		atomic.AddUint64(&c.metrics.warmupComputed, 1)
		refreshed++
	}
	return refreshed, nil
}
