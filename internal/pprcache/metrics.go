package pprcache

import "sync"

// Histogram is a minimal count+sum accumulator — not a bucketed
// histogram, since no metrics library is grounded in the reference
// codebase (pkg/cache/query_cache.go tracks hits/misses with bare
// atomic counters and nothing else); this is the same style extended
// to a running mean for the two latency observables spec.md §4.H
// names.
type Histogram struct {
	mu    sync.Mutex
	count uint64
	sum   float64
}

// Observe records one sample in milliseconds.
func (h *Histogram) Observe(ms float64) {
	h.mu.Lock()
	h.count++
	h.sum += ms
	h.mu.Unlock()
}

// Snapshot returns the sample count and mean so far.
func (h *Histogram) Snapshot() (count uint64, meanMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 {
		return 0, 0
	}
	return h.count, h.sum / float64(h.count)
}

// internalMetrics holds the cache's live counters; never copied, only
// read through MetricsSnapshot.
type internalMetrics struct {
	hits           uint64
	misses         uint64
	staleHits      uint64
	warmupComputed uint64
	liveLatencyMs  Histogram
	cacheLookupMs  Histogram
}

// MetricsSnapshot is a point-in-time read of the cache's counters and
// latency histograms (spec.md §4.H: hits, misses, stale_hits,
// warmup_computed counters; live_latency_ms, cache_lookup_ms
// histograms).
type MetricsSnapshot struct {
	Hits           uint64
	Misses         uint64
	StaleHits      uint64
	WarmupComputed uint64

	LiveLatencyCount uint64
	LiveLatencyAvgMs float64

	CacheLookupCount uint64
	CacheLookupAvgMs float64
}
