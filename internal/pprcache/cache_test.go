package pprcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oneiron-dev/oneiron-helix/internal/ppr"
)

func newTestCache() *Cache {
	return New(24*time.Hour, 72*time.Hour, 168*time.Hour)
}

func TestLookupComputesOnMissAndHitsThereafter(t *testing.T) {
	c := newTestCache()
	now := time.Now()

	calls := 0
	compute := func() ([]ppr.Result, error) {
		calls++
		return []ppr.Result{{Score: 0.5}}, nil
	}

	results, cached, err := c.Lookup("k1", []string{"e1"}, now, compute)
	require.NoError(t, err)
	require.False(t, cached)
	require.Len(t, results, 1)
	require.Equal(t, 1, calls)

	results, cached, err = c.Lookup("k1", []string{"e1"}, now.Add(time.Minute), compute)
	require.NoError(t, err)
	require.True(t, cached)
	require.Len(t, results, 1)
	require.Equal(t, 1, calls, "second lookup must not recompute")

	m := c.Metrics()
	require.EqualValues(t, 1, m.Hits)
	require.EqualValues(t, 1, m.Misses)
}

// TestInvalidateForEntityTriggersRecompute reproduces spec.md §8 scenario
// S6: populate the cache for an entity, invalidate it by dependency,
// and confirm the next lookup recomputes rather than returning stale
// data, with the metrics reflecting one miss and one stale hit.
func TestInvalidateForEntityTriggersRecompute(t *testing.T) {
	c := newTestCache()
	now := time.Now()

	calls := 0
	compute := func() ([]ppr.Result, error) {
		calls++
		return []ppr.Result{{Score: float64(calls)}}, nil
	}

	key := BuildKey("vault1", "Node", "E", 2)
	results, cached, err := c.Lookup(key, []string{"E"}, now, compute)
	require.NoError(t, err)
	require.False(t, cached)
	require.Equal(t, 1.0, results[0].Score)

	c.InvalidateForEntity("E")

	results, cached, err = c.Lookup(key, []string{"E"}, now.Add(time.Minute), compute)
	require.NoError(t, err)
	require.False(t, cached, "a stale entry must not be served as a hit")
	require.Equal(t, 2.0, results[0].Score, "invalidated entry must recompute, not return the old value")
	require.Equal(t, 2, calls)

	results, cached, err = c.Lookup(key, []string{"E"}, now.Add(2*time.Minute), compute)
	require.NoError(t, err)
	require.True(t, cached)
	require.Equal(t, 2.0, results[0].Score)
	require.Equal(t, 2, calls, "the recomputed entry must now be served from cache")

	m := c.Metrics()
	require.EqualValues(t, 1, m.Misses)
	require.EqualValues(t, 1, m.StaleHits)
}

func TestMarkStaleForcesSingleKeyRecompute(t *testing.T) {
	c := newTestCache()
	now := time.Now()

	compute := func() ([]ppr.Result, error) { return []ppr.Result{{Score: 1}}, nil }
	_, _, err := c.Lookup("k1", nil, now, compute)
	require.NoError(t, err)

	c.MarkStale("k1")

	_, cached, err := c.Lookup("k1", nil, now, compute)
	require.NoError(t, err)
	require.False(t, cached)
}

func TestTieredTTLExpiresWhenWriteAgeExceedsItsTierWindow(t *testing.T) {
	// A short "recent" tier TTL isolates TTL expiry from staleness:
	// the entry is still within the 24h access-recency band (so it
	// stays bucketed in the ttlRecent tier), but its write age already
	// exceeds that tier's TTL window.
	c := New(time.Millisecond, time.Hour, 2*time.Hour)
	base := time.Now()

	calls := 0
	compute := func() ([]ppr.Result, error) {
		calls++
		return []ppr.Result{{Score: 1}}, nil
	}

	_, _, err := c.Lookup("k1", nil, base, compute)
	require.NoError(t, err)

	_, cached, err := c.Lookup("k1", nil, base.Add(2*time.Millisecond), compute)
	require.NoError(t, err)
	require.False(t, cached)
	require.Equal(t, 2, calls)
}

func TestLookupPropagatesComputeError(t *testing.T) {
	c := newTestCache()
	wantErr := errors.New("boom")
	_, cached, err := c.Lookup("k1", nil, time.Now(), func() ([]ppr.Result, error) {
		return nil, wantErr
	})
	require.ErrorIs(t, err, wantErr)
	require.False(t, cached)
}

func TestTopEntitiesRanksByAccessCountWithinWindow(t *testing.T) {
	c := newTestCache()
	now := time.Now()
	compute := func() ([]ppr.Result, error) { return []ppr.Result{{Score: 1}}, nil }

	// "hot" is looked up 3 times, "cold" once, all within the window.
	_, _, _ = c.Lookup("k-hot-1", []string{"hot"}, now, compute)
	_, _, _ = c.Lookup("k-hot-2", []string{"hot"}, now, compute)
	_, _, _ = c.Lookup("k-hot-3", []string{"hot"}, now, compute)
	_, _, _ = c.Lookup("k-cold", []string{"cold"}, now, compute)

	top := c.TopEntities(1, 24*time.Hour, now)
	require.Equal(t, []string{"hot"}, top)
}

func TestTopEntitiesPrunesAccessesOutsideWindow(t *testing.T) {
	c := newTestCache()
	compute := func() ([]ppr.Result, error) { return []ppr.Result{{Score: 1}}, nil }

	base := time.Now()
	_, _, _ = c.Lookup("k1", []string{"old"}, base, compute)

	top := c.TopEntities(10, time.Hour, base.Add(2*time.Hour))
	require.Empty(t, top)
}

func TestWarmupComputesTopEntitiesAndIncrementsMetric(t *testing.T) {
	c := newTestCache()
	now := time.Now()
	readCompute := func() ([]ppr.Result, error) { return []ppr.Result{{Score: 1}}, nil }

	_, _, _ = c.Lookup("existing-key", []string{"E1"}, now, readCompute)

	target := WarmupTarget{
		Key:       BuildKey("vault1", "Node", "E1", 2),
		DependsOn: []string{"E1"},
		Compute:   func() ([]ppr.Result, error) { return []ppr.Result{{Score: 9}}, nil },
	}
	computed, err := c.Warmup(context.Background(), now, time.Second, 5, 24*time.Hour,
		func(entityID string) (WarmupTarget, bool) {
			if entityID != "E1" {
				return WarmupTarget{}, false
			}
			return target, true
		})
	require.NoError(t, err)
	require.Equal(t, 1, computed)

	results, cached, err := c.Lookup(target.Key, target.DependsOn, now, func() ([]ppr.Result, error) {
		t.Fatal("warmup should have already populated this key")
		return nil, nil
	})
	require.NoError(t, err)
	require.True(t, cached)
	require.Equal(t, 9.0, results[0].Score)

	m := c.Metrics()
	require.EqualValues(t, 1, m.WarmupComputed)
}

func TestRefreshStaleAndExpiredRecomputesOnlyFlaggedKeys(t *testing.T) {
	c := newTestCache()
	now := time.Now()

	_, _, err := c.Lookup("stale-key", []string{"E"}, now, func() ([]ppr.Result, error) {
		return []ppr.Result{{Score: 1}}, nil
	})
	require.NoError(t, err)
	_, _, err = c.Lookup("fresh-key", nil, now, func() ([]ppr.Result, error) {
		return []ppr.Result{{Score: 1}}, nil
	})
	require.NoError(t, err)

	c.MarkStale("stale-key")

	refreshedKeys := map[string]bool{}
	refreshed, err := c.RefreshStaleAndExpired(context.Background(), now, time.Second,
		func(key string) (WarmupTarget, bool) {
			refreshedKeys[key] = true
			return WarmupTarget{
				Key:       key,
				DependsOn: []string{"E"},
				Compute:   func() ([]ppr.Result, error) { return []ppr.Result{{Score: 42}}, nil },
			}, true
		})
	require.NoError(t, err)
	require.Equal(t, 1, refreshed)
	require.True(t, refreshedKeys["stale-key"])
	require.False(t, refreshedKeys["fresh-key"])
}

func TestBumpGraphVersionIsMonotonic(t *testing.T) {
	c := newTestCache()
	v1 := c.BumpGraphVersion()
	v2 := c.BumpGraphVersion()
	require.Greater(t, v2, v1)
}
