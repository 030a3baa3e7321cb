package ppr

import (
	"sync/atomic"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/oneiron-dev/oneiron-helix/internal/codec"
	"github.com/oneiron-dev/oneiron-helix/internal/graph"
)

// adjacencyKey identifies one node's cached AllNeighbors result in a
// given direction.
type adjacencyKey struct {
	id  codec.ID
	dir graph.Direction
}

// AdjacencyCache fronts repeated Storage Kernel reads of a node's full
// (untyped, unfiltered) adjacency list across separate Run calls —
// distinct from expand's per-call cache map, which only deduplicates
// lookups *within* one Run's frontier iteration. Hub nodes revisited by
// many ppr() calls (the same small set of seeds/universe members
// queried repeatedly) are the intended beneficiary; cold nodes simply
// miss and fall back to a normal Storage Kernel read.
//
// Entries are only valid for one graph.Store version: syncVersion
// wipes the whole cache the moment it observes a version other than
// the one it last saw, so an AddEdge/DropEdge between two Run calls
// cannot leave a stale adjacency list behind for PPR to score against
// (spec.md §4.H/§3 invariant 7 require a miss to fall through to a
// live, correct read).
//
// Built on ristretto, badger's own dependency, reused directly rather
// than adding a second caching library for one hot-path lookup table.
type AdjacencyCache struct {
	c       *ristretto.Cache[adjacencyKey, []graph.HashedNeighbor]
	version uint64
}

// NewAdjacencyCache builds an AdjacencyCache sized for maxCost cost
// units, where each cached list is charged len(neighbors)+1 units.
func NewAdjacencyCache(maxCost int64) (*AdjacencyCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[adjacencyKey, []graph.HashedNeighbor]{
		NumCounters: maxCost * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &AdjacencyCache{c: c}, nil
}

// syncVersion compares storeVersion against the version this cache was
// last synced to, clearing every entry on a mismatch. Called once at
// the top of each Run so a stale cache never serves a result computed
// before the most recent AddEdge/DropEdge.
func (ac *AdjacencyCache) syncVersion(storeVersion uint64) {
	if ac == nil {
		return
	}
	if atomic.SwapUint64(&ac.version, storeVersion) != storeVersion {
		ac.c.Clear()
	}
}

func (ac *AdjacencyCache) get(id codec.ID, dir graph.Direction) ([]graph.HashedNeighbor, bool) {
	if ac == nil {
		return nil, false
	}
	return ac.c.Get(adjacencyKey{id: id, dir: dir})
}

func (ac *AdjacencyCache) set(id codec.ID, dir graph.Direction, neighbors []graph.HashedNeighbor) {
	if ac == nil {
		return
	}
	ac.c.Set(adjacencyKey{id: id, dir: dir}, neighbors, int64(len(neighbors))+1)
}

// Close releases the cache's background goroutines.
func (ac *AdjacencyCache) Close() {
	if ac != nil {
		ac.c.Close()
	}
}
