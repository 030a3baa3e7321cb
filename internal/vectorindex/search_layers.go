package vectorindex

import (
	"container/heap"
	"math"

	"github.com/oneiron-dev/oneiron-helix/internal/codec"
	vecmath "github.com/oneiron-dev/oneiron-helix/internal/math/vector"
)

// distItem is one entry in a distance-ordered heap.
type distItem struct {
	id   codec.ID
	dist float64
}

// distHeap is a binary heap over distItem. isMax selects max-heap
// (largest distance first, used to bound the result set's worst member)
// or min-heap (smallest distance first, used for the candidate frontier)
// — the same min/max duality the reference codebase's hnswDistHeap uses.
type distHeap struct {
	items []distItem
	isMax bool
}

func (h distHeap) Len() int { return len(h.items) }
func (h distHeap) Less(i, j int) bool {
	if h.isMax {
		return h.items[i].dist > h.items[j].dist
	}
	return h.items[i].dist < h.items[j].dist
}
func (h distHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *distHeap) Push(x any)   { h.items = append(h.items, x.(distItem)) }
func (h *distHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

func (idx *Index) dist(query []float32, id codec.ID) float64 {
	node, ok := idx.nodes[id]
	if !ok {
		return math.MaxFloat64
	}
	return vecmath.CosineDistance(query, node.vector)
}

// searchLayerSingle performs ef=1 greedy descent at layer l, used while
// walking down from the top layer to the insertion/search layer.
func (idx *Index) searchLayerSingle(query []float32, entry codec.ID, l int) codec.ID {
	current := entry
	currentDist := idx.dist(query, entry)
	improved := true
	for improved {
		improved = false
		node, ok := idx.nodes[current]
		if !ok || l >= len(node.neighbors) {
			break
		}
		for _, nb := range node.neighbors[l] {
			if nbNode, ok := idx.nodes[nb]; !ok || nbNode.deleted {
				continue
			}
			d := idx.dist(query, nb)
			if d < currentDist {
				current = nb
				currentDist = d
				improved = true
			}
		}
	}
	return current
}

// searchLayerSingleFiltered is searchLayerSingle honoring deletion
// tombstones, label acceptance, and (when trickle=true) the prefilter
// predicate during expansion (spec.md §4.D step 4).
func (idx *Index) searchLayerSingleFiltered(query []float32, entry codec.ID, l int, accept func(codec.ID) bool, filter func(codec.ID) bool, trickle bool) codec.ID {
	current := entry
	currentDist := idx.dist(query, entry)
	improved := true
	for improved {
		improved = false
		node, ok := idx.nodes[current]
		if !ok || l >= len(node.neighbors) {
			break
		}
		for _, nb := range node.neighbors[l] {
			if !accept(nb) {
				continue
			}
			if trickle && filter != nil && !filter(nb) {
				continue
			}
			d := idx.dist(query, nb)
			if d < currentDist {
				current = nb
				currentDist = d
				improved = true
			}
		}
	}
	return current
}

// searchLayer performs a bounded beam search at layer l starting from
// entry, returning up to ef candidate ids ordered by ascending distance.
// filter, when non-nil, is applied during expansion (trickle semantics);
// when nil, only tombstoned neighbors are skipped during expansion.
func (idx *Index) searchLayer(query []float32, entry codec.ID, ef int, l int, filter func(codec.ID) bool, _ bool) []codec.ID {
	return idx.searchLayerWithQuery(query, entry, ef, l, filter)
}

// searchLayerWithQuery is the shared beam-search core used by both
// construction (searchLayer) and query-time search (Search): a
// candidate min-heap drives expansion while a result max-heap bounds
// the kept set to ef entries, matching the reference codebase's
// hnswDistHeap-based beam search.
func (idx *Index) searchLayerWithQuery(query []float32, entry codec.ID, ef int, l int, accept func(codec.ID) bool) []codec.ID {
	visited := map[codec.ID]bool{entry: true}

	candidates := &distHeap{isMax: false}
	results := &distHeap{isMax: true}

	entryDist := idx.dist(query, entry)
	heap.Push(candidates, distItem{id: entry, dist: entryDist})
	if accept == nil || accept(entry) {
		heap.Push(results, distItem{id: entry, dist: entryDist})
	}

	for candidates.Len() > 0 {
		nearest := heap.Pop(candidates).(distItem)

		if results.Len() >= ef {
			worst := results.items[0]
			if nearest.dist > worst.dist {
				break
			}
		}

		node, ok := idx.nodes[nearest.id]
		if !ok || l >= len(node.neighbors) {
			continue
		}
		for _, nb := range node.neighbors[l] {
			if visited[nb] {
				continue
			}
			visited[nb] = true

			nbNode, ok := idx.nodes[nb]
			if !ok || nbNode.deleted {
				continue
			}
			if accept != nil && !accept(nb) {
				continue
			}

			d := idx.dist(query, nb)
			if results.Len() < ef {
				heap.Push(candidates, distItem{id: nb, dist: d})
				heap.Push(results, distItem{id: nb, dist: d})
			} else if d < results.items[0].dist {
				heap.Push(candidates, distItem{id: nb, dist: d})
				heap.Push(results, distItem{id: nb, dist: d})
				heap.Pop(results)
			}
		}
	}

	out := make([]codec.ID, results.Len())
	items := append([]distItem(nil), results.items...)
	// results is a max-heap; sort ascending for a well-ordered return.
	sortDistItemsAscending(items)
	for i, it := range items {
		out[i] = it.id
	}
	return out
}

func sortDistItemsAscending(items []distItem) {
	for i := 1; i < len(items); i++ {
		j := i
		for j > 0 && items[j-1].dist > items[j].dist {
			items[j-1], items[j] = items[j], items[j-1]
			j--
		}
	}
}

// selectNeighbors truncates a candidate list to its first m entries — the
// simple truncation the reference codebase's selectNeighbors uses, rather
// than the more elaborate diversity heuristic from the original HNSW
// paper. For Add's own candidates the list is ascending by distance, so
// the nearest m are kept; when Add prunes an existing neighbor's list,
// that list is in insertion order and the m oldest links are kept.
func (idx *Index) selectNeighbors(candidates []codec.ID, m int) []codec.ID {
	if len(candidates) <= m {
		return candidates
	}
	return candidates[:m]
}
