// Package vectorindex implements the Vector Index (spec.md §4.D): an
// HNSW graph with label tagging, deletion tombstones, and an optional
// pre-scoring filter/trickle predicate, adapted from the reference
// codebase's pkg/search/hnsw_index.go.
package vectorindex

import (
	"container/heap"
	"math"
	"math/rand"
	"sync"

	"github.com/oneiron-dev/oneiron-helix/helixerr"
	"github.com/oneiron-dev/oneiron-helix/internal/codec"
	vecmath "github.com/oneiron-dev/oneiron-helix/internal/math/vector"
)

// Config holds HNSW construction/search tuning (spec.md §4.D).
type Config struct {
	M               int
	EfConstruction  int
	EfSearch        int
	LevelMultiplier float64
}

// DefaultConfig mirrors the reference codebase's DefaultHNSWConfig.
func DefaultConfig() Config {
	return Config{
		M:               16,
		EfConstruction:  200,
		EfSearch:        100,
		LevelMultiplier: 1.0 / math.Log(16),
	}
}

type hnswNode struct {
	id        codec.ID
	label     string
	vector    []float32
	level     int
	neighbors [][]codec.ID // neighbors[layer] = neighbor ids at that layer
	deleted   bool
}

// Index is the in-memory HNSW graph. Durable persistence of the
// underlying vectors and their neighbor lists is handled by Flush and
// Load in persist.go, against kvstore's vector_meta/vector_hnsw tables.
type Index struct {
	cfg        Config
	dimensions int

	mu         sync.RWMutex
	nodes      map[codec.ID]*hnswNode
	entryPoint codec.ID
	hasEntry   bool
	maxLevel   int
}

// New builds an empty HNSW index for vectors of the given dimensionality.
func New(cfg Config, dimensions int) *Index {
	return &Index{cfg: cfg, nodes: make(map[codec.ID]*hnswNode), dimensions: dimensions}
}

// Size returns the number of live (non-tombstoned) vectors.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	n := 0
	for _, node := range idx.nodes {
		if !node.deleted {
			n++
		}
	}
	return n
}

// Add inserts or replaces a vector under id with the given label.
func (idx *Index) Add(id codec.ID, label string, vector []float32) error {
	if len(vector) == 0 {
		return helixerr.New(helixerr.KindInvalidArgument, "embedding must not be empty")
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	level := idx.randomLevel()
	node := &hnswNode{
		id:        id,
		label:     label,
		vector:    vector,
		level:     level,
		neighbors: make([][]codec.ID, level+1),
	}

	if len(idx.nodes) == 0 {
		idx.nodes[id] = node
		idx.entryPoint = id
		idx.hasEntry = true
		idx.maxLevel = level
		return nil
	}

	entry := idx.entryPoint
	entryLevel := idx.maxLevel

	// Greedy descent from the top down to level+1, ef=1.
	for l := entryLevel; l > level; l-- {
		entry = idx.searchLayerSingle(node.vector, entry, l)
	}

	// At each layer from min(level, entryLevel) down to 0, find
	// candidates and connect bidirectionally.
	for l := min(level, entryLevel); l >= 0; l-- {
		candidates := idx.searchLayer(node.vector, entry, idx.cfg.EfConstruction, l, nil, false)
		selected := idx.selectNeighbors(candidates, idx.cfg.M)
		node.neighbors[l] = selected

		for _, nb := range selected {
			nbNode, ok := idx.nodes[nb]
			if !ok {
				continue
			}
			for len(nbNode.neighbors) <= l {
				nbNode.neighbors = append(nbNode.neighbors, nil)
			}
			nbNode.neighbors[l] = append(nbNode.neighbors[l], id)
			if len(nbNode.neighbors[l]) > idx.cfg.M*2 {
				nbNode.neighbors[l] = idx.selectNeighbors(nbNode.neighbors[l], idx.cfg.M)
			}
		}
		if len(candidates) > 0 {
			entry = candidates[0]
		}
	}

	idx.nodes[id] = node
	if level > idx.maxLevel {
		idx.maxLevel = level
		idx.entryPoint = id
	}
	return nil
}

// Remove tombstones id. Spec.md §3 invariant 3: a deleted vector stays
// deleted until an offline purge; Remove never physically frees it.
func (idx *Index) Remove(id codec.ID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if node, ok := idx.nodes[id]; ok {
		node.deleted = true
	}
}

// Purge physically removes every tombstoned vector. Offline-only, per
// spec.md §3.
func (idx *Index) Purge() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for id, node := range idx.nodes {
		if node.deleted {
			delete(idx.nodes, id)
		}
	}
	if node, ok := idx.nodes[idx.entryPoint]; !ok || node.deleted {
		idx.reselectEntryPoint()
	}
}

func (idx *Index) reselectEntryPoint() {
	idx.hasEntry = false
	idx.maxLevel = 0
	best := -1
	for id, node := range idx.nodes {
		if node.deleted {
			continue
		}
		if node.level > best {
			best = node.level
			idx.entryPoint = id
			idx.hasEntry = true
			idx.maxLevel = node.level
		}
	}
}

// SearchParams configures one Search call (spec.md §4.D).
type SearchParams struct {
	K       int
	Label   string // empty means no label filter
	Filter  func(codec.ID) bool
	Trickle bool
}

// Result is one scored hit.
type Result struct {
	ID       codec.ID
	Distance float64 // cosine distance, ascending = more similar
}

// Search performs the HNSW beam search described in spec.md §4.D.
func (idx *Index) Search(query []float32, p SearchParams) []Result {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.hasEntry || len(idx.nodes) == 0 {
		return nil
	}

	accept := func(id codec.ID) bool {
		node, ok := idx.nodes[id]
		if !ok || node.deleted {
			return false
		}
		if p.Label != "" && node.label != p.Label {
			return false
		}
		return true
	}

	entry := idx.entryPoint
	if !accept(entry) {
		entry = idx.firstAcceptable(accept)
		if entry == (codec.ID{}) {
			return nil
		}
	}

	for l := idx.maxLevel; l > 0; l-- {
		entry = idx.searchLayerSingleFiltered(query, entry, l, accept, p.Filter, p.Trickle)
	}

	ef := idx.cfg.EfSearch
	if p.K > ef {
		ef = p.K
	}
	var expandFilter func(codec.ID) bool
	if p.Trickle && p.Filter != nil {
		expandFilter = func(id codec.ID) bool { return accept(id) && p.Filter(id) }
	} else {
		expandFilter = accept
	}

	candidates := idx.searchLayerWithQuery(query, entry, ef, 0, expandFilter)

	results := make([]Result, 0, len(candidates))
	for _, id := range candidates {
		node := idx.nodes[id]
		if node == nil || node.deleted {
			continue
		}
		if p.Label != "" && node.label != p.Label {
			continue
		}
		if !p.Trickle && p.Filter != nil && !p.Filter(id) {
			continue
		}
		dist := vecmath.CosineDistance(query, node.vector)
		results = append(results, Result{ID: id, Distance: dist})
	}

	sortResultsAscending(results)
	if p.K > 0 && len(results) > p.K {
		results = results[:p.K]
	}
	return results
}

func (idx *Index) firstAcceptable(accept func(codec.ID) bool) codec.ID {
	for id := range idx.nodes {
		if accept(id) {
			return id
		}
	}
	return codec.ID{}
}

func sortResultsAscending(r []Result) {
	// simple insertion sort is fine: result sets are bounded by ef/k
	for i := 1; i < len(r); i++ {
		j := i
		for j > 0 && r[j-1].Distance > r[j].Distance {
			r[j-1], r[j] = r[j], r[j-1]
			j--
		}
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// randomLevel draws a level from the geometric distribution parameterized
// by LevelMultiplier, matching the reference codebase's randomLevel.
func (idx *Index) randomLevel() int {
	mL := idx.cfg.LevelMultiplier
	if mL <= 0 {
		mL = 1.0 / math.Log(16)
	}
	level := int(-math.Log(rand.Float64()) * mL)
	if level > 32 {
		level = 32
	}
	return level
}
