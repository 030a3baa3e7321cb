// Package ppr implements the PPR Engine (spec.md §4.G): a bounded-depth
// frontier propagation approximating personalized PageRank, chosen over
// full power iteration because small max_depth (2-3) keeps the
// approximation within tolerance at a fraction of the cost, and because
// per-edge-type weight overrides compose awkwardly with a materialized
// transition matrix (spec.md §9).
//
// Grounded on the reference codebase's pkg/linkpredict/topology.go for
// its graph-expansion-over-storage style (ids, not pointers; lazy
// degree computation), generalized from undirected topological scoring
// to spec.md's directed, typed, teleport-folded recurrence.
package ppr

import (
	"bytes"
	"context"
	"sort"

	"github.com/oneiron-dev/oneiron-helix/helixerr"
	"github.com/oneiron-dev/oneiron-helix/internal/codec"
	"github.com/oneiron-dev/oneiron-helix/internal/graph"
	"github.com/oneiron-dev/oneiron-helix/internal/kvstore"
)

// Config holds one ppr() call's tuning (spec.md §4.G).
type Config struct {
	MaxDepth        int
	Damping         float64
	Limit           int
	Normalize       bool
	PartOfMaxHops   int
	WeightOverrides map[string]float64
	// Predicate optionally rejects a node's mass at expansion time, for
	// universe-gating a filter cannot express purely as a universe set
	// membership (spec.md §4.G's claim-filter integration).
	Predicate func(codec.ID) bool
}

// Result is one scored id in a ppr() response.
type Result struct {
	ID    codec.ID
	Score float64
}

// Engine runs PPR over a Graph Store.
type Engine struct {
	store *graph.Store
	adj   *AdjacencyCache
}

// New builds a PPR Engine over the given Graph Store, with no
// cross-call adjacency caching.
func New(store *graph.Store) *Engine {
	return &Engine{store: store}
}

// WithAdjacencyCache attaches an AdjacencyCache so repeated expansion
// of the same hub nodes across separate Run calls skips the Storage
// Kernel read.
func (e *Engine) WithAdjacencyCache(ac *AdjacencyCache) *Engine {
	e.adj = ac
	return e
}

func (e *Engine) allNeighbors(tx *kvstore.Tx, u codec.ID, dir graph.Direction) ([]graph.HashedNeighbor, error) {
	if neighbors, ok := e.adj.get(u, dir); ok {
		return neighbors, nil
	}
	neighbors, err := e.store.AllNeighbors(tx, u, dir)
	if err != nil {
		return nil, err
	}
	e.adj.set(u, dir, neighbors)
	return neighbors, nil
}

type neighborEdge struct {
	otherID   codec.ID
	labelHash uint32
	weight    float64
}

type expansion struct {
	neighbors []neighborEdge
	degW      float64
}

// expand returns u's cached (or freshly computed) weighted, universe-
// filtered neighbor list and degree sum. It unions out_edges(u) and
// in_edges(u) (spec.md §4.G step 2b treats PPR as propagating across
// both edge directions) and excludes neighbors outside universe or
// whose type weight is <= 0 up front — the part_of hop cap is depth-
// dependent and is checked separately by the caller, not cached here.
func (e *Engine) expand(tx *kvstore.Tx, u codec.ID, universe map[codec.ID]bool, weights map[uint32]float64, cache map[codec.ID]expansion) (expansion, error) {
	if exp, ok := cache[u]; ok {
		return exp, nil
	}

	out, err := e.allNeighbors(tx, u, graph.Out)
	if err != nil {
		return expansion{}, err
	}
	in, err := e.allNeighbors(tx, u, graph.In)
	if err != nil {
		return expansion{}, err
	}

	var exp expansion
	for _, n := range append(out, in...) {
		w, ok := weights[n.LabelHash]
		if !ok || w <= 0 {
			continue
		}
		if !universe[n.OtherID] {
			continue
		}
		exp.neighbors = append(exp.neighbors, neighborEdge{otherID: n.OtherID, labelHash: n.LabelHash, weight: w})
		exp.degW += w
	}

	cache[u] = exp
	return exp, nil
}

// Run computes ppr(seeds, universe, ...) per spec.md §4.G.
func (e *Engine) Run(ctx context.Context, tx *kvstore.Tx, seeds, universe []codec.ID, cfg Config) ([]Result, error) {
	e.adj.syncVersion(e.store.Version())

	universeSet := make(map[codec.ID]bool, len(universe))
	for _, id := range universe {
		universeSet[id] = true
	}

	seedSet := make(map[codec.ID]bool)
	var survivors []codec.ID
	for _, s := range seeds {
		if universeSet[s] && !seedSet[s] {
			seedSet[s] = true
			survivors = append(survivors, s)
		}
	}
	if len(survivors) == 0 {
		return nil, nil
	}

	seedScore := 1.0 / float64(len(survivors))
	scores0 := make(map[codec.ID]float64, len(survivors))
	for _, s := range survivors {
		scores0[s] = seedScore
	}

	if cfg.MaxDepth <= 0 {
		return finalize(resultsFrom(scores0), true, cfg.Limit), nil
	}

	weights := weightsByHash(cfg.WeightOverrides)
	partOfCap := cfg.PartOfMaxHops
	if partOfCap <= 0 {
		partOfCap = 2
	}

	agg := make(map[codec.ID]float64)
	prev := scores0
	cache := make(map[codec.ID]expansion)

	for d := 1; d <= cfg.MaxDepth; d++ {
		if err := ctx.Err(); err != nil {
			return nil, helixerr.New(helixerr.KindCancelled, "ppr cancelled")
		}

		next := make(map[codec.ID]float64)
		for _, s := range survivors {
			next[s] += scores0[s] * (1 - cfg.Damping)
		}

		for u, mass := range prev {
			if cfg.Predicate != nil && !cfg.Predicate(u) {
				continue
			}
			exp, err := e.expand(tx, u, universeSet, weights, cache)
			if err != nil {
				return nil, helixerr.Wrap(helixerr.KindStorageFault, "ppr expand", err)
			}
			if exp.degW <= 0 {
				continue
			}
			for _, nb := range exp.neighbors {
				if nb.labelHash == partOfHash && d > partOfCap {
					continue
				}
				next[nb.otherID] += mass * cfg.Damping * nb.weight / exp.degW
			}
		}

		for id, s := range next {
			agg[id] += s
		}
		prev = next
	}

	return finalize(resultsFrom(agg), cfg.Normalize, cfg.Limit), nil
}

func resultsFrom(m map[codec.ID]float64) []Result {
	out := make([]Result, 0, len(m))
	for id, s := range m {
		if s <= 0 {
			continue
		}
		out = append(out, Result{ID: id, Score: s})
	}
	return out
}

func finalize(results []Result, normalize bool, limit int) []Result {
	if normalize {
		sum := 0.0
		for _, r := range results {
			sum += r.Score
		}
		if sum > 0 {
			for i := range results {
				results[i].Score /= sum
			}
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return bytes.Compare(results[i].ID.Bytes(), results[j].ID.Bytes()) < 0
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
