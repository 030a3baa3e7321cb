// Package helix wires the Storage Kernel, Graph Store, Vector Index,
// BM25 Index, Retrieval Pipeline, PPR Engine, PPR Cache, and Traversal
// Iterators into a single embeddable Engine, the top-level facade
// SPEC_FULL.md §4 names. A query runtime (or, for this module, the
// thin cmd/helix CLI) opens transactions against the Engine and
// composes the lower packages directly; Engine itself only owns
// construction, persistence round-trips, and the three top-level
// operators spec.md §4.F and §4.G name end to end.
package helix

import (
	"context"
	"time"

	"github.com/oneiron-dev/oneiron-helix/helixerr"
	"github.com/oneiron-dev/oneiron-helix/internal/codec"
	"github.com/oneiron-dev/oneiron-helix/internal/config"
	"github.com/oneiron-dev/oneiron-helix/internal/fulltext"
	"github.com/oneiron-dev/oneiron-helix/internal/graph"
	"github.com/oneiron-dev/oneiron-helix/internal/kvstore"
	"github.com/oneiron-dev/oneiron-helix/internal/ppr"
	"github.com/oneiron-dev/oneiron-helix/internal/pprcache"
	"github.com/oneiron-dev/oneiron-helix/internal/retrieval"
	"github.com/oneiron-dev/oneiron-helix/internal/vectorindex"
)

// Ptr returns a pointer to v, for populating PPRParams' optional
// fields (MaxDepth, Damping, Normalize) inline: helix.Ptr(0) distinguishes
// an explicit zero from "caller didn't set this".
func Ptr[T any](v T) *T { return &v }

// Engine is one open database: a Storage Kernel environment plus every
// index layered over it. The HNSW graph is rebuilt from the kvstore on
// Open and flushed back on Close. The PPR Cache is held only in memory:
// it starts empty on every Open and nothing is written to the ppr_cache
// table.
type Engine struct {
	cfg *config.Config

	env      *kvstore.Env
	store    *graph.Store
	vectors  *vectorindex.Index
	text     *fulltext.Index
	pipeline *retrieval.Pipeline
	pprEng   *ppr.Engine
	adjCache *ppr.AdjacencyCache
	cache    *pprcache.Cache
}

// Open builds an Engine from cfg: opens the Storage Kernel, then
// rebuilds the Vector Index from vector_meta/vector_hnsw (empty if
// this is a fresh store). dimensions fixes the embedding width for
// every vector this Engine will index.
func Open(cfg *config.Config, dimensions int) (*Engine, error) {
	env, err := kvstore.Open(kvstore.Options{
		DataDir:    cfg.Storage.DataDir,
		InMemory:   cfg.Storage.DataDir == "",
		SyncWrites: cfg.Storage.SyncWrites,
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:    cfg,
		env:    env,
		store:  graph.NewStore(uint64(time.Now().UnixNano()), nil),
		pprEng: nil,
		cache: pprcache.New(
			cfg.Cache.RecentTTL(),
			cfg.Cache.WarmTTL(),
			cfg.Cache.ColdTTL(),
		),
	}
	e.pprEng = ppr.New(e.store)
	if cfg.PPR.AdjacencyCacheSize > 0 {
		adj, err := ppr.NewAdjacencyCache(cfg.PPR.AdjacencyCacheSize)
		if err != nil {
			_ = env.Close()
			return nil, err
		}
		e.adjCache = adj
		e.pprEng = e.pprEng.WithAdjacencyCache(adj)
	}

	hnswCfg := vectorindex.Config{
		M:              cfg.HNSW.M,
		EfConstruction: cfg.HNSW.EfConstruction,
		EfSearch:       cfg.HNSW.EfSearch,
	}
	dflt := vectorindex.DefaultConfig()
	if hnswCfg.M <= 0 {
		hnswCfg.M = dflt.M
	}
	hnswCfg.LevelMultiplier = dflt.LevelMultiplier

	err = env.View(func(tx *kvstore.Tx) error {
		idx, err := vectorindex.Load(tx, hnswCfg, dimensions)
		if err != nil {
			return err
		}
		e.vectors = idx
		return nil
	})
	if err != nil {
		_ = env.Close()
		return nil, err
	}

	e.text = fulltext.New(cfg.BM25.K1, cfg.BM25.B)
	e.pipeline = retrieval.NewPipeline(e.vectors, e.text)

	return e, nil
}

// Close flushes the in-memory Vector Index back to the Storage Kernel
// and releases the environment. Safe to call once.
func (e *Engine) Close() error {
	e.adjCache.Close()
	err := e.env.Update(func(tx *kvstore.Tx) error {
		return e.vectors.Flush(tx)
	})
	if err != nil {
		_ = e.env.Close()
		return err
	}
	return e.env.Close()
}

// Store exposes the underlying Graph Store for node/edge CRUD, the
// operations spec.md §4.C names directly rather than wrapping here.
func (e *Engine) Store() *graph.Store { return e.store }

// Vectors exposes the underlying Vector Index.
func (e *Engine) Vectors() *vectorindex.Index { return e.vectors }

// Text exposes the underlying BM25 Index.
func (e *Engine) Text() *fulltext.Index { return e.text }

// Cache exposes the PPR Cache for callers that want direct access to
// Warmup/RefreshStaleAndExpired/Metrics.
func (e *Engine) Cache() *pprcache.Cache { return e.cache }

// View runs fn against a read-only snapshot of the Storage Kernel.
func (e *Engine) View(fn func(tx *kvstore.Tx) error) error { return e.env.View(fn) }

// Update runs fn inside a single write transaction against the
// Storage Kernel.
func (e *Engine) Update(fn func(tx *kvstore.Tx) error) error { return e.env.Update(fn) }

// LabelOf resolves a node id to its label by reading the Graph Store,
// the labelOf callback SearchBM25/SearchHybrid require for in-place
// label filtering (spec.md §4.E).
func (e *Engine) LabelOf(tx *kvstore.Tx, id codec.ID) (string, bool) {
	node, err := e.store.GetNode(tx, id)
	if err != nil {
		return "", false
	}
	return node.Label, true
}

// SearchV runs spec.md §4.F's SearchV operator.
func (e *Engine) SearchV(query []float32, k int, label string, prefilter retrieval.Prefilter) []vectorindex.Result {
	return e.pipeline.SearchV(query, k, label, prefilter)
}

// SearchBM25 runs spec.md §4.F's SearchBM25 operator, resolving
// labels through the Engine's own Graph Store.
func (e *Engine) SearchBM25(tx *kvstore.Tx, queryText string, k int, label string, prefilter retrieval.Prefilter) ([]fulltext.Hit, error) {
	return e.pipeline.SearchBM25(tx, queryText, k, label, prefilter, func(id codec.ID) (string, bool) {
		return e.LabelOf(tx, id)
	})
}

// SearchHybrid runs spec.md §4.F's SearchHybrid operator.
func (e *Engine) SearchHybrid(tx *kvstore.Tx, queryVec []float32, queryText string, k int, label string, prefilter retrieval.Prefilter) ([]retrieval.Fused, error) {
	return e.pipeline.SearchHybrid(tx, queryVec, queryText, k, label, prefilter, func(id codec.ID) (string, bool) {
		return e.LabelOf(tx, id)
	})
}

// PPRParams is one PPR call's caller-supplied tuning. A nil pointer
// field means "use the Engine's PPRConfig default"; a non-nil pointer
// is validated and passed through as-is, including an explicit zero
// (MaxDepth: helix.Ptr(0) is spec.md §4.G's "normalized seed
// distribution, no propagation" boundary, not "unset").
type PPRParams struct {
	MaxDepth        *int
	Damping         *float64
	Limit           int
	Normalize       *bool // nil means "use config default"
	WeightOverrides map[string]float64
	Predicate       func(codec.ID) bool
}

func (e *Engine) resolvePPRConfig(p PPRParams) (ppr.Config, error) {
	cfg := ppr.Config{
		Limit:           p.Limit,
		Normalize:       e.cfg.PPR.NormalizeByDef,
		PartOfMaxHops:   e.cfg.PPR.PartOfMaxHops,
		WeightOverrides: p.WeightOverrides,
		Predicate:       p.Predicate,
	}

	if p.MaxDepth == nil {
		cfg.MaxDepth = e.cfg.PPR.DefaultMaxDepth
	} else if *p.MaxDepth < 0 {
		return ppr.Config{}, helixerr.New(helixerr.KindInvalidArgument, "ppr max_depth must not be negative")
	} else {
		cfg.MaxDepth = *p.MaxDepth
	}

	if p.Damping == nil {
		cfg.Damping = e.cfg.PPR.DefaultDamping
	} else if *p.Damping < 0 || *p.Damping > 1 {
		return ppr.Config{}, helixerr.New(helixerr.KindInvalidArgument, "ppr damping must be in [0, 1]")
	} else {
		cfg.Damping = *p.Damping
	}

	if cfg.Limit <= 0 {
		cfg.Limit = e.cfg.PPR.DefaultLimit
	}
	if p.Normalize != nil {
		cfg.Normalize = *p.Normalize
	}
	return cfg, nil
}

// PPR runs spec.md §4.G's ppr() operation directly against the live
// Graph Store, bypassing the PPR Cache. Use PPRCached for the warm
// path spec.md §4.H names.
func (e *Engine) PPR(ctx context.Context, tx *kvstore.Tx, seeds, universe []codec.ID, p PPRParams) ([]ppr.Result, error) {
	cfg, err := e.resolvePPRConfig(p)
	if err != nil {
		return nil, err
	}
	return e.pprEng.Run(ctx, tx, seeds, universe, cfg)
}

// PPRCached implements ppr_with_cache (spec.md §4.H): look up key in
// the PPR Cache first, computing live PPR against tx on a miss, stale
// hit, or TTL expiry. dependsOn should list every entity id this
// computation's correctness depends on (ordinarily: seeds ∪ universe,
// or a caller-narrowed subset), so InvalidateForEntity can target this
// key later.
func (e *Engine) PPRCached(ctx context.Context, tx *kvstore.Tx, key string, dependsOn []string, seeds, universe []codec.ID, p PPRParams) ([]ppr.Result, bool, error) {
	if !e.cfg.Cache.Enabled {
		results, err := e.PPR(ctx, tx, seeds, universe, p)
		return results, false, err
	}
	return e.cache.Lookup(key, dependsOn, time.Now(), func() ([]ppr.Result, error) {
		return e.PPR(ctx, tx, seeds, universe, p)
	})
}
