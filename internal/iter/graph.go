package iter

import (
	"github.com/oneiron-dev/oneiron-helix/internal/codec"
	"github.com/oneiron-dev/oneiron-helix/internal/graph"
	"github.com/oneiron-dev/oneiron-helix/internal/kvstore"
)

// Out expands a stream of node ids into every label-typed out-neighbor
// id, one label's worth of adjacency per source id (spec.md §4.I's
// "out" adapter). Built on FlatMap since one source id can fan out to
// many edges.
func Out(tx *kvstore.Tx, store *graph.Store, label string) func(*Iterator[codec.ID]) *Iterator[codec.ID] {
	return func(src *Iterator[codec.ID]) *Iterator[codec.ID] {
		return FlatMap(src, func(id codec.ID) ([]codec.ID, error) {
			refs, err := store.Neighbors(tx, id, graph.Out, label)
			if err != nil {
				return nil, err
			}
			ids := make([]codec.ID, len(refs))
			for i, r := range refs {
				ids[i] = r.OtherID
			}
			return ids, nil
		})
	}
}

// In is Out's mirror over in_edges (spec.md §4.I's "in" adapter).
func In(tx *kvstore.Tx, store *graph.Store, label string) func(*Iterator[codec.ID]) *Iterator[codec.ID] {
	return func(src *Iterator[codec.ID]) *Iterator[codec.ID] {
		return FlatMap(src, func(id codec.ID) ([]codec.ID, error) {
			refs, err := store.Neighbors(tx, id, graph.In, label)
			if err != nil {
				return nil, err
			}
			ids := make([]codec.ID, len(refs))
			for i, r := range refs {
				ids[i] = r.OtherID
			}
			return ids, nil
		})
	}
}

// OutEdge expands a stream of node ids into the full out-edges
// connecting them under label, fetching and decoding each edge (spec.md
// §4.I's "out_edge" adapter) rather than just the neighbor id.
func OutEdge(tx *kvstore.Tx, store *graph.Store, label string) func(*Iterator[codec.ID]) *Iterator[*graph.Edge] {
	return func(src *Iterator[codec.ID]) *Iterator[*graph.Edge] {
		return FlatMap(src, func(id codec.ID) ([]*graph.Edge, error) {
			refs, err := store.Neighbors(tx, id, graph.Out, label)
			if err != nil {
				return nil, err
			}
			edges := make([]*graph.Edge, 0, len(refs))
			for _, r := range refs {
				e, err := store.GetEdge(tx, r.EdgeID)
				if err != nil {
					return nil, err
				}
				edges = append(edges, e)
			}
			return edges, nil
		})
	}
}

// InEdge is OutEdge's mirror over in_edges (spec.md §4.I's "in_edge"
// adapter).
func InEdge(tx *kvstore.Tx, store *graph.Store, label string) func(*Iterator[codec.ID]) *Iterator[*graph.Edge] {
	return func(src *Iterator[codec.ID]) *Iterator[*graph.Edge] {
		return FlatMap(src, func(id codec.ID) ([]*graph.Edge, error) {
			refs, err := store.Neighbors(tx, id, graph.In, label)
			if err != nil {
				return nil, err
			}
			edges := make([]*graph.Edge, 0, len(refs))
			for _, r := range refs {
				e, err := store.GetEdge(tx, r.EdgeID)
				if err != nil {
					return nil, err
				}
				edges = append(edges, e)
			}
			return edges, nil
		})
	}
}

// Nodes resolves a stream of ids into their full node records, the
// usual terminal map stage before handing results to the caller.
func Nodes(tx *kvstore.Tx, store *graph.Store) func(*Iterator[codec.ID]) *Iterator[*graph.Node] {
	return func(src *Iterator[codec.ID]) *Iterator[*graph.Node] {
		return Map(src, func(id codec.ID) (*graph.Node, error) {
			return store.GetNode(tx, id)
		})
	}
}
