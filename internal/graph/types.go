// Package graph implements the Graph Store (spec.md §4.C): node and edge
// CRUD, bidirectional adjacency maintenance, and label-indexed neighbor
// lookup, over the Storage Kernel in internal/kvstore.
package graph

import (
	"time"

	"github.com/oneiron-dev/oneiron-helix/internal/codec"
)

// Node is a labeled property-graph vertex (spec.md §3).
type Node struct {
	ID         codec.ID
	Label      string
	Properties map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Edge is a labeled, directed property-graph relationship (spec.md §3).
type Edge struct {
	ID         codec.ID
	Label      string
	From       codec.ID
	To         codec.ID
	Properties map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Direction selects which adjacency table Neighbors reads from.
type Direction int

const (
	Out Direction = iota
	In
)

// NeighborRef is one result row from Neighbors: the connecting edge and
// the node at the other end.
type NeighborRef struct {
	EdgeID  codec.ID
	OtherID codec.ID
}
