// Package graphio implements bulk export/import of the Graph Store as
// JSON (SPEC_FULL.md §3, supplemented: spec.md's distilled scope omits
// an export/import surface, but the reference codebase carries one and
// every complete graph engine needs a migration path in and out).
//
// Grounded on the reference codebase's pkg/storage/types.go
// ToNeo4jExport/FromNeo4jExport, adapted from Neo4j's dump format to
// this engine's own node/edge shape (the codec's label_header holds
// only a one-way label hash, so the export carries the label string
// directly, as read back from the reserved __label property).
package graphio

import (
	"encoding/json"
	"io"

	"github.com/oneiron-dev/oneiron-helix/helixerr"
	"github.com/oneiron-dev/oneiron-helix/internal/codec"
	"github.com/oneiron-dev/oneiron-helix/internal/graph"
	"github.com/oneiron-dev/oneiron-helix/internal/kvstore"
)

// ExportedNode is one node's portable JSON representation.
type ExportedNode struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties,omitempty"`
}

// ExportedEdge is one edge's portable JSON representation.
type ExportedEdge struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	From       string         `json:"from"`
	To         string         `json:"to"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Export is a full graph snapshot, the unit ExportJSON/ImportJSON
// exchange.
type Export struct {
	Nodes []ExportedNode `json:"nodes"`
	Edges []ExportedEdge `json:"edges"`
}

// ExportJSON walks every node and edge in the store and returns a
// portable snapshot. ids are encoded as hex strings (codec.ID.String)
// rather than the allocator's internal 128-bit form, since an import
// into a different store will assign fresh ids anyway.
func ExportJSON(tx *kvstore.Tx, store *graph.Store) (*Export, error) {
	var export Export

	err := tx.IteratePrefix(kvstore.TableNodes, nil, func(key, _ []byte) error {
		id := codec.IDFromBytes(key)
		node, err := store.GetNode(tx, id)
		if err != nil {
			return err
		}
		export.Nodes = append(export.Nodes, ExportedNode{
			ID: node.ID.String(), Label: node.Label, Properties: node.Properties,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = tx.IteratePrefix(kvstore.TableEdges, nil, func(key, _ []byte) error {
		id := codec.IDFromBytes(key)
		edge, err := store.GetEdge(tx, id)
		if err != nil {
			return err
		}
		export.Edges = append(export.Edges, ExportedEdge{
			ID: edge.ID.String(), Type: edge.Label,
			From: edge.From.String(), To: edge.To.String(),
			Properties: edge.Properties,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &export, nil
}

// WriteJSON serializes an export as indented JSON.
func WriteJSON(w io.Writer, export *Export) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(export)
}

// ReadJSON parses a previously exported snapshot.
func ReadJSON(r io.Reader) (*Export, error) {
	var export Export
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return nil, helixerr.Wrap(helixerr.KindInvalidArgument, "decode graph export", err)
	}
	return &export, nil
}

// ImportJSON recreates every node and edge in export against store,
// assigning fresh ids (the source ids are opaque strings that may
// collide with this store's own allocator). Returns the mapping from
// each exported node id to the id it was assigned, so callers can
// stitch additional references (e.g. vector records sharing a node id)
// after import.
func ImportJSON(tx *kvstore.Tx, store *graph.Store, export *Export) (map[string]codec.ID, error) {
	idMap := make(map[string]codec.ID, len(export.Nodes))

	for _, n := range export.Nodes {
		newID, err := store.AddNode(tx, n.Label, n.Properties)
		if err != nil {
			return nil, err
		}
		idMap[n.ID] = newID
	}

	for _, e := range export.Edges {
		from, ok := idMap[e.From]
		if !ok {
			return nil, helixerr.New(helixerr.KindMissingEndpoint, "import: unknown start node "+e.From)
		}
		to, ok := idMap[e.To]
		if !ok {
			return nil, helixerr.New(helixerr.KindMissingEndpoint, "import: unknown end node "+e.To)
		}
		if _, err := store.AddEdge(tx, e.Type, from, to, e.Properties); err != nil {
			return nil, err
		}
	}

	return idMap, nil
}
