package graph

import (
	"encoding/binary"
	"sync/atomic"
	"time"

	"github.com/oneiron-dev/oneiron-helix/helixerr"
	"github.com/oneiron-dev/oneiron-helix/internal/codec"
	"github.com/oneiron-dev/oneiron-helix/internal/kvstore"
)

// Store implements spec.md §4.C's Graph Store operations over a
// kvstore.Env. It holds no transaction state itself: every operation
// takes the *kvstore.Tx the caller is already inside, so Store methods
// compose freely within a larger write or read transaction.
type Store struct {
	alloc  *codec.IDAllocator
	schema *SchemaManager

	// version counts adjacency-changing mutations (AddEdge, DropEdge),
	// so callers that cache AllNeighbors results across transactions
	// (internal/ppr.AdjacencyCache) can detect staleness without
	// re-reading the Storage Kernel.
	version uint64
}

// NewStore builds a Graph Store. seed should be unique per process
// (e.g. derived from wall-clock start time) so ids allocated across
// restarts do not collide.
func NewStore(seed uint64, schema *SchemaManager) *Store {
	if schema == nil {
		schema = NewSchemaManager()
	}
	return &Store{alloc: codec.NewIDAllocator(seed), schema: schema}
}

// Schema exposes the store's constraint manager so callers can declare
// unique constraints before writing.
func (s *Store) Schema() *SchemaManager { return s.schema }

// Version returns the store's current adjacency-mutation counter, bumped
// by every AddEdge and DropEdge call.
func (s *Store) Version() uint64 { return atomic.LoadUint64(&s.version) }

func encodeNodeBlob(label string, props map[string]any, createdAt, updatedAt time.Time) ([]byte, error) {
	p, err := codec.NewProperties(withNodeMeta(props, label, createdAt, updatedAt))
	if err != nil {
		return nil, helixerr.Wrap(helixerr.KindInvalidArgument, "encode node properties", err)
	}
	return codec.Encode(label, p), nil
}

// withNodeMeta folds the label string and timestamps into the property
// bag as reserved fields. The label_header (spec.md §4.B) carries only
// a one-way hash, so the label string itself must also travel inside
// the body for typed reads to reconstruct Node.Label.
func withNodeMeta(props map[string]any, label string, createdAt, updatedAt time.Time) map[string]any {
	out := make(map[string]any, len(props)+3)
	for k, v := range props {
		out[k] = v
	}
	out["__label"] = label
	out["__created_at"] = createdAt
	out["__updated_at"] = updatedAt
	return out
}

// AddNode allocates an id, writes the nodes table, and enforces any
// declared unique constraints (spec.md §4.C).
func (s *Store) AddNode(tx *kvstore.Tx, label string, props map[string]any) (codec.ID, error) {
	if label == "" {
		return codec.ID{}, helixerr.New(helixerr.KindInvalidArgument, "node label must not be empty")
	}
	id := s.alloc.Next()
	now := time.Now().UTC()

	if err := s.schema.checkAndReserveUnique(tx, label, props, id); err != nil {
		return codec.ID{}, err
	}

	blob, err := encodeNodeBlob(label, props, now, now)
	if err != nil {
		return codec.ID{}, err
	}
	if err := tx.Put(kvstore.TableNodes, id.Bytes(), blob); err != nil {
		return codec.ID{}, err
	}
	return id, nil
}

// GetNode performs a typed read of a node by id.
func (s *Store) GetNode(tx *kvstore.Tx, id codec.ID) (*Node, error) {
	blob, err := tx.Get(kvstore.TableNodes, id.Bytes())
	if err != nil {
		return nil, err
	}
	return decodeNode(id, blob)
}

func decodeNode(id codec.ID, blob []byte) (*Node, error) {
	_, props, err := codec.Decode(blob)
	if err != nil {
		return nil, helixerr.Wrap(helixerr.KindStorageFault, "decode node", err)
	}
	m := props.ToMap()
	label, _ := m["__label"].(string)
	created, _ := m["__created_at"].(time.Time)
	updated, _ := m["__updated_at"].(time.Time)
	delete(m, "__created_at")
	delete(m, "__updated_at")
	delete(m, "__label")
	return &Node{ID: id, Label: label, Properties: m, CreatedAt: created, UpdatedAt: updated}, nil
}

// UpdateNode merges new properties into an existing node, leaving
// untouched fields byte-identical (spec.md §4.B's codec contract). The
// node's label cannot be changed this way — that requires DropNode plus
// AddNode, since adjacency keys are built from the label string.
func (s *Store) UpdateNode(tx *kvstore.Tx, id codec.ID, props map[string]any) error {
	blob, err := tx.Get(kvstore.TableNodes, id.Bytes())
	if err != nil {
		return err
	}
	_, baseProps, err := codec.Decode(blob)
	if err != nil {
		return helixerr.Wrap(helixerr.KindStorageFault, "decode node for update", err)
	}
	label, _ := baseProps.Get("__label")
	labelStr, _ := label.(string)

	update, err := codec.NewProperties(props)
	if err != nil {
		return helixerr.Wrap(helixerr.KindInvalidArgument, "encode update properties", err)
	}
	if err := update.Set("__updated_at", time.Now().UTC()); err != nil {
		return helixerr.Wrap(helixerr.KindInvalidArgument, "set updated_at", err)
	}
	merged := codec.Merge(baseProps, update)

	return tx.Put(kvstore.TableNodes, id.Bytes(), codec.Encode(labelStr, merged))
}

// DropNode removes a node and cascades adjacency cleanup: every
// out_edges/in_edges bucket the node participates in under any label
// must be scanned and removed, along with the edges themselves and any
// unique-index reservations.
func (s *Store) DropNode(tx *kvstore.Tx, id codec.ID) error {
	node, err := s.GetNode(tx, id)
	if err != nil {
		return err
	}
	if err := s.schema.releaseUnique(tx, node.Label, node.Properties); err != nil {
		return err
	}

	// Cascade: find every edge touching this node by scanning both
	// adjacency directions across all labels. Labels are appended after
	// the id in the adjacency key, so a prefix scan on the node id alone
	// matches every label_hash suffix.
	var edgeIDs []codec.ID
	collect := func(key, value []byte) error {
		if len(value) < 32 {
			return nil
		}
		edgeIDs = append(edgeIDs, codec.IDFromBytes(value[:16]))
		return nil
	}
	if err := tx.IteratePrefix(kvstore.TableOutEdges, id.Bytes(), collect); err != nil {
		return err
	}
	if err := tx.IteratePrefix(kvstore.TableInEdges, id.Bytes(), collect); err != nil {
		return err
	}
	for _, eid := range edgeIDs {
		if err := s.DropEdge(tx, eid); err != nil && !helixerrIsNotFound(err) {
			return err
		}
	}

	return tx.Delete(kvstore.TableNodes, id.Bytes())
}

func helixerrIsNotFound(err error) bool {
	k, ok := helixerr.Of(err)
	return ok && k == helixerr.KindNotFound
}

// AddEdge writes the edges table and appends dup-sort adjacency entries
// in both directions (spec.md §3 invariant 1, §4.C).
func (s *Store) AddEdge(tx *kvstore.Tx, label string, from, to codec.ID, props map[string]any) (codec.ID, error) {
	if label == "" {
		return codec.ID{}, helixerr.New(helixerr.KindInvalidArgument, "edge label must not be empty")
	}
	if ok, err := tx.Has(kvstore.TableNodes, from.Bytes()); err != nil {
		return codec.ID{}, err
	} else if !ok {
		return codec.ID{}, helixerr.New(helixerr.KindMissingEndpoint, "from node does not exist")
	}
	if ok, err := tx.Has(kvstore.TableNodes, to.Bytes()); err != nil {
		return codec.ID{}, err
	} else if !ok {
		return codec.ID{}, helixerr.New(helixerr.KindMissingEndpoint, "to node does not exist")
	}

	id := s.alloc.Next()
	now := time.Now().UTC()
	blob, err := encodeEdgeBlob(label, from, to, props, now, now)
	if err != nil {
		return codec.ID{}, err
	}
	if err := tx.Put(kvstore.TableEdges, id.Bytes(), blob); err != nil {
		return codec.ID{}, err
	}

	labelHash := codec.LabelHashBytes(label)
	outKey := append(append([]byte(nil), from.Bytes()...), labelHash...)
	outVal := append(append([]byte(nil), id.Bytes()...), to.Bytes()...)
	if err := tx.PutDup(kvstore.TableOutEdges, outKey, outVal); err != nil {
		return codec.ID{}, err
	}

	inKey := append(append([]byte(nil), to.Bytes()...), labelHash...)
	inVal := append(append([]byte(nil), id.Bytes()...), from.Bytes()...)
	if err := tx.PutDup(kvstore.TableInEdges, inKey, inVal); err != nil {
		return codec.ID{}, err
	}

	atomic.AddUint64(&s.version, 1)
	return id, nil
}

func encodeEdgeBlob(label string, from, to codec.ID, props map[string]any, createdAt, updatedAt time.Time) ([]byte, error) {
	full := make(map[string]any, len(props)+4)
	for k, v := range props {
		full[k] = v
	}
	full["__label"] = label
	full["__from"] = from.String()
	full["__to"] = to.String()
	full["__created_at"] = createdAt
	full["__updated_at"] = updatedAt
	p, err := codec.NewProperties(full)
	if err != nil {
		return nil, helixerr.Wrap(helixerr.KindInvalidArgument, "encode edge properties", err)
	}
	return codec.Encode(label, p), nil
}

// GetEdge performs a typed read of an edge by id.
func (s *Store) GetEdge(tx *kvstore.Tx, id codec.ID) (*Edge, error) {
	blob, err := tx.Get(kvstore.TableEdges, id.Bytes())
	if err != nil {
		return nil, err
	}
	_, props, err := codec.Decode(blob)
	if err != nil {
		return nil, helixerr.Wrap(helixerr.KindStorageFault, "decode edge", err)
	}
	m := props.ToMap()
	label, _ := m["__label"].(string)
	fromStr, _ := m["__from"].(string)
	toStr, _ := m["__to"].(string)
	created, _ := m["__created_at"].(time.Time)
	updated, _ := m["__updated_at"].(time.Time)
	delete(m, "__from")
	delete(m, "__to")
	delete(m, "__created_at")
	delete(m, "__updated_at")
	delete(m, "__label")

	return &Edge{
		ID: id, Label: label,
		From: idFromHexString(fromStr), To: idFromHexString(toStr),
		Properties: m, CreatedAt: created, UpdatedAt: updated,
	}, nil
}

// DropEdge removes an edge and both of its adjacency entries.
func (s *Store) DropEdge(tx *kvstore.Tx, id codec.ID) error {
	blob, err := tx.Get(kvstore.TableEdges, id.Bytes())
	if err != nil {
		return err
	}
	labelHash, props, err := codec.Decode(blob)
	if err != nil {
		return helixerr.Wrap(helixerr.KindStorageFault, "decode edge for drop", err)
	}
	m := props.ToMap()
	fromStr, _ := m["__from"].(string)
	toStr, _ := m["__to"].(string)
	from := idFromHexString(fromStr)
	to := idFromHexString(toStr)

	lh := make([]byte, 4)
	binary.BigEndian.PutUint32(lh, labelHash)

	outKey := append(append([]byte(nil), from.Bytes()...), lh...)
	outVal := append(append([]byte(nil), id.Bytes()...), to.Bytes()...)
	if err := tx.DeleteDup(kvstore.TableOutEdges, outKey, outVal); err != nil {
		return err
	}

	inKey := append(append([]byte(nil), to.Bytes()...), lh...)
	inVal := append(append([]byte(nil), id.Bytes()...), from.Bytes()...)
	if err := tx.DeleteDup(kvstore.TableInEdges, inKey, inVal); err != nil {
		return err
	}

	atomic.AddUint64(&s.version, 1)
	return tx.Delete(kvstore.TableEdges, id.Bytes())
}

func idFromHexString(hexStr string) codec.ID {
	var id codec.ID
	if len(hexStr) != 32 {
		return id
	}
	for i := 0; i < 16; i++ {
		hi := hexNibble(hexStr[i*2])
		lo := hexNibble(hexStr[i*2+1])
		id[i] = hi<<4 | lo
	}
	return id
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return 0
	}
}

// HashedNeighbor is one row of an all-labels adjacency scan: the
// neighbor's id along with the 32-bit label hash of the connecting
// edge, rather than a decoded label string (the adjacency key never
// stores the label string itself, only its hash — see spec.md §4.B).
// Callers that need to compare against known edge-type names (e.g. the
// PPR Engine's weight table) hash those names once and compare hashes,
// rather than reversing the hash back to a string.
type HashedNeighbor struct {
	LabelHash uint32
	EdgeID    codec.ID
	OtherID   codec.ID
}

// AllNeighbors scans every adjacency entry for id in the given
// direction, across all edge labels, used by callers (the PPR Engine)
// that must expand a node's full neighborhood rather than one label at
// a time.
func (s *Store) AllNeighbors(tx *kvstore.Tx, id codec.ID, dir Direction) ([]HashedNeighbor, error) {
	table := kvstore.TableOutEdges
	if dir == In {
		table = kvstore.TableInEdges
	}
	var out []HashedNeighbor
	err := tx.IteratePrefix(table, id.Bytes(), func(key, value []byte) error {
		if len(key) < 20 || len(value) < 32 {
			return nil
		}
		out = append(out, HashedNeighbor{
			LabelHash: binary.BigEndian.Uint32(key[16:20]),
			EdgeID:    codec.IDFromBytes(value[:16]),
			OtherID:   codec.IDFromBytes(value[16:32]),
		})
		return nil
	})
	return out, err
}

// Neighbors performs a single composite-key seek against the out_edges
// or in_edges table for (id, label), returning results in storage order
// (edge_id ascending, per the dup-sort key layout) — spec.md §4.C:
// "Edge type filtering is performed by key construction, not by value
// scanning."
func (s *Store) Neighbors(tx *kvstore.Tx, id codec.ID, dir Direction, label string) ([]NeighborRef, error) {
	table := kvstore.TableOutEdges
	if dir == In {
		table = kvstore.TableInEdges
	}
	logicalKey := append(append([]byte(nil), id.Bytes()...), codec.LabelHashBytes(label)...)
	dups, err := tx.SeekDups(table, logicalKey)
	if err != nil {
		return nil, err
	}
	out := make([]NeighborRef, 0, len(dups))
	for _, dv := range dups {
		if len(dv) != 32 {
			continue
		}
		out = append(out, NeighborRef{
			EdgeID:  codec.IDFromBytes(dv[:16]),
			OtherID: codec.IDFromBytes(dv[16:]),
		})
	}
	return out, nil
}
