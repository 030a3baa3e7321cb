package vectorindex

import (
	"encoding/binary"
	"math"

	"github.com/oneiron-dev/oneiron-helix/helixerr"
	"github.com/oneiron-dev/oneiron-helix/internal/codec"
	"github.com/oneiron-dev/oneiron-helix/internal/kvstore"
)

// encodeVectorMeta packs a vector's label, dimensionality, deletion flag,
// and raw embedding for the kvstore.TableVectorMeta table (spec.md
// §4.A: "vector_id(16) -> props + deletion flag").
func encodeVectorMeta(label string, vector []float32, deleted bool) []byte {
	buf := make([]byte, 0, 9+len(label)+4*len(vector))
	if deleted {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	nameLen := make([]byte, 2)
	binary.BigEndian.PutUint16(nameLen, uint16(len(label)))
	buf = append(buf, nameLen...)
	buf = append(buf, label...)

	dimBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(dimBuf, uint32(len(vector)))
	buf = append(buf, dimBuf...)

	for _, f := range vector {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, float32bits(f))
		buf = append(buf, b...)
	}
	return buf
}

func decodeVectorMeta(blob []byte) (label string, vector []float32, deleted bool, err error) {
	if len(blob) < 7 {
		return "", nil, false, helixerr.New(helixerr.KindStorageFault, "vector_meta: truncated blob")
	}
	deleted = blob[0] != 0
	nameLen := binary.BigEndian.Uint16(blob[1:3])
	rest := blob[3:]
	if len(rest) < int(nameLen)+4 {
		return "", nil, false, helixerr.New(helixerr.KindStorageFault, "vector_meta: truncated label/dim")
	}
	label = string(rest[:nameLen])
	rest = rest[nameLen:]
	dim := binary.BigEndian.Uint32(rest[:4])
	rest = rest[4:]
	if len(rest) < int(dim)*4 {
		return "", nil, false, helixerr.New(helixerr.KindStorageFault, "vector_meta: truncated embedding")
	}
	vector = make([]float32, dim)
	for i := range vector {
		vector[i] = float32frombits(binary.BigEndian.Uint32(rest[i*4 : i*4+4]))
	}
	return label, vector, deleted, nil
}

func float32bits(f float32) uint32    { return math.Float32bits(f) }
func float32frombits(b uint32) float32 { return math.Float32frombits(b) }

// neighborListKey builds the vector_hnsw table key: layer(4) ‖ node_id(16).
func neighborListKey(layer int, id codec.ID) []byte {
	key := make([]byte, 4+16)
	binary.BigEndian.PutUint32(key[:4], uint32(layer))
	copy(key[4:], id.Bytes())
	return key
}

func encodeNeighborList(ids []codec.ID) []byte {
	buf := make([]byte, 4, 4+16*len(ids))
	binary.BigEndian.PutUint32(buf, uint32(len(ids)))
	for _, id := range ids {
		buf = append(buf, id.Bytes()...)
	}
	return buf
}

func decodeNeighborList(blob []byte) []codec.ID {
	if len(blob) < 4 {
		return nil
	}
	n := binary.BigEndian.Uint32(blob[:4])
	rest := blob[4:]
	out := make([]codec.ID, 0, n)
	for i := uint32(0); i < n && len(rest) >= 16; i++ {
		out = append(out, codec.IDFromBytes(rest[:16]))
		rest = rest[16:]
	}
	return out
}

// Flush persists the current in-memory graph to the Storage Kernel:
// every live and tombstoned vector's metadata, and every node's
// per-layer neighbor list, satisfying spec.md §4.A's vector_meta /
// vector_hnsw tables as durable state rather than a purely in-memory
// structure.
func (idx *Index) Flush(tx *kvstore.Tx) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	for id, node := range idx.nodes {
		meta := encodeVectorMeta(node.label, node.vector, node.deleted)
		if err := tx.Put(kvstore.TableVectorMeta, id.Bytes(), meta); err != nil {
			return err
		}
		for layer, neighbors := range node.neighbors {
			key := neighborListKey(layer, id)
			if err := tx.Put(kvstore.TableVectorHNSW, key, encodeNeighborList(neighbors)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load rebuilds the in-memory graph from the Storage Kernel's
// vector_meta and vector_hnsw tables, the inverse of Flush.
func Load(tx *kvstore.Tx, cfg Config, dimensions int) (*Index, error) {
	idx := New(cfg, dimensions)
	idx.mu.Lock()
	defer idx.mu.Unlock()

	err := tx.IteratePrefix(kvstore.TableVectorMeta, nil, func(key, value []byte) error {
		id := codec.IDFromBytes(key)
		label, vector, deleted, err := decodeVectorMeta(value)
		if err != nil {
			return err
		}
		idx.nodes[id] = &hnswNode{id: id, label: label, vector: vector, deleted: deleted}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = tx.IteratePrefix(kvstore.TableVectorHNSW, nil, func(key, value []byte) error {
		if len(key) < 20 {
			return nil
		}
		layer := int(binary.BigEndian.Uint32(key[:4]))
		id := codec.IDFromBytes(key[4:20])
		node, ok := idx.nodes[id]
		if !ok {
			return nil
		}
		for len(node.neighbors) <= layer {
			node.neighbors = append(node.neighbors, nil)
		}
		node.neighbors[layer] = decodeNeighborList(value)
		if layer > node.level {
			node.level = layer
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	idx.reselectEntryPoint()
	return idx, nil
}
