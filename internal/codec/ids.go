// Package codec implements the deterministic binary encoding of node and
// edge payloads described in spec.md §3 and §4.B: a label header prefix
// followed by a tagged field list, plus the 128-bit identifier and
// 32-bit label-hash helpers the rest of the engine keys tables on.
package codec

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// ID is a 128-bit identifier, stored big-endian on disk for lexicographic
// ordering (spec.md §3). Opaque to the engine: callers or a monotonic
// allocator produce it.
type ID [16]byte

// Bytes returns the big-endian 16-byte encoding of the id.
func (id ID) Bytes() []byte {
	b := make([]byte, 16)
	copy(b, id[:])
	return b
}

// String renders the id as hex, for logs and error messages only.
func (id ID) String() string {
	const hextable = "0123456789abcdef"
	out := make([]byte, 32)
	for i, b := range id {
		out[i*2] = hextable[b>>4]
		out[i*2+1] = hextable[b&0x0f]
	}
	return string(out)
}

// IsZero reports whether the id is the all-zero value, used as a sentinel
// for "no id" in places that cannot use a Go zero value ambiguously.
func (id ID) IsZero() bool {
	for _, b := range id {
		if b != 0 {
			return false
		}
	}
	return true
}

// IDFromBytes reconstructs an ID from a 16-byte big-endian slice.
func IDFromBytes(b []byte) ID {
	var id ID
	copy(id[:], b)
	return id
}

// IDAllocator is a process-local monotonic allocator fallback for callers
// that do not supply their own id. Its counter is combined with a high
// half fixed from the seed given at construction, so ids allocated across
// process restarts do not collide as long as each process uses a
// different seed.
type IDAllocator struct {
	highHalf uint64
	counter  uint64
}

// NewIDAllocator builds an allocator seeded with a fixed high half
// (typically derived from process start time or a caller-supplied seed)
// so that successive calls to Next produce monotonically increasing,
// lexicographically ordered ids.
func NewIDAllocator(seed uint64) *IDAllocator {
	return &IDAllocator{highHalf: seed}
}

// Next returns the next id in sequence: high half fixed at construction,
// low half a monotonic counter, both encoded big-endian so ids sort in
// allocation order.
func (a *IDAllocator) Next() ID {
	a.counter++
	var id ID
	binary.BigEndian.PutUint64(id[0:8], a.highHalf)
	binary.BigEndian.PutUint64(id[8:16], a.counter)
	return id
}

// LabelHash computes the deterministic 32-bit hash of a label string used
// as a key suffix for label-scoped adjacency lookups (spec.md §3). Built
// on xxhash, which the storage driver already vendors, truncating the
// 64-bit digest to its low 32 bits.
func LabelHash(label string) uint32 {
	return uint32(xxhash.Sum64String(label))
}

// LabelHashBytes returns the big-endian 4-byte encoding of LabelHash(label).
func LabelHashBytes(label string) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, LabelHash(label))
	return b
}
