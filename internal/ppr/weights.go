package ppr

import "github.com/oneiron-dev/oneiron-helix/internal/codec"

// defaultWeights is spec.md §4.G's exhaustive default edge-type weight
// table. opposes=0 is load-bearing: a contradiction must never carry
// endorsement mass forward.
var defaultWeights = map[string]float64{
	"belongs_to":      1.0,
	"participates_in":  1.0,
	"attached":        0.8,
	"authored_by":     0.9,
	"mentions":        0.6,
	"about":           0.5,
	"supports":        1.0,
	"opposes":         0.0,
	"claim_of":        1.0,
	"scoped_to":       0.7,
	"supersedes":      0.3,
	"derived_from":    0.2,
	"part_of":         0.8,
}

var partOfHash = codec.LabelHash("part_of")

// weightsByHash builds the label_hash → weight lookup for one PPR call.
// Adjacency entries only ever carry a label's hash (spec.md §4.B), so
// weights are compared by hash rather than by reversing the hash back
// to a string; overrides win over the default table. A label absent
// from both tables gets weight 0 — an unrecognized edge type does not
// propagate rather than propagating at some guessed default.
func weightsByHash(overrides map[string]float64) map[uint32]float64 {
	out := make(map[uint32]float64, len(defaultWeights)+len(overrides))
	for label, w := range defaultWeights {
		out[codec.LabelHash(label)] = w
	}
	for label, w := range overrides {
		out[codec.LabelHash(label)] = w
	}
	return out
}
