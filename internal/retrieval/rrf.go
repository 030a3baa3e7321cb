// Package retrieval implements the Retrieval Pipeline (spec.md §4.F):
// thin wrappers over the Vector Index and BM25 Index, Reciprocal Rank
// Fusion across their result lists, and post-fusion signal boosts.
package retrieval

import "github.com/oneiron-dev/oneiron-helix/internal/codec"

// defaultRRFK is spec.md §4.F's k_rrf constant.
const defaultRRFK = 60.0

// Fused is one document after RRF fusion (or signal-boosting).
type Fused struct {
	ID    codec.ID
	Score float64
}

// Fuse combines ranked id lists by Reciprocal Rank Fusion: for each
// list, for each item at 0-based rank r, add 1/(k_rrf+r+1). Ids are
// deduplicated, ordered by first occurrence across the input lists for
// tie-breaking, then the fused set is sorted by score descending.
//
// The sum is symmetric in list order — permuting the lists argument
// does not change which score each id accumulates (spec.md §9 property
// 5).
func Fuse(lists [][]codec.ID, kRRF float64) []Fused {
	if kRRF <= 0 {
		kRRF = defaultRRFK
	}
	scores := make(map[codec.ID]float64)
	var order []codec.ID
	seen := make(map[codec.ID]bool)

	for _, list := range lists {
		for r, id := range list {
			scores[id] += 1.0 / (kRRF + float64(r) + 1)
			if !seen[id] {
				seen[id] = true
				order = append(order, id)
			}
		}
	}

	fused := make([]Fused, 0, len(order))
	for _, id := range order {
		fused = append(fused, Fused{ID: id, Score: scores[id]})
	}
	sortFusedDescending(fused)
	return fused
}

func sortFusedDescending(f []Fused) {
	for i := 1; i < len(f); i++ {
		j := i
		for j > 0 && f[j-1].Score < f[j].Score {
			f[j-1], f[j] = f[j], f[j-1]
			j--
		}
	}
}
