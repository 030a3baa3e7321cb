package retrieval

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oneiron-dev/oneiron-helix/internal/codec"
)

func id(n byte) codec.ID {
	var out codec.ID
	out[15] = n
	return out
}

func idsOf(f []Fused) []codec.ID {
	out := make([]codec.ID, len(f))
	for i, x := range f {
		out[i] = x.ID
	}
	return out
}

// TestFuseMatchesReferenceScenario reproduces spec.md §8 scenario S5
// exactly: vector list [d1,d2,d3], bm25 list [d2,d4,d1], k_rrf=60.
func TestFuseMatchesReferenceScenario(t *testing.T) {
	d1, d2, d3, d4 := id(1), id(2), id(3), id(4)
	vec := []codec.ID{d1, d2, d3}
	bm25 := []codec.ID{d2, d4, d1}

	fused := Fuse([][]codec.ID{vec, bm25}, 60)
	require.Equal(t, []codec.ID{d2, d1, d4, d3}, idsOf(fused))
}

func TestFuseIsSymmetricInListOrder(t *testing.T) {
	d1, d2, d3, d4 := id(1), id(2), id(3), id(4)
	vec := []codec.ID{d1, d2, d3}
	bm25 := []codec.ID{d2, d4, d1}

	a := Fuse([][]codec.ID{vec, bm25}, 60)
	b := Fuse([][]codec.ID{bm25, vec}, 60)
	require.Equal(t, idsOf(a), idsOf(b))
}

func TestFuseDedupesKeepingFirstOccurrence(t *testing.T) {
	d1 := id(1)
	fused := Fuse([][]codec.ID{{d1}, {d1}, {d1}}, 60)
	require.Len(t, fused, 1)
}

func TestApplySignalBoostsDefaultsMissingSignalsToOne(t *testing.T) {
	d1 := id(1)
	results := []Fused{{ID: d1, Score: 0.5}}

	boosted := ApplySignalBoosts(results, BoostConfig{EnableSalience: true}, SignalLookup{})
	require.Equal(t, 0.5, boosted[0].Score)
}

func TestApplySignalBoostsIgnoresDisabledSignals(t *testing.T) {
	d1 := id(1)
	results := []Fused{{ID: d1, Score: 0.5}}

	lookup := SignalLookup{
		Salience: func(codec.ID) (float64, bool) { return 0.1, true },
	}
	boosted := ApplySignalBoosts(results, BoostConfig{EnableSalience: false}, lookup)
	require.Equal(t, 0.5, boosted[0].Score)
}

func TestApplySignalBoostsAppliesDecayHalfLife(t *testing.T) {
	d1 := id(1)
	results := []Fused{{ID: d1, Score: 1.0}}

	lookup := SignalLookup{
		AgeDays: func(codec.ID) (float64, bool) { return 10, true },
	}
	boosted := ApplySignalBoosts(results, BoostConfig{EnableDecay: true, HalfLifeDays: 10}, lookup)
	require.InDelta(t, 0.5, boosted[0].Score, 1e-9)
}
