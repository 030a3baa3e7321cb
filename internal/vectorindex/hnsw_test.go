package vectorindex

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oneiron-dev/oneiron-helix/internal/codec"
)

func idOf(n byte) codec.ID {
	var id codec.ID
	id[15] = n
	return id
}

func TestSearchReturnsNearestFirst(t *testing.T) {
	idx := New(DefaultConfig(), 2)
	require.NoError(t, idx.Add(idOf(1), "Doc", []float32{1, 0}))
	require.NoError(t, idx.Add(idOf(2), "Doc", []float32{0, 1}))
	require.NoError(t, idx.Add(idOf(3), "Doc", []float32{0.9, 0.1}))

	results := idx.Search([]float32{1, 0}, SearchParams{K: 2})
	require.Len(t, results, 2)
	require.Equal(t, idOf(1), results[0].ID)
}

func TestTombstoneExcludesFromSearch(t *testing.T) {
	idx := New(DefaultConfig(), 2)
	require.NoError(t, idx.Add(idOf(1), "Doc", []float32{1, 0}))
	require.NoError(t, idx.Add(idOf(2), "Doc", []float32{0.99, 0.01}))
	idx.Remove(idOf(1))

	results := idx.Search([]float32{1, 0}, SearchParams{K: 5})
	for _, r := range results {
		require.NotEqual(t, idOf(1), r.ID)
	}
}

func TestLabelFilter(t *testing.T) {
	idx := New(DefaultConfig(), 2)
	require.NoError(t, idx.Add(idOf(1), "Doc", []float32{1, 0}))
	require.NoError(t, idx.Add(idOf(2), "Chunk", []float32{1, 0}))

	results := idx.Search([]float32{1, 0}, SearchParams{K: 5, Label: "Chunk"})
	require.Len(t, results, 1)
	require.Equal(t, idOf(2), results[0].ID)
}

func TestTrickleFilterAppliedDuringExpansion(t *testing.T) {
	idx := New(DefaultConfig(), 2)
	require.NoError(t, idx.Add(idOf(1), "Doc", []float32{1, 0}))
	require.NoError(t, idx.Add(idOf(2), "Doc", []float32{0.9, 0.1}))
	require.NoError(t, idx.Add(idOf(3), "Doc", []float32{0.8, 0.2}))

	denied := idOf(1)
	filter := func(id codec.ID) bool { return id != denied }

	results := idx.Search([]float32{1, 0}, SearchParams{K: 5, Filter: filter, Trickle: true})
	for _, r := range results {
		require.NotEqual(t, denied, r.ID)
	}
}
