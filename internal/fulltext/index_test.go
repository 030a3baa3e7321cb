package fulltext

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oneiron-dev/oneiron-helix/internal/codec"
	"github.com/oneiron-dev/oneiron-helix/internal/kvstore"
)

func openTestEnv(t *testing.T) *kvstore.Env {
	t.Helper()
	env, err := kvstore.Open(kvstore.Options{InMemory: true, DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })
	return env
}

func idOf(n byte) codec.ID {
	var id codec.ID
	id[15] = n
	return id
}

func TestSearchRanksMoreRelevantDocHigher(t *testing.T) {
	env := openTestEnv(t)
	ix := New(1.2, 0.75)

	err := env.Update(func(tx *kvstore.Tx) error {
		if err := ix.Index(tx, idOf(1), "the quick brown fox jumps over the lazy dog"); err != nil {
			return err
		}
		return ix.Index(tx, idOf(2), "a fox sighting near the barn")
	})
	require.NoError(t, err)

	err = env.View(func(tx *kvstore.Tx) error {
		hits, err := ix.Search(tx, "fox", "", 10, nil, nil)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		// Both documents contain "fox" once; the shorter one scores higher
		// under BM25's length normalization.
		require.Equal(t, idOf(2), hits[0].ID)
		return nil
	})
	require.NoError(t, err)
}

func TestSearchHonorsPrefilterBeforeAccumulation(t *testing.T) {
	env := openTestEnv(t)
	ix := New(1.2, 0.75)

	err := env.Update(func(tx *kvstore.Tx) error {
		if err := ix.Index(tx, idOf(1), "graph database traversal"); err != nil {
			return err
		}
		return ix.Index(tx, idOf(2), "graph database indexing")
	})
	require.NoError(t, err)

	denied := idOf(1)
	prefilter := func(id codec.ID) bool { return id != denied }

	err = env.View(func(tx *kvstore.Tx) error {
		hits, err := ix.Search(tx, "graph database", "", 10, prefilter, nil)
		require.NoError(t, err)
		for _, h := range hits {
			require.NotEqual(t, denied, h.ID)
		}
		require.Len(t, hits, 1)
		return nil
	})
	require.NoError(t, err)
}

func TestSearchFiltersByLabel(t *testing.T) {
	env := openTestEnv(t)
	ix := New(1.2, 0.75)

	labels := map[codec.ID]string{
		idOf(1): "Doc",
		idOf(2): "Chunk",
	}
	labelOf := func(id codec.ID) (string, bool) {
		l, ok := labels[id]
		return l, ok
	}

	err := env.Update(func(tx *kvstore.Tx) error {
		if err := ix.Index(tx, idOf(1), "vector search engine"); err != nil {
			return err
		}
		return ix.Index(tx, idOf(2), "vector search engine")
	})
	require.NoError(t, err)

	err = env.View(func(tx *kvstore.Tx) error {
		hits, err := ix.Search(tx, "vector search", "Chunk", 10, nil, labelOf)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		require.Equal(t, idOf(2), hits[0].ID)
		return nil
	})
	require.NoError(t, err)
}

func TestRemoveDropsDocumentFromPostings(t *testing.T) {
	env := openTestEnv(t)
	ix := New(1.2, 0.75)

	err := env.Update(func(tx *kvstore.Tx) error {
		return ix.Index(tx, idOf(1), "ephemeral document about caching")
	})
	require.NoError(t, err)

	err = env.Update(func(tx *kvstore.Tx) error {
		return ix.Remove(tx, idOf(1))
	})
	require.NoError(t, err)

	err = env.View(func(tx *kvstore.Tx) error {
		hits, err := ix.Search(tx, "caching", "", 10, nil, nil)
		require.NoError(t, err)
		require.Empty(t, hits)
		return nil
	})
	require.NoError(t, err)
}

func TestReindexDoesNotDoubleCountDocumentFrequency(t *testing.T) {
	env := openTestEnv(t)
	ix := New(1.2, 0.75)

	err := env.Update(func(tx *kvstore.Tx) error {
		if err := ix.Index(tx, idOf(1), "alpha beta gamma"); err != nil {
			return err
		}
		return ix.Index(tx, idOf(1), "alpha beta gamma delta")
	})
	require.NoError(t, err)

	err = env.View(func(tx *kvstore.Tx) error {
		m, err := ix.readMeta(tx)
		require.NoError(t, err)
		require.EqualValues(t, 1, m.nDocs)
		require.EqualValues(t, 4, m.totalLength)

		df, ok, err := getOptional(tx, kvstore.TableBM25TermDF, termHashKey(codec.LabelHash("alpha")))
		require.NoError(t, err)
		require.True(t, ok)
		require.EqualValues(t, 1, decodeU32(df))
		return nil
	})
	require.NoError(t, err)
}
