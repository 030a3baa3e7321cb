package ppr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oneiron-dev/oneiron-helix/internal/codec"
	"github.com/oneiron-dev/oneiron-helix/internal/graph"
	"github.com/oneiron-dev/oneiron-helix/internal/kvstore"
)

func TestAdjacencyCacheServesASecondRunWithoutReexpanding(t *testing.T) {
	env := openTestEnv(t)
	store := graph.NewStore(1, nil)
	var a, b codec.ID

	err := env.Update(func(tx *kvstore.Tx) error {
		var err error
		a, err = store.AddNode(tx, "Node", nil)
		if err != nil {
			return err
		}
		b, err = store.AddNode(tx, "Node", nil)
		if err != nil {
			return err
		}
		_, err = store.AddEdge(tx, "supports", a, b, nil)
		return err
	})
	require.NoError(t, err)

	ac, err := NewAdjacencyCache(1000)
	require.NoError(t, err)
	t.Cleanup(ac.Close)

	eng := New(store).WithAdjacencyCache(ac)
	cfg := Config{MaxDepth: 1, Damping: 0.85, Normalize: true}

	err = env.View(func(tx *kvstore.Tx) error {
		first, err := eng.Run(context.Background(), tx, []codec.ID{a}, []codec.ID{a, b}, cfg)
		require.NoError(t, err)
		require.NotEmpty(t, first)

		// ristretto applies Set through a buffer; Wait flushes it so the
		// entry written during Run is visible to get.
		ac.c.Wait()
		neighbors, ok := ac.get(a, graph.Out)
		require.True(t, ok)
		require.Len(t, neighbors, 1)

		second, err := eng.Run(context.Background(), tx, []codec.ID{a}, []codec.ID{a, b}, cfg)
		require.NoError(t, err)
		require.Equal(t, first, second)
		return nil
	})
	require.NoError(t, err)
}

func TestAdjacencyCacheInvalidatesOnGraphMutation(t *testing.T) {
	env := openTestEnv(t)
	store := graph.NewStore(1, nil)
	var a, b, c codec.ID

	err := env.Update(func(tx *kvstore.Tx) error {
		var err error
		a, err = store.AddNode(tx, "Node", nil)
		if err != nil {
			return err
		}
		b, err = store.AddNode(tx, "Node", nil)
		if err != nil {
			return err
		}
		c, err = store.AddNode(tx, "Node", nil)
		if err != nil {
			return err
		}
		_, err = store.AddEdge(tx, "supports", a, b, nil)
		return err
	})
	require.NoError(t, err)

	ac, err := NewAdjacencyCache(1000)
	require.NoError(t, err)
	t.Cleanup(ac.Close)

	eng := New(store).WithAdjacencyCache(ac)
	cfg := Config{MaxDepth: 1, Damping: 0.85, Normalize: true}

	err = env.View(func(tx *kvstore.Tx) error {
		first, err := eng.Run(context.Background(), tx, []codec.ID{a}, []codec.ID{a, b, c}, cfg)
		require.NoError(t, err)
		_, ok := scoreOf(first, c)
		require.False(t, ok, "c is not yet reachable from a")
		return nil
	})
	require.NoError(t, err)

	err = env.Update(func(tx *kvstore.Tx) error {
		_, err := store.AddEdge(tx, "supports", a, c, nil)
		return err
	})
	require.NoError(t, err)

	err = env.View(func(tx *kvstore.Tx) error {
		second, err := eng.Run(context.Background(), tx, []codec.ID{a}, []codec.ID{a, b, c}, cfg)
		require.NoError(t, err)
		_, ok := scoreOf(second, c)
		require.True(t, ok, "new edge must be visible to a Run after the cache was populated")
		return nil
	})
	require.NoError(t, err)
}

func TestAdjacencyCacheNilIsAlwaysAMiss(t *testing.T) {
	var ac *AdjacencyCache
	_, ok := ac.get(codec.ID{}, graph.Out)
	require.False(t, ok)
	ac.set(codec.ID{}, graph.Out, nil)
	ac.syncVersion(1)
	ac.Close()
}
