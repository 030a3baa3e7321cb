package ppr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oneiron-dev/oneiron-helix/internal/codec"
	"github.com/oneiron-dev/oneiron-helix/internal/graph"
	"github.com/oneiron-dev/oneiron-helix/internal/kvstore"
)

func openTestEnv(t *testing.T) *kvstore.Env {
	t.Helper()
	env, err := kvstore.Open(kvstore.Options{InMemory: true, DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })
	return env
}

func scoreOf(results []Result, id codec.ID) (float64, bool) {
	for _, r := range results {
		if r.ID == id {
			return r.Score, true
		}
	}
	return 0, false
}

// TestOpposesBlocksPropagation reproduces spec.md §8 scenario S1.
func TestOpposesBlocksPropagation(t *testing.T) {
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
		if _, err := store.AddEdge(tx, "supports", a, b, nil); err != nil {
			return err
		}
		_, err = store.AddEdge(tx, "opposes", a, c, nil)
		return err
	})
	require.NoError(t, err)

	engine := New(store)
	var results []Result
	err = env.View(func(tx *kvstore.Tx) error {
		var err error
		results, err = engine.Run(context.Background(), tx, []codec.ID{a}, []codec.ID{a, b, c}, Config{
			MaxDepth: 1, Damping: 0.85, Limit: 50, Normalize: false,
		})
		return err
	})
	require.NoError(t, err)

	_, cPresent := scoreOf(results, c)
	require.False(t, cPresent)

	bScore, bPresent := scoreOf(results, b)
	require.True(t, bPresent)
	require.Greater(t, bScore, 0.0)

	aScore, aPresent := scoreOf(results, a)
	require.True(t, aPresent)
	require.InDelta(t, 0.15, aScore, 1e-9)
}

// TestUniverseGating reproduces spec.md §8 scenario S2.
func TestUniverseGating(t *testing.T) {
	env := openTestEnv(t)
	store := graph.NewStore(2, nil)
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
		if _, err := store.AddEdge(tx, "mentions", a, b, nil); err != nil {
			return err
		}
		_, err = store.AddEdge(tx, "mentions", b, c, nil)
		return err
	})
	require.NoError(t, err)

	engine := New(store)
	var results []Result
	err = env.View(func(tx *kvstore.Tx) error {
		var err error
		results, err = engine.Run(context.Background(), tx, []codec.ID{a}, []codec.ID{a, b}, Config{
			MaxDepth: 3, Damping: 0.85, Limit: 50, Normalize: false,
		})
		return err
	})
	require.NoError(t, err)

	_, cPresent := scoreOf(results, c)
	require.False(t, cPresent)
	_, bPresent := scoreOf(results, b)
	require.True(t, bPresent)
	_, aPresent := scoreOf(results, a)
	require.True(t, aPresent)
}

// TestCustomWeightsOverrideDefaults reproduces spec.md §8 scenario S3.
func TestCustomWeightsOverrideDefaults(t *testing.T) {
	env := openTestEnv(t)
	store := graph.NewStore(3, nil)
	var a, b, c, d codec.ID

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
		d, err = store.AddNode(tx, "Node", nil)
		if err != nil {
			return err
		}
		if _, err := store.AddEdge(tx, "mentions", a, b, nil); err != nil {
			return err
		}
		if _, err := store.AddEdge(tx, "mentions", b, c, nil); err != nil {
			return err
		}
		_, err = store.AddEdge(tx, "supports", a, d, nil)
		return err
	})
	require.NoError(t, err)

	engine := New(store)
	var results []Result
	err = env.View(func(tx *kvstore.Tx) error {
		var err error
		results, err = engine.Run(context.Background(), tx, []codec.ID{a}, []codec.ID{a, b, c, d}, Config{
			MaxDepth: 1, Damping: 0.85, Limit: 50, Normalize: false,
			WeightOverrides: map[string]float64{"mentions": 0.1, "supports": 1.0},
		})
		return err
	})
	require.NoError(t, err)

	dScore, ok := scoreOf(results, d)
	require.True(t, ok)
	bScore, ok := scoreOf(results, b)
	require.True(t, ok)
	require.Greater(t, dScore, bScore*5)
}

// TestPartOfCap reproduces spec.md §8 scenario S4.
func TestPartOfCap(t *testing.T) {
	env := openTestEnv(t)
	store := graph.NewStore(4, nil)
	var x, y, z, w codec.ID

	err := env.Update(func(tx *kvstore.Tx) error {
		var err error
		x, err = store.AddNode(tx, "Node", nil)
		if err != nil {
			return err
		}
		y, err = store.AddNode(tx, "Node", nil)
		if err != nil {
			return err
		}
		z, err = store.AddNode(tx, "Node", nil)
		if err != nil {
			return err
		}
		w, err = store.AddNode(tx, "Node", nil)
		if err != nil {
			return err
		}
		if _, err := store.AddEdge(tx, "part_of", x, y, nil); err != nil {
			return err
		}
		if _, err := store.AddEdge(tx, "part_of", y, z, nil); err != nil {
			return err
		}
		_, err = store.AddEdge(tx, "part_of", z, w, nil)
		return err
	})
	require.NoError(t, err)

	engine := New(store)
	var results []Result
	err = env.View(func(tx *kvstore.Tx) error {
		var err error
		results, err = engine.Run(context.Background(), tx, []codec.ID{x}, []codec.ID{x, y, z, w}, Config{
			MaxDepth: 3, Damping: 0.85, Limit: 50, Normalize: false, PartOfMaxHops: 2,
		})
		return err
	})
	require.NoError(t, err)

	yScore, ok := scoreOf(results, y)
	require.True(t, ok)
	require.Greater(t, yScore, 0.0)

	zScore, ok := scoreOf(results, z)
	require.True(t, ok)
	require.Greater(t, zScore, 0.0)

	_, wPresent := scoreOf(results, w)
	require.False(t, wPresent)
}

func TestEmptySeedsReturnsEmptyResult(t *testing.T) {
	env := openTestEnv(t)
	store := graph.NewStore(5, nil)
	engine := New(store)

	err := env.View(func(tx *kvstore.Tx) error {
		results, err := engine.Run(context.Background(), tx, nil, []codec.ID{{1}}, Config{MaxDepth: 2, Damping: 0.85, Limit: 50})
		require.NoError(t, err)
		require.Empty(t, results)
		return nil
	})
	require.NoError(t, err)
}
