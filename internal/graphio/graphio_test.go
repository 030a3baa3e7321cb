package graphio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

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

func TestExportJSONRoundTripsThroughImport(t *testing.T) {
	srcEnv := openTestEnv(t)
	srcStore := graph.NewStore(1, nil)

	err := srcEnv.Update(func(tx *kvstore.Tx) error {
		a, err := srcStore.AddNode(tx, "Person", map[string]any{"name": "Ada"})
		if err != nil {
			return err
		}
		b, err := srcStore.AddNode(tx, "Person", map[string]any{"name": "Grace"})
		if err != nil {
			return err
		}
		_, err = srcStore.AddEdge(tx, "knows", a, b, map[string]any{"since": int64(1840)})
		return err
	})
	require.NoError(t, err)

	var export *Export
	err = srcEnv.View(func(tx *kvstore.Tx) error {
		var err error
		export, err = ExportJSON(tx, srcStore)
		return err
	})
	require.NoError(t, err)
	require.Len(t, export.Nodes, 2)
	require.Len(t, export.Edges, 1)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, export))
	written := buf.String()

	// JSON numbers decode as float64, so the read-back snapshot is
	// compared by its serialized form rather than by Go value types.
	readBack, err := ReadJSON(&buf)
	require.NoError(t, err)
	var rewritten bytes.Buffer
	require.NoError(t, WriteJSON(&rewritten, readBack))
	require.Equal(t, written, rewritten.String())

	dstEnv := openTestEnv(t)
	dstStore := graph.NewStore(2, nil)

	err = dstEnv.Update(func(tx *kvstore.Tx) error {
		idMap, err := ImportJSON(tx, dstStore, readBack)
		require.Len(t, idMap, 2)
		return err
	})
	require.NoError(t, err)

	err = dstEnv.View(func(tx *kvstore.Tx) error {
		reimported, err := ExportJSON(tx, dstStore)
		if err != nil {
			return err
		}
		require.Len(t, reimported.Nodes, 2)
		require.Len(t, reimported.Edges, 1)
		require.Equal(t, "knows", reimported.Edges[0].Type)
		require.EqualValues(t, 1840, reimported.Edges[0].Properties["since"])
		return nil
	})
	require.NoError(t, err)
}

func TestImportJSONRejectsUnknownEndpoint(t *testing.T) {
	env := openTestEnv(t)
	store := graph.NewStore(3, nil)

	export := &Export{
		Edges: []ExportedEdge{{ID: "e1", Type: "knows", From: "missing-a", To: "missing-b"}},
	}

	err := env.Update(func(tx *kvstore.Tx) error {
		_, err := ImportJSON(tx, store, export)
		return err
	})
	require.Error(t, err)
}
