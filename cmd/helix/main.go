// Command helix is the thin ambient entrypoint around the helix
// Engine: a version command, a serve command that opens a store and
// blocks until interrupted, a bench command that times PPR,
// hybrid-search, and traversal calls against synthetic data, and
// export/import commands that round-trip a store through graphio's
// JSON snapshot format (spec.md §1's "CLI harnesses... are external
// collaborators" — this binary is ambient scaffolding around the
// core, not the core itself).
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oneiron-dev/oneiron-helix/helix"
	"github.com/oneiron-dev/oneiron-helix/internal/codec"
	"github.com/oneiron-dev/oneiron-helix/internal/config"
	"github.com/oneiron-dev/oneiron-helix/internal/graphio"
	"github.com/oneiron-dev/oneiron-helix/internal/iter"
	"github.com/oneiron-dev/oneiron-helix/internal/kvstore"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "helix",
		Short: "Helix graph+vector+full-text engine",
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("helix v%s (%s)\n", version, commit)
		},
	})

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Open a store and hold it open until interrupted",
		RunE:  runServe,
	}
	serveCmd.Flags().String("data-dir", "", "Data directory (empty means in-memory)")
	serveCmd.Flags().Int("dimensions", 8, "Vector embedding dimensionality")
	rootCmd.AddCommand(serveCmd)

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "Time PPR and hybrid-search calls against synthetic data",
		RunE:  runBench,
	}
	benchCmd.Flags().Int("nodes", 2000, "Number of synthetic nodes")
	benchCmd.Flags().Int("edges-per-node", 4, "Out-edges per node")
	benchCmd.Flags().Int("dimensions", 32, "Vector embedding dimensionality")
	benchCmd.Flags().Int("depth", 3, "PPR max depth")
	rootCmd.AddCommand(benchCmd)

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export a store's nodes and edges as a JSON snapshot",
		RunE:  runExport,
	}
	exportCmd.Flags().String("data-dir", "", "Data directory to open (empty means in-memory, produces an empty snapshot)")
	exportCmd.Flags().String("out", "", "Output file (defaults to stdout)")
	rootCmd.AddCommand(exportCmd)

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Recreate nodes and edges from a graphio JSON snapshot, assigning fresh ids",
		RunE:  runImport,
	}
	importCmd.Flags().String("data-dir", "", "Data directory to write into (empty means in-memory)")
	importCmd.Flags().String("in", "", "Input file (defaults to stdin)")
	rootCmd.AddCommand(importCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	out, _ := cmd.Flags().GetString("out")

	cfg := config.LoadFromEnv()
	cfg.Storage.DataDir = dataDir
	e, err := helix.Open(cfg, 1)
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer e.Close()

	var export *graphio.Export
	err = e.View(func(tx *kvstore.Tx) error {
		var err error
		export, err = graphio.ExportJSON(tx, e.Store())
		return err
	})
	if err != nil {
		return fmt.Errorf("exporting: %w", err)
	}

	w := os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("creating %s: %w", out, err)
		}
		defer f.Close()
		w = f
	}
	if err := graphio.WriteJSON(w, export); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	fmt.Fprintf(os.Stderr, "exported %d nodes, %d edges\n", len(export.Nodes), len(export.Edges))
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	in, _ := cmd.Flags().GetString("in")

	cfg := config.LoadFromEnv()
	cfg.Storage.DataDir = dataDir
	e, err := helix.Open(cfg, 1)
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer e.Close()

	r := os.Stdin
	if in != "" {
		f, err := os.Open(in)
		if err != nil {
			return fmt.Errorf("opening %s: %w", in, err)
		}
		defer f.Close()
		r = f
	}
	export, err := graphio.ReadJSON(r)
	if err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}

	var idMap map[string]codec.ID
	err = e.Update(func(tx *kvstore.Tx) error {
		var err error
		idMap, err = graphio.ImportJSON(tx, e.Store(), export)
		return err
	})
	if err != nil {
		return fmt.Errorf("importing: %w", err)
	}
	fmt.Fprintf(os.Stderr, "imported %d nodes, %d edges\n", len(idMap), len(export.Edges))
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	dimensions, _ := cmd.Flags().GetInt("dimensions")

	cfg := config.LoadFromEnv()
	if dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	fmt.Printf("helix v%s\n", version)
	fmt.Printf("  data directory: %s\n", describeDataDir(cfg.Storage.DataDir))
	fmt.Printf("  hnsw: M=%d ef_construction=%d ef_search=%d\n", cfg.HNSW.M, cfg.HNSW.EfConstruction, cfg.HNSW.EfSearch)
	fmt.Printf("  bm25: k1=%.2f b=%.2f\n", cfg.BM25.K1, cfg.BM25.B)
	fmt.Printf("  ppr cache: enabled=%v recent=%dh warm=%dh cold=%dh\n",
		cfg.Cache.Enabled, cfg.Cache.TTLRecentHours, cfg.Cache.TTLWarmHours, cfg.Cache.TTLColdHours)

	e, err := helix.Open(cfg, dimensions)
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer func() {
		if err := e.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "closing engine: %v\n", err)
		}
	}()

	fmt.Println("store open, press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	fmt.Println("\nshutting down")
	return nil
}

func describeDataDir(dir string) string {
	if dir == "" {
		return "(in-memory)"
	}
	return dir
}

func runBench(cmd *cobra.Command, args []string) error {
	nodes, _ := cmd.Flags().GetInt("nodes")
	edgesPerNode, _ := cmd.Flags().GetInt("edges-per-node")
	dimensions, _ := cmd.Flags().GetInt("dimensions")
	depth, _ := cmd.Flags().GetInt("depth")

	cfg := config.DefaultConfig()
	e, err := helix.Open(cfg, dimensions)
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer e.Close()

	fmt.Printf("seeding %d nodes, ~%d edges each, %d-dim vectors...\n", nodes, edgesPerNode, dimensions)
	ids, err := seedGraph(e, nodes, edgesPerNode, dimensions)
	if err != nil {
		return fmt.Errorf("seeding: %w", err)
	}

	universe := ids
	seeds := ids[:min(10, len(ids))]

	start := time.Now()
	var pprErr error
	err = e.View(func(tx *kvstore.Tx) error {
		_, pprErr = e.PPR(context.Background(), tx, seeds, universe, helix.PPRParams{MaxDepth: helix.Ptr(depth)})
		return pprErr
	})
	if err != nil {
		return fmt.Errorf("ppr bench: %w", err)
	}
	fmt.Printf("ppr(%d seeds, %d universe, depth=%d): %s\n", len(seeds), len(universe), depth, time.Since(start))

	query := randomVector(dimensions)
	start = time.Now()
	err = e.View(func(tx *kvstore.Tx) error {
		_, err := e.SearchHybrid(tx, query, "bench term text", 10, "Bench", nil)
		return err
	})
	if err != nil {
		return fmt.Errorf("hybrid bench: %w", err)
	}
	fmt.Printf("search_hybrid(k=10): %s\n", time.Since(start))

	start = time.Now()
	var reached int
	err = e.View(func(tx *kvstore.Tx) error {
		twoHop := iter.Out(tx, e.Store(), "mentions")(iter.Out(tx, e.Store(), "mentions")(iter.Of(seeds)))
		n, err := iter.Count(twoHop)
		reached = n
		return err
	})
	if err != nil {
		return fmt.Errorf("traversal bench: %w", err)
	}
	fmt.Printf("traverse(seeds=%d, out.out(\"mentions\")): %d reached in %s\n", len(seeds), reached, time.Since(start))

	return nil
}

func seedGraph(e *helix.Engine, nodes, edgesPerNode, dimensions int) ([]codec.ID, error) {
	ids := make([]codec.ID, 0, nodes)
	err := e.Update(func(tx *kvstore.Tx) error {
		for i := 0; i < nodes; i++ {
			id, err := e.Store().AddNode(tx, "Bench", nil)
			if err != nil {
				return err
			}
			ids = append(ids, id)
			if err := e.Text().Index(tx, id, "bench term text"); err != nil {
				return err
			}
		}
		for _, id := range ids {
			for j := 0; j < edgesPerNode; j++ {
				target := ids[rand.Intn(len(ids))]
				if target == id {
					continue
				}
				if _, err := e.Store().AddEdge(tx, "mentions", id, target, nil); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if err := e.Vectors().Add(id, "Bench", randomVector(dimensions)); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func randomVector(dimensions int) []float32 {
	v := make([]float32, dimensions)
	for i := range v {
		v[i] = rand.Float32()
	}
	return v
}
