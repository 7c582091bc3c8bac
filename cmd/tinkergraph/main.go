// Package main provides the tinkergraph CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/orneryd/tinkergraph/pkg/config"
	"github.com/orneryd/tinkergraph/pkg/index"
	"github.com/orneryd/tinkergraph/pkg/metrics"
	"github.com/orneryd/tinkergraph/pkg/storage"
	"github.com/orneryd/tinkergraph/pkg/structure"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tinkergraph",
		Short: "tinkergraph - embeddable in-memory property graph",
		Long: `tinkergraph is an in-memory property graph engine written in Go.

Features:
  • Vertex properties with single, list and set cardinality
  • Single, composite and range indexes with a bounded index cache
  • Pooled element shells with memory accounting
  • Narrowing of foreign elements with per-graph statistics`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "YAML config file (env overrides use the TINKERGRAPH_ prefix)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tinkergraph v%s (%s)\n", version, commit)
		},
	})

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE:  runConfig,
	}
	configCmd.Flags().String("write", "", "Write the configuration to this file instead of stdout")
	rootCmd.AddCommand(configCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "modern",
		Short: "Build the classic six-vertex sample graph and query it",
		RunE:  runModern,
	})

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "Load a synthetic graph and report lookup, cache and memory statistics",
		RunE:  runBench,
	}
	benchCmd.Flags().Int("vertices", 10000, "Number of vertices to create")
	benchCmd.Flags().Int("degree", 3, "Outgoing edges per vertex")
	benchCmd.Flags().Int("lookups", 1000, "Number of property lookups")
	benchCmd.Flags().Bool("index", false, "Index the looked-up keys first")
	benchCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address after the run (e.g. :9090)")
	rootCmd.AddCommand(benchCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func openGraph(cmd *cobra.Command) (*storage.Graph, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	g, err := storage.NewGraph(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating graph: %w", err)
	}
	return g, nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out, err := cfg.YAML()
	if err != nil {
		return err
	}
	if path, _ := cmd.Flags().GetString("write"); path != "" {
		if err := os.WriteFile(path, out, 0644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		fmt.Printf("✅ Configuration written to %s\n", path)
		return nil
	}
	fmt.Print(string(out))
	return nil
}

func runModern(cmd *cobra.Command, args []string) error {
	g, err := openGraph(cmd)
	if err != nil {
		return err
	}
	defer g.Close()

	if err := loadModern(g); err != nil {
		return err
	}
	fmt.Printf("📊 %s\n", g)

	marko, err := g.VerticesByProperty("name", "marko")
	if err != nil {
		return err
	}
	for _, v := range marko {
		fmt.Printf("\n%s knows:\n", prop(v, "name"))
		for _, friend := range v.Vertices(structure.Out, "knows") {
			fmt.Printf("  • %s (age %v)\n", prop(friend, "name"), prop(friend, "age"))
		}
	}

	older, err := g.VerticesInRange("age", storage.RangeQuery{Min: 30, IncludeMin: true})
	if err != nil {
		return err
	}
	fmt.Println("\nPeople aged 30 or more:")
	for _, v := range older {
		fmt.Printf("  • %s (%v)\n", prop(v, "name"), prop(v, "age"))
	}

	fmt.Printf("\nIndex cache: %s\n", g.CacheStatistics())
	fmt.Printf("Memory:      %s\n", g.MemoryStatistics())
	return nil
}

// prop returns the value of key or "-".
func prop(v *storage.Vertex, key string) any {
	if value, ok := v.PropertyValue(key); ok {
		return value
	}
	return "-"
}

// loadModern creates the six-vertex sample graph.
func loadModern(g *storage.Graph) error {
	people := []struct {
		name string
		age  int
	}{{"marko", 29}, {"vadas", 27}, {"josh", 32}, {"peter", 35}}
	byName := make(map[string]*storage.Vertex)
	for _, p := range people {
		v, err := g.AddVertex("person", "name", p.name, "age", p.age)
		if err != nil {
			return err
		}
		byName[p.name] = v
	}
	for _, s := range []string{"lop", "ripple"} {
		v, err := g.AddVertex("software", "name", s, "lang", "java")
		if err != nil {
			return err
		}
		byName[s] = v
	}

	edges := []struct {
		out, label, in string
		weight         float64
	}{
		{"marko", "knows", "vadas", 0.5},
		{"marko", "knows", "josh", 1.0},
		{"marko", "created", "lop", 0.4},
		{"josh", "created", "ripple", 1.0},
		{"josh", "created", "lop", 0.4},
		{"peter", "created", "lop", 0.2},
	}
	for _, e := range edges {
		if _, err := byName[e.out].AddEdge(e.label, byName[e.in], "weight", e.weight); err != nil {
			return err
		}
	}
	return nil
}

func runBench(cmd *cobra.Command, args []string) error {
	vertices, _ := cmd.Flags().GetInt("vertices")
	degree, _ := cmd.Flags().GetInt("degree")
	lookups, _ := cmd.Flags().GetInt("lookups")
	indexed, _ := cmd.Flags().GetBool("index")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	if vertices <= 0 || degree < 0 || lookups < 0 {
		return fmt.Errorf("vertices must be positive, degree and lookups non-negative")
	}

	g, err := openGraph(cmd)
	if err != nil {
		return err
	}
	defer g.Close()

	if indexed {
		if err := g.CreateIndex(storage.VertexKind, index.TypeSingle, "bucket"); err != nil {
			return err
		}
		if err := g.CreateIndex(storage.VertexKind, index.TypeRange, "score"); err != nil {
			return err
		}
	}

	fmt.Printf("🏗️  Loading %s vertices with %d edges each...\n", humanize.Comma(int64(vertices)), degree)
	start := time.Now()
	all := make([]*storage.Vertex, vertices)
	for i := range all {
		v, err := g.AddVertex("node", "bucket", i%100, "score", float64(i%1000)/10)
		if err != nil {
			return err
		}
		all[i] = v
	}
	for i, v := range all {
		for d := 1; d <= degree; d++ {
			if _, err := v.AddEdge("link", all[(i*7+d)%vertices]); err != nil {
				return err
			}
		}
	}
	fmt.Printf("   ✅ %s in %v\n", g, time.Since(start).Round(time.Millisecond))

	fmt.Printf("🔍 Running %s property and range lookups...\n", humanize.Comma(int64(lookups)))
	start = time.Now()
	found := 0
	for i := 0; i < lookups; i++ {
		byBucket, err := g.VerticesByProperty("bucket", i%10)
		if err != nil {
			return err
		}
		inRange, err := g.VerticesInRange("score", storage.RangeQuery{Min: float64(i % 50), Max: float64(i%50 + 5)})
		if err != nil {
			return err
		}
		found += len(byBucket) + len(inRange)
	}
	elapsed := time.Since(start)
	fmt.Printf("   ✅ %s results in %v\n", humanize.Comma(int64(found)), elapsed.Round(time.Microsecond))

	fmt.Println("🧹 Removing every tenth vertex...")
	for i := 0; i < vertices; i += 10 {
		if err := all[i].Remove(); err != nil {
			return err
		}
	}
	dropped := g.ForceCleanup()
	fmt.Printf("   ✅ %s remaining, %s idle shells released\n", g, humanize.Comma(int64(dropped)))

	fmt.Println()
	fmt.Printf("Index cache: %s\n", g.CacheStatistics())
	for _, rec := range g.IndexCache().Recommendations() {
		fmt.Printf("  • %s\n", rec)
	}
	fmt.Printf("Memory:      %s\n", g.MemoryStatistics())

	if metricsAddr == "" {
		return nil
	}
	return serveMetrics(g, metricsAddr)
}

// serveMetrics exposes the graph collector until interrupted.
func serveMetrics(g *storage.Graph, addr string) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(metrics.NewCollector(g)); err != nil {
		return fmt.Errorf("registering collector: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	fmt.Printf("\n📈 Metrics on http://%s/metrics (Ctrl+C to stop)\n", addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return fmt.Errorf("serving metrics: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
