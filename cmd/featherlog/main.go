// Command featherlog is a thin CLI over the featherlog engine: declare
// relations, load facts, and drive recursive rules to a fixpoint against
// a SQLite database.
package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"

	"featherlog/internal/config"
	"featherlog/internal/logging"
	"featherlog/pkg/featherlog"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const version = "0.1.0"

var (
	// Global flags
	verbose    bool
	dbPath     string
	configPath string

	// closure flags
	edgesPath string
	maxPasses int

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "featherlog",
	Short: "featherlog - Datalog over SQLite",
	Long: `featherlog compiles a small Datalog-style rule algebra (relations,
variables, conjunction, disjunction, recursive rule heads) to SQL and
evaluates rules to a least fixpoint against a SQLite database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cwd, err := os.Getwd()
		if err == nil {
			if lerr := logging.Initialize(cwd); lerr != nil {
				logger.Warn("file logging disabled", zap.Error(lerr))
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// closureCmd loads an edge list and computes its transitive closure.
var closureCmd = &cobra.Command{
	Use:   "closure",
	Short: "Compute the transitive closure of an edge list",
	Long: `Loads a CSV edge list (one "from,to" integer pair per line) into a
base relation "edge", then drives the recursive rule

  path(x, z) <= edge(x, z) | (edge(x, y) & path(y, z))

to its fixpoint and prints every reachable pair.`,
	RunE: runClosure,
}

// statsCmd prints catalog and row-count statistics.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cataloged relations and row counts",
	RunE:  runStats,
}

// versionCmd prints the version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the featherlog version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("featherlog %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default from config, \":memory:\" works)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".featherlog/config.yaml", "config file path")

	closureCmd.Flags().StringVar(&edgesPath, "edges", "", "CSV edge list (required)")
	closureCmd.Flags().IntVar(&maxPasses, "max-passes", 0, "override the fixpoint pass bound")
	_ = closureCmd.MarkFlagRequired("edges")

	rootCmd.AddCommand(closureCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadStore() (*featherlog.Store, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if maxPasses > 0 {
		cfg.Engine.MaxPasses = maxPasses
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	st, err := featherlog.OpenWithConfig(cfg.Database.Path, cfg)
	if err != nil {
		return nil, nil, err
	}
	return st, cfg, nil
}

func runClosure(cmd *cobra.Command, args []string) error {
	edges, err := readEdges(edgesPath)
	if err != nil {
		return err
	}
	logger.Info("Loaded edge list", zap.String("path", edgesPath), zap.Int("edges", len(edges)))

	st, _, err := loadStore()
	if err != nil {
		return err
	}
	defer st.Close()

	vs := featherlog.Vars("x", "y", "z")
	x, y, z := vs[0], vs[1], vs[2]

	var stats featherlog.RunStats
	var pairs [][]any
	err = st.Do(func(c *featherlog.Context) error {
		edge, err := c.Relation("edge", featherlog.Col("x", featherlog.TypeInt), featherlog.Col("y", featherlog.TypeInt))
		if err != nil {
			return err
		}
		path, err := c.RelationSet("path", featherlog.Col("x", featherlog.TypeInt), featherlog.Col("y", featherlog.TypeInt))
		if err != nil {
			return err
		}
		if _, err := c.Insert(edge, edges); err != nil {
			return err
		}

		head, err := path.Apply(x, z)
		if err != nil {
			return err
		}
		direct, err := edge.Apply(x, z)
		if err != nil {
			return err
		}
		hop, err := edge.Apply(x, y)
		if err != nil {
			return err
		}
		rec, err := path.Apply(y, z)
		if err != nil {
			return err
		}
		closure, err := featherlog.NewRule(head, direct.Or(hop.And(rec)))
		if err != nil {
			return err
		}

		stats, err = c.Run(closure)
		if err != nil {
			return err
		}

		rs, err := c.Select([]featherlog.Var{x, y}, path.MustApply(x, y))
		if err != nil {
			return err
		}
		pairs, err = rs.Rows()
		return err
	})
	if err != nil {
		return err
	}

	sort.Slice(pairs, func(i, j int) bool {
		a, b := pairs[i], pairs[j]
		if a[0].(int64) != b[0].(int64) {
			return a[0].(int64) < b[0].(int64)
		}
		return a[1].(int64) < b[1].(int64)
	})
	for _, p := range pairs {
		fmt.Printf("%d,%d\n", p[0], p[1])
	}
	logger.Info("Closure complete",
		zap.Int("passes", stats.Passes),
		zap.Int64("rows", stats.Rows),
		zap.Bool("converged", stats.Converged))
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	st, _, err := loadStore()
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Stats()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		kind := "base"
		if rel, ok := st.Relation(name); ok && rel.Derived {
			kind = "derived"
		}
		fmt.Printf("%-20s %-8s %d rows\n", name, kind, stats[name])
	}
	return nil
}

// readEdges parses a CSV edge list of integer pairs.
func readEdges(path string) ([][]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open edge list: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse edge list: %w", err)
	}
	edges := make([][]any, 0, len(records))
	for i, rec := range records {
		if len(rec) != 2 {
			return nil, fmt.Errorf("edge list line %d: want 2 fields, got %d", i+1, len(rec))
		}
		from, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("edge list line %d: %w", i+1, err)
		}
		to, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, fmt.Errorf("edge list line %d: %w", i+1, err)
		}
		edges = append(edges, []any{from, to})
	}
	return edges, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
