package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshharrison/rcsched/internal/config"
	"github.com/joshharrison/rcsched/internal/dfg"
	"github.com/joshharrison/rcsched/internal/fulib"
)

var (
	flagConfig      string
	flagLogLevel    string
	flagLogFormat   string
	flagJSON        bool
	flagLib         string
	flagConstraints string
	flagBounds      string
	flagOut         string

	flagEngine           string
	flagRanking          string
	flagFeatS            bool
	flagFeatP            bool
	flagLatencyParameter float64
	flagFDSDepth         int
	flagZeroBound        string
	flagScale            float64
	flagStrict           bool
	flagMaxParallel      int
)

// Resolved once per invocation in the root's PersistentPreRunE.
var (
	profile config.Profile
	logger  *slog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rcsched",
		Short: "Schedule dataflow graphs onto a limited set of functional units",
		Long: `rcsched assigns every operation of a dataflow graph a start cycle and a
functional unit instance, using force-directed scheduling or list scheduling
under per-type resource bounds, and reports latency and unit usage.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Profile YAML (default: ./"+config.DefaultFile+" if present)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format: text or json")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")
	rootCmd.PersistentFlags().StringVar(&flagLib, "lib", "", "Functional unit library file")

	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(boundsCmd())
	rootCmd.AddCommand(densityCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(vizCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(libCmd())
	rootCmd.AddCommand(profileCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the profile, applies flag overrides and builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	p, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	applyOverrides(cmd, &p)
	if err := p.Validate(); err != nil {
		return err
	}
	profile = p
	logger = newLogger(p.LogLevel, p.LogFormat, os.Stderr)
	return nil
}

// applyOverrides copies every flag the user set onto p.
func applyOverrides(cmd *cobra.Command, p *config.Profile) {
	f := cmd.Flags()
	set := func(name string, apply func()) {
		if fl := f.Lookup(name); fl != nil && fl.Changed {
			apply()
		}
	}
	set("log-level", func() { p.LogLevel = flagLogLevel })
	set("log-format", func() { p.LogFormat = flagLogFormat })
	set("engine", func() { p.Engine = flagEngine })
	set("ranking", func() { p.Ranking = flagRanking })
	set("feat-s", func() { p.Stiffness = flagFeatS })
	set("feat-p", func() { p.PowerWeighted = flagFeatP })
	set("latency-parameter", func() { p.LatencyParameter = flagLatencyParameter })
	set("fds-depth", func() { p.FDSDepth = flagFDSDepth })
	set("zero-bound", func() { p.ZeroBoundPolicy = flagZeroBound })
	set("scale", func() { p.Scale = flagScale })
	set("strict", func() { p.Strict = flagStrict })
	set("out", func() { p.OutDir = flagOut })
	set("max-parallel", func() { p.MaxParallel = flagMaxParallel })
}

// addSearchFlags registers the flags that shape a scheduling run.
func addSearchFlags(cmd *cobra.Command) {
	d := config.Default()
	cmd.Flags().StringVar(&flagEngine, "engine", d.Engine, "Scheduling engine: fds or ls")
	cmd.Flags().StringVar(&flagRanking, "ranking", d.Ranking, "List scheduler ranking: baseline or improved")
	cmd.Flags().BoolVar(&flagFeatS, "feat-s", d.Stiffness, "Use the stiffness tie-break")
	cmd.Flags().BoolVar(&flagFeatP, "feat-p", d.PowerWeighted, "Use the power-weighted primary score")
	cmd.Flags().Float64Var(&flagLatencyParameter, "latency-parameter", d.LatencyParameter, "Latency constraint as a multiple of the ASAP latency")
	cmd.Flags().IntVar(&flagFDSDepth, "fds-depth", d.FDSDepth, "Force-directed propagation depth (0 = full)")
	cmd.Flags().StringVar(&flagZeroBound, "zero-bound", d.ZeroBoundPolicy, "Zero resource bound policy: reject or floor")
	cmd.Flags().BoolVar(&flagStrict, "strict", d.Strict, "Treat operations started after their latest start as infeasible")
	addBoundsFlags(cmd)
}

// addBoundsFlags registers the resource bound sources.
func addBoundsFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagConstraints, "constraints", "", "Constraint table with per-graph target latency and bounds")
	cmd.Flags().StringVar(&flagBounds, "bounds", "", "Comma separated per-type bounds (-1 = unbounded); overrides --constraints")
	cmd.Flags().Float64Var(&flagScale, "scale", 1, "Multiply constraint-table bounds by this factor")
}

func loadLibrary() (*fulib.Library, error) {
	if flagLib == "" {
		return nil, errors.New("--lib is required")
	}
	lib, err := fulib.Load(flagLib)
	if err != nil {
		return nil, err
	}
	if len(profile.Aliases) > 0 {
		lib = lib.WithAliases(profile.Aliases)
	}
	return lib, nil
}

func loadGraph(path string, lib *fulib.Library) (*dfg.Graph, error) {
	g, err := dfg.ParseFile(path, lib)
	if err != nil {
		return nil, err
	}
	logger.Debug("graph loaded", "graph", g.Name, "ops", g.Len(), "edges", g.EdgeCount())
	return g, nil
}

func loadConstraints() (fulib.ConstraintTable, error) {
	if flagConstraints == "" {
		return nil, nil
	}
	return fulib.LoadConstraints(flagConstraints)
}

// resolveBounds picks the bound vector for graph: --bounds, then the
// scaled constraint-table row, then the library's own counts. The second
// return is the target latency, or resultio.NoTarget.
func resolveBounds(lib *fulib.Library, graph string, noTarget int) (fulib.Bounds, int, error) {
	if flagBounds != "" {
		b, err := fulib.ParseBounds(flagBounds)
		return b, noTarget, err
	}
	ct, err := loadConstraints()
	if err != nil {
		return nil, noTarget, err
	}
	if c, ok := ct.Lookup(graph); ok {
		return c.Bounds.Scale(profile.Scale), c.TargetLatency, nil
	}
	return lib.StaticBounds(), noTarget, nil
}

func outputJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
