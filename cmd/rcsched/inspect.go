package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/joshharrison/rcsched/internal/bounds"
	"github.com/joshharrison/rcsched/internal/config"
	"github.com/joshharrison/rcsched/internal/density"
	"github.com/joshharrison/rcsched/internal/fulib"
	"github.com/joshharrison/rcsched/internal/reporter"
	"github.com/joshharrison/rcsched/internal/resultio"
	"github.com/joshharrison/rcsched/internal/schedule"
	"github.com/joshharrison/rcsched/internal/search"
	"github.com/joshharrison/rcsched/internal/ui"
	"github.com/joshharrison/rcsched/internal/verify"
	"github.com/joshharrison/rcsched/internal/viewer"
)

func boundsCmd() *cobra.Command {
	var flagLC int

	cmd := &cobra.Command{
		Use:   "bounds <dfg>",
		Short: "Show ASAP/ALAP windows, slack and critical successors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := loadLibrary()
			if err != nil {
				return err
			}
			g, err := loadGraph(args[0], lib)
			if err != nil {
				return err
			}

			s := bounds.NewState(g, lib)
			s.ComputeASAP(1)
			lc := flagLC
			if lc <= 0 {
				lc = s.DeriveLC(profile.LatencyParameter)
			}
			if err := s.ComputeALAP(lc); err != nil {
				return fmt.Errorf("latency constraint %d: %w", lc, err)
			}

			if flagJSON {
				return outputJSON(viewer.Build(s, lib, nil))
			}
			reporter.PrintBounds(os.Stdout, s, lib, lc)
			return nil
		},
	}

	cmd.Flags().Float64Var(&flagLatencyParameter, "latency-parameter", 1, "Latency constraint as a multiple of the ASAP latency")
	cmd.Flags().IntVar(&flagLC, "lc", 0, "Explicit latency constraint (overrides --latency-parameter)")

	return cmd
}

func densityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "density <dfg>",
		Short: "Show the expected per-type usage at the derived latency constraint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := loadLibrary()
			if err != nil {
				return err
			}
			g, err := loadGraph(args[0], lib)
			if err != nil {
				return err
			}

			s := bounds.NewState(g, lib)
			s.ComputeASAP(1)
			lc := s.DeriveLC(profile.LatencyParameter)
			if err := s.ComputeALAP(lc); err != nil {
				return err
			}
			tbl := density.Build(s, s.Horizon())

			if flagJSON {
				type series struct {
					Type   string    `json:"type"`
					Peak   float64   `json:"peak"`
					Values []float64 `json:"values"`
				}
				out := make([]series, 0, tbl.Types())
				for t := 0; t < tbl.Types(); t++ {
					sr := series{Type: lib.Type(t).Name, Peak: tbl.Peak(t)}
					for c := 1; c <= tbl.Horizon; c++ {
						sr.Values = append(sr.Values, tbl.At(t, c))
					}
					out = append(out, sr)
				}
				return outputJSON(out)
			}

			fmt.Printf("%s %s  %s %d\n\n", ui.BoldCyan("Density"), ui.GraphPrefix(g.Name), ui.Bold("lc"), lc)
			tbl.Render(os.Stdout, lib.Names())
			return nil
		},
	}

	cmd.Flags().Float64Var(&flagLatencyParameter, "latency-parameter", 1, "Latency constraint as a multiple of the ASAP latency")

	return cmd
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <dfg> <schedule-file>",
		Short: "Verify a schedule-and-binding file against its graph",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := loadLibrary()
			if err != nil {
				return err
			}
			g, err := loadGraph(args[0], lib)
			if err != nil {
				return err
			}
			sb, err := resultio.LoadSB(args[1])
			if err != nil {
				return err
			}
			if sb.DFG != "" && sb.DFG != g.Name {
				logger.Warn("schedule file names a different graph", "file", sb.DFG, "graph", g.Name)
			}
			in, err := sb.Input(g)
			if err != nil {
				return err
			}

			rpt := verify.Check(g, lib, in)
			if flagJSON {
				if err := outputJSON(rpt); err != nil {
					return err
				}
			} else {
				printReport(rpt)
			}
			if !rpt.OK() {
				return fmt.Errorf("%d violations", len(rpt.Violations))
			}
			return nil
		},
	}
	return cmd
}

func printReport(rpt *verify.Report) {
	if rpt.OK() {
		fmt.Printf("%s %s %s %s\n", ui.Green("✓"), ui.GraphPrefix(rpt.Graph),
			ui.BoldGreen("schedule valid"), ui.Dim(fmt.Sprintf("(latency %d, peak usage %v)", rpt.Latency, rpt.PeakUsage)))
		return
	}
	fmt.Printf("%s %s %s\n", ui.Red("✗"), ui.GraphPrefix(rpt.Graph), ui.BoldRed(fmt.Sprintf("%d violations", len(rpt.Violations))))
	for _, v := range rpt.Violations {
		fmt.Printf("  %s %s\n", ui.Yellow(fmt.Sprintf("%-15s", v.Kind)), v.Msg)
	}
}

func vizCmd() *cobra.Command {
	var flagFormat string
	var flagServe int
	var flagWithSchedule bool

	cmd := &cobra.Command{
		Use:   "viz <dfg>",
		Short: "Export the graph annotated with bounds and, optionally, a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := loadLibrary()
			if err != nil {
				return err
			}
			g, err := loadGraph(args[0], lib)
			if err != nil {
				return err
			}

			var res *schedule.Result
			lc := 0
			if flagWithSchedule {
				b, _, err := resolveBounds(lib, g.Name, resultio.NoTarget)
				if err != nil {
					return err
				}
				opts := profile.SearchOptions(logger)
				opts.Bounds = b
				if res, err = search.Run(g, lib, opts); err != nil {
					return err
				}
				lc = res.LatencyConstraint
			}

			s := bounds.NewState(g, lib)
			s.ComputeASAP(1)
			if lc < s.ASAPLatency() {
				lc = s.DeriveLC(profile.LatencyParameter)
			}
			if err := s.ComputeALAP(lc); err != nil {
				return err
			}
			gr := viewer.Build(s, lib, res)

			if flagServe > 0 {
				if viewer.IsPortOpen(fmt.Sprintf("localhost:%d", flagServe)) {
					addr := fmt.Sprintf("http://localhost:%d", flagServe)
					if err := viewer.PostGraph(addr, gr); err != nil {
						return err
					}
					fmt.Fprintf(os.Stderr, "🔭 %s %s\n", ui.BoldCyan("Updated viewer"), addr)
					return nil
				}
				addr, err := viewer.Start(flagServe, gr)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "🔭 %s %s %s\n", ui.BoldCyan("Viewer"), addr, ui.Dim("(Ctrl-C to stop)"))
				select {}
			}

			switch flagFormat {
			case "json":
				return outputJSON(gr)
			case "dot":
				return viewer.WriteDOT(os.Stdout, gr)
			default:
				return fmt.Errorf("unknown format %q (want dot or json)", flagFormat)
			}
		},
	}

	addSearchFlags(cmd)
	cmd.Flags().StringVar(&flagFormat, "format", "dot", "Output format: dot or json")
	cmd.Flags().IntVar(&flagServe, "serve", 0, "Serve the graph over HTTP on this port instead of printing it")
	cmd.Flags().BoolVar(&flagWithSchedule, "schedule", false, "Schedule the graph and annotate start cycles and units")

	return cmd
}

func summaryCmd() *cobra.Command {
	var flagFields []string

	cmd := &cobra.Command{
		Use:   "summary <result.json>...",
		Short: "Summarise saved JSON results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(flagFields) > 0 {
				return printFields(args, flagFields)
			}

			var recs []*resultio.Record
			for _, path := range args {
				rec, err := resultio.LoadJSON(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				recs = append(recs, rec)
			}
			if flagJSON {
				rows := make([]resultio.Row, 0, len(recs))
				for _, rec := range recs {
					rows = append(rows, resultio.RowFromRecord(rec))
				}
				return outputJSON(rows)
			}
			reporter.PrintTable(os.Stdout, recs)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&flagFields, "field", nil, "Print these JSON paths per file instead of the table (e.g. result.latency)")

	return cmd
}

// printFields extracts arbitrary paths from saved results, one line per file.
func printFields(paths, fields []string) error {
	fmt.Println(strings.Join(append([]string{"file"}, fields...), "\t"))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if !gjson.ValidBytes(data) {
			return fmt.Errorf("%s: not valid JSON", path)
		}
		cols := []string{path}
		for _, v := range gjson.GetManyBytes(data, fields...) {
			if !v.Exists() {
				cols = append(cols, "-")
				continue
			}
			cols = append(cols, v.String())
		}
		fmt.Println(strings.Join(cols, "\t"))
	}
	return nil
}

func libCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lib",
		Short: "Show the functional unit library and operation aliases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := loadLibrary()
			if err != nil {
				return err
			}
			if flagJSON {
				return outputJSON(struct {
					Types   []fulib.FUType `json:"types"`
					Aliases [][2]string    `json:"aliases"`
				}{lib.Types(), lib.Aliases()})
			}

			fmt.Printf("%s\n\n", ui.BoldCyan("Functional units"))
			fmt.Printf("  %-8s %6s %6s %8s %8s\n", "TYPE", "COUNT", "DELAY", "LEAKAGE", "DYNAMIC")
			for t, ft := range lib.Types() {
				count := "∞"
				if ft.Count > 0 {
					count = fmt.Sprint(ft.Count)
				}
				fmt.Printf("  %s %6s %6d %8d %8d\n", ui.TypeColor(t, fmt.Sprintf("%-8s", ft.Name)), count, ft.Delay, ft.Leakage, ft.Dynamic)
			}
			if aliases := lib.Aliases(); len(aliases) > 0 {
				fmt.Printf("\n%s\n", ui.Bold("Aliases"))
				for _, a := range aliases {
					fmt.Printf("  %-8s %s %s\n", a[0], ui.Dim("→"), a[1])
				}
			}
			return nil
		},
	}
	return cmd
}

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile [path]",
		Short: "Write the effective profile as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultFile
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := config.Save(path, profile); err != nil {
				return err
			}
			fmt.Printf("%s %s\n", ui.Green("✓"), path)
			return nil
		},
	}
	return cmd
}
