package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshharrison/rcsched/internal/batch"
	"github.com/joshharrison/rcsched/internal/dfg"
	"github.com/joshharrison/rcsched/internal/fulib"
	"github.com/joshharrison/rcsched/internal/listsched"
	"github.com/joshharrison/rcsched/internal/metrics"
	"github.com/joshharrison/rcsched/internal/reporter"
	"github.com/joshharrison/rcsched/internal/resultio"
	"github.com/joshharrison/rcsched/internal/schedule"
	"github.com/joshharrison/rcsched/internal/search"
	"github.com/joshharrison/rcsched/internal/ui"
	"github.com/joshharrison/rcsched/internal/verify"
)

func scheduleCmd() *cobra.Command {
	var flagGantt bool
	var flagSave bool

	cmd := &cobra.Command{
		Use:   "schedule <dfg>",
		Short: "Schedule one dataflow graph",
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
			b, target, err := resolveBounds(lib, g.Name, resultio.NoTarget)
			if err != nil {
				return err
			}

			opts := profile.SearchOptions(logger)
			opts.Bounds = b

			rec := resultio.NewRecord(g.Name)
			rec.Ops, rec.Edges = g.Len(), g.EdgeCount()
			rec.Library = lib.Types()
			rec.Bounds = b.Fit(lib.Len())
			rec.TargetLatency = target
			if opts.Engine == schedule.EngineLS {
				rec.Ranking = string(opts.Ranking)
			}

			res, err := search.Run(g, lib, opts)
			if err != nil {
				return err
			}
			rec.Finish(res)

			if res.Start != nil {
				if rpt := verify.Check(g, lib, verify.FromResult(g, res, rec.Bounds)); !rpt.OK() {
					for _, v := range rpt.Violations {
						logger.Warn("schedule check failed", "kind", v.Kind, "msg", v.Msg)
					}
				}
			}

			if flagSave {
				if err := saveRun(g, lib, rec, opts); err != nil {
					return err
				}
			}

			rpt := reporter.New(g, lib, res, rec.Bounds)
			rpt.Elapsed = time.Duration(rec.RuntimeMS * float64(time.Millisecond))
			if flagJSON {
				data, err := rpt.JSON()
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			rpt.PrintStatus(os.Stdout)
			if flagGantt {
				rpt.PrintGantt(os.Stdout)
			}
			fmt.Print(rpt.Summary())
			if target != resultio.NoTarget {
				row := resultio.RowFromRecord(rec)
				fmt.Printf("Target:     %d %s %s\n", target, ui.StatusIcon(row.Status()), ui.Status(row.Status()))
			}
			return nil
		},
	}

	addSearchFlags(cmd)
	cmd.Flags().StringVar(&flagOut, "out", "results", "Output directory for saved results")
	cmd.Flags().BoolVar(&flagSave, "save", false, "Save JSON, schedule-and-binding file and CSV row under --out")
	cmd.Flags().BoolVar(&flagGantt, "gantt", false, "Print a Gantt chart of the bound schedule")

	return cmd
}

// saveRun writes the JSON record, the checker-format file and a CSV row.
func saveRun(g *dfg.Graph, lib *fulib.Library, rec *resultio.Record, opts search.Options) error {
	res := rec.Result
	dir := resultio.ScaleDir(profile.OutDir, profile.Scale)
	stem := resultio.FileStem(string(opts.Engine), g.Name,
		opts.Engine == schedule.EngineLS && opts.Ranking == listsched.RankingImproved,
		opts.Priority.Stiffness, opts.Priority.PowerWeighted)

	path := filepath.Join(dir, stem+".json")
	if err := resultio.SaveJSON(path, rec); err != nil {
		return err
	}
	logger.Info("result saved", "path", path)

	if res.Start != nil {
		sbPath := filepath.Join(dir, stem+".txt")
		if err := resultio.SaveSB(sbPath, resultio.NewSB(g, lib, res, rec.Bounds)); err != nil {
			return err
		}
		logger.Info("schedule saved", "path", sbPath)
	}

	if profile.CSVLog != "" {
		if err := resultio.NewCSVLog(profile.CSVLog).Append(resultio.RowFromRecord(rec)); err != nil {
			return err
		}
	}
	return nil
}

func batchCmd() *cobra.Command {
	var flagMetricsFile string
	var flagFollow bool
	var flagCSV string

	cmd := &cobra.Command{
		Use:   "batch <dfg>...",
		Short: "Schedule many graphs concurrently",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := loadLibrary()
			if err != nil {
				return err
			}
			ct, err := loadConstraints()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case <-sigCh:
					fmt.Fprintf(os.Stderr, "\n🛑 %s\n", ui.Yellow("Received interrupt, cancelling..."))
					cancel()
				case <-ctx.Done():
				}
			}()

			csvPath := profile.CSVLog
			if flagCSV != "" {
				csvPath = flagCSV
			}
			var csvLog *resultio.CSVLog
			if csvPath != "" {
				csvLog = resultio.NewCSVLog(csvPath)
			}
			rec := metrics.New()

			cfg := batch.Config{
				MaxParallel: profile.MaxParallel,
				OutDir:      profile.OutDir,
				Scale:       profile.Scale,
				Library:     lib,
				Constraints: ct,
				Options:     profile.SearchOptions(nil),
				CSV:         csvLog,
				Metrics:     rec,
				Progress:    os.Stderr,
				LogLevel:    parseLevel(profile.LogLevel),
			}
			if flagJSON {
				cfg.Progress = nil
			}
			if flagFollow {
				cfg.Follow = os.Stderr
			}

			if !flagJSON {
				ui.PrintLogo()
			}
			runs, runErr := batch.New(cfg).Run(ctx, args)

			if flagMetricsFile != "" {
				if err := rec.WriteTextfile(flagMetricsFile); err != nil {
					return err
				}
			}

			recs := batch.Records(runs)
			if flagJSON {
				if err := outputJSON(recs); err != nil {
					return err
				}
			} else {
				fmt.Println()
				reporter.PrintTable(os.Stdout, recs)
			}

			failed := 0
			for _, run := range runs {
				if run.Status == batch.StatusFailed {
					failed++
					logger.Error("run failed", "graph", run.Graph, "err", run.Err)
				}
			}
			if runErr != nil {
				return runErr
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d runs failed", failed, len(runs))
			}
			return nil
		},
	}

	addSearchFlags(cmd)
	cmd.Flags().StringVar(&flagOut, "out", "results", "Output directory")
	cmd.Flags().IntVar(&flagMaxParallel, "max-parallel", 4, "Max concurrent scheduling runs")
	cmd.Flags().StringVar(&flagMetricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	cmd.Flags().BoolVar(&flagFollow, "follow", false, "Stream each run's log to stderr")
	cmd.Flags().StringVar(&flagCSV, "csv", "", "Append summary rows to this CSV file")

	return cmd
}
