// Package batch schedules many graphs concurrently. Each graph gets its own
// bounds state, logger and output files, so runs share nothing but the
// read-only library and the append-only summary sinks.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joshharrison/rcsched/internal/dfg"
	"github.com/joshharrison/rcsched/internal/fulib"
	"github.com/joshharrison/rcsched/internal/listsched"
	"github.com/joshharrison/rcsched/internal/resultio"
	"github.com/joshharrison/rcsched/internal/schedule"
	"github.com/joshharrison/rcsched/internal/search"
	"github.com/joshharrison/rcsched/internal/ui"
)

// ErrNoLibrary is returned when the config carries no library.
var ErrNoLibrary = errors.New("batch: no functional unit library")

// Runner executes a batch of scheduling runs.
type Runner struct {
	Config Config
	runs   map[string]*Run
	mu     sync.Mutex // guards runs and serialises Progress/Follow output
}

// New creates a Runner, filling zero config values with defaults.
func New(cfg Config) *Runner {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 4
	}
	if cfg.OutDir == "" {
		cfg.OutDir = "results"
	}
	if cfg.Scale == 0 {
		cfg.Scale = 1
	}
	if cfg.Progress == nil {
		cfg.Progress = io.Discard
	}
	return &Runner{
		Config: cfg,
		runs:   make(map[string]*Run),
	}
}

// Run schedules every graph file in paths with at most MaxParallel runs in
// flight. Per-run failures are recorded on the returned runs; the error is
// non-nil only when the batch itself could not proceed.
func (r *Runner) Run(ctx context.Context, paths []string) ([]*Run, error) {
	if r.Config.Library == nil {
		return nil, ErrNoLibrary
	}
	dir := resultio.ScaleDir(r.Config.OutDir, r.Config.Scale)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	runs := make([]*Run, len(paths))
	for i, p := range paths {
		runs[i] = &Run{RunID: uuid.NewString(), Path: p, Graph: dfg.NameFromPath(p), Status: StatusPending}
		r.mu.Lock()
		r.runs[runs[i].RunID] = runs[i]
		r.mu.Unlock()
	}

	fmt.Fprintf(r.Config.Progress, "\n🚀 %s (%d graphs, max %d parallel)\n",
		ui.BoldCyan("Batch started"), len(paths), r.Config.MaxParallel)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Config.MaxParallel)
	for _, run := range runs {
		if gctx.Err() != nil {
			r.setStatus(run, StatusCancelled, gctx.Err())
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				r.setStatus(run, StatusCancelled, err)
				return nil
			}
			r.execute(run, dir)
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return runs, fmt.Errorf("cancelled: %w", err)
	}
	return runs, nil
}

// update applies fn to run under the runner lock.
func (r *Runner) update(run *Run, fn func(*Run)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(run)
}

func (r *Runner) setStatus(run *Run, status RunStatus, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run.Status = status
	run.Err = err
	if status != StatusRunning {
		run.FinishedAt = time.Now()
	}
}

// execute runs one graph end to end: parse, bound selection, search and
// persistence.
func (r *Runner) execute(run *Run, dir string) {
	cfg := r.Config
	r.mu.Lock()
	run.Status = StatusRunning
	run.StartedAt = time.Now()
	r.mu.Unlock()

	opts := cfg.Options
	stem := resultio.FileStem(string(opts.Engine), run.Graph,
		opts.Engine == schedule.EngineLS && opts.Ranking == listsched.RankingImproved,
		opts.Priority.Stiffness, opts.Priority.PowerWeighted)
	logPath := filepath.Join(dir, stem+".log")
	r.update(run, func(run *Run) { run.LogFile = logPath })

	logFile, err := os.Create(logPath)
	if err != nil {
		r.fail(run, "setup", fmt.Errorf("create log file: %w", err))
		return
	}
	defer logFile.Close()

	var out io.Writer = logFile
	if cfg.Follow != nil {
		sf := ui.NewStreamFormatter(run.Graph, cfg.Follow, &r.mu).ShowDebug(cfg.LogLevel <= slog.LevelDebug)
		out = io.MultiWriter(logFile, sf)
	}
	log := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: cfg.LogLevel})).
		With("run_id", run.RunID, "graph", run.Graph)

	g, err := dfg.ParseFile(run.Path, cfg.Library)
	if err != nil {
		log.Error("parse failed", "err", err)
		r.fail(run, "parse", err)
		return
	}

	rec := resultio.NewRecord(g.Name)
	rec.RunID = run.RunID
	rec.Ops, rec.Edges = g.Len(), g.EdgeCount()
	rec.Library = cfg.Library.Types()
	if opts.Engine == schedule.EngineLS {
		rec.Ranking = string(opts.Ranking)
	}

	opts.Bounds = cfg.Library.StaticBounds()
	if c, ok := cfg.Constraints.Lookup(g.Name); ok {
		opts.Bounds = c.Bounds.Scale(cfg.Scale)
		rec.TargetLatency = c.TargetLatency
	}
	rec.Bounds = opts.Bounds.Fit(cfg.Library.Len())
	opts.Logger = log

	log.Info("scheduling", "ops", rec.Ops, "edges", rec.Edges, "bounds", rec.Bounds.String())
	res, err := search.Run(g, cfg.Library, opts)
	if err != nil {
		log.Error("schedule failed", "err", err)
		r.fail(run, "schedule", err)
		return
	}
	rec.Finish(res)
	log.Info("schedule done", "status", string(res.Status), "latency", res.Latency, "units", res.TotalUnits(), "iterations", res.Iterations)

	resultPath := filepath.Join(dir, stem+".json")
	if err := resultio.SaveJSON(resultPath, rec); err != nil {
		r.fail(run, "persist", err)
		return
	}
	r.update(run, func(run *Run) { run.ResultFile = resultPath })
	if res.Start != nil {
		sbPath := filepath.Join(dir, stem+".txt")
		if err := resultio.SaveSB(sbPath, resultio.NewSB(g, cfg.Library, res, rec.Bounds)); err != nil {
			r.fail(run, "persist", err)
			return
		}
		r.update(run, func(run *Run) { run.SBFile = sbPath })
	}
	if cfg.CSV != nil {
		if err := cfg.CSV.Append(resultio.RowFromRecord(rec)); err != nil {
			log.Warn("csv append failed", "err", err)
		}
	}
	if cfg.Metrics != nil {
		cfg.Metrics.ObserveResult(res, time.Duration(rec.RuntimeMS*float64(time.Millisecond)))
	}

	r.mu.Lock()
	run.Record = rec
	run.Status = StatusCompleted
	run.FinishedAt = time.Now()
	fmt.Fprintf(cfg.Progress, "  %s %s %s %s\n",
		ui.StatusIcon(string(res.Status)), ui.GraphPrefix(run.Graph),
		ui.Status(string(res.Status)), ui.Dim(fmt.Sprintf("(latency %d, %d FUs, %.1fms)", res.Latency, res.TotalUnits(), rec.RuntimeMS)))
	r.mu.Unlock()
}

// fail marks run as failed and records the stage in metrics.
func (r *Runner) fail(run *Run, stage string, err error) {
	if r.Config.Metrics != nil {
		r.Config.Metrics.ObserveError(stage)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	run.Status = StatusFailed
	run.Err = fmt.Errorf("%s: %w", stage, err)
	run.FinishedAt = time.Now()
	fmt.Fprintf(r.Config.Progress, "  ❌ %s %s %v\n", ui.GraphPrefix(run.Graph), ui.Red("failed"), err)
}

// Records returns the records of completed runs in input order.
func Records(runs []*Run) []*resultio.Record {
	var recs []*resultio.Record
	for _, run := range runs {
		if run.Record != nil {
			recs = append(recs, run.Record)
		}
	}
	return recs
}

// GetRuns returns a copy of all runs keyed by run id.
func (r *Runner) GetRuns() map[string]*Run {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make(map[string]*Run, len(r.runs))
	for k, v := range r.runs {
		copy := *v
		result[k] = &copy
	}
	return result
}

// compile-time check that the library resolves DFG mnemonics.
var _ dfg.TypeResolver = (*fulib.Library)(nil)
