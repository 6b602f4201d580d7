// Package search drives the scheduling engines to a final schedule: the
// force-directed engine by relaxing its latency constraint until the
// resource bounds hold, and the list scheduler by repeatedly tightening
// its latency target.
package search

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/joshharrison/rcsched/internal/bounds"
	"github.com/joshharrison/rcsched/internal/dfg"
	"github.com/joshharrison/rcsched/internal/fds"
	"github.com/joshharrison/rcsched/internal/fulib"
	"github.com/joshharrison/rcsched/internal/listsched"
	"github.com/joshharrison/rcsched/internal/priority"
	"github.com/joshharrison/rcsched/internal/schedule"
)

const (
	DefaultFDSStep          = 3
	DefaultFDSMaxIterations = 200
	DefaultLSMaxIterations  = 100
)

var (
	ErrZeroBound  = errors.New("resource bound of zero for a type used by the graph")
	ErrTypeRange  = errors.New("operation type outside the library")
	ErrBadOptions = errors.New("invalid search options")
)

// Options configures Run.
type Options struct {
	Engine  schedule.Engine
	Ranking listsched.Ranking
	Bounds  fulib.Bounds

	LatencyParameter float64
	FDSDepth         int
	FDSStep          int
	FDSMaxIterations int
	LSMaxIterations  int

	ZeroBound       fulib.ZeroBoundPolicy
	StrictDeadlines bool
	Priority        priority.Config
	Logger          *slog.Logger
}

// DefaultOptions returns the improved list scheduler with every priority criterion.
func DefaultOptions() Options {
	return Options{
		Engine:           schedule.EngineLS,
		Ranking:          listsched.RankingImproved,
		LatencyParameter: 1,
		FDSStep:          DefaultFDSStep,
		FDSMaxIterations: DefaultFDSMaxIterations,
		LSMaxIterations:  DefaultLSMaxIterations,
		ZeroBound:        fulib.ZeroReject,
		Priority:         priority.DefaultConfig(),
	}
}

func (o Options) withDefaults() Options {
	if o.Engine == "" {
		o.Engine = schedule.EngineLS
	}
	if o.Ranking == "" {
		o.Ranking = listsched.RankingImproved
	}
	if o.LatencyParameter == 0 {
		o.LatencyParameter = 1
	}
	if o.FDSStep <= 0 {
		o.FDSStep = DefaultFDSStep
	}
	if o.FDSMaxIterations <= 0 {
		o.FDSMaxIterations = DefaultFDSMaxIterations
	}
	if o.LSMaxIterations <= 0 {
		o.LSMaxIterations = DefaultLSMaxIterations
	}
	if o.ZeroBound == "" {
		o.ZeroBound = fulib.ZeroReject
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Run schedules g with the configured engine. Malformed input is returned
// as an error; infeasibility and search exhaustion are reported through
// the result status.
func Run(g *dfg.Graph, lib fulib.Delays, opts Options) (*schedule.Result, error) {
	opts = opts.withDefaults()
	log := opts.Logger.With("graph", g.Name, "engine", string(opts.Engine))

	if g.MaxType() >= lib.Len() {
		return nil, fmt.Errorf("%w: type %d, library has %d", ErrTypeRange, g.MaxType(), lib.Len())
	}

	b, rejected, err := checkBounds(g, lib, opts, log)
	if err != nil {
		return nil, err
	}
	if rejected != "" {
		return &schedule.Result{
			Graph:  g.Name,
			Engine: opts.Engine,
			Status: schedule.StatusInfeasible,
			Reason: rejected,
		}, nil
	}
	opts.Bounds = b

	switch opts.Engine {
	case schedule.EngineFDS:
		return runFDS(g, lib, opts, log)
	case schedule.EngineLS:
		return runLS(g, lib, opts, log)
	default:
		return nil, fmt.Errorf("%w: engine %q", ErrBadOptions, opts.Engine)
	}
}

// checkBounds fits the bound vector to the library. Types the graph uses
// with a zero bound, or with no entry in a non-nil vector, go through the
// zero-bound policy: floor raises them to one instance, reject returns the
// reason the run is infeasible. A nil vector leaves every type unbounded.
func checkBounds(g *dfg.Graph, lib fulib.Delays, opts Options, log *slog.Logger) (fulib.Bounds, string, error) {
	counts := g.TypeCounts(lib.Len())
	b := opts.Bounds.Fit(lib.Len())

	var missing []int
	if opts.Bounds != nil {
		missing = opts.Bounds.MissingTypes(counts)
	}
	zero := b.ZeroTypes(counts)
	if len(missing) == 0 && len(zero) == 0 {
		return b, "", nil
	}

	switch opts.ZeroBound {
	case fulib.ZeroFloor:
		if len(missing) > 0 {
			log.Warn("no bound given, using one instance", "types", missing, "bounds", len(opts.Bounds), "library", lib.Len())
			for _, t := range missing {
				b[t] = 1
			}
		}
		if len(zero) > 0 {
			log.Warn("raising zero bounds to one instance", "types", zero)
			b = b.Floor()
		}
		return b, "", nil
	case fulib.ZeroReject:
		if len(missing) > 0 {
			log.Warn("no bound given", "types", missing, "bounds", len(opts.Bounds), "library", lib.Len())
			return nil, fmt.Errorf("%w: %d bounds for %d types, types %v have none", fulib.ErrBoundsShape, len(opts.Bounds), lib.Len(), missing).Error(), nil
		}
		log.Warn("zero resource bound", "types", zero)
		return nil, fmt.Sprintf("%v: types %v", ErrZeroBound, zero), nil
	default:
		return nil, "", fmt.Errorf("%w: zero bound policy %q", ErrBadOptions, opts.ZeroBound)
	}
}

// runFDS starts at the derived latency constraint and enlarges it by the
// step until the schedule's peak usage fits the bounds or the iteration
// cap is reached. The last attempt is returned either way.
func runFDS(g *dfg.Graph, lib fulib.Delays, opts Options, log *slog.Logger) (*schedule.Result, error) {
	est := bounds.NewState(g, lib)
	est.ComputeASAP(1)
	lc := est.DeriveLC(opts.LatencyParameter)

	res := &schedule.Result{Graph: g.Name, Engine: schedule.EngineFDS}
	var last *fds.Outcome
	for iter := 1; iter <= opts.FDSMaxIterations; iter++ {
		res.Iterations = iter
		s := bounds.NewState(g, lib)
		out, err := fds.Schedule(s, lc, fds.Options{Depth: opts.FDSDepth, Logger: opts.Logger})
		if errors.Is(err, bounds.ErrInfeasible) {
			log.Debug("latency constraint infeasible", "lc", lc, "err", err)
			lc += opts.FDSStep
			continue
		}
		if err != nil {
			return nil, err
		}
		last = out

		peak := schedule.PeakUsage(g, lib, out.Start)
		typ, over := opts.Bounds.Exceeds(peak)
		if !over {
			fillFDS(res, g, lib, out)
			res.Status = schedule.StatusFeasible
			log.Debug("fds accepted", "lc", lc, "iterations", iter, "latency", res.Latency)
			return res, nil
		}
		log.Debug("fds exceeds bound", "lc", lc, "type", typ, "peak", peak[typ], "bound", opts.Bounds.Get(typ))
		lc += opts.FDSStep
	}

	if last == nil {
		res.Status = schedule.StatusInfeasible
		res.Reason = "no feasible latency constraint within the iteration cap"
		return res, nil
	}
	fillFDS(res, g, lib, last)
	res.Status = schedule.StatusSearchExhausted
	res.Reason = fmt.Sprintf("resource bounds %v not met after %d iterations", opts.Bounds, opts.FDSMaxIterations)
	log.Warn("fds search exhausted", "iterations", opts.FDSMaxIterations, "lc", last.LC)
	return res, nil
}

func fillFDS(res *schedule.Result, g *dfg.Graph, lib fulib.Delays, out *fds.Outcome) {
	res.Start = out.Start
	res.Unit, res.UnitsUsed = schedule.Bind(g, lib, out.Start)
	res.Latency = schedule.Latency(g, lib, out.Start)
	res.LatencyConstraint = out.LC
}

// runLS runs plain list scheduling once for the baseline ranking. For the
// improved ranking it first schedules against the serial latency, then
// retries with a target one below the best latency so far, keeping only
// strict improvements. The reported latency constraint is the last target
// tried.
func runLS(g *dfg.Graph, lib fulib.Delays, opts Options, log *slog.Logger) (*schedule.Result, error) {
	lsOpts := listsched.Options{
		Ranking:          opts.Ranking,
		Bounds:           opts.Bounds,
		LatencyParameter: opts.LatencyParameter,
		Priority:         opts.Priority,
		Logger:           opts.Logger,
	}
	res := &schedule.Result{Graph: g.Name, Engine: schedule.EngineLS}

	if opts.Ranking == listsched.RankingBaseline {
		out, err := listsched.Schedule(g, lib, lsOpts)
		if err != nil {
			return nil, err
		}
		res.Iterations = 1
		fillLS(res, out, opts.StrictDeadlines)
		return res, nil
	}

	serial := 0
	for id := range g.Nodes {
		serial += lib.Delay(g.Nodes[id].Type)
	}
	lsOpts.Target = serial
	best, err := listsched.Schedule(g, lib, lsOpts)
	if err != nil {
		return nil, err
	}

	est := bounds.NewState(g, lib)
	est.ComputeASAP(1)
	floor := est.ASAPLatency()

	exhausted := false
	iter := 0
	tightest := 0
	for best.Latency > floor {
		if iter >= opts.LSMaxIterations {
			exhausted = true
			break
		}
		iter++
		lsOpts.Target = best.Latency - 1
		tightest = lsOpts.Target
		out, err := listsched.Schedule(g, lib, lsOpts)
		if err != nil {
			return nil, err
		}
		if out.Latency >= best.Latency {
			log.Debug("ls no improvement", "target", lsOpts.Target, "latency", out.Latency)
			break
		}
		log.Debug("ls improved", "target", lsOpts.Target, "latency", out.Latency)
		best = out
	}

	res.Iterations = iter + 1
	fillLS(res, best, opts.StrictDeadlines)
	// The serial target only seeds the search; report the tightest target
	// tried, or the derived constraint when the first run already hit the floor.
	if tightest == 0 {
		tightest = max(est.DeriveLC(opts.LatencyParameter), floor)
	}
	res.LatencyConstraint = tightest
	if exhausted {
		res.Status = schedule.StatusSearchExhausted
		res.Reason = fmt.Sprintf("latency still improving after %d iterations", opts.LSMaxIterations)
		log.Warn("ls search exhausted", "iterations", opts.LSMaxIterations, "latency", best.Latency)
	}
	return res, nil
}

func fillLS(res *schedule.Result, out *listsched.Outcome, strict bool) {
	res.Start = out.Start
	res.Unit = out.Unit
	res.UnitsUsed = out.UnitsUsed
	res.Latency = out.Latency
	res.LatencyConstraint = out.Target
	res.Overruns = out.Overruns
	res.Status = schedule.StatusFeasible
	if strict && len(out.Overruns) > 0 {
		res.Status = schedule.StatusInfeasible
		res.Reason = fmt.Sprintf("%d operations started after their latest start at target %d", len(out.Overruns), out.Target)
	}
}
