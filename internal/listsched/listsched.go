// Package listsched implements cycle-driven list scheduling under
// per-type functional-unit bounds.
package listsched

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/joshharrison/rcsched/internal/bounds"
	"github.com/joshharrison/rcsched/internal/dfg"
	"github.com/joshharrison/rcsched/internal/fulib"
	"github.com/joshharrison/rcsched/internal/priority"
	"github.com/joshharrison/rcsched/internal/schedule"
)

// Ranking selects how ready operations are ordered.
type Ranking string

const (
	// RankingBaseline orders by ascending ALAP, then id.
	RankingBaseline Ranking = "baseline"
	// RankingImproved orders by priority keys recomputed every cycle.
	RankingImproved Ranking = "improved"
)

var (
	ErrNoUnits = errors.New("no functional units available for operation type")
	ErrStalled = errors.New("list scheduling exceeded its cycle limit")
)

// Options configures one list-scheduling run.
type Options struct {
	Ranking Ranking
	Bounds  fulib.Bounds
	// Target is the latency used for ALAP windows. Zero derives it from
	// LatencyParameter and the ASAP latency.
	Target           int
	LatencyParameter float64
	Priority         priority.Config
	Logger           *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

// Outcome is the schedule produced by one run.
type Outcome struct {
	Start     []int
	Unit      []int
	UnitsUsed []int
	Latency   int
	Target    int
	Overruns  []schedule.Overrun
}

// Pool returns the number of instances allocated per type: the bound,
// capped at the number of operations of that type. Unbounded types get one
// instance per operation.
func Pool(g *dfg.Graph, lib fulib.Delays, b fulib.Bounds) ([]int, error) {
	counts := g.TypeCounts(lib.Len())
	pool := make([]int, lib.Len())
	for t, c := range counts {
		if c == 0 {
			continue
		}
		lim := b.Get(t)
		if lim == fulib.Unbounded || lim > c {
			lim = c
		}
		if lim <= 0 {
			return nil, fmt.Errorf("type %d (%d operations): %w", t, c, ErrNoUnits)
		}
		pool[t] = lim
	}
	return pool, nil
}

// Schedule runs list scheduling over g. Operations that start after the
// ALAP of the initial windows are reported as overruns; the schedule is
// still complete.
func Schedule(g *dfg.Graph, lib fulib.Delays, opts Options) (*Outcome, error) {
	log := opts.logger()

	pool, err := Pool(g, lib, opts.Bounds)
	if err != nil {
		return nil, err
	}

	s := bounds.NewState(g, lib)
	s.ComputeASAP(1)
	target := opts.Target
	if target <= 0 {
		param := opts.LatencyParameter
		if param == 0 {
			param = 1
		}
		target = s.DeriveLC(param)
	}
	if err := s.ComputeALAP(target); err != nil {
		log.Debug("initial windows infeasible at target", "target", target, "err", err)
	}
	initial := s.Snapshot()

	var eval *priority.Evaluator
	if opts.Ranking == RankingImproved {
		eval = priority.NewEvaluator(g, lib, opts.Priority)
	}

	n := g.Len()
	start := make([]int, n)
	unit := make([]int, n)
	for i := range start {
		start[i] = -1
	}
	busy := make([][]int, lib.Len())
	for t := range busy {
		busy[t] = make([]int, pool[t])
	}

	limit := 0
	for id := range g.Nodes {
		limit += s.Delay(id)
	}

	scheduled := 0
	for cycle := 1; scheduled < n; cycle++ {
		if cycle > limit {
			return nil, fmt.Errorf("%w: %d of %d operations placed by cycle %d", ErrStalled, scheduled, n, limit)
		}
		for typ := 0; typ < lib.Len(); typ++ {
			ready := readySet(g, s, start, typ, cycle)
			if len(ready) == 0 {
				continue
			}

			var ranked []int
			if eval != nil {
				s.ComputeASAP(cycle)
				_ = s.ComputeALAP(target)
				for _, k := range eval.Rank(s, ready) {
					ranked = append(ranked, k.Node)
				}
			} else {
				ranked = byALAP(ready, initial)
			}

			var placed []int
			for _, id := range ranked {
				u := freeUnit(busy[typ], cycle)
				if u < 0 {
					break
				}
				start[id] = cycle
				unit[id] = u
				busy[typ][u] = cycle + s.Delay(id) - 1
				s.Commit(id, cycle)
				placed = append(placed, id)
				scheduled++
			}
			log.Debug("ls cycle", "cycle", cycle, "type", typ, "ready", ready, "placed", placed)
		}
	}

	out := &Outcome{
		Start:   start,
		Target:  target,
		Latency: schedule.Latency(g, lib, start),
	}
	out.Unit, out.UnitsUsed = schedule.Compact(g, lib.Len(), unit)

	for id, w := range initial {
		if start[id] > w.ALAP {
			out.Overruns = append(out.Overruns, schedule.Overrun{Node: id, Start: start[id], ALAP: w.ALAP})
		}
	}
	if len(out.Overruns) > 0 {
		log.Warn("operations started after their latest start", "count", len(out.Overruns), "target", target)
	}
	return out, nil
}

// readySet returns the unscheduled operations of typ whose predecessors
// have all finished before cycle.
func readySet(g *dfg.Graph, s *bounds.State, start []int, typ, cycle int) []int {
	var ready []int
	for id, n := range g.Nodes {
		if n.Type != typ || start[id] >= 0 {
			continue
		}
		ok := true
		for _, p := range n.Preds {
			if start[p] < 0 || start[p]+s.Delay(p) > cycle {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, id)
		}
	}
	return ready
}

func byALAP(ready []int, w []bounds.Window) []int {
	out := append([]int(nil), ready...)
	sort.SliceStable(out, func(i, j int) bool {
		if w[out[i]].ALAP != w[out[j]].ALAP {
			return w[out[i]].ALAP < w[out[j]].ALAP
		}
		return out[i] < out[j]
	})
	return out
}

// freeUnit returns the lowest instance whose last occupied cycle is before cycle.
func freeUnit(busyUntil []int, cycle int) int {
	for u, last := range busyUntil {
		if last < cycle {
			return u
		}
	}
	return -1
}
