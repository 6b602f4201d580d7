// Package verify re-validates a finished schedule independently of the
// engine that produced it.
package verify

import (
	"fmt"
	"sort"

	"github.com/joshharrison/rcsched/internal/dfg"
	"github.com/joshharrison/rcsched/internal/fulib"
	"github.com/joshharrison/rcsched/internal/schedule"
)

// Kind classifies a violation.
type Kind string

const (
	KindUnscheduled   Kind = "unscheduled"
	KindPrecedence    Kind = "precedence"
	KindDoubleBooking Kind = "double_booking"
	KindUnitType      Kind = "unit_type"
	KindBound         Kind = "bound"
	KindLatency       Kind = "latency"
	KindAllocation    Kind = "allocation"
)

// Violation is a single failed check.
type Violation struct {
	Kind Kind   `json:"kind"`
	Msg  string `json:"msg"`
}

// Input is a schedule as a checker sees it. Unit holds global instance ids.
type Input struct {
	Start     []int
	Unit      []int
	Latency   int
	UnitsUsed []int
	Bounds    fulib.Bounds
}

// FromResult converts an engine result into checker input.
func FromResult(g *dfg.Graph, r *schedule.Result, b fulib.Bounds) Input {
	return Input{
		Start:     r.Start,
		Unit:      schedule.GlobalUnits(g, r.Unit, r.UnitsUsed),
		Latency:   r.Latency,
		UnitsUsed: r.UnitsUsed,
		Bounds:    b,
	}
}

// Report collects every violation found.
type Report struct {
	Graph      string      `json:"graph"`
	Latency    int         `json:"latency"` // recomputed
	PeakUsage  []int       `json:"peak_usage"`
	Violations []Violation `json:"violations,omitempty"`
}

// OK reports whether no check failed.
func (r *Report) OK() bool { return len(r.Violations) == 0 }

func (r *Report) add(k Kind, format string, args ...any) {
	r.Violations = append(r.Violations, Violation{Kind: k, Msg: fmt.Sprintf(format, args...)})
}

// Check runs every check against in.
func Check(g *dfg.Graph, lib fulib.Delays, in Input) *Report {
	r := &Report{Graph: g.Name}
	if len(in.Start) != g.Len() || len(in.Unit) != g.Len() {
		r.add(KindUnscheduled, "schedule covers %d/%d operations, binding %d", len(in.Start), g.Len(), len(in.Unit))
		return r
	}
	for id, st := range in.Start {
		if st < 1 {
			r.add(KindUnscheduled, "op %s has start %d", g.Nodes[id].Name, st)
		}
	}
	if !r.OK() {
		return r
	}

	checkPrecedence(g, lib, in, r)
	checkUnits(g, lib, in, r)

	r.PeakUsage = schedule.PeakUsage(g, lib, in.Start)
	for t, peak := range r.PeakUsage {
		if lim := in.Bounds.Get(t); lim != fulib.Unbounded && peak > lim {
			r.add(KindBound, "type %d: %d active, bound %d", t, peak, lim)
		}
	}

	r.Latency = schedule.Latency(g, lib, in.Start)
	if in.Latency != r.Latency {
		r.add(KindLatency, "reported latency %d, recomputed %d", in.Latency, r.Latency)
	}
	return r
}

func checkPrecedence(g *dfg.Graph, lib fulib.Delays, in Input, r *Report) {
	for _, n := range g.Nodes {
		ready := in.Start[n.ID] + lib.Delay(n.Type)
		for _, succ := range n.Succs {
			if in.Start[succ] < ready {
				r.add(KindPrecedence, "%s -> %s: starts at %d, predecessor done at %d",
					n.Name, g.Nodes[succ].Name, in.Start[succ], ready-1)
			}
		}
	}
}

func checkUnits(g *dfg.Graph, lib fulib.Delays, in Input, r *Report) {
	byUnit := make(map[int][]int)
	unitType := make(map[int]int)
	for id, u := range in.Unit {
		typ := g.Nodes[id].Type
		if prev, ok := unitType[u]; !ok {
			unitType[u] = typ
		} else if prev != typ {
			r.add(KindUnitType, "unit %d runs types %d and %d", u, prev, typ)
		}
		byUnit[u] = append(byUnit[u], id)
	}

	units := make([]int, 0, len(byUnit))
	for u := range byUnit {
		units = append(units, u)
	}
	sort.Ints(units)

	perType := make([]int, lib.Len())
	for _, u := range units {
		ops := byUnit[u]
		perType[unitType[u]]++
		sort.Slice(ops, func(i, j int) bool { return in.Start[ops[i]] < in.Start[ops[j]] })
		for i := 1; i < len(ops); i++ {
			prev, cur := ops[i-1], ops[i]
			end := in.Start[prev] + lib.Delay(g.Nodes[prev].Type) - 1
			if in.Start[cur] <= end {
				r.add(KindDoubleBooking, "unit %d: %s [%d,%d] overlaps %s at %d",
					u, g.Nodes[prev].Name, in.Start[prev], end, g.Nodes[cur].Name, in.Start[cur])
			}
		}
	}

	if in.UnitsUsed == nil {
		return
	}
	for t := range perType {
		reported := 0
		if t < len(in.UnitsUsed) {
			reported = in.UnitsUsed[t]
		}
		if reported != perType[t] {
			r.add(KindAllocation, "type %d: reported %d units, binding uses %d", t, reported, perType[t])
		}
	}
}
