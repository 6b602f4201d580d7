package bounds

import (
	"math"

	"github.com/joshharrison/rcsched/internal/dfg"
	"github.com/joshharrison/rcsched/internal/fulib"
)

// State is the mutable per-run bound table. The graph itself is never
// written; only the propagation passes and Commit change W.
type State struct {
	g     *dfg.Graph
	lib   fulib.Delays
	delay []int
	W     []Window
	LC    int
}

// NewState creates a bound table for one scheduling run with every node uncommitted.
func NewState(g *dfg.Graph, lib fulib.Delays) *State {
	s := &State{
		g:     g,
		lib:   lib,
		delay: make([]int, g.Len()),
		W:     make([]Window, g.Len()),
	}
	for i, n := range g.Nodes {
		s.delay[i] = lib.Delay(n.Type)
		s.W[i].CriticalSucc = NoSuccessor
	}
	return s
}

// Graph returns the graph the state was built for.
func (s *State) Graph() *dfg.Graph { return s.g }

// Library returns the delay table the state was built with.
func (s *State) Library() fulib.Delays { return s.lib }

// Delay returns the execution delay of node n.
func (s *State) Delay(n int) int { return s.delay[n] }

// Finish returns the last cycle node n occupies when started at its ASAP.
func (s *State) Finish(n int) int { return s.W[n].ASAP + s.delay[n] - 1 }

// ComputeASAP runs the forward pass. Uncommitted nodes start no earlier
// than floor (cycle 1 for a fresh run); committed nodes are boundary conditions.
func (s *State) ComputeASAP(floor int) {
	if floor < 1 {
		floor = 1
	}
	for _, id := range s.g.TopoOrder() {
		w := &s.W[id]
		if w.Committed {
			continue
		}
		asap := floor
		for _, p := range s.g.Nodes[id].Preds {
			if ready := s.W[p].ASAP + s.delay[p]; ready > asap {
				asap = ready
			}
		}
		w.ASAP = asap
	}
}

// ASAPLatency returns max over sinks of ASAP+delay-1.
func (s *State) ASAPLatency() int {
	lat := 0
	for _, id := range s.g.Sinks {
		if f := s.Finish(id); f > lat {
			lat = f
		}
	}
	return lat
}

// DeriveLC returns round(param * ASAP-latency). ComputeASAP must have run.
func (s *State) DeriveLC(param float64) int {
	return int(math.Round(param * float64(s.ASAPLatency())))
}

// ComputeALAP runs the backward pass at latency constraint lc and records
// each node's critical successor; on equal bounds the last successor visited
// wins. The pass always completes. If any uncommitted node ends with
// ALAP < ASAP, the first such node is returned as an *InfeasibleError.
func (s *State) ComputeALAP(lc int) error {
	s.LC = lc
	order := s.g.TopoOrder()
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		w := &s.W[id]
		if w.Committed {
			continue
		}
		alap := lc - s.delay[id] + 1
		crit := NoSuccessor
		for _, succ := range s.g.Nodes[id].Succs {
			if b := s.W[succ].ALAP - s.delay[id]; b <= alap {
				alap = b
				crit = succ
			}
		}
		w.ALAP = alap
		w.CriticalSucc = crit
	}
	return s.Check()
}

// Check returns an *InfeasibleError for the lowest-id uncommitted node
// with an empty window, or nil.
func (s *State) Check() error {
	for id, w := range s.W {
		if !w.Committed && w.ALAP < w.ASAP {
			return &InfeasibleError{Node: id, ASAP: w.ASAP, ALAP: w.ALAP, LC: s.LC}
		}
	}
	return nil
}

// Compute runs a full forward pass from cycle 1 and a backward pass at lc.
func (s *State) Compute(lc int) error {
	s.ComputeASAP(1)
	return s.ComputeALAP(lc)
}

// Commit fixes node n to start at cycle.
func (s *State) Commit(n, cycle int) {
	w := &s.W[n]
	w.ASAP = cycle
	w.ALAP = cycle
	w.Committed = true
}

// AllCommitted reports whether every node has been committed.
func (s *State) AllCommitted() bool {
	for _, w := range s.W {
		if !w.Committed {
			return false
		}
	}
	return true
}

// Starts returns the ASAP of every node. For a fully committed state this
// is the schedule.
func (s *State) Starts() []int {
	out := make([]int, len(s.W))
	for i, w := range s.W {
		out[i] = w.ASAP
	}
	return out
}

// Snapshot returns a copy of the current windows.
func (s *State) Snapshot() []Window {
	return append([]Window(nil), s.W...)
}

// Horizon returns max over nodes of ALAP+delay-1, the last cycle any
// operation can occupy under the current windows.
func (s *State) Horizon() int {
	h := 0
	for i, w := range s.W {
		last := w.ALAP
		if w.ASAP > last {
			last = w.ASAP
		}
		if f := last + s.delay[i] - 1; f > h {
			h = f
		}
	}
	return h
}

// MaxWidth returns the largest max(slack,0)+1 over all nodes.
func (s *State) MaxWidth() int {
	m := 1
	for _, w := range s.W {
		if width := w.Width(); width > m {
			m = width
		}
	}
	return m
}

// Restore replaces the windows with a previous Snapshot.
func (s *State) Restore(snap []Window) {
	copy(s.W, snap)
}
