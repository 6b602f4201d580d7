// Package fds implements force-directed scheduling at a fixed latency constraint.
package fds

import (
	"errors"
	"log/slog"
	"math"

	"github.com/joshharrison/rcsched/internal/bounds"
	"github.com/joshharrison/rcsched/internal/density"
)

// forceEpsilon is the margin by which a candidate must beat the best force
// to replace it.
const forceEpsilon = 1e-9

// ErrNoProgress is returned when a depth-limited run cannot commit a node
// even after a full bound propagation.
var ErrNoProgress = errors.New("force-directed scheduling made no progress")

// Options configures a single scheduling run.
type Options struct {
	// Depth limits bound re-propagation after each commit to nodes within
	// this many hops. Zero re-propagates over the whole graph.
	Depth  int
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

// Outcome is the result of one run. The committed starts are also left in
// the bound state.
type Outcome struct {
	Start      []int
	LC         int
	Iterations int   // force-selected commits
	Forced     []int // nodes committed because their window had width one
	Fallbacks  int   // depth-limited commits undone in favour of full propagation
}

// Schedule commits every node of s at the latency constraint lc. It fails
// only if the initial bounds are infeasible at lc.
func Schedule(s *bounds.State, lc int, opts Options) (*Outcome, error) {
	log := opts.logger()
	g := s.Graph()

	var hood *bounds.Hood
	if opts.Depth > 0 {
		hood = bounds.NewHood(g, opts.Depth)
	}

	out := &Outcome{LC: lc}
	needFull := true
	for {
		exact := false
		if hood == nil || needFull {
			if err := s.Compute(lc); err != nil {
				return nil, err
			}
			needFull = false
			exact = true
		}

		var snap []bounds.Window
		if hood != nil {
			snap = s.Snapshot()
		}

		forced := commitForced(s)
		tbl := density.Build(s, lc)
		n, t, f, ok := selectMin(s, tbl)
		if ok {
			s.Commit(n, t)
		}

		if hood != nil {
			touched := forced
			if ok {
				touched = append(touched, n)
			}
			if !tightenAll(s, hood, touched) {
				if exact {
					return nil, ErrNoProgress
				}
				s.Restore(snap)
				needFull = true
				out.Fallbacks++
				log.Debug("fds fallback to full propagation", "node", n, "cycle", t)
				continue
			}
		}

		out.Forced = append(out.Forced, forced...)
		for _, id := range forced {
			log.Debug("fds forced commit", "node", id, "cycle", s.W[id].ASAP)
		}
		if !ok {
			break
		}
		out.Iterations++
		log.Debug("fds commit", "node", n, "cycle", t, "force", f)
	}

	out.Start = s.Starts()
	return out, nil
}

// commitForced commits every uncommitted node whose window has width one.
func commitForced(s *bounds.State) []int {
	var forced []int
	for id, w := range s.W {
		if !w.Committed && w.Width() == 1 {
			s.Commit(id, w.ASAP)
			forced = append(forced, id)
		}
	}
	return forced
}

func tightenAll(s *bounds.State, hood *bounds.Hood, nodes []int) bool {
	ok := true
	for _, id := range nodes {
		if !s.Tighten(id, hood) || !s.Consistent(id) {
			ok = false
		}
	}
	return ok
}

// selectMin returns the uncommitted (node, cycle) pair with the smallest
// total force. Nodes and cycles are scanned in ascending order and a
// candidate must be strictly better to win, so ties go to the lowest node
// id and then the lowest cycle.
func selectMin(s *bounds.State, tbl *density.Table) (node, cycle int, best float64, ok bool) {
	for id, w := range s.W {
		if w.Committed {
			continue
		}
		for t := w.ASAP; t <= w.ALAP; t++ {
			f := Force(s, tbl, id, t)
			if !ok || f < best-forceEpsilon {
				node, cycle, best, ok = id, t, f, true
			}
		}
	}
	return node, cycle, best, ok
}

// Force returns the total force of starting node n at cycle t: its self
// force plus the forces from shrinking the windows of its uncommitted
// direct predecessors and successors. Lower is better.
func Force(s *bounds.State, tbl *density.Table, n, t int) float64 {
	g := s.Graph()
	w := s.W[n]
	typ := g.Nodes[n].Type
	d := s.Delay(n)

	p := 1.0 / float64(w.Width())
	f := 0.0
	for c := w.ASAP; c <= w.ALAP; c++ {
		delta := -p
		if c == t {
			delta = 1 - p
		}
		f += spanForce(tbl, typ, c, d, delta)
	}

	for _, q := range g.Nodes[n].Preds {
		qw := s.W[q]
		if qw.Committed {
			continue
		}
		newALAP := min(qw.ALAP, t-s.Delay(q))
		f += shrinkForce(tbl, g.Nodes[q].Type, s.Delay(q), qw.ASAP, qw.ALAP, qw.ASAP, newALAP)
	}
	for _, succ := range g.Nodes[n].Succs {
		sw := s.W[succ]
		if sw.Committed {
			continue
		}
		newASAP := max(sw.ASAP, t+d)
		f += shrinkForce(tbl, g.Nodes[succ].Type, s.Delay(succ), sw.ASAP, sw.ALAP, newASAP, sw.ALAP)
	}
	return f
}

// spanForce is the change in expected congestion from moving probability
// delta onto a start at cycle start. With q the current density at a cycle,
// the contribution is delta*(q + delta/3).
func spanForce(tbl *density.Table, typ, start, d int, delta float64) float64 {
	f := 0.0
	for c := start; c < start+d; c++ {
		f += delta * (tbl.At(typ, c) + delta/3)
	}
	return f
}

// shrinkForce is the force of a window [a,b] shrinking to [na,nb].
func shrinkForce(tbl *density.Table, typ, d, a, b, na, nb int) float64 {
	if nb < na {
		return math.Inf(1)
	}
	oldP := 1.0 / float64(b-a+1)
	newP := 1.0 / float64(nb-na+1)
	f := 0.0
	for c := a; c <= b; c++ {
		delta := -oldP
		if c >= na && c <= nb {
			delta = newP - oldP
		}
		if delta == 0 {
			continue
		}
		f += spanForce(tbl, typ, c, d, delta)
	}
	return f
}
