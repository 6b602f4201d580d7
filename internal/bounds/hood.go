package bounds

import (
	"sort"

	"github.com/joshharrison/rcsched/internal/dfg"
)

// Hood holds, per node, the ancestors and descendants within a fixed
// number of hops. Anc lists are ordered by decreasing depth and Desc lists
// by increasing depth, so a single sweep over either is a valid
// propagation order.
type Hood struct {
	Hops int
	Anc  [][]int
	Desc [][]int
}

// NewHood precomputes the hop-limited neighbourhoods of every node.
func NewHood(g *dfg.Graph, hops int) *Hood {
	h := &Hood{
		Hops: hops,
		Anc:  make([][]int, g.Len()),
		Desc: make([][]int, g.Len()),
	}
	for id := range g.Nodes {
		h.Anc[id] = reach(g, id, hops, func(n dfg.Node) []int { return n.Preds })
		sort.SliceStable(h.Anc[id], func(a, b int) bool {
			da, db := g.Depth(h.Anc[id][a]), g.Depth(h.Anc[id][b])
			if da != db {
				return da > db
			}
			return h.Anc[id][a] < h.Anc[id][b]
		})
		h.Desc[id] = reach(g, id, hops, func(n dfg.Node) []int { return n.Succs })
		sort.SliceStable(h.Desc[id], func(a, b int) bool {
			da, db := g.Depth(h.Desc[id][a]), g.Depth(h.Desc[id][b])
			if da != db {
				return da < db
			}
			return h.Desc[id][a] < h.Desc[id][b]
		})
	}
	return h
}

// reach is a breadth-first walk of at most hops edges, excluding start.
func reach(g *dfg.Graph, start, hops int, next func(dfg.Node) []int) []int {
	seen := map[int]bool{start: true}
	frontier := []int{start}
	var out []int
	for step := 0; step < hops && len(frontier) > 0; step++ {
		var nextFrontier []int
		for _, id := range frontier {
			for _, nb := range next(g.Nodes[id]) {
				if seen[nb] {
					continue
				}
				seen[nb] = true
				out = append(out, nb)
				nextFrontier = append(nextFrontier, nb)
			}
		}
		frontier = nextFrontier
	}
	return out
}

// Tighten re-propagates bounds after node n was committed, touching only
// n's hop-limited neighbourhood. Windows only shrink. It reports false if
// some touched window became empty.
func (s *State) Tighten(n int, h *Hood) bool {
	ok := true
	for _, id := range h.Desc[n] {
		w := &s.W[id]
		if w.Committed {
			continue
		}
		for _, p := range s.g.Nodes[id].Preds {
			if ready := s.W[p].ASAP + s.delay[p]; ready > w.ASAP {
				w.ASAP = ready
			}
		}
		if w.ALAP < w.ASAP {
			ok = false
		}
	}
	for _, id := range h.Anc[n] {
		w := &s.W[id]
		if w.Committed {
			continue
		}
		for _, succ := range s.g.Nodes[id].Succs {
			if b := s.W[succ].ALAP - s.delay[id]; b < w.ALAP {
				w.ALAP = b
				w.CriticalSucc = succ
			}
		}
		if w.ALAP < w.ASAP {
			ok = false
		}
	}
	return ok
}

// Consistent reports whether node n respects precedence against every
// committed direct neighbour.
func (s *State) Consistent(n int) bool {
	start := s.W[n].ASAP
	for _, p := range s.g.Nodes[n].Preds {
		if s.W[p].Committed && s.W[p].ASAP+s.delay[p] > start {
			return false
		}
	}
	for _, succ := range s.g.Nodes[n].Succs {
		if s.W[succ].Committed && start+s.delay[n] > s.W[succ].ASAP {
			return false
		}
	}
	return true
}
