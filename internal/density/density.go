// Package density builds the expected per-type, per-cycle usage table from
// the current mobility windows.
package density

import (
	"fmt"
	"io"
	"strings"

	"github.com/joshharrison/rcsched/internal/bounds"
	"github.com/joshharrison/rcsched/internal/ui"
)

// Table holds v[type][cycle] for cycles 0..Horizon; cycle 0 is never used.
type Table struct {
	Horizon int
	v       [][]float64
}

// New returns an empty table for nTypes types.
func New(nTypes, horizon int) *Table {
	if horizon < 0 {
		horizon = 0
	}
	t := &Table{Horizon: horizon, v: make([][]float64, nTypes)}
	for i := range t.v {
		t.v[i] = make([]float64, horizon+1)
	}
	return t
}

// Build spreads every node's unit weight uniformly over the start cycles in
// its window, each start covering delay consecutive cycles. Committed nodes
// land their full weight on their fixed span.
func Build(s *bounds.State, horizon int) *Table {
	g := s.Graph()
	t := New(s.Library().Len(), horizon)
	for id, w := range s.W {
		width := w.Width()
		if width < 1 {
			continue
		}
		p := 1.0 / float64(width)
		typ := g.Nodes[id].Type
		d := s.Delay(id)
		for start := w.ASAP; start <= w.ALAP; start++ {
			t.Add(typ, start, start+d-1, p)
		}
	}
	return t
}

// Add adds p to every cycle of type typ in [from, to], clipped to the table.
func (t *Table) Add(typ, from, to int, p float64) {
	if from < 1 {
		from = 1
	}
	if to > t.Horizon {
		to = t.Horizon
	}
	for c := from; c <= to; c++ {
		t.v[typ][c] += p
	}
}

// At returns the expected usage of type typ at cycle c; out-of-range reads are zero.
func (t *Table) At(typ, c int) float64 {
	if typ < 0 || typ >= len(t.v) || c < 1 || c > t.Horizon {
		return 0
	}
	return t.v[typ][c]
}

// Types returns the number of types.
func (t *Table) Types() int { return len(t.v) }

// Peak returns the largest expected usage of typ over all cycles.
func (t *Table) Peak(typ int) float64 {
	peak := 0.0
	for c := 1; c <= t.Horizon; c++ {
		if t.v[typ][c] > peak {
			peak = t.v[typ][c]
		}
	}
	return peak
}

// Mean returns the average of typ over cycles [from, to] clipped to [1, Horizon],
// and the number of cycles averaged.
func (t *Table) Mean(typ, from, to int) (float64, int) {
	if from < 1 {
		from = 1
	}
	if to > t.Horizon {
		to = t.Horizon
	}
	if typ < 0 || typ >= len(t.v) || to < from {
		return 0, 0
	}
	sum := 0.0
	for c := from; c <= to; c++ {
		sum += t.v[typ][c]
	}
	n := to - from + 1
	return sum / float64(n), n
}

const barWidth = 40

// Render writes one bar chart per type that has any weight.
func (t *Table) Render(w io.Writer, names []string) {
	for typ := range t.v {
		peak := t.Peak(typ)
		if peak == 0 {
			continue
		}
		name := fmt.Sprintf("type %d", typ)
		if typ < len(names) {
			name = names[typ]
		}
		fmt.Fprintf(w, "%s %s\n", ui.BoldCyan(name), ui.Dim(fmt.Sprintf("(peak %.2f)", peak)))
		for c := 1; c <= t.Horizon; c++ {
			v := t.v[typ][c]
			n := int(v / peak * barWidth)
			bar := strings.Repeat("█", n)
			fmt.Fprintf(w, "  %s %s %s\n", ui.Dim(fmt.Sprintf("%4d", c)), ui.Yellow(bar), ui.Dim(fmt.Sprintf("%.3f", v)))
		}
	}
}
