package density

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/joshharrison/rcsched/internal/bounds"
	"github.com/joshharrison/rcsched/internal/dfg"
)

type delays []int

func (d delays) Len() int        { return len(d) }
func (d delays) Delay(t int) int { return d[t] }

func newState(t *testing.T, types []int, edges [][2]int, lib delays, lc int) *bounds.State {
	t.Helper()
	g, err := dfg.FromEdges(types, edges)
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	s := bounds.NewState(g, lib)
	if err := s.Compute(lc); err != nil {
		t.Fatalf("compute bounds: %v", err)
	}
	return s
}

func expectAt(t *testing.T, tbl *Table, typ, c int, want float64) {
	t.Helper()
	if got := tbl.At(typ, c); math.Abs(got-want) > 1e-12 {
		t.Errorf("type %d cycle %d: expected %.6f, got %.6f", typ, c, want, got)
	}
}

func TestBuild_UniformSpread(t *testing.T) {
	// one add with window [1,4], one mul (delay 2) with window [1,3]
	s := newState(t, []int{0, 1}, nil, delays{1, 2}, 4)
	tbl := Build(s, 4)

	for c := 1; c <= 4; c++ {
		expectAt(t, tbl, 0, c, 0.25)
	}
	// mul starts 1..3 with p=1/3, each covering two cycles
	expectAt(t, tbl, 1, 1, 1.0/3)
	expectAt(t, tbl, 1, 2, 2.0/3)
	expectAt(t, tbl, 1, 3, 2.0/3)
	expectAt(t, tbl, 1, 4, 1.0/3)
	expectAt(t, tbl, 1, 5, 0)
	expectAt(t, tbl, 7, 1, 0)
}

func TestBuild_TotalMassIsDelayPerNode(t *testing.T) {
	s := newState(t, []int{0, 1, 0, 1}, [][2]int{{0, 1}, {1, 2}, {3, 2}}, delays{1, 3}, 9)
	tbl := Build(s, s.LC)

	total := 0.0
	for typ := 0; typ < tbl.Types(); typ++ {
		for c := 1; c <= tbl.Horizon; c++ {
			total += tbl.At(typ, c)
		}
	}
	if want := float64(1 + 3 + 1 + 3); math.Abs(total-want) > 1e-9 {
		t.Errorf("expected total mass %v, got %v", want, total)
	}
}

func TestBuild_CommittedIsPoint(t *testing.T) {
	s := newState(t, []int{0, 0}, nil, delays{2}, 5)
	s.Commit(0, 2)
	tbl := Build(s, 5)

	// node 1 spreads over starts 1..4 (0.25 each); node 0 sits on cycles 2-3
	expectAt(t, tbl, 0, 1, 0.25)
	expectAt(t, tbl, 0, 2, 1.5)
	expectAt(t, tbl, 0, 3, 1.5)
	expectAt(t, tbl, 0, 5, 0.25)
}

func TestMeanAndPeak(t *testing.T) {
	tbl := New(1, 4)
	tbl.Add(0, 1, 2, 1)
	tbl.Add(0, 2, 9, 0.5)

	mean, n := tbl.Mean(0, 0, 10)
	if n != 4 {
		t.Errorf("expected the range clamped to 4 cycles, got %d", n)
	}
	if want := (1 + 1.5 + 0.5 + 0.5) / 4; math.Abs(mean-want) > 1e-12 {
		t.Errorf("expected mean %v, got %v", want, mean)
	}
	if peak := tbl.Peak(0); peak != 1.5 {
		t.Errorf("expected peak 1.5, got %v", peak)
	}

	if _, n = tbl.Mean(0, 3, 2); n != 0 {
		t.Errorf("expected an empty range, got %d cycles", n)
	}
}

func TestRender(t *testing.T) {
	tbl := New(2, 2)
	tbl.Add(1, 1, 2, 1)
	var buf bytes.Buffer
	tbl.Render(&buf, []string{"ADD", "MUL"})
	out := buf.String()
	if !strings.Contains(out, "MUL") {
		t.Errorf("expected MUL in output:\n%s", out)
	}
	if strings.Contains(out, "ADD") {
		t.Errorf("unused type should be skipped:\n%s", out)
	}
}
