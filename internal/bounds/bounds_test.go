package bounds

import (
	"errors"
	"testing"

	"github.com/joshharrison/rcsched/internal/dfg"
	"github.com/joshharrison/rcsched/internal/fulib"
)

type delays []int

func (d delays) Len() int        { return len(d) }
func (d delays) Delay(t int) int { return d[t] }

var _ fulib.Delays = delays(nil)

func buildTestGraph(t *testing.T, types []int, edges [][2]int) *dfg.Graph {
	t.Helper()
	g, err := dfg.FromEdges(types, edges)
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	return g
}

func assertWindow(t *testing.T, s *State, id, asap, alap int) {
	t.Helper()
	w := s.W[id]
	if w.ASAP != asap || w.ALAP != alap {
		t.Errorf("node %d: expected [%d,%d], got [%d,%d]", id, asap, alap, w.ASAP, w.ALAP)
	}
}

func TestCompute_Chain(t *testing.T) {
	// 0 -> 1 -> 2, all delay 1
	g := buildTestGraph(t, []int{0, 0, 0}, [][2]int{{0, 1}, {1, 2}})
	s := NewState(g, delays{1})
	s.ComputeASAP(1)

	if got := s.ASAPLatency(); got != 3 {
		t.Errorf("expected ASAP latency 3, got %d", got)
	}
	lc := s.DeriveLC(1.0)
	if lc != 3 {
		t.Fatalf("expected LC 3, got %d", lc)
	}
	if err := s.ComputeALAP(lc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertWindow(t, s, 0, 1, 1)
	assertWindow(t, s, 1, 2, 2)
	assertWindow(t, s, 2, 3, 3)
	if s.W[0].CriticalSucc != 1 || s.W[2].CriticalSucc != NoSuccessor {
		t.Errorf("unexpected critical successors: %+v", s.W)
	}
}

func TestCompute_MultiCycleDelays(t *testing.T) {
	// 0(add) -> 2(mul), 1(add) -> 2, mul delay 2
	g := buildTestGraph(t, []int{0, 0, 1, 0}, [][2]int{{0, 2}, {1, 2}})
	s := NewState(g, delays{1, 2})
	s.ComputeASAP(1)

	if got := s.ASAPLatency(); got != 3 {
		t.Fatalf("expected ASAP latency 3, got %d", got)
	}
	if err := s.ComputeALAP(4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertWindow(t, s, 0, 1, 2)
	assertWindow(t, s, 2, 2, 3)
	assertWindow(t, s, 3, 1, 4)
	if s.Horizon() != 4 {
		t.Errorf("expected horizon 4, got %d", s.Horizon())
	}
	if s.MaxWidth() != 4 {
		t.Errorf("expected max width 4, got %d", s.MaxWidth())
	}
}

func TestDeriveLC_Rounds(t *testing.T) {
	g := buildTestGraph(t, []int{0, 0, 0}, [][2]int{{0, 1}, {1, 2}})
	s := NewState(g, delays{1})
	s.ComputeASAP(1)

	tests := []struct {
		param float64
		want  int
	}{
		{1.0, 3},
		{1.5, 5}, // 4.5 rounds half away from zero
		{1.1, 3},
		{2.0, 6},
		{0.5, 2},
	}
	for _, tt := range tests {
		if got := s.DeriveLC(tt.param); got != tt.want {
			t.Errorf("param %.1f: expected LC %d, got %d", tt.param, tt.want, got)
		}
	}
}

func TestCriticalSuccessor_TieGoesToLastVisited(t *testing.T) {
	// 0 -> 1, 0 -> 2; 1 and 2 are symmetric sinks
	g := buildTestGraph(t, []int{0, 0, 0}, [][2]int{{0, 1}, {0, 2}})
	s := NewState(g, delays{1})
	if err := s.Compute(2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.W[0].CriticalSucc; got != 2 {
		t.Errorf("expected critical successor 2, got %d", got)
	}
}

func TestComputeALAP_Infeasible(t *testing.T) {
	g := buildTestGraph(t, []int{0, 0, 0}, [][2]int{{0, 1}, {1, 2}})
	s := NewState(g, delays{1})
	err := s.Compute(2)
	if !errors.Is(err, ErrInfeasible) {
		t.Fatalf("expected ErrInfeasible, got %v", err)
	}
	var ie *InfeasibleError
	if !errors.As(err, &ie) || ie.LC != 2 || ie.Node != 0 {
		t.Errorf("unexpected infeasible detail: %v", err)
	}
}

func TestCommittedNodesAreBoundaries(t *testing.T) {
	// diamond 0 -> {1,2} -> 3, LC 5
	g := buildTestGraph(t, []int{0, 0, 0, 0}, [][2]int{{0, 1}, {0, 2}, {1, 3}, {2, 3}})
	s := NewState(g, delays{1})
	if err := s.Compute(5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Commit(1, 3)
	if err := s.Compute(5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertWindow(t, s, 1, 3, 3)
	assertWindow(t, s, 0, 1, 2)
	assertWindow(t, s, 3, 4, 5)
	assertWindow(t, s, 2, 2, 4)
}

func TestCompute_IdempotentWhenCommitted(t *testing.T) {
	g := buildTestGraph(t, []int{0, 0, 0, 0}, [][2]int{{0, 1}, {0, 2}, {1, 3}, {2, 3}})
	s := NewState(g, delays{1})
	want := []int{1, 2, 3, 4}
	for id, c := range want {
		s.Commit(id, c)
	}
	if err := s.Compute(6); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for id, c := range s.Starts() {
		if c != want[id] {
			t.Errorf("node %d: expected start %d, got %d", id, want[id], c)
		}
	}
	if !s.AllCommitted() {
		t.Error("expected all nodes committed")
	}
}

func TestMonotoneInLC(t *testing.T) {
	g := buildTestGraph(t, []int{0, 1, 0, 1, 0}, [][2]int{{0, 1}, {1, 2}, {3, 2}, {0, 4}})
	lib := delays{1, 2}
	prevALAP := map[int]int{}
	for lc := 10; lc >= 5; lc-- {
		s := NewState(g, lib)
		if err := s.Compute(lc); err != nil {
			t.Fatalf("lc %d: unexpected error: %v", lc, err)
		}
		for id, w := range s.W {
			if w.ASAP > w.ALAP {
				t.Errorf("lc %d node %d: asap %d > alap %d", lc, id, w.ASAP, w.ALAP)
			}
			if prev, ok := prevALAP[id]; ok && w.ALAP > prev {
				t.Errorf("lc %d node %d: alap grew from %d to %d", lc, id, prev, w.ALAP)
			}
			prevALAP[id] = w.ALAP
		}
	}
}

func TestHood(t *testing.T) {
	// 0 -> 1 -> 2 -> 3
	g := buildTestGraph(t, []int{0, 0, 0, 0}, [][2]int{{0, 1}, {1, 2}, {2, 3}})
	h := NewHood(g, 2)

	if d := h.Desc[0]; len(d) != 2 || d[0] != 1 || d[1] != 2 {
		t.Errorf("expected desc(0)=[1 2], got %v", d)
	}
	if a := h.Anc[3]; len(a) != 2 || a[0] != 2 || a[1] != 1 {
		t.Errorf("expected anc(3)=[2 1], got %v", a)
	}
	if len(h.Anc[0]) != 0 {
		t.Errorf("expected no ancestors of 0, got %v", h.Anc[0])
	}
}

func TestTighten(t *testing.T) {
	// 0 -> 1 -> 2 -> 3, LC 8
	g := buildTestGraph(t, []int{0, 0, 0, 0}, [][2]int{{0, 1}, {1, 2}, {2, 3}})
	s := NewState(g, delays{1})
	if err := s.Compute(8); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h := NewHood(g, 1)

	s.Commit(1, 4)
	if !s.Tighten(1, h) {
		t.Fatal("expected feasible tighten")
	}
	assertWindow(t, s, 0, 1, 3)
	assertWindow(t, s, 2, 5, 7)
	// node 3 is two hops away and keeps its stale window
	assertWindow(t, s, 3, 4, 8)

	snap := s.Snapshot()
	s.Commit(2, 8)
	if s.Tighten(2, h) {
		t.Error("expected node 3 window to collapse")
	}
	s.Restore(snap)
	assertWindow(t, s, 2, 5, 7)
}

func TestConsistent(t *testing.T) {
	g := buildTestGraph(t, []int{0, 1}, [][2]int{{0, 1}})
	s := NewState(g, delays{2, 1})
	if err := s.Compute(6); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Commit(0, 2)
	s.Commit(1, 3)
	if s.Consistent(1) || s.Consistent(0) {
		t.Error("expected overlap with a two-cycle predecessor to be inconsistent")
	}
	s.Commit(1, 4)
	if !s.Consistent(1) {
		t.Error("expected start 4 to satisfy the predecessor")
	}
}
