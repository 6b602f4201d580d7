package listsched

import (
	"errors"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/joshharrison/rcsched/internal/dfg"
	"github.com/joshharrison/rcsched/internal/fulib"
	"github.com/joshharrison/rcsched/internal/priority"
	"github.com/joshharrison/rcsched/internal/schedule"
)

type delays []int

func (d delays) Len() int        { return len(d) }
func (d delays) Delay(t int) int { return d[t] }

func buildGraph(t *testing.T, types []int, edges [][2]int) *dfg.Graph {
	t.Helper()
	g, err := dfg.FromEdges(types, edges)
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	return g
}

func run(t *testing.T, g *dfg.Graph, lib delays, opts Options) *Outcome {
	t.Helper()
	out, err := Schedule(g, lib, opts)
	if err != nil {
		t.Fatalf("%s ranking: unexpected error: %v", opts.Ranking, err)
	}
	return out
}

func bothRankings() []Options {
	return []Options{
		{Ranking: RankingBaseline},
		{Ranking: RankingImproved, Priority: priority.DefaultConfig()},
	}
}

func TestSchedule_Chain(t *testing.T) {
	g := buildGraph(t, []int{0, 0, 0}, [][2]int{{0, 1}, {1, 2}})
	for _, opts := range bothRankings() {
		opts.Bounds = fulib.Bounds{1}
		out := run(t, g, delays{1}, opts)
		if diff := cmp.Diff([]int{1, 2, 3}, out.Start); diff != "" {
			t.Errorf("%s: start mismatch (-want +got):\n%s", opts.Ranking, diff)
		}
		if diff := cmp.Diff([]int{1}, out.UnitsUsed); diff != "" {
			t.Errorf("%s: units mismatch (-want +got):\n%s", opts.Ranking, diff)
		}
		if out.Latency != 3 {
			t.Errorf("%s: expected latency 3, got %d", opts.Ranking, out.Latency)
		}
		if len(out.Overruns) != 0 {
			t.Errorf("%s: unexpected overruns %v", opts.Ranking, out.Overruns)
		}
	}
}

func TestSchedule_SerializesOnSingleUnit(t *testing.T) {
	g := buildGraph(t, []int{0, 0}, nil)
	for _, opts := range bothRankings() {
		opts.Bounds = fulib.Bounds{1}
		out := run(t, g, delays{1}, opts)
		if out.Latency != 2 {
			t.Errorf("%s: expected latency 2, got %d", opts.Ranking, out.Latency)
		}
		start := append([]int(nil), out.Start...)
		sort.Ints(start)
		if diff := cmp.Diff([]int{1, 2}, start); diff != "" {
			t.Errorf("%s: start mismatch (-want +got):\n%s", opts.Ranking, diff)
		}
		if diff := cmp.Diff([]int{0, 0}, out.Unit); diff != "" {
			t.Errorf("%s: unit mismatch (-want +got):\n%s", opts.Ranking, diff)
		}
	}
}

func TestSchedule_MultiCycleUnitStaysBusy(t *testing.T) {
	g := buildGraph(t, []int{1, 1, 0}, nil)
	out := run(t, g, delays{1, 2}, Options{Bounds: fulib.Bounds{1, 1}})
	if diff := cmp.Diff([]int{1, 3, 1}, out.Start); diff != "" {
		t.Errorf("start mismatch (-want +got):\n%s", diff)
	}
	if out.Latency != 4 {
		t.Errorf("expected latency 4, got %d", out.Latency)
	}
}

func TestSchedule_DropsUnusedUnits(t *testing.T) {
	g := buildGraph(t, []int{0, 0, 0, 1}, [][2]int{{0, 1}, {1, 2}})
	out := run(t, g, delays{1, 1, 1}, Options{Bounds: fulib.Bounds{fulib.Unbounded, 5, 3}})
	if diff := cmp.Diff([]int{1, 1, 0}, out.UnitsUsed); diff != "" {
		t.Errorf("units mismatch (-want +got):\n%s", diff)
	}
}

func TestSchedule_ReportsOverrun(t *testing.T) {
	g := buildGraph(t, []int{0, 0}, nil)
	out := run(t, g, delays{1}, Options{Bounds: fulib.Bounds{1}, Target: 1})
	want := []schedule.Overrun{{Node: 1, Start: 2, ALAP: 1}}
	if diff := cmp.Diff(want, out.Overruns); diff != "" {
		t.Errorf("overrun mismatch (-want +got):\n%s", diff)
	}
}

func TestSchedule_ZeroBound(t *testing.T) {
	g := buildGraph(t, []int{0, 1}, nil)
	if _, err := Schedule(g, delays{1, 1}, Options{Bounds: fulib.Bounds{1, 0}}); !errors.Is(err, ErrNoUnits) {
		t.Errorf("expected ErrNoUnits, got %v", err)
	}

	// a zero bound for a type the graph never uses is fine
	g = buildGraph(t, []int{0}, nil)
	if _, err := Schedule(g, delays{1, 1}, Options{Bounds: fulib.Bounds{1, 0}}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSchedule_RespectsBoundsAndPrecedence(t *testing.T) {
	types := []int{0, 1, 0, 1, 0, 0, 1, 0, 0, 1}
	edges := [][2]int{{0, 1}, {0, 2}, {1, 3}, {2, 3}, {3, 4}, {2, 5}, {5, 6}, {6, 7}, {4, 7}, {8, 9}}
	g := buildGraph(t, types, edges)
	lib := delays{1, 2}

	for _, b := range []fulib.Bounds{{1, 1}, {2, 1}, {1, 2}, {fulib.Unbounded, fulib.Unbounded}} {
		for _, opts := range bothRankings() {
			opts.Bounds = b
			out := run(t, g, lib, opts)

			for _, n := range g.Nodes {
				for _, succ := range n.Succs {
					if out.Start[succ] < out.Start[n.ID]+lib.Delay(n.Type) {
						t.Errorf("bounds %v %s: edge %d -> %d violated", b, opts.Ranking, n.ID, succ)
					}
				}
			}
			peak := schedule.PeakUsage(g, lib, out.Start)
			if _, over := b.Exceeds(peak); over {
				t.Errorf("bounds %v %s: peak %v", b, opts.Ranking, peak)
			}
			if got := schedule.Latency(g, lib, out.Start); got != out.Latency {
				t.Errorf("bounds %v %s: reported latency %d, recomputed %d", b, opts.Ranking, out.Latency, got)
			}
			for typ, used := range out.UnitsUsed {
				if lim := b.Get(typ); lim != fulib.Unbounded && used > lim {
					t.Errorf("bounds %v %s: type %d uses %d units", b, opts.Ranking, typ, used)
				}
			}
		}
	}
}

func TestSchedule_ImprovedPrefersCriticalChain(t *testing.T) {
	// node 0 heads a three-deep chain, node 3 is a lone operation; one unit
	g := buildGraph(t, []int{0, 0, 0, 0}, [][2]int{{0, 1}, {1, 2}})
	out := run(t, g, delays{1}, Options{
		Ranking:  RankingImproved,
		Bounds:   fulib.Bounds{1},
		Priority: priority.DefaultConfig(),
	})
	if out.Start[0] != 1 {
		t.Errorf("expected the chain head at cycle 1, got %d", out.Start[0])
	}
	if out.Latency != 4 {
		t.Errorf("expected latency 4, got %d", out.Latency)
	}
}

func TestPool(t *testing.T) {
	g := buildGraph(t, []int{0, 0, 0, 1}, nil)
	pool, err := Pool(g, delays{1, 1, 1}, fulib.Bounds{2, fulib.Unbounded})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]int{2, 1, 0}, pool); diff != "" {
		t.Errorf("pool mismatch (-want +got):\n%s", diff)
	}
}
