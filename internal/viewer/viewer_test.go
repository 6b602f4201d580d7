package viewer

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joshharrison/rcsched/internal/bounds"
	"github.com/joshharrison/rcsched/internal/dfg"
	"github.com/joshharrison/rcsched/internal/fulib"
	"github.com/joshharrison/rcsched/internal/schedule"
)

func testGraph(t *testing.T) (*bounds.State, *fulib.Library) {
	t.Helper()
	lib, err := fulib.New([]fulib.FUType{{Name: "ADD", Delay: 1}, {Name: "MUL", Delay: 2}})
	if err != nil {
		t.Fatalf("fulib.New: %v", err)
	}
	// n0 (MUL) -> n1 (ADD); n2 (ADD) free
	g, err := dfg.FromEdges([]int{1, 0, 0}, [][2]int{{0, 1}})
	if err != nil {
		t.Fatalf("FromEdges: %v", err)
	}
	s := bounds.NewState(g, lib)
	if err := s.Compute(3); err != nil {
		t.Fatalf("Compute: %v", err)
	}
	return s, lib
}

func TestBuild_BoundsOnly(t *testing.T) {
	s, lib := testGraph(t)
	gr := Build(s, lib, nil)

	if len(gr.Nodes) != 3 || len(gr.Edges) != 1 {
		t.Fatalf("expected 3 nodes and 1 edge, got %d/%d", len(gr.Nodes), len(gr.Edges))
	}
	if !gr.Nodes[0].IsCritical || !gr.Nodes[1].IsCritical || gr.Nodes[2].IsCritical {
		t.Errorf("unexpected critical flags: %+v", gr.Nodes)
	}
	if gr.Nodes[2].Slack != 2 {
		t.Errorf("expected slack 2 for n2, got %d", gr.Nodes[2].Slack)
	}
	if got := strings.Join(gr.CriticalPath, ","); got != "n0,n1" {
		t.Errorf("expected critical path n0,n1, got %s", got)
	}
	if gr.Nodes[0].Unit != "" {
		t.Error("no unit expected without a schedule")
	}
}

func TestBuild_WithSchedule(t *testing.T) {
	s, lib := testGraph(t)
	res := &schedule.Result{
		Engine:    schedule.EngineLS,
		Status:    schedule.StatusFeasible,
		Start:     []int{1, 3, 4},
		Unit:      []int{0, 0, 0},
		UnitsUsed: []int{1, 1},
		Latency:   4,
		Overruns:  []schedule.Overrun{{Node: 2, Start: 4, ALAP: 3}},
	}
	gr := Build(s, lib, res)
	if gr.Nodes[0].Unit != "MUL#0" || gr.Nodes[2].Start != 4 || !gr.Nodes[2].Late {
		t.Errorf("unexpected annotations: %+v", gr.Nodes)
	}
	if gr.Metadata.Latency != 4 || gr.Metadata.Status != "feasible" {
		t.Errorf("unexpected metadata: %+v", gr.Metadata)
	}
}

func TestWriteDOT(t *testing.T) {
	s, lib := testGraph(t)
	res := &schedule.Result{Start: []int{1, 3, 1}, Unit: []int{0, 0, 1}, UnitsUsed: []int{2, 1}, Latency: 3}

	var buf bytes.Buffer
	if err := WriteDOT(&buf, Build(s, lib, res)); err != nil {
		t.Fatalf("WriteDOT: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"digraph \"\" {",
		`"n0" -> "n1" [color=red];`,
		`{ rank=same; "n0"; "n2"; }`,
		`label="n0\n @1 MUL#0", color=red`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("DOT missing %q:\n%s", want, out)
		}
	}
}

func TestHandler(t *testing.T) {
	ts := httptest.NewServer(Handler(nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/graph")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 before a graph is posted, got %d", resp.StatusCode)
	}

	s, lib := testGraph(t)
	if err := PostGraph(ts.URL, Build(s, lib, nil)); err != nil {
		t.Fatalf("PostGraph: %v", err)
	}

	resp, err = http.Get(ts.URL + "/graph")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var got Graph
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Nodes) != 3 {
		t.Errorf("expected 3 nodes, got %d", len(got.Nodes))
	}

	dot, err := http.Get(ts.URL + "/graph.dot")
	if err != nil {
		t.Fatalf("GET dot: %v", err)
	}
	defer dot.Body.Close()
	if ct := dot.Header.Get("Content-Type"); ct != "text/vnd.graphviz" {
		t.Errorf("unexpected content type %q", ct)
	}
}

func TestIsPortOpen(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	if !IsPortOpen(strings.TrimPrefix(ts.URL, "http://")) {
		t.Error("expected port to be open")
	}
}
