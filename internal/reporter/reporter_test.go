package reporter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/joshharrison/rcsched/internal/bounds"
	"github.com/joshharrison/rcsched/internal/dfg"
	"github.com/joshharrison/rcsched/internal/fulib"
	"github.com/joshharrison/rcsched/internal/resultio"
	"github.com/joshharrison/rcsched/internal/schedule"
)

func init() {
	color.NoColor = true
}

func makeLib(t *testing.T) *fulib.Library {
	t.Helper()
	lib, err := fulib.New([]fulib.FUType{
		{Name: "ADD", Count: 1, Delay: 1},
		{Name: "MUL", Count: 1, Delay: 2},
	})
	if err != nil {
		t.Fatalf("fulib.New: %v", err)
	}
	return lib
}

// n0 (MUL) -> n1 (ADD); n2 (ADD) independent.
func makeGraph(t *testing.T) *dfg.Graph {
	t.Helper()
	g, err := dfg.FromEdges([]int{1, 0, 0}, [][2]int{{0, 1}})
	if err != nil {
		t.Fatalf("FromEdges: %v", err)
	}
	return g
}

func makeResult() *schedule.Result {
	return &schedule.Result{
		Graph:             "toy",
		Engine:            schedule.EngineLS,
		Status:            schedule.StatusFeasible,
		Start:             []int{1, 3, 1},
		Unit:              []int{0, 0, 0},
		UnitsUsed:         []int{1, 1},
		Latency:           3,
		LatencyConstraint: 3,
		Iterations:        2,
		Overruns:          []schedule.Overrun{{Node: 2, Start: 1, ALAP: 0}},
	}
}

func TestPrintStatus(t *testing.T) {
	rpt := New(makeGraph(t), makeLib(t), makeResult(), fulib.Bounds{1, 1})

	var buf bytes.Buffer
	rpt.PrintStatus(&buf)
	output := buf.String()

	for _, want := range []string{"[toy]", "feasible", "latency 3", "CYCLE 1", "CYCLE 3", "MUL#0", "late (alap 0)"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q:\n%s", want, output)
		}
	}
	if strings.Index(output, "CYCLE 1") > strings.Index(output, "CYCLE 3") {
		t.Error("cycles should be printed in order")
	}
}

func TestPrintStatus_NoSchedule(t *testing.T) {
	res := &schedule.Result{Graph: "toy", Engine: schedule.EngineFDS, Status: schedule.StatusInfeasible, Reason: "zero bound"}
	rpt := New(makeGraph(t), makeLib(t), res, nil)

	var buf bytes.Buffer
	rpt.PrintStatus(&buf)
	if !strings.Contains(buf.String(), "zero bound") {
		t.Errorf("expected reason in output: %s", buf.String())
	}
	if strings.Contains(buf.String(), "CYCLE") {
		t.Error("no cycles expected without a schedule")
	}

	buf.Reset()
	rpt.PrintGantt(&buf)
	if buf.Len() != 0 {
		t.Errorf("expected empty gantt, got %q", buf.String())
	}
}

func TestPrintGantt(t *testing.T) {
	rpt := New(makeGraph(t), makeLib(t), makeResult(), fulib.Bounds{1, 1})

	var buf bytes.Buffer
	rpt.PrintGantt(&buf)
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected ruler + 2 unit rows, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.HasSuffix(lines[0], "123") {
		t.Errorf("unexpected ruler %q", lines[0])
	}
	if !strings.HasPrefix(strings.TrimSpace(lines[1]), "ADD#0") || !strings.HasSuffix(lines[1], "n.n") {
		t.Errorf("unexpected ADD row %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], "n#.") {
		t.Errorf("unexpected MUL row %q", lines[2])
	}
}

func TestPrintBounds(t *testing.T) {
	g := makeGraph(t)
	lib := makeLib(t)
	s := bounds.NewState(g, lib)
	if err := s.Compute(3); err != nil {
		t.Fatalf("Compute: %v", err)
	}

	var buf bytes.Buffer
	PrintBounds(&buf, s, lib, 3)
	output := buf.String()
	if !strings.Contains(output, "asap latency 3") {
		t.Errorf("expected asap latency in header:\n%s", output)
	}
	if !strings.Contains(output, "critical") {
		t.Error("expected column header")
	}
}

func TestJSON(t *testing.T) {
	rpt := New(makeGraph(t), makeLib(t), makeResult(), fulib.Bounds{1, 1})

	data, err := rpt.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}

	var out struct {
		Graph      string `json:"graph"`
		Status     string `json:"status"`
		UnitsTotal int    `json:"units_total"`
		Types      []struct {
			Type string `json:"type"`
			Used int    `json:"used"`
		} `json:"types"`
		Ops []struct {
			Name    string `json:"name"`
			Overrun bool   `json:"overrun"`
		} `json:"ops"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Graph != "toy" || out.Status != "feasible" || out.UnitsTotal != 2 {
		t.Errorf("unexpected header %+v", out)
	}
	if len(out.Types) != 2 || out.Types[1].Type != "MUL" {
		t.Errorf("unexpected types %+v", out.Types)
	}
	if len(out.Ops) != 3 || !out.Ops[2].Overrun || out.Ops[0].Overrun {
		t.Errorf("unexpected ops %+v", out.Ops)
	}
}

func TestSummary(t *testing.T) {
	rpt := New(makeGraph(t), makeLib(t), makeResult(), fulib.Bounds{fulib.Unbounded, 1})

	summary := rpt.Summary()
	for _, want := range []string{"Schedule Complete", "toy", "ADD 1/∞", "MUL 1/1", "Late operations"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary should contain %q:\n%s", want, summary)
		}
	}
}

func TestPrintTable(t *testing.T) {
	pass := resultio.NewRecord("hal")
	pass.TargetLatency = 4
	pass.Finish(makeResult())

	fail := resultio.NewRecord("ewf")
	fail.TargetLatency = 4
	fail.Finish(&schedule.Result{Graph: "ewf", Engine: schedule.EngineFDS, Status: schedule.StatusInfeasible})

	none := resultio.NewRecord("fir")
	none.Finish(makeResult())

	var buf bytes.Buffer
	PrintTable(&buf, []*resultio.Record{pass, fail, none})
	output := buf.String()
	if !strings.Contains(output, "1 pass") || !strings.Contains(output, "1 fail") || !strings.Contains(output, "1 no target") {
		t.Errorf("unexpected totals:\n%s", output)
	}
	if !strings.Contains(output, "-1") {
		t.Errorf("expected delta -1 for hal:\n%s", output)
	}
}
