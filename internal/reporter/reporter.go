package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/joshharrison/rcsched/internal/bounds"
	"github.com/joshharrison/rcsched/internal/dfg"
	"github.com/joshharrison/rcsched/internal/fulib"
	"github.com/joshharrison/rcsched/internal/resultio"
	"github.com/joshharrison/rcsched/internal/schedule"
	"github.com/joshharrison/rcsched/internal/ui"
)

// Reporter provides display for one scheduling result.
type Reporter struct {
	Graph   *dfg.Graph
	Lib     *fulib.Library
	Result  *schedule.Result
	Bounds  fulib.Bounds
	Elapsed time.Duration
}

// New creates a new Reporter.
func New(g *dfg.Graph, lib *fulib.Library, res *schedule.Result, b fulib.Bounds) *Reporter {
	return &Reporter{
		Graph:  g,
		Lib:    lib,
		Result: res,
		Bounds: b.Fit(lib.Len()),
	}
}

func (r *Reporter) overrunSet() map[int]schedule.Overrun {
	m := make(map[int]schedule.Overrun, len(r.Result.Overruns))
	for _, o := range r.Result.Overruns {
		m[o.Node] = o
	}
	return m
}

// PrintStatus writes the schedule grouped by start cycle.
func (r *Reporter) PrintStatus(w io.Writer) {
	res := r.Result
	fmt.Fprintf(w, "%s %s %s %s",
		ui.BoldCyan("⏱ rcsched"), ui.GraphPrefix(res.Graph),
		ui.StatusIcon(string(res.Status)), ui.Status(string(res.Status)))
	if res.Start != nil {
		fmt.Fprintf(w, " %s %d %s %d",
			ui.Bold("latency"), res.Latency, ui.Dim("/ target"), res.LatencyConstraint)
	}
	fmt.Fprintln(w)
	if res.Reason != "" {
		fmt.Fprintf(w, "  %s\n", ui.Yellow(res.Reason))
	}
	if res.Start == nil {
		return
	}
	fmt.Fprintln(w)

	byCycle := make(map[int][]int)
	for id, c := range res.Start {
		byCycle[c] = append(byCycle[c], id)
	}
	cycles := make([]int, 0, len(byCycle))
	for c := range byCycle {
		cycles = append(cycles, c)
	}
	sort.Ints(cycles)

	over := r.overrunSet()
	for _, c := range cycles {
		fmt.Fprintf(w, "  %s %d\n", ui.BoldWhite("CYCLE"), c)
		for _, id := range byCycle[c] {
			r.printOp(w, id, over)
		}
	}
	fmt.Fprintln(w)
}

func (r *Reporter) printOp(w io.Writer, id int, over map[int]schedule.Overrun) {
	n := r.Graph.Nodes[id]
	ft := r.Lib.Type(n.Type)
	unit := fmt.Sprintf("%s#%d", ft.Name, r.Result.Unit[id])
	mark := " "
	if o, ok := over[id]; ok {
		mark = ui.BoldYellow(fmt.Sprintf("late (alap %d)", o.ALAP))
	}
	fmt.Fprintf(w, "    %-10s %-6s %s  %s\n", n.Name, n.Op, ui.TypeColor(n.Type, fmt.Sprintf("%-8s", unit)), mark)
}

// PrintGantt draws one row per functional unit instance; each cell is a cycle.
func (r *Reporter) PrintGantt(w io.Writer) {
	res := r.Result
	if res.Start == nil {
		return
	}
	type row struct {
		typ, inst int
		cells     []string
	}
	var rows []*row
	index := make(map[[2]int]*row)
	for t, used := range res.UnitsUsed {
		for i := 0; i < used; i++ {
			rw := &row{typ: t, inst: i, cells: make([]string, res.Latency)}
			for c := range rw.cells {
				rw.cells[c] = ui.Dim(".")
			}
			rows = append(rows, rw)
			index[[2]int{t, i}] = rw
		}
	}
	for id, n := range r.Graph.Nodes {
		rw := index[[2]int{n.Type, res.Unit[id]}]
		if rw == nil {
			continue
		}
		d := r.Lib.Delay(n.Type)
		for c := res.Start[id]; c < res.Start[id]+d && c-1 < len(rw.cells); c++ {
			glyph := "#"
			if c == res.Start[id] && n.Name != "" {
				glyph = string([]rune(n.Name)[0])
			}
			rw.cells[c-1] = ui.TypeColor(n.Type, glyph)
		}
	}

	var ruler strings.Builder
	for c := 1; c <= res.Latency; c++ {
		ruler.WriteString(fmt.Sprint(c % 10))
	}
	fmt.Fprintf(w, "  %-10s %s\n", "", ui.Dim(ruler.String()))
	for _, rw := range rows {
		label := fmt.Sprintf("%s#%d", r.Lib.Type(rw.typ).Name, rw.inst)
		fmt.Fprintf(w, "  %-10s %s\n", label, strings.Join(rw.cells, ""))
	}
}

// PrintBounds writes the ASAP/ALAP table of a computed bounds state.
func PrintBounds(w io.Writer, s *bounds.State, lib *fulib.Library, lc int) {
	g := s.Graph()
	fmt.Fprintf(w, "%s %s  %s %d  %s %d\n\n",
		ui.BoldCyan("Bounds"), ui.GraphPrefix(g.Name),
		ui.Bold("asap latency"), s.ASAPLatency(), ui.Bold("lc"), lc)
	fmt.Fprintf(w, "  %-10s %-6s %-6s %5s %5s %5s %5s  %s\n", "node", "op", "type", "delay", "asap", "alap", "slack", "critical")
	for _, id := range g.TopoOrder() {
		n := g.Nodes[id]
		win := s.W[id]
		crit := "-"
		if win.CriticalSucc != bounds.NoSuccessor {
			crit = g.Nodes[win.CriticalSucc].Name
		}
		slack := fmt.Sprintf("%5d", win.Slack())
		if win.Slack() == 0 {
			slack = ui.BoldYellow(slack)
		}
		fmt.Fprintf(w, "  %-10s %-6s %-6s %5d %5d %5d %s  %s\n",
			n.Name, n.Op, lib.Type(n.Type).Name, s.Delay(id), win.ASAP, win.ALAP, slack, ui.Dim(crit))
	}
}

// JSON returns the machine-readable result with per-operation detail.
func (r *Reporter) JSON() ([]byte, error) {
	type opStatus struct {
		Name    string `json:"name"`
		Op      string `json:"op"`
		Type    string `json:"type"`
		Start   int    `json:"start"`
		Unit    int    `json:"unit"`
		Overrun bool   `json:"overrun,omitempty"`
	}
	type typeUsage struct {
		Type  string `json:"type"`
		Bound int    `json:"bound"`
		Used  int    `json:"used"`
		Delay int    `json:"delay"`
	}
	type output struct {
		Graph             string      `json:"graph"`
		Engine            string      `json:"engine"`
		Status            string      `json:"status"`
		Reason            string      `json:"reason,omitempty"`
		Latency           int         `json:"latency"`
		LatencyConstraint int         `json:"latency_constraint"`
		Iterations        int         `json:"iterations"`
		UnitsTotal        int         `json:"units_total"`
		Elapsed           string      `json:"elapsed,omitempty"`
		Types             []typeUsage `json:"types"`
		Ops               []opStatus  `json:"ops,omitempty"`
	}

	res := r.Result
	o := output{
		Graph:             res.Graph,
		Engine:            string(res.Engine),
		Status:            string(res.Status),
		Reason:            res.Reason,
		Latency:           res.Latency,
		LatencyConstraint: res.LatencyConstraint,
		Iterations:        res.Iterations,
		UnitsTotal:        res.TotalUnits(),
	}
	if r.Elapsed > 0 {
		o.Elapsed = r.Elapsed.String()
	}
	for t, ft := range r.Lib.Types() {
		u := typeUsage{Type: ft.Name, Bound: r.Bounds.Get(t), Delay: ft.Delay}
		if t < len(res.UnitsUsed) {
			u.Used = res.UnitsUsed[t]
		}
		o.Types = append(o.Types, u)
	}
	if res.Start != nil {
		over := r.overrunSet()
		for id, n := range r.Graph.Nodes {
			_, late := over[id]
			o.Ops = append(o.Ops, opStatus{
				Name:    n.Name,
				Op:      n.Op,
				Type:    r.Lib.Type(n.Type).Name,
				Start:   res.Start[id],
				Unit:    res.Unit[id],
				Overrun: late,
			})
		}
	}
	return json.MarshalIndent(o, "", "  ")
}

// Summary returns a final summary string.
func (r *Reporter) Summary() string {
	var b strings.Builder
	res := r.Result

	statusEmoji := "✅"
	switch res.Status {
	case schedule.StatusInfeasible:
		statusEmoji = "❌"
	case schedule.StatusSearchExhausted:
		statusEmoji = "⚠️"
	}

	fmt.Fprintf(&b, "\n%s %s\n", statusEmoji, ui.BoldCyan("Schedule Complete"))
	fmt.Fprintf(&b, "%s\n", ui.Cyan("═════════════════════════"))
	fmt.Fprintf(&b, "Graph:      %s %s\n", ui.Bold(res.Graph), ui.Dim(fmt.Sprintf("(%d ops, %d edges)", r.Graph.Len(), r.Graph.EdgeCount())))
	fmt.Fprintf(&b, "Engine:     %s\n", res.Engine)
	fmt.Fprintf(&b, "Status:     %s\n", ui.Status(string(res.Status)))
	if res.Reason != "" {
		fmt.Fprintf(&b, "Reason:     %s\n", ui.Yellow(res.Reason))
	}
	if res.Start != nil {
		fmt.Fprintf(&b, "Latency:    %s %s\n", ui.Bold(res.Latency), ui.Dim(fmt.Sprintf("(constraint %d)", res.LatencyConstraint)))
		fmt.Fprintf(&b, "Units:      %d", res.TotalUnits())
		var parts []string
		for t, ft := range r.Lib.Types() {
			if t >= len(res.UnitsUsed) || res.UnitsUsed[t] == 0 {
				continue
			}
			bound := "∞"
			if bd := r.Bounds.Get(t); bd != fulib.Unbounded {
				bound = fmt.Sprint(bd)
			}
			parts = append(parts, fmt.Sprintf("%s %d/%s", ft.Name, res.UnitsUsed[t], bound))
		}
		if len(parts) > 0 {
			fmt.Fprintf(&b, " %s", ui.Dim("("+strings.Join(parts, ", ")+")"))
		}
		fmt.Fprintln(&b)
	}
	fmt.Fprintf(&b, "Iterations: %d\n", res.Iterations)
	if r.Elapsed > 0 {
		fmt.Fprintf(&b, "Duration:   %s\n", r.Elapsed.Round(time.Microsecond))
	}

	if len(res.Overruns) > 0 {
		fmt.Fprintf(&b, "\n%s\n", ui.BoldYellow("Late operations:"))
		for _, o := range res.Overruns {
			fmt.Fprintf(&b, "  %s %s  start %d > alap %d\n",
				ui.Yellow("⚠"), ui.BoldMagenta(r.Graph.Nodes[o.Node].Name), o.Start, o.ALAP)
		}
	}
	return b.String()
}

// PrintTable writes one line per saved run record, as used by batch and summary.
func PrintTable(w io.Writer, recs []*resultio.Record) {
	fmt.Fprintf(w, "  %-3s %-16s %-6s %-9s %7s %7s %6s %5s %9s\n",
		"", "graph", "engine", "ranking", "target", "latency", "delta", "fus", "runtime")
	pass, fail, nodata := 0, 0, 0
	for _, rec := range recs {
		row := resultio.RowFromRecord(rec)
		status := row.Status()
		switch status {
		case resultio.RowPass:
			pass++
		case resultio.RowFail:
			fail++
		default:
			nodata++
		}
		target, delta := "-", "-"
		if rec.TargetLatency != resultio.NoTarget {
			target = fmt.Sprint(rec.TargetLatency)
			if rec.Result != nil && rec.Result.Start != nil {
				delta = fmt.Sprintf("%+d", rec.Result.Latency-rec.TargetLatency)
			}
		}
		engine, latency := "-", "-"
		if rec.Result != nil {
			engine = string(rec.Result.Engine)
			if rec.Result.Start != nil {
				latency = fmt.Sprint(rec.Result.Latency)
			}
		}
		fmt.Fprintf(w, "  %s %-16s %-6s %-9s %7s %7s %6s %5d %7.1fms\n",
			ui.StatusIcon(string(statusOf(rec))), rec.Graph, engine, rec.Ranking,
			target, latency, delta, row.FUs, rec.RuntimeMS)
	}
	fmt.Fprintf(w, "\n  %s  %s  %s\n",
		ui.Green(fmt.Sprintf("%d pass", pass)),
		ui.Red(fmt.Sprintf("%d fail", fail)),
		ui.Dim(fmt.Sprintf("%d no target", nodata)))
}

func statusOf(rec *resultio.Record) schedule.Status {
	if rec.Result == nil {
		return ""
	}
	return rec.Result.Status
}
