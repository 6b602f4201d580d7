package dfg

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

type mapResolver map[string]int

func (m mapResolver) Resolve(op string) (int, error) {
	t, ok := m[op]
	if !ok {
		return 0, fmt.Errorf("unknown op %q", op)
	}
	return t, nil
}

func TestBuild_Diamond(t *testing.T) {
	// a -> b -> d
	// a -> c -> d
	nodes := []RawNode{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}}
	edges := []RawEdge{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}, {"a", "b"}}

	g, err := Build("diamond", nodes, edges)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.Len() != 4 {
		t.Errorf("expected 4 nodes, got %d", g.Len())
	}
	if g.EdgeCount() != 4 {
		t.Errorf("expected duplicate edge to be dropped, got %d edges", g.EdgeCount())
	}
	if len(g.Roots) != 1 || g.Roots[0] != 0 {
		t.Errorf("expected roots=[0], got %v", g.Roots)
	}
	if len(g.Sinks) != 1 || g.Sinks[0] != 3 {
		t.Errorf("expected sinks=[3], got %v", g.Sinks)
	}
	if preds := g.Nodes[3].Preds; len(preds) != 2 || preds[0] != 1 || preds[1] != 2 {
		t.Errorf("expected d preds [1 2], got %v", preds)
	}
	if got := g.Depth(3); got != 2 {
		t.Errorf("expected depth(d)=2, got %d", got)
	}
}

func TestBuild_PredSuccConsistency(t *testing.T) {
	g, err := FromEdges([]int{0, 0, 1, 1, 0}, [][2]int{{0, 2}, {1, 2}, {2, 3}, {1, 4}, {4, 3}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, n := range g.Nodes {
		for _, s := range n.Succs {
			found := false
			for _, p := range g.Nodes[s].Preds {
				if p == n.ID {
					found = true
				}
			}
			if !found {
				t.Errorf("edge %d -> %d missing from preds of %d", n.ID, s, s)
			}
		}
	}
}

func TestBuild_CycleDetected(t *testing.T) {
	nodes := []RawNode{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	edges := []RawEdge{{"a", "b"}, {"b", "c"}, {"c", "a"}}

	_, err := Build("loop", nodes, edges)
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if !errors.Is(err, ErrCycle) {
		t.Errorf("expected ErrCycle, got %v", err)
	}
	var ce *CycleError
	if !errors.As(err, &ce) || len(ce.Path) < 3 {
		t.Errorf("expected cycle path, got %v", err)
	}
}

func TestBuild_UnknownNode(t *testing.T) {
	_, err := Build("x", []RawNode{{Name: "a"}}, []RawEdge{{"a", "zz"}})
	if !errors.Is(err, ErrUnknownNode) {
		t.Errorf("expected ErrUnknownNode, got %v", err)
	}
}

func TestBuild_Duplicate(t *testing.T) {
	_, err := Build("x", []RawNode{{Name: "a"}, {Name: "a"}}, nil)
	if !errors.Is(err, ErrDuplicateNode) {
		t.Errorf("expected ErrDuplicateNode, got %v", err)
	}
}

func TestTopoOrder_RespectsEdges(t *testing.T) {
	g, err := FromEdges([]int{0, 0, 0, 0, 0}, [][2]int{{3, 1}, {1, 0}, {4, 0}, {2, 4}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pos := make([]int, g.Len())
	for i, id := range g.TopoOrder() {
		pos[id] = i
	}
	for _, n := range g.Nodes {
		for _, s := range n.Succs {
			if pos[n.ID] >= pos[s] {
				t.Errorf("node %d ordered after successor %d", n.ID, s)
			}
		}
	}
	if got := g.TopoOrder()[0]; got != 2 {
		t.Errorf("expected lowest-id root first, got %d", got)
	}
}

func TestParse(t *testing.T) {
	src := `// sample
digraph hal {
	a [label = MUL];
	b [label = sub];
	c [label = ADD];
	a -> c;
	b -> c [name = 1];
}
`
	g, err := Parse("hal", strings.NewReader(src), mapResolver{"ADD": 0, "SUB": 0, "MUL": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Len() != 3 || g.EdgeCount() != 2 {
		t.Fatalf("expected 3 nodes / 2 edges, got %d / %d", g.Len(), g.EdgeCount())
	}
	if g.Nodes[0].Type != 1 || g.Nodes[1].Op != "SUB" {
		t.Errorf("unexpected nodes: %+v", g.Nodes)
	}
	c, ok := g.Lookup("c")
	if !ok || len(g.Nodes[c].Preds) != 2 {
		t.Errorf("expected c to have two preds, got %+v", g.Nodes[c])
	}
}

func TestParse_UnknownOp(t *testing.T) {
	_, err := Parse("x", strings.NewReader("a [label = FOO];\n"), mapResolver{"ADD": 0})
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Line != 1 {
		t.Errorf("expected ParseError on line 1, got %v", err)
	}
}

func TestTypeCounts(t *testing.T) {
	g, err := FromEdges([]int{0, 1, 1, 2}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	counts := g.TypeCounts(3)
	if counts[0] != 1 || counts[1] != 2 || counts[2] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
	if g.MaxType() != 2 {
		t.Errorf("expected max type 2, got %d", g.MaxType())
	}
}

func TestNameFromPath(t *testing.T) {
	if got := NameFromPath("DFG/hal.txt"); got != "hal" {
		t.Errorf("expected hal, got %q", got)
	}
}
