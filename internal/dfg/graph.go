package dfg

import (
	"fmt"
	"sort"
)

// Build constructs a Graph from loader output. Duplicate edges are dropped,
// adjacency lists are sorted, and cycles are rejected.
func Build(name string, nodes []RawNode, edges []RawEdge) (*Graph, error) {
	if len(nodes) == 0 {
		return nil, ErrEmpty
	}

	g := &Graph{
		Name:   name,
		Nodes:  make([]Node, len(nodes)),
		byName: make(map[string]int, len(nodes)),
	}

	for i, rn := range nodes {
		if _, dup := g.byName[rn.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateNode, rn.Name)
		}
		if rn.Type < 0 {
			return nil, fmt.Errorf("node %q: negative type %d", rn.Name, rn.Type)
		}
		g.byName[rn.Name] = i
		g.Nodes[i] = Node{ID: i, Name: rn.Name, Op: rn.Op, Type: rn.Type}
	}

	edgeSet := make(map[[2]int]bool)
	for _, e := range edges {
		from, ok := g.byName[e.From]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownNode, e.From)
		}
		to, ok := g.byName[e.To]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownNode, e.To)
		}
		key := [2]int{from, to}
		if edgeSet[key] {
			continue
		}
		edgeSet[key] = true
		g.Nodes[from].Succs = append(g.Nodes[from].Succs, to)
		g.Nodes[to].Preds = append(g.Nodes[to].Preds, from)
	}
	g.edges = len(edgeSet)

	for i := range g.Nodes {
		sort.Ints(g.Nodes[i].Succs)
		sort.Ints(g.Nodes[i].Preds)
		if len(g.Nodes[i].Preds) == 0 {
			g.Roots = append(g.Roots, i)
		}
		if len(g.Nodes[i].Succs) == 0 {
			g.Sinks = append(g.Sinks, i)
		}
	}

	if cycle := g.DetectCycle(); cycle != nil {
		path := make([]string, len(cycle))
		for i, id := range cycle {
			path[i] = g.Nodes[id].Name
		}
		return nil, &CycleError{Path: path}
	}

	g.order = g.topoSort()
	g.depth = g.depthLabels()
	return g, nil
}

// FromEdges builds an anonymous graph from a type per node and id pairs.
// Nodes are named n0, n1, ... in order.
func FromEdges(types []int, edges [][2]int) (*Graph, error) {
	nodes := make([]RawNode, len(types))
	for i, t := range types {
		nodes[i] = RawNode{Name: fmt.Sprintf("n%d", i), Type: t}
	}
	raw := make([]RawEdge, 0, len(edges))
	for _, e := range edges {
		if e[0] < 0 || e[0] >= len(types) || e[1] < 0 || e[1] >= len(types) {
			return nil, fmt.Errorf("%w: edge %d -> %d", ErrUnknownNode, e[0], e[1])
		}
		raw = append(raw, RawEdge{From: nodes[e[0]].Name, To: nodes[e[1]].Name})
	}
	return Build("", nodes, raw)
}

// DetectCycle returns a cycle as a list of node ids, or nil if the graph is acyclic.
// Uses DFS with coloring: white (unvisited), gray (in progress), black (done).
func (g *Graph) DetectCycle() []int {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make([]int, len(g.Nodes))
	parent := make([]int, len(g.Nodes))

	var dfs func(node int) []int
	dfs = func(node int) []int {
		color[node] = gray
		for _, next := range g.Nodes[node].Succs {
			if color[next] == gray {
				cycle := []int{next, node}
				cur := node
				for cur != next {
					cur = parent[cur]
					cycle = append(cycle, cur)
				}
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				return cycle
			}
			if color[next] == white {
				parent[next] = node
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		color[node] = black
		return nil
	}

	for id := range g.Nodes {
		if color[id] == white {
			if cycle := dfs(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// topoSort is Kahn's algorithm with the ready queue kept in id order.
func (g *Graph) topoSort() []int {
	inDegree := make([]int, len(g.Nodes))
	for i := range g.Nodes {
		inDegree[i] = len(g.Nodes[i].Preds)
	}

	queue := append([]int(nil), g.Roots...)
	order := make([]int, 0, len(g.Nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		var newReady []int
		for _, succ := range g.Nodes[node].Succs {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				newReady = append(newReady, succ)
			}
		}
		sort.Ints(newReady)
		queue = append(queue, newReady...)
	}
	return order
}

// depthLabels computes the longest-path-from-source depth (in edges) of every node.
func (g *Graph) depthLabels() []int {
	depth := make([]int, len(g.Nodes))
	for _, id := range g.order {
		for _, p := range g.Nodes[id].Preds {
			if depth[p]+1 > depth[id] {
				depth[id] = depth[p] + 1
			}
		}
	}
	return depth
}

// Len returns the number of operations.
func (g *Graph) Len() int {
	return len(g.Nodes)
}

// EdgeCount returns the number of distinct precedence edges.
func (g *Graph) EdgeCount() int {
	return g.edges
}

// TopoOrder returns the nodes in a deterministic topological order.
// The returned slice must not be modified.
func (g *Graph) TopoOrder() []int {
	return g.order
}

// Depth returns the longest-path depth of node id; roots have depth 0.
func (g *Graph) Depth(id int) int {
	return g.depth[id]
}

// Lookup returns the id of the named operation.
func (g *Graph) Lookup(name string) (int, bool) {
	id, ok := g.byName[name]
	return id, ok
}

// TypeCounts returns the number of operations of each of n types.
func (g *Graph) TypeCounts(n int) []int {
	counts := make([]int, n)
	for _, node := range g.Nodes {
		if node.Type < n {
			counts[node.Type]++
		}
	}
	return counts
}

// MaxType returns the largest type index used by any node.
func (g *Graph) MaxType() int {
	maxT := 0
	for _, node := range g.Nodes {
		if node.Type > maxT {
			maxT = node.Type
		}
	}
	return maxT
}
