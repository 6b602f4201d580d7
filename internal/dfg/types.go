package dfg

// Node is a single operation in a data-flow graph.
type Node struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Op    string `json:"op"`   // mnemonic as written in the source, e.g. "ADD"
	Type  int    `json:"type"` // index into the functional-unit library
	Preds []int  `json:"preds,omitempty"`
	Succs []int  `json:"succs,omitempty"`
}

// Graph is an immutable, acyclic operation graph. Nodes live in a single
// arena indexed by ID; edges are ID lists in ascending order.
type Graph struct {
	Name  string
	Nodes []Node
	Roots []int // nodes with no predecessors
	Sinks []int // nodes with no successors

	order  []int
	depth  []int
	byName map[string]int
	edges  int
}

// RawNode is an operation as produced by a loader, before edges are resolved.
type RawNode struct {
	Name string
	Op   string
	Type int
}

// RawEdge is a precedence edge between two named operations.
type RawEdge struct {
	From string
	To   string
}

// TypeResolver maps an operation mnemonic onto a functional-unit type index.
type TypeResolver interface {
	Resolve(op string) (int, error)
}
