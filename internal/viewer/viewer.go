package viewer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/joshharrison/rcsched/internal/bounds"
	"github.com/joshharrison/rcsched/internal/fulib"
	"github.com/joshharrison/rcsched/internal/schedule"
)

// --- Graph types ---

type GraphNode struct {
	ID         string `json:"id"`
	Op         string `json:"op"`
	Type       string `json:"type"`
	Delay      int    `json:"delay"`
	ASAP       int    `json:"asap"`
	ALAP       int    `json:"alap"`
	Slack      int    `json:"slack"`
	Start      int    `json:"start,omitempty"`
	Unit       string `json:"unit,omitempty"`
	IsCritical bool   `json:"is_critical"`
	Late       bool   `json:"late,omitempty"`
}

type GraphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type GraphMetadata struct {
	Graph             string    `json:"graph"`
	Engine            string    `json:"engine,omitempty"`
	Status            string    `json:"status,omitempty"`
	Latency           int       `json:"latency"`
	LatencyConstraint int       `json:"latency_constraint"`
	TotalOps          int       `json:"total_ops"`
	UnitsUsed         []int     `json:"units_used,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

type Graph struct {
	Nodes        []GraphNode   `json:"nodes"`
	Edges        []GraphEdge   `json:"edges"`
	CriticalPath []string      `json:"critical_path"`
	Metadata     GraphMetadata `json:"metadata"`
}

// Build annotates g with the windows of s and, when res carries a
// schedule, each operation's start cycle and unit instance.
func Build(s *bounds.State, lib *fulib.Library, res *schedule.Result) *Graph {
	g := s.Graph()
	late := make(map[int]bool)
	if res != nil {
		for _, o := range res.Overruns {
			late[o.Node] = true
		}
	}

	out := &Graph{
		Nodes: make([]GraphNode, 0, g.Len()),
		Metadata: GraphMetadata{
			Graph:     g.Name,
			Latency:   s.ASAPLatency(),
			TotalOps:  g.Len(),
			CreatedAt: time.Now().UTC(),
		},
	}
	for id, n := range g.Nodes {
		w := s.W[id]
		gn := GraphNode{
			ID:         n.Name,
			Op:         n.Op,
			Type:       lib.Type(n.Type).Name,
			Delay:      s.Delay(id),
			ASAP:       w.ASAP,
			ALAP:       w.ALAP,
			Slack:      w.Slack(),
			IsCritical: w.Slack() == 0,
			Late:       late[id],
		}
		if res != nil && res.Start != nil {
			gn.Start = res.Start[id]
			gn.Unit = fmt.Sprintf("%s#%d", gn.Type, res.Unit[id])
		}
		out.Nodes = append(out.Nodes, gn)
		for _, succ := range n.Succs {
			out.Edges = append(out.Edges, GraphEdge{From: n.Name, To: g.Nodes[succ].Name})
		}
	}
	out.CriticalPath = criticalPath(s)

	if res != nil {
		out.Metadata.Engine = string(res.Engine)
		out.Metadata.Status = string(res.Status)
		out.Metadata.LatencyConstraint = res.LatencyConstraint
		out.Metadata.UnitsUsed = res.UnitsUsed
		if res.Start != nil {
			out.Metadata.Latency = res.Latency
		}
	}
	return out
}

// criticalPath follows critical successors from the zero-slack root with
// the lowest id, or the root with the least slack when none is tight.
func criticalPath(s *bounds.State) []string {
	g := s.Graph()
	if len(g.Roots) == 0 {
		return nil
	}
	roots := append([]int(nil), g.Roots...)
	sort.Ints(roots)
	start := roots[0]
	for _, r := range roots[1:] {
		if s.W[r].Slack() < s.W[start].Slack() {
			start = r
		}
	}
	var path []string
	for n := start; n != bounds.NoSuccessor; n = s.W[n].CriticalSucc {
		path = append(path, g.Nodes[n].Name)
	}
	return path
}

// WriteDOT renders the graph in Graphviz format, one rank per start cycle
// when a schedule is attached.
func WriteDOT(w io.Writer, gr *Graph) error {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", gr.Metadata.Graph)
	b.WriteString("  rankdir=TB;\n  node [shape=box, fontname=\"monospace\"];\n")

	ranks := make(map[int][]string)
	for _, n := range gr.Nodes {
		label := fmt.Sprintf("%s\\n%s [%d,%d]", n.ID, n.Op, n.ASAP, n.ALAP)
		if n.Unit != "" {
			label = fmt.Sprintf("%s\\n%s @%d %s", n.ID, n.Op, n.Start, n.Unit)
			ranks[n.Start] = append(ranks[n.Start], n.ID)
		}
		attrs := `label="` + label + `"`
		switch {
		case n.Late:
			attrs += ", color=orange, penwidth=2"
		case n.IsCritical:
			attrs += ", color=red, penwidth=2"
		}
		fmt.Fprintf(&b, "  %q [%s];\n", n.ID, attrs)
	}

	cycles := make([]int, 0, len(ranks))
	for c := range ranks {
		cycles = append(cycles, c)
	}
	sort.Ints(cycles)
	for _, c := range cycles {
		fmt.Fprintf(&b, "  { rank=same; ")
		for _, id := range ranks[c] {
			fmt.Fprintf(&b, "%q; ", id)
		}
		b.WriteString("}\n")
	}

	crit := make(map[[2]string]bool)
	for i := 1; i < len(gr.CriticalPath); i++ {
		crit[[2]string{gr.CriticalPath[i-1], gr.CriticalPath[i]}] = true
	}
	for _, e := range gr.Edges {
		if crit[[2]string{e.From, e.To}] {
			fmt.Fprintf(&b, "  %q -> %q [color=red];\n", e.From, e.To)
			continue
		}
		fmt.Fprintf(&b, "  %q -> %q;\n", e.From, e.To)
	}
	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// --- HTTP server ---

type server struct {
	mu    sync.RWMutex
	graph *Graph
}

func (s *server) handlePostGraph(w http.ResponseWriter, r *http.Request) {
	var g Graph
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.graph = &g
	s.mu.Unlock()

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(&g)
}

func (s *server) current(w http.ResponseWriter) *Graph {
	s.mu.RLock()
	g := s.graph
	s.mu.RUnlock()
	if g == nil {
		http.Error(w, "no graph loaded", http.StatusNotFound)
	}
	return g
}

func (s *server) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	g := s.current(w)
	if g == nil {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(g)
}

func (s *server) handleGetDOT(w http.ResponseWriter, r *http.Request) {
	g := s.current(w)
	if g == nil {
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	WriteDOT(w, g)
}

// Handler returns the viewer routes, preloaded with g when non-nil.
func Handler(g *Graph) http.Handler {
	srv := &server{graph: g}
	mux := http.NewServeMux()
	mux.HandleFunc("/graph", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			srv.handlePostGraph(w, r)
		case http.MethodGet:
			srv.handleGetGraph(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/graph.dot", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		srv.handleGetDOT(w, r)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("rcsched viewer: GET /graph (JSON), GET /graph.dot (Graphviz), POST /graph\n"))
	})
	return mux
}

// Start launches the viewer HTTP server on the given port in the background.
// Returns the base URL (e.g. "http://localhost:7171") or an error.
func Start(port int, g *Graph) (string, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return "", fmt.Errorf("listen on port %d: %w", port, err)
	}

	go http.Serve(ln, Handler(g))

	addr := fmt.Sprintf("http://localhost:%d", port)
	return addr, nil
}

// PostGraph sends a graph to a running viewer server.
func PostGraph(addr string, g *Graph) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal graph: %w", err)
	}

	resp, err := http.Post(addr+"/graph", "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("POST /graph: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("POST /graph returned %d", resp.StatusCode)
	}

	return nil
}

// IsPortOpen checks if something is listening on the given address.
func IsPortOpen(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
