package dfg

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ParseError reports a malformed line in a graph description.
type ParseError struct {
	Line int
	Text string
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Msg, e.Text)
}

var punct = strings.NewReplacer("[", " ", "]", " ", ";", " ", "\"", " ", ",", " ", ":", " ", "{", " ", "}", " ")

// Parse reads a textual graph description. Lines containing "label" declare
// an operation ("a [label = ADD];"), lines containing "->" declare an edge
// ("a -> b;"). Everything else, including // and # comments, is ignored.
func Parse(name string, r io.Reader, res TypeResolver) (*Graph, error) {
	var nodes []RawNode
	var edges []RawEdge

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		raw := sc.Text()
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "//") || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case strings.Contains(line, "label"):
			n, err := parseNode(line)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Text: raw, Msg: err.Error()}
			}
			t, err := res.Resolve(n.Op)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Text: raw, Msg: err.Error()}
			}
			n.Type = t
			nodes = append(nodes, n)
		case strings.Contains(line, "->"):
			e, err := parseEdge(line)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Text: raw, Msg: err.Error()}
			}
			edges = append(edges, e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}

	return Build(name, nodes, edges)
}

// ParseFile reads a graph description from path. The graph is named after
// the file's base name without extension.
func ParseFile(path string, res TypeResolver) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open graph: %w", err)
	}
	defer f.Close()

	g, err := Parse(NameFromPath(path), f, res)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// NameFromPath strips directories and the extension from a graph file path.
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func parseNode(line string) (RawNode, error) {
	idx := strings.Index(line, "label")
	head := strings.Fields(punct.Replace(line[:idx]))
	if len(head) == 0 {
		return RawNode{}, fmt.Errorf("missing node name")
	}

	tail := line[idx+len("label"):]
	tail = strings.TrimLeft(tail, " \t")
	tail = strings.TrimPrefix(tail, "=")
	op := strings.Fields(punct.Replace(tail))
	if len(op) == 0 {
		return RawNode{}, fmt.Errorf("missing operation label")
	}
	return RawNode{Name: head[0], Op: strings.ToUpper(op[0])}, nil
}

func parseEdge(line string) (RawEdge, error) {
	idx := strings.Index(line, "->")
	from := strings.Fields(punct.Replace(line[:idx]))
	to := strings.Fields(punct.Replace(line[idx+2:]))
	if len(from) == 0 || len(to) == 0 {
		return RawEdge{}, fmt.Errorf("edge needs two endpoints")
	}
	return RawEdge{From: from[len(from)-1], To: to[0]}, nil
}
