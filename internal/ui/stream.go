package ui

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
)

// StreamFormatter parses JSON-lines slog output and writes
// human-readable lines to dest. It implements io.Writer.
type StreamFormatter struct {
	prefix string
	dest   io.Writer
	mu     *sync.Mutex
	buf    []byte
	debug  bool
}

// NewStreamFormatter creates a StreamFormatter that prefixes output with [graph].
// Several formatters may share mu when they write to the same dest.
func NewStreamFormatter(graph string, dest io.Writer, mu *sync.Mutex) *StreamFormatter {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	return &StreamFormatter{
		prefix: GraphPrefix(graph) + " ",
		dest:   dest,
		mu:     mu,
	}
}

// ShowDebug makes the formatter print DEBUG records too.
func (sf *StreamFormatter) ShowDebug(on bool) *StreamFormatter {
	sf.debug = on
	return sf
}

func (sf *StreamFormatter) Write(p []byte) (int, error) {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	sf.buf = append(sf.buf, p...)
	for {
		idx := bytes.IndexByte(sf.buf, '\n')
		if idx == -1 {
			break
		}
		line := string(sf.buf[:idx])
		sf.buf = sf.buf[idx+1:]
		sf.processLine(line)
	}
	return len(p), nil
}

// reserved keys are rendered specially or dropped.
var reserved = map[string]bool{"time": true, "level": true, "msg": true, "graph": true, "run_id": true}

func (sf *StreamFormatter) processLine(line string) {
	if !gjson.Valid(line) {
		return
	}
	rec := gjson.Parse(line)
	level := rec.Get("level").String()
	if level == "DEBUG" && !sf.debug {
		return
	}

	var attrs []string
	rec.ForEach(func(key, value gjson.Result) bool {
		if !reserved[key.String()] {
			attrs = append(attrs, key.String()+"="+compact(value))
		}
		return true
	})
	sort.Strings(attrs)

	text := levelIcon(level) + " " + rec.Get("msg").String()
	if len(attrs) > 0 {
		text += " " + Dim(strings.Join(attrs, " "))
	}
	sf.writeLine(text)
}

func compact(v gjson.Result) string {
	if v.IsArray() || v.IsObject() {
		return v.Raw
	}
	return v.String()
}

func levelIcon(level string) string {
	switch level {
	case "ERROR":
		return Red("✗")
	case "WARN":
		return Yellow("⚠")
	case "DEBUG":
		return Dim("·")
	default:
		return Cyan("▸")
	}
}

func (sf *StreamFormatter) writeLine(text string) {
	fmt.Fprintf(sf.dest, "  %s%s\n", sf.prefix, text)
}
