package fulib

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnknownOp   = errors.New("no functional-unit type for operation")
	ErrBadDelay    = errors.New("delay must be a positive number of cycles")
	ErrDuplicate   = errors.New("duplicate functional-unit type")
	ErrNoTypes     = errors.New("library has no functional-unit types")
	ErrBoundsShape = errors.New("bound vector does not match library")
)

// FUType is one functional-unit type of the library.
type FUType struct {
	Name    string `json:"name"`
	Count   int    `json:"count"` // static resource count; <= 0 means none given
	Delay   int    `json:"delay"`
	Leakage int    `json:"leakage,omitempty"`
	Dynamic int    `json:"dynamic,omitempty"`
}

// Delays is the read-only view of a library the scheduling engines need.
type Delays interface {
	Len() int
	Delay(t int) int
}

// Library is an ordered, immutable table of functional-unit types.
type Library struct {
	types   []FUType
	index   map[string]int
	aliases map[string]string
}

// DefaultAliases maps common DFG mnemonics onto the type that executes them.
// An alias only applies when the library has no type of the mnemonic's own name.
var DefaultAliases = map[string]string{
	"SUB": "ADD",
	"AND": "ADD",
	"ASR": "ADD",
	"LSR": "ADD",
	"LOD": "ADD",
	"STR": "ADD",
	"DIV": "MUL",
}

// New validates types and builds a Library using DefaultAliases.
func New(types []FUType) (*Library, error) {
	if len(types) == 0 {
		return nil, ErrNoTypes
	}
	l := &Library{
		types: make([]FUType, len(types)),
		index: make(map[string]int, len(types)),
	}
	for i, t := range types {
		t.Name = strings.ToUpper(strings.TrimSpace(t.Name))
		if t.Name == "" {
			return nil, fmt.Errorf("type %d: empty name", i)
		}
		if t.Delay <= 0 {
			return nil, fmt.Errorf("type %s: %w (got %d)", t.Name, ErrBadDelay, t.Delay)
		}
		if _, dup := l.index[t.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, t.Name)
		}
		l.index[t.Name] = i
		l.types[i] = t
	}
	l.aliases = make(map[string]string, len(DefaultAliases))
	for k, v := range DefaultAliases {
		l.aliases[k] = v
	}
	return l, nil
}

// WithAliases returns a copy of l whose alias table is extended by extra.
// Entries in extra override the defaults.
func (l *Library) WithAliases(extra map[string]string) *Library {
	cp := &Library{types: l.types, index: l.index, aliases: make(map[string]string, len(l.aliases)+len(extra))}
	for k, v := range l.aliases {
		cp.aliases[k] = v
	}
	for k, v := range extra {
		cp.aliases[strings.ToUpper(k)] = strings.ToUpper(v)
	}
	return cp
}

// Len returns the number of types.
func (l *Library) Len() int { return len(l.types) }

// Delay returns the execution delay of type t in cycles.
func (l *Library) Delay(t int) int { return l.types[t].Delay }

// Type returns the t-th type.
func (l *Library) Type(t int) FUType { return l.types[t] }

// Types returns a copy of the type table.
func (l *Library) Types() []FUType {
	return append([]FUType(nil), l.types...)
}

// Names returns the type names in library order.
func (l *Library) Names() []string {
	names := make([]string, len(l.types))
	for i, t := range l.types {
		names[i] = t.Name
	}
	return names
}

// Index returns the position of the named type.
func (l *Library) Index(name string) (int, bool) {
	i, ok := l.index[strings.ToUpper(name)]
	return i, ok
}

// Resolve maps an operation mnemonic onto a type index: an exact type name
// wins, otherwise the alias table is consulted.
func (l *Library) Resolve(op string) (int, error) {
	op = strings.ToUpper(op)
	if i, ok := l.index[op]; ok {
		return i, nil
	}
	if target, ok := l.aliases[op]; ok {
		if i, ok := l.index[target]; ok {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownOp, op)
}

// SumDelays returns the serial latency of the given per-type op counts.
func (l *Library) SumDelays(counts []int) int {
	total := 0
	for t, c := range counts {
		if t < len(l.types) {
			total += c * l.types[t].Delay
		}
	}
	return total
}

// StaticBounds returns the library's own resource counts as a bound vector.
// Types without a positive count are Unbounded.
func (l *Library) StaticBounds() Bounds {
	b := make(Bounds, len(l.types))
	for i, t := range l.types {
		if t.Count > 0 {
			b[i] = t.Count
		} else {
			b[i] = Unbounded
		}
	}
	return b
}

// Aliases returns the alias table sorted by mnemonic, for display.
func (l *Library) Aliases() [][2]string {
	out := make([][2]string, 0, len(l.aliases))
	for k, v := range l.aliases {
		out = append(out, [2]string{k, v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
