package fulib

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ParseError reports a malformed line in a library or constraint file.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// Constraint is one row of a constraint table.
type Constraint struct {
	DFG           string `json:"dfg"`
	TargetLatency int    `json:"target_latency"`
	Bounds        Bounds `json:"bounds"`
}

// ConstraintTable indexes constraint rows by DFG name.
type ConstraintTable map[string]Constraint

// Lookup returns the row for the named DFG.
func (ct ConstraintTable) Lookup(dfg string) (Constraint, bool) {
	c, ok := ct[dfg]
	return c, ok
}

// Read parses a library description with one "<type> <count> <delay>
// <leakage> <dynamic>" line per functional-unit type.
func Read(r io.Reader) (*Library, error) {
	var types []FUType
	err := scanLines(r, func(lineNo int, fields []string) error {
		if len(fields) < 3 {
			return &ParseError{Line: lineNo, Msg: "expected <type> <count> <delay> [<leakage> <dynamic>]"}
		}
		nums, err := atoiAll(fields[1:])
		if err != nil {
			return &ParseError{Line: lineNo, Msg: err.Error()}
		}
		t := FUType{Name: fields[0], Count: nums[0], Delay: nums[1]}
		if len(nums) > 2 {
			t.Leakage = nums[2]
		}
		if len(nums) > 3 {
			t.Dynamic = nums[3]
		}
		types = append(types, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return New(types)
}

// Load reads a library file from path.
func Load(path string) (*Library, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open library: %w", err)
	}
	defer f.Close()

	l, err := Read(f)
	if err != nil {
		return nil, withFile(path, err)
	}
	return l, nil
}

// ReadConstraints parses "<dfg> <target-latency> <b0> <b1> ..." rows.
func ReadConstraints(r io.Reader) (ConstraintTable, error) {
	ct := make(ConstraintTable)
	err := scanLines(r, func(lineNo int, fields []string) error {
		if len(fields) < 2 {
			return &ParseError{Line: lineNo, Msg: "expected <dfg> <target-latency> <bounds...>"}
		}
		nums, err := atoiAll(fields[1:])
		if err != nil {
			return &ParseError{Line: lineNo, Msg: err.Error()}
		}
		ct[fields[0]] = Constraint{DFG: fields[0], TargetLatency: nums[0], Bounds: Bounds(nums[1:])}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ct, nil
}

// LoadConstraints reads a constraint table from path.
func LoadConstraints(path string) (ConstraintTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open constraints: %w", err)
	}
	defer f.Close()

	ct, err := ReadConstraints(f)
	if err != nil {
		return nil, withFile(path, err)
	}
	return ct, nil
}

func scanLines(r io.Reader, fn func(lineNo int, fields []string) error) error {
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "//") || strings.HasPrefix(line, "#") {
			continue
		}
		if err := fn(lineNo, strings.Fields(line)); err != nil {
			return err
		}
	}
	return sc.Err()
}

func atoiAll(fields []string) ([]int, error) {
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("field %d: %q is not an integer", i+2, f)
		}
		out[i] = v
	}
	return out, nil
}

func withFile(path string, err error) error {
	if pe, ok := err.(*ParseError); ok {
		pe.File = path
		return pe
	}
	return fmt.Errorf("%s: %w", path, err)
}
