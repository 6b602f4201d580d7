package resultio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joshharrison/rcsched/internal/dfg"
	"github.com/joshharrison/rcsched/internal/fulib"
	"github.com/joshharrison/rcsched/internal/schedule"
	"github.com/joshharrison/rcsched/internal/verify"
)

// SBType is one functional-unit line of a schedule-and-binding file.
type SBType struct {
	Name  string
	Bound int
	Used  int
	Delay int
}

// SBOp is one operation line: id, start cycle and global unit id.
type SBOp struct {
	Op    int
	Start int
	Unit  int
}

// SBFile is the checker-facing schedule-and-binding result.
type SBFile struct {
	DFG     string
	Types   []SBType
	Latency int
	Ops     []SBOp
}

// NewSB builds the file contents for a finished run.
func NewSB(g *dfg.Graph, lib *fulib.Library, res *schedule.Result, b fulib.Bounds) *SBFile {
	sb := &SBFile{DFG: g.Name, Latency: res.Latency}
	for t := 0; t < lib.Len(); t++ {
		used := 0
		if t < len(res.UnitsUsed) {
			used = res.UnitsUsed[t]
		}
		sb.Types = append(sb.Types, SBType{
			Name:  lib.Type(t).Name,
			Bound: b.Get(t),
			Used:  used,
			Delay: lib.Delay(t),
		})
	}
	global := schedule.GlobalUnits(g, res.Unit, res.UnitsUsed)
	for id := range g.Nodes {
		sb.Ops = append(sb.Ops, SBOp{Op: id, Start: res.Start[id], Unit: global[id]})
	}
	return sb
}

// WriteSB renders sb in the checker format.
func WriteSB(w io.Writer, sb *SBFile) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "// The next line is the dfg name")
	fmt.Fprintln(bw, sb.DFG)
	fmt.Fprintln(bw, "// The next lines are FU parameters given as:")
	fmt.Fprintln(bw, "// <FU type>  <resource constraint>  <# of FUs used>  <FU delay>")
	for _, t := range sb.Types {
		fmt.Fprintf(bw, "%s %d %d %d\n", strings.ToUpper(t.Name), t.Bound, t.Used, t.Delay)
	}
	fmt.Fprintf(bw, "actual latency %d\n", sb.Latency)
	for _, op := range sb.Ops {
		fmt.Fprintf(bw, "%d %d %d\n", op.Op, op.Start, op.Unit)
	}
	return bw.Flush()
}

// SaveSB writes sb to path, creating parent directories.
func SaveSB(path string, sb *SBFile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create result dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create result file: %w", err)
	}
	if err := WriteSB(f, sb); err != nil {
		f.Close()
		return fmt.Errorf("write result file: %w", err)
	}
	return f.Close()
}

// ReadSB parses a schedule-and-binding file. The number of type lines is
// not stored in the file; lines are read as types until the latency line.
func ReadSB(r io.Reader) (*SBFile, error) {
	sb := &SBFile{}
	sc := bufio.NewScanner(r)
	stage := 0 // 0: name, 1: types, 2: ops
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		fields := strings.Fields(line)
		switch stage {
		case 0:
			sb.DFG = fields[0]
			stage = 1
		case 1:
			if len(fields) == 3 && fields[0] == "actual" && fields[1] == "latency" {
				v, err := strconv.Atoi(fields[2])
				if err != nil {
					return nil, fmt.Errorf("line %d: bad latency %q", lineNo, fields[2])
				}
				sb.Latency = v
				stage = 2
				continue
			}
			nums, err := ints(fields[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			sb.Types = append(sb.Types, SBType{Name: fields[0], Bound: nums[0], Used: nums[1], Delay: nums[2]})
		case 2:
			nums, err := ints(fields, 3)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			sb.Ops = append(sb.Ops, SBOp{Op: nums[0], Start: nums[1], Unit: nums[2]})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if stage != 2 {
		return nil, fmt.Errorf("missing \"actual latency\" line")
	}
	return sb, nil
}

// LoadSB reads a schedule-and-binding file from path.
func LoadSB(path string) (*SBFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open result file: %w", err)
	}
	defer f.Close()
	return ReadSB(f)
}

// Input converts sb into checker input for g. Operations missing from the
// file keep start 0 and fail the unscheduled check.
func (sb *SBFile) Input(g *dfg.Graph) (verify.Input, error) {
	in := verify.Input{
		Start:   make([]int, g.Len()),
		Unit:    make([]int, g.Len()),
		Latency: sb.Latency,
	}
	for _, op := range sb.Ops {
		if op.Op < 0 || op.Op >= g.Len() {
			return verify.Input{}, fmt.Errorf("operation %d not in graph %s", op.Op, g.Name)
		}
		in.Start[op.Op] = op.Start
		in.Unit[op.Op] = op.Unit
	}
	for _, t := range sb.Types {
		in.UnitsUsed = append(in.UnitsUsed, t.Used)
		in.Bounds = append(in.Bounds, t.Bound)
	}
	return in, nil
}

func ints(fields []string, n int) ([]int, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("expected %d integers, got %d fields", n, len(fields))
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		v, err := strconv.Atoi(fields[i])
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", fields[i])
		}
		out[i] = v
	}
	return out, nil
}
