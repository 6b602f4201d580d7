package resultio

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

var csvHeader = []string{"DFG_Name", "Target_Latency", "Actual_Latency", "Delta", "Status", "FUs_Used", "Runtime_ms"}

// CSV row statuses.
const (
	RowPass   = "PASS"
	RowFail   = "FAIL"
	RowNoData = "NO_DATA"
)

// Row is one summary line.
type Row struct {
	DFG           string
	TargetLatency int // NoTarget when the graph has no constraint row
	Latency       int
	FUs           int
	RuntimeMS     float64
}

// Status returns PASS when a schedule exists and its latency meets the target.
func (r Row) Status() string {
	if r.TargetLatency == NoTarget {
		return RowNoData
	}
	if r.Latency > 0 && r.Latency <= r.TargetLatency {
		return RowPass
	}
	return RowFail
}

// RowFromRecord summarises rec.
func RowFromRecord(rec *Record) Row {
	row := Row{DFG: rec.Graph, TargetLatency: rec.TargetLatency, RuntimeMS: rec.RuntimeMS}
	if rec.Result != nil {
		row.Latency = rec.Result.Latency
		row.FUs = rec.Result.TotalUnits()
	}
	return row
}

// CSVLog appends summary rows to a file, writing the header first when the
// file is new or empty. Safe for concurrent use.
type CSVLog struct {
	path string
	mu   sync.Mutex
}

// NewCSVLog returns a log appending to path.
func NewCSVLog(path string) *CSVLog {
	return &CSVLog{path: path}
}

// Path returns the file the log appends to.
func (l *CSVLog) Path() string { return l.path }

// Append writes one row.
func (l *CSVLog) Append(r Row) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create csv dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat csv: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			return err
		}
	}
	if err := w.Write([]string{
		r.DFG,
		strconv.Itoa(r.TargetLatency),
		strconv.Itoa(r.Latency),
		strconv.Itoa(r.Latency - r.TargetLatency),
		r.Status(),
		strconv.Itoa(r.FUs),
		strconv.FormatFloat(r.RuntimeMS, 'f', 3, 64),
	}); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
