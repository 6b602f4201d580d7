package resultio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joshharrison/rcsched/internal/fulib"
	"github.com/joshharrison/rcsched/internal/schedule"
)

// NoTarget marks a record without a target latency from a constraint table.
const NoTarget = -1

// Record is the persisted form of one scheduling run.
type Record struct {
	RunID         string           `json:"run_id"`
	Graph         string           `json:"graph"`
	Ops           int              `json:"ops"`
	Edges         int              `json:"edges"`
	Ranking       string           `json:"ranking,omitempty"`
	Library       []fulib.FUType   `json:"library"`
	Bounds        fulib.Bounds     `json:"bounds"`
	TargetLatency int              `json:"target_latency"`
	StartedAt     time.Time        `json:"started_at"`
	RuntimeMS     float64          `json:"runtime_ms"`
	Result        *schedule.Result `json:"result"`
}

// NewRecord stamps a fresh run id and start time.
func NewRecord(graph string) *Record {
	return &Record{
		RunID:         uuid.NewString(),
		Graph:         graph,
		TargetLatency: NoTarget,
		StartedAt:     time.Now(),
	}
}

// Finish records the runtime and result.
func (r *Record) Finish(res *schedule.Result) {
	r.RuntimeMS = float64(time.Since(r.StartedAt).Microseconds()) / 1000
	r.Result = res
}

// SaveJSON writes rec to path, creating parent directories.
func SaveJSON(path string, rec *Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create result dir: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// LoadJSON reads a record written by SaveJSON.
func LoadJSON(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse result: %w", err)
	}
	return &rec, nil
}

// FileStem names a run's output files: Results_<engine>_<graph>, with the
// priority feature flags appended for the improved list scheduler.
func FileStem(engine, graph string, features bool, featS, featP bool) string {
	stem := fmt.Sprintf("Results_%s_%s", engine, graph)
	if features {
		stem += fmt.Sprintf("_S%d_P%d", b2i(featS), b2i(featP))
	}
	return stem
}

// ScaleDir returns the per-scaling-factor output directory under root.
func ScaleDir(root string, scale float64) string {
	return filepath.Join(root, fmt.Sprintf("%.2f", scale))
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
