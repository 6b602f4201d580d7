package batch

import (
	"io"
	"log/slog"
	"time"

	"github.com/joshharrison/rcsched/internal/fulib"
	"github.com/joshharrison/rcsched/internal/metrics"
	"github.com/joshharrison/rcsched/internal/resultio"
	"github.com/joshharrison/rcsched/internal/search"
)

// Config holds batch runner configuration.
type Config struct {
	MaxParallel int
	OutDir      string
	Scale       float64 // multiplies constraint-table bounds; 1 keeps them

	Library     *fulib.Library
	Constraints fulib.ConstraintTable // optional; missing rows fall back to the library counts
	Options     search.Options        // Bounds and Logger are set per run

	CSV     *resultio.CSVLog  // optional summary log
	Metrics *metrics.Recorder // optional

	Progress io.Writer  // one line per finished run (default: discard)
	Follow   io.Writer  // formatted per-run log stream (nil disables)
	LogLevel slog.Level // level of the per-run JSON log files
}

// RunStatus represents the status of one graph's run.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"
)

// Run tracks the scheduling of one DFG file.
type Run struct {
	RunID      string
	Path       string
	Graph      string
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt time.Time
	LogFile    string
	ResultFile string // JSON record
	SBFile     string // checker-format schedule, empty without a schedule
	Record     *resultio.Record
	Err        error
}
