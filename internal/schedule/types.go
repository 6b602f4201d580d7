package schedule

// Status is the outcome of a scheduling run.
type Status string

const (
	StatusFeasible        Status = "feasible"
	StatusInfeasible      Status = "infeasible"
	StatusSearchExhausted Status = "search_exhausted"
)

// Engine names a scheduling engine.
type Engine string

const (
	EngineFDS Engine = "fds"
	EngineLS  Engine = "ls"
)

// Overrun records an operation that started after its latest allowed start.
type Overrun struct {
	Node  int `json:"node"`
	Start int `json:"start"`
	ALAP  int `json:"alap"`
}

// Result is the immutable output of one scheduling run. Start, Unit and
// the per-type UnitsUsed are enough to re-verify precedence, unit
// exclusivity and bound compliance.
type Result struct {
	Graph             string    `json:"graph"`
	Engine            Engine    `json:"engine"`
	Status            Status    `json:"status"`
	Reason            string    `json:"reason,omitempty"`
	Start             []int     `json:"start"`
	Unit              []int     `json:"unit"`
	UnitsUsed         []int     `json:"units_used"`
	Latency           int       `json:"latency"`
	LatencyConstraint int       `json:"latency_constraint"`
	Iterations        int       `json:"iterations"`
	Overruns          []Overrun `json:"overruns,omitempty"`
}

// TotalUnits returns the number of instances used across all types.
func (r *Result) TotalUnits() int {
	total := 0
	for _, n := range r.UnitsUsed {
		total += n
	}
	return total
}

// Feasible reports whether the run produced an accepted schedule.
func (r *Result) Feasible() bool {
	return r.Status == StatusFeasible
}
