package bounds

import (
	"errors"
	"fmt"
)

// NoSuccessor is the CriticalSucc value of a node without successors.
const NoSuccessor = -1

// ErrInfeasible is wrapped by every InfeasibleError.
var ErrInfeasible = errors.New("infeasible at latency constraint")

// Window is the mobility window of one operation.
type Window struct {
	ASAP         int  `json:"asap"`
	ALAP         int  `json:"alap"`
	Committed    bool `json:"committed"`
	CriticalSucc int  `json:"critical_succ"` // successor that produced the tightest ALAP
}

// Width returns ALAP-ASAP+1, the number of candidate start cycles.
func (w Window) Width() int {
	return w.ALAP - w.ASAP + 1
}

// Slack returns ALAP-ASAP.
func (w Window) Slack() int {
	return w.ALAP - w.ASAP
}

// InfeasibleError reports the first node whose ALAP fell below its ASAP.
type InfeasibleError struct {
	Node int
	ASAP int
	ALAP int
	LC   int
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("node %d: alap %d < asap %d at latency constraint %d", e.Node, e.ALAP, e.ASAP, e.LC)
}

func (e *InfeasibleError) Unwrap() error { return ErrInfeasible }
