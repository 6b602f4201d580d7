package dfg

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCycle         = errors.New("graph has a cycle")
	ErrUnknownNode   = errors.New("edge references unknown node")
	ErrDuplicateNode = errors.New("duplicate node name")
	ErrEmpty         = errors.New("graph has no operations")
)

// CycleError reports the node names along a detected cycle.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }
