// Package priority ranks ready operations for list scheduling.
//
// The primary score combines normalised slack with the average expected
// congestion along an operation's chain of critical successors. The
// secondary score prefers operations whose successors carry the stiffest
// downstream chains, and the tertiary score prefers higher fan-out. Keys
// compare in ascending order; the node id is the final tie-break.
package priority

import (
	"math"
	"sort"

	"github.com/joshharrison/rcsched/internal/bounds"
	"github.com/joshharrison/rcsched/internal/density"
	"github.com/joshharrison/rcsched/internal/dfg"
	"github.com/joshharrison/rcsched/internal/fulib"
)

const (
	DefaultAlpha   = 1.0
	DefaultBeta    = 1.0
	DefaultEpsilon = 1e-4

	// congestionFloor keeps the congestion normaliser away from zero.
	congestionFloor = 1e-6
)

// Config selects the active criteria. Zero exponents and epsilon take the defaults.
type Config struct {
	PowerWeighted bool    `json:"power_weighted" yaml:"power_weighted"`
	Stiffness     bool    `json:"stiffness" yaml:"stiffness"`
	Alpha         float64 `json:"alpha" yaml:"alpha"`
	Beta          float64 `json:"beta" yaml:"beta"`
	Epsilon       float64 `json:"epsilon" yaml:"epsilon"`
}

// DefaultConfig enables every criterion with unit exponents.
func DefaultConfig() Config {
	return Config{PowerWeighted: true, Stiffness: true, Alpha: DefaultAlpha, Beta: DefaultBeta, Epsilon: DefaultEpsilon}
}

func (c Config) withDefaults() Config {
	if c.Alpha == 0 {
		c.Alpha = DefaultAlpha
	}
	if c.Beta == 0 {
		c.Beta = DefaultBeta
	}
	if c.Epsilon == 0 {
		c.Epsilon = DefaultEpsilon
	}
	return c
}

// Key is the ranking key of one ready operation.
type Key struct {
	Node       int     `json:"node"`
	Primary    float64 `json:"primary"`
	Secondary  float64 `json:"secondary"`
	Tertiary   int     `json:"tertiary"`
	Slack      float64 `json:"slack"`      // normalised slack term
	Congestion float64 `json:"congestion"` // normalised congestion term
}

// Evaluator computes keys for a fixed graph. Stiffness is computed once.
type Evaluator struct {
	cfg   Config
	g     *dfg.Graph
	stiff []float64
}

// NewEvaluator prepares an evaluator for g.
func NewEvaluator(g *dfg.Graph, lib fulib.Delays, cfg Config) *Evaluator {
	return &Evaluator{
		cfg:   cfg.withDefaults(),
		g:     g,
		stiff: Stiffness(g, lib),
	}
}

// Config returns the effective configuration.
func (e *Evaluator) Config() Config { return e.cfg }

// Stiffness returns, per node, delay^2 plus the largest stiffness among its
// successors. Computed in reverse topological order.
func Stiffness(g *dfg.Graph, lib fulib.Delays) []float64 {
	stiff := make([]float64, g.Len())
	order := g.TopoOrder()
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		d := float64(lib.Delay(g.Nodes[id].Type))
		best := 0.0
		for _, succ := range g.Nodes[id].Succs {
			best = math.Max(best, stiff[succ])
		}
		stiff[id] = d*d + best
	}
	return stiff
}

// Keys computes a key for every node in ready against the current windows in s.
func (e *Evaluator) Keys(s *bounds.State, ready []int) []Key {
	if len(ready) == 0 {
		return nil
	}

	tbl := density.Build(s, s.Horizon())
	sMax := float64(s.MaxWidth())

	keys := make([]Key, len(ready))
	rawC := make([]float64, len(ready))
	cMax := congestionFloor
	for i, id := range ready {
		keys[i].Node = id
		keys[i].Slack = float64(max(s.W[id].Slack(), 0)+1) / sMax
		rawC[i] = e.chainCongestion(s, tbl, id)
		cMax = math.Max(cMax, rawC[i])

		keys[i].Tertiary = -len(e.g.Nodes[id].Succs)
		if e.cfg.Stiffness {
			worst := 0.0
			for _, succ := range e.g.Nodes[id].Succs {
				worst = math.Max(worst, e.stiff[succ])
			}
			keys[i].Secondary = -worst
		}
	}

	for i := range keys {
		c := rawC[i] / cMax
		keys[i].Congestion = c
		if e.cfg.PowerWeighted {
			keys[i].Primary = math.Pow(keys[i].Slack, e.cfg.Alpha) * math.Pow(c+e.cfg.Epsilon, e.cfg.Beta)
		} else {
			keys[i].Primary = keys[i].Slack * (c + e.cfg.Epsilon)
		}
	}
	return keys
}

// Rank returns the keys of ready sorted best first.
func (e *Evaluator) Rank(s *bounds.State, ready []int) []Key {
	keys := e.Keys(s, ready)
	sort.Slice(keys, func(i, j int) bool { return e.Less(keys[i], keys[j]) })
	return keys
}

// Less orders keys by primary, then (with stiffness enabled) secondary and
// tertiary, then node id.
func (e *Evaluator) Less(a, b Key) bool {
	if a.Primary != b.Primary {
		return a.Primary < b.Primary
	}
	if e.cfg.Stiffness {
		if a.Secondary != b.Secondary {
			return a.Secondary < b.Secondary
		}
		if a.Tertiary != b.Tertiary {
			return a.Tertiary < b.Tertiary
		}
	}
	return a.Node < b.Node
}

// chainCongestion averages the local congestion of id and each critical
// successor after it.
func (e *Evaluator) chainCongestion(s *bounds.State, tbl *density.Table, id int) float64 {
	sum := 0.0
	n := 0
	seen := make(map[int]bool)
	for cur := id; cur != bounds.NoSuccessor && !seen[cur]; cur = s.W[cur].CriticalSucc {
		seen[cur] = true
		sum += localCongestion(s, tbl, cur)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// localCongestion is the mean density of the node's type over every cycle
// it could occupy.
func localCongestion(s *bounds.State, tbl *density.Table, id int) float64 {
	w := s.W[id]
	last := max(w.ASAP, w.ALAP) + s.Delay(id) - 1
	mean, _ := tbl.Mean(s.Graph().Nodes[id].Type, w.ASAP, last)
	return mean
}
