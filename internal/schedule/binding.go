package schedule

import (
	"sort"

	"github.com/joshharrison/rcsched/internal/dfg"
	"github.com/joshharrison/rcsched/internal/fulib"
)

// Latency returns max over operations of start+delay-1.
func Latency(g *dfg.Graph, lib fulib.Delays, start []int) int {
	lat := 0
	for id, n := range g.Nodes {
		if f := start[id] + lib.Delay(n.Type) - 1; f > lat {
			lat = f
		}
	}
	return lat
}

// Bind assigns each operation to an instance of its type with the
// left-edge algorithm: operations sorted by start (then id) take the
// lowest-numbered instance that is free, opening a new one otherwise.
// It returns the per-node instance and the per-type instance count.
func Bind(g *dfg.Graph, lib fulib.Delays, start []int) (unit []int, used []int) {
	unit = make([]int, g.Len())
	used = make([]int, lib.Len())

	order := make([]int, g.Len())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if start[order[a]] != start[order[b]] {
			return start[order[a]] < start[order[b]]
		}
		return order[a] < order[b]
	})

	busyUntil := make([][]int, lib.Len())
	for _, id := range order {
		typ := g.Nodes[id].Type
		s := start[id]
		assigned := -1
		for u, last := range busyUntil[typ] {
			if last < s {
				assigned = u
				break
			}
		}
		if assigned < 0 {
			busyUntil[typ] = append(busyUntil[typ], 0)
			assigned = len(busyUntil[typ]) - 1
		}
		busyUntil[typ][assigned] = s + lib.Delay(typ) - 1
		unit[id] = assigned
	}
	for t := range busyUntil {
		used[t] = len(busyUntil[t])
	}
	return unit, used
}

// Usage returns usage[type][cycle], the number of operations of each type
// active at each cycle 0..latency. Cycle 0 is always empty.
func Usage(g *dfg.Graph, lib fulib.Delays, start []int) [][]int {
	lat := Latency(g, lib, start)
	usage := make([][]int, lib.Len())
	for t := range usage {
		usage[t] = make([]int, lat+1)
	}
	for id, n := range g.Nodes {
		d := lib.Delay(n.Type)
		for c := start[id]; c < start[id]+d; c++ {
			if c >= 1 && c <= lat {
				usage[n.Type][c]++
			}
		}
	}
	return usage
}

// PeakUsage returns the largest per-cycle usage of each type.
func PeakUsage(g *dfg.Graph, lib fulib.Delays, start []int) []int {
	usage := Usage(g, lib, start)
	peak := make([]int, len(usage))
	for t, row := range usage {
		for _, n := range row {
			peak[t] = max(peak[t], n)
		}
	}
	return peak
}

// GlobalUnits numbers instances across types: type 0 instances first, then
// type 1, and so on in library order.
func GlobalUnits(g *dfg.Graph, unit, used []int) []int {
	offset := make([]int, len(used))
	for t := 1; t < len(used); t++ {
		offset[t] = offset[t-1] + used[t-1]
	}
	global := make([]int, g.Len())
	for id, n := range g.Nodes {
		global[id] = offset[n.Type] + unit[id]
	}
	return global
}

// Compact renumbers instances so that only instances with at least one
// operation remain, preserving their relative order.
func Compact(g *dfg.Graph, nTypes int, unit []int) (compacted []int, used []int) {
	seen := make([]map[int]bool, nTypes)
	for t := range seen {
		seen[t] = make(map[int]bool)
	}
	for id, n := range g.Nodes {
		seen[n.Type][unit[id]] = true
	}
	remap := make([]map[int]int, nTypes)
	used = make([]int, nTypes)
	for t := range seen {
		ids := make([]int, 0, len(seen[t]))
		for u := range seen[t] {
			ids = append(ids, u)
		}
		sort.Ints(ids)
		remap[t] = make(map[int]int, len(ids))
		for i, u := range ids {
			remap[t][u] = i
		}
		used[t] = len(ids)
	}
	compacted = make([]int, len(unit))
	for id, n := range g.Nodes {
		compacted[id] = remap[n.Type][unit[id]]
	}
	return compacted, used
}
