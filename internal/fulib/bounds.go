package fulib

import (
	"fmt"
	"strconv"
	"strings"
)

// Unbounded marks a type with no limit on simultaneously active instances.
const Unbounded = -1

// Bounds is a per-type upper bound on simultaneously active instances,
// indexed like the library.
type Bounds []int

// ZeroBoundPolicy decides what happens when a type used by the graph has a bound of zero.
type ZeroBoundPolicy string

const (
	// ZeroReject reports the instance as infeasible.
	ZeroReject ZeroBoundPolicy = "reject"
	// ZeroFloor raises the bound to a single instance.
	ZeroFloor ZeroBoundPolicy = "floor"
)

// ParseBounds parses a comma separated list such as "2,1,-1". An empty
// string yields nil.
func ParseBounds(s string) (Bounds, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	b := make(Bounds, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("bound %d: %w", i, err)
		}
		if v < Unbounded {
			return nil, fmt.Errorf("bound %d: %d is not a valid bound", i, v)
		}
		b[i] = v
	}
	return b, nil
}

// Get returns the bound for type t; missing entries are Unbounded.
func (b Bounds) Get(t int) int {
	if t < 0 || t >= len(b) {
		return Unbounded
	}
	return b[t]
}

// Fit returns a copy of b resized to n types, padding with Unbounded.
func (b Bounds) Fit(n int) Bounds {
	out := make(Bounds, n)
	for i := range out {
		out[i] = b.Get(i)
	}
	return out
}

// Scale multiplies every finite bound by f, truncating toward zero.
func (b Bounds) Scale(f float64) Bounds {
	out := make(Bounds, len(b))
	for i, v := range b {
		if v == Unbounded {
			out[i] = Unbounded
			continue
		}
		out[i] = int(float64(v) * f)
	}
	return out
}

// ZeroTypes returns the types that appear in counts but have a bound of zero.
func (b Bounds) ZeroTypes(counts []int) []int {
	var zero []int
	for t, c := range counts {
		if c > 0 && b.Get(t) == 0 {
			zero = append(zero, t)
		}
	}
	return zero
}

// MissingTypes returns the types that appear in counts but lie past the end
// of b. An explicit Unbounded entry is not missing.
func (b Bounds) MissingTypes(counts []int) []int {
	var missing []int
	for t := len(b); t < len(counts); t++ {
		if counts[t] > 0 {
			missing = append(missing, t)
		}
	}
	return missing
}

// Floor returns a copy of b with every zero bound raised to one.
func (b Bounds) Floor() Bounds {
	out := make(Bounds, len(b))
	for i, v := range b {
		if v == 0 {
			v = 1
		}
		out[i] = v
	}
	return out
}

// Exceeds reports whether usage[t] is greater than the bound of t for any type.
// It returns the first offending type.
func (b Bounds) Exceeds(usage []int) (int, bool) {
	for t, u := range usage {
		if lim := b.Get(t); lim != Unbounded && u > lim {
			return t, true
		}
	}
	return 0, false
}

// String renders b as a comma separated list.
func (b Bounds) String() string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
