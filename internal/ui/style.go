package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// Sprint color functions for building styled strings.
var (
	Bold        = color.New(color.Bold).SprintFunc()
	Dim         = color.New(color.Faint).SprintFunc()
	Cyan        = color.New(color.FgCyan).SprintFunc()
	Green       = color.New(color.FgGreen).SprintFunc()
	Red         = color.New(color.FgRed).SprintFunc()
	Yellow      = color.New(color.FgYellow).SprintFunc()
	Magenta     = color.New(color.FgMagenta).SprintFunc()
	BoldCyan    = color.New(color.Bold, color.FgCyan).SprintFunc()
	BoldGreen   = color.New(color.Bold, color.FgGreen).SprintFunc()
	BoldRed     = color.New(color.Bold, color.FgRed).SprintFunc()
	BoldYellow  = color.New(color.Bold, color.FgYellow).SprintFunc()
	BoldMagenta = color.New(color.Bold, color.FgMagenta).SprintFunc()
	BoldWhite   = color.New(color.Bold, color.FgWhite).SprintFunc()
)

// PrintLogo renders the colored rcsched banner to stderr.
func PrintLogo() {
	w := os.Stderr
	frame := color.New(color.FgCyan)
	slots := color.New(color.FgYellow)
	brand := color.New(color.Bold, color.FgMagenta)
	tag := color.New(color.Faint)

	fmt.Fprintln(w)
	frame.Fprintln(w, "   +--------------------------+")
	slots.Fprintln(w, "   | [#][#][ ][#][ ][ ][#][#] |")
	brand.Fprintln(w, "   |   R  C  S  C  H  E  D    |")
	slots.Fprintln(w, "   | [ ][#][#][ ][#][#][ ][#] |")
	frame.Fprintln(w, "   +--------------------------+")
	tag.Fprintf(w, "   %s Resource-constrained scheduling\n", Dim("⏱"))
	fmt.Fprintln(w)
}

// palette is a set of distinct bold colors for graphs and unit types.
var palette = []func(a ...interface{}) string{
	BoldMagenta,
	BoldCyan,
	BoldYellow,
	BoldGreen,
	color.New(color.Bold, color.FgHiBlue).SprintFunc(),
	color.New(color.Bold, color.FgHiRed).SprintFunc(),
}

// colorIndex hashes a name to a palette index.
func colorIndex(name string) int {
	var h uint32
	for _, c := range name {
		h = h*31 + uint32(c)
	}
	return int(h % uint32(len(palette)))
}

// GraphPrefix returns a colored [graph] prefix string.
// Each graph name gets a distinct color from the palette.
func GraphPrefix(name string) string {
	c := palette[colorIndex(name)]
	return Dim("[") + c(name) + Dim("]")
}

// TypeColor colors s with the palette entry of functional unit type t.
func TypeColor(t int, s string) string {
	return palette[t%len(palette)](s)
}

// StatusIcon returns a colored status icon for compact table display.
func StatusIcon(status string) string {
	switch status {
	case "feasible", "PASS":
		return Green("✓")
	case "infeasible", "FAIL":
		return Red("✗")
	case "search_exhausted":
		return Yellow("⊘")
	case "running":
		return Cyan("●")
	default:
		return Dim("◌")
	}
}

// Status returns a colored status word.
func Status(status string) string {
	switch status {
	case "feasible", "PASS":
		return Green(status)
	case "infeasible", "FAIL":
		return BoldRed(status)
	case "search_exhausted":
		return Yellow(status)
	default:
		return Dim(status)
	}
}
