package schedule

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/width"
)

// PrintSchedule writes one line per system listing its direct predecessors,
// followed by the waves. The format is for humans and may change.
func PrintSchedule(w io.Writer, g *Graph) error {
	bw := bufio.NewWriter(w)
	waves := g.Waves()
	fmt.Fprintf(bw, "schedule: %d systems, %d waves\n", g.Len(), len(waves))

	pad := 0
	for i := 0; i < g.Len(); i++ {
		if n := DisplayWidth(g.Name(SystemID(i))); n > pad {
			pad = n
		}
	}
	for i := 0; i < g.Len(); i++ {
		id := SystemID(i)
		name := g.Name(id)
		deps := "-"
		if len(g.deps[i]) > 0 {
			deps = joinNames(g, g.deps[i])
		}
		fmt.Fprintf(bw, "  %s%s <- %s\n", name, strings.Repeat(" ", pad-DisplayWidth(name)), deps)
	}
	for k, ids := range waves {
		fmt.Fprintf(bw, "wave %d: %s\n", k, joinNames(g, ids))
	}
	return bw.Flush()
}

func joinNames(g *Graph, ids []SystemID) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = g.Name(id)
	}
	return strings.Join(names, ", ")
}

// DisplayWidth is the number of terminal columns s occupies; East Asian
// wide and fullwidth runes take two.
func DisplayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}
