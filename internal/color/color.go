// Package color implements the Chaitin-style simplify/select pass that
// turns an interference graph into either a complete coloring or a
// single spill candidate for the next round.
//
// The degree heuristics below pick the *largest*-degree node in both
// the low-degree and high-degree branches of simplify. That is not a
// typo: it mirrors a quirk in the system this package's algorithm is
// modeled on, and changing it to the textbook smallest-degree choice
// would change which programs spill and how — see DESIGN.md.
package color

import (
	"sort"
	"strings"

	"github.com/l3bridge/l3c/internal/interfere"
	"github.com/l3bridge/l3c/internal/ir2"
	"github.com/l3bridge/l3c/internal/strset"
)

// capacity is the number of physical colors available.
var capacity = len(ir2.ColorOrder)

// Result is the outcome of one coloring attempt. SpillCandidate is
// empty exactly when Colors covers every variable in the graph.
type Result struct {
	Colors         map[string]ir2.Reg
	SpillCandidate string
}

func isRegisterName(name string) bool {
	for _, r := range ir2.ColorOrder {
		if string(r) == name {
			return true
		}
	}
	return false
}

// isSpillTemp reports whether name was produced by internal/spill
// rather than by the original program; such names never win the
// spill-candidate tie-break against a "real" variable.
func isSpillTemp(name string) bool {
	return strings.HasPrefix(name, "S")
}

func variables(g *interfere.Graph) []string {
	names := g.Names()
	out := make([]string, 0, len(names))
	for _, name := range names {
		if !isRegisterName(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Run colors g. Pre-colored physical registers are seeded into Colors
// up front and never pushed onto the simplify stack.
func Run(g *interfere.Graph) Result {
	vars := variables(g)

	origDegree := map[string]int{}
	degree := map[string]int{}
	for _, v := range vars {
		d := g.Degree(v, strset.Set{})
		origDegree[v] = d
		degree[v] = d
	}

	removed := strset.Set{}
	stack := simplify(vars, degree, removed, g)

	colors := map[string]ir2.Reg{}
	for _, r := range ir2.ColorOrder {
		colors[string(r)] = r
	}

	best := selectColors(stack, g, colors, origDegree)

	result := Result{Colors: colors}
	if best != "" {
		result.SpillCandidate = best
	}
	return result
}

func simplify(vars []string, degree map[string]int, removed strset.Set, g *interfere.Graph) []string {
	var stack []string

	pending := strset.New(vars...)

	for pending.Len() > 0 {
		node := pickLow(pending, degree)
		if node == "" {
			node = pickHigh(pending, degree)
		}
		if node == "" {
			break
		}

		stack = append(stack, node)
		pending.Remove(node)
		removed.Add(node)

		for _, neigh := range g.Neighbors(node, removed) {
			if d, ok := degree[neigh]; ok && d > 0 {
				degree[neigh] = d - 1
			}
		}
	}

	return stack
}

// pickLow returns the largest-degree node among those with degree below
// the color capacity, or "" if none qualifies.
func pickLow(pending strset.Set, degree map[string]int) string {
	best := ""
	bestDeg := -1
	for _, name := range pending.Sorted() {
		d := degree[name]
		if d >= capacity {
			continue
		}
		if d > bestDeg {
			bestDeg = d
			best = name
		}
	}
	return best
}

// pickHigh returns the largest-degree node among all remaining nodes.
func pickHigh(pending strset.Set, degree map[string]int) string {
	best := ""
	bestDeg := -1
	for _, name := range pending.Sorted() {
		d := degree[name]
		if d > bestDeg {
			bestDeg = d
			best = name
		}
	}
	return best
}

type candidate struct {
	name   string
	isTemp bool
	degree int
}

func selectColors(stack []string, g *interfere.Graph, colors map[string]ir2.Reg, origDegree map[string]int) string {
	var best *candidate

	consider := func(name string, isTemp bool, degree int) {
		switch {
		case best == nil:
			best = &candidate{name, isTemp, degree}
		case best.isTemp && !isTemp:
			best = &candidate{name, isTemp, degree}
		case !best.isTemp && isTemp:
			// a temp never displaces a non-temp candidate
		case degree > best.degree:
			best = &candidate{name, isTemp, degree}
		}
	}

	for i := len(stack) - 1; i >= 0; i-- {
		node := stack[i]
		neighbors := g.Neighbors(node, strset.Set{})

		assigned := ir2.Reg("")
		for _, c := range ir2.ColorOrder {
			conflict := false
			for _, neigh := range neighbors {
				if neigh == string(c) {
					conflict = true
					break
				}
				if nc, ok := colors[neigh]; ok && nc == c {
					conflict = true
					break
				}
			}
			if !conflict {
				assigned = c
				break
			}
		}

		if assigned != "" {
			colors[node] = assigned
			continue
		}

		consider(node, isSpillTemp(node), origDegree[node])
	}

	if best == nil {
		return ""
	}
	return best.name
}
