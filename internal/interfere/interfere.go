// Package interfere builds the interference graph consumed by
// internal/color: nodes are variable and physical-register names, edges
// come from the in/out/kill liveness sets computed by internal/live2,
// plus two calling-convention-specific rules (the all-pairs GP-register
// clique, and the shift-source-must-reach-rcx constraint).
package interfere

import (
	"context"
	"sort"

	"tlog.app/go/tlog"

	"github.com/l3bridge/l3c/internal/ir2"
	"github.com/l3bridge/l3c/internal/live2"
	"github.com/l3bridge/l3c/internal/regset"
	"github.com/l3bridge/l3c/internal/strset"
)

// Graph is an adjacency-bitmap interference graph. Every node (a
// register name like "rax" or a variable name like "t0", stored
// without its '%') is interned to a small integer index on first
// mention, and its neighbor set is a regset.Bitmap over those indices
// rather than a map[string]struct{} — the same "encode successors as
// indices" shape internal/live3 and internal/live2 use for their label
// tables, applied here to adjacency.
type Graph struct {
	index map[string]int
	names []string
	bits  []regset.Bitmap
}

func New() *Graph {
	return &Graph{index: map[string]int{}}
}

// intern returns name's index, allocating a fresh one (and a matching
// empty bitmap) the first time name is seen.
func (g *Graph) intern(name string) int {
	if i, ok := g.index[name]; ok {
		return i
	}
	i := len(g.names)
	g.index[name] = i
	g.names = append(g.names, name)
	g.bits = append(g.bits, regset.Make(0))
	return i
}

// node ensures name has a graph entry, even with no edges yet.
func (g *Graph) node(name string) {
	g.intern(name)
}

func (g *Graph) addEdge(a, b string) {
	if a == b {
		return
	}
	ai := g.intern(a)
	bi := g.intern(b)
	g.bits[ai].Set(bi)
	g.bits[bi].Set(ai)
}

func (g *Graph) addEdges(a, b strset.Set) {
	for x := range a {
		for y := range b {
			g.addEdge(x, y)
		}
	}
}

// Degree returns the number of live neighbors of name, excluding any
// member of removed.
func (g *Graph) Degree(name string, removed strset.Set) int {
	i, ok := g.index[name]
	if !ok {
		return 0
	}
	n := 0
	g.bits[i].Range(func(j int) bool {
		if !removed.Has(g.names[j]) {
			n++
		}
		return true
	})
	return n
}

// Neighbors returns the sorted neighbor list of name, excluding members
// of removed.
func (g *Graph) Neighbors(name string, removed strset.Set) []string {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, g.bits[i].Size())
	g.bits[i].Range(func(j int) bool {
		neigh := g.names[j]
		if !removed.Has(neigh) {
			out = append(out, neigh)
		}
		return true
	})
	sort.Strings(out)
	return out
}

// Names returns every node name the graph knows about, including nodes
// with no edges, in no particular order.
func (g *Graph) Names() []string {
	out := make([]string, len(g.names))
	copy(out, g.names)
	return out
}

// HasNode reports whether name has a graph entry.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.index[name]
	return ok
}

// gpNames is the 15-register set, as strings, used for the clique and
// the shift-source exclusion.
func gpNames() strset.Set {
	s := strset.Set{}
	for _, r := range ir2.ColorOrder {
		s.Add(string(r))
	}
	return s
}

func gpNamesWithoutRCX() strset.Set {
	s := gpNames()
	delete(s, string(ir2.RCX))
	return s
}

// Build constructs the interference graph for fn given its liveness
// result. Every variable in fn (even one with no interference
// neighbors) and every GP register is guaranteed a node.
func Build(ctx context.Context, fn *ir2.Function, live live2.Result) *Graph {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "interfere: build", "func", fn.Name)
	defer tr.Finish()
	_ = ctx

	g := New()

	for _, v := range live2.CollectVariables(fn) {
		g.node(v)
	}
	gp := gpNames()
	for r := range gp {
		g.node(r)
	}

	for i, in := range fn.Instrs {
		s := live.Sets[i]

		g.addEdges(s.In, s.In)
		g.addEdges(s.Out, s.Out)
		g.addEdges(s.Kill, s.Out)
		g.addEdges(gp, gp)

		if sop, ok := in.(ir2.SOp); ok {
			if name, ok := srcName(sop.Src); ok {
				g.addEdges(strset.New(name), gpNamesWithoutRCX())
			}
		}
	}

	if tr.If("dump_func_graph") {
		for _, name := range g.Names() {
			tr.Printw("interfere", "node", name, "degree", g.Degree(name, strset.Set{}), "neighbors", g.Neighbors(name, strset.Set{}))
		}
	}

	return g
}

func srcName(it ir2.Item) (string, bool) {
	switch v := it.(type) {
	case ir2.Variable:
		return v.Name, true
	case ir2.Register:
		return string(v.Reg), true
	default:
		return "", false
	}
}
