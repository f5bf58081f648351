package interfere

import (
	"context"
	"sort"
	"testing"

	"github.com/l3bridge/l3c/internal/ir2"
	"github.com/l3bridge/l3c/internal/live2"
	"github.com/l3bridge/l3c/internal/strset"
)

func TestGraphAddEdgeIsSymmetric(t *testing.T) {
	g := New()
	g.addEdge("a", "b")

	if got := g.Neighbors("a", strset.Set{}); len(got) != 1 || got[0] != "b" {
		t.Fatalf("Neighbors(a): got %v", got)
	}
	if got := g.Neighbors("b", strset.Set{}); len(got) != 1 || got[0] != "a" {
		t.Fatalf("Neighbors(b): got %v", got)
	}
}

func TestGraphAddEdgeIgnoresSelfLoops(t *testing.T) {
	g := New()
	g.node("a")
	g.addEdge("a", "a")

	if got := g.Degree("a", strset.Set{}); got != 0 {
		t.Fatalf("Degree(a) after self-edge: got %d, want 0", got)
	}
}

func TestDegreeExcludesRemoved(t *testing.T) {
	g := New()
	g.addEdge("a", "b")
	g.addEdge("a", "c")

	if got := g.Degree("a", strset.Set{}); got != 2 {
		t.Fatalf("Degree(a): got %d, want 2", got)
	}
	if got := g.Degree("a", strset.New("b")); got != 1 {
		t.Fatalf("Degree(a) with b removed: got %d, want 1", got)
	}
}

func TestNeighborsAreSorted(t *testing.T) {
	g := New()
	g.addEdge("z", "a")
	g.addEdge("z", "m")

	got := g.Neighbors("z", strset.Set{})
	want := []string{"a", "m"}
	if !sort.StringsAreSorted(got) {
		t.Fatalf("Neighbors not sorted: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Neighbors: got %v, want %v", got, want)
		}
	}
}

func TestHasNodeAndNamesIncludeIsolatedNodes(t *testing.T) {
	g := New()
	g.node("lonely")
	g.addEdge("a", "b")

	if !g.HasNode("lonely") {
		t.Fatalf("HasNode(lonely) = false")
	}
	if g.HasNode("nope") {
		t.Fatalf("HasNode(nope) = true")
	}

	names := g.Names()
	found := map[string]bool{}
	for _, n := range names {
		found[n] = true
	}
	for _, want := range []string{"lonely", "a", "b"} {
		if !found[want] {
			t.Fatalf("Names() missing %q: got %v", want, names)
		}
	}
}

// buildSimpleFunc is %p += 1; return over a single-argument
// function, just enough to exercise Build's GP clique and variable
// interference wiring without a full tiling pipeline.
func buildSimpleFunc() *ir2.Function {
	return &ir2.Function{
		Name:   "f",
		Params: []ir2.Variable{{Name: "p"}},
		Instrs: []ir2.Instr{
			ir2.AOp{Dst: ir2.Variable{Name: "p"}, Op: ir2.AOPAdd, RHS: ir2.Number{N: 1}},
			ir2.Ret{},
		},
	}
}

func TestBuildGivesEveryGPRegisterANode(t *testing.T) {
	fn := buildSimpleFunc()
	live, err := live2.Analyze(context.Background(), fn)
	if err != nil {
		t.Fatalf("live2.Analyze: %v", err)
	}

	g := Build(context.Background(), fn, live)
	for _, r := range ir2.ColorOrder {
		if !g.HasNode(string(r)) {
			t.Errorf("Build didn't add a node for register %s", r)
		}
	}
}

func TestBuildMakesGPRegistersAllPairsClique(t *testing.T) {
	fn := buildSimpleFunc()
	live, err := live2.Analyze(context.Background(), fn)
	if err != nil {
		t.Fatalf("live2.Analyze: %v", err)
	}

	g := Build(context.Background(), fn, live)
	for _, r := range ir2.ColorOrder {
		want := len(ir2.ColorOrder) - 1
		if got := g.Degree(string(r), strset.Set{}); got < want {
			t.Errorf("Degree(%s): got %d, want at least %d (GP clique)", r, got, want)
		}
	}
}
