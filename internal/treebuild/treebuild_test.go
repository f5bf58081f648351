package treebuild

import (
	"context"
	"testing"

	"github.com/l3bridge/l3c/internal/ir3"
	"github.com/l3bridge/l3c/internal/live3"
)

// define @add(%a, %b) { %c <- %a + %b return %c }
func addFunc() *ir3.Function {
	return &ir3.Function{
		Name:   "add",
		Params: []ir3.Variable{{Name: "a"}, {Name: "b"}},
		Instrs: []ir3.Instr{
			ir3.BinOp{Dst: ir3.Variable{Name: "c"}, Op: ir3.Add, L: ir3.Variable{Name: "a"}, R: ir3.Variable{Name: "b"}},
			ir3.Ret{Val: ir3.Variable{Name: "c"}},
		},
	}
}

func TestBuildMergesProducerIntoReturn(t *testing.T) {
	fn := addFunc()

	live, err := live3.Analyze(context.Background(), fn)
	if err != nil {
		t.Fatalf("live3.Analyze: %v", err)
	}

	built := Build(fn, live)

	if len(built.Contexts) != 1 {
		t.Fatalf("got %d contexts, want 1", len(built.Contexts))
	}
	nodes := built.Contexts[0].Nodes
	if len(nodes) != 1 {
		t.Fatalf("got %d nodes after merge, want 1 (binop should fold into return)", len(nodes))
	}

	tn, ok := nodes[0].(TreeNode)
	if !ok {
		t.Fatalf("node is %T, want TreeNode", nodes[0])
	}
	ret, ok := tn.Tree.(Return)
	if !ok {
		t.Fatalf("merged tree is %T, want Return", tn.Tree)
	}
	bin, ok := ret.Val.(BinOp)
	if !ok {
		t.Fatalf("return value is %T, want BinOp", ret.Val)
	}
	if bin.Op != ir3.Add {
		t.Errorf("op = %q, want +", bin.Op)
	}
	wantA, wantB := ir3.Variable{Name: "a"}, ir3.Variable{Name: "b"}
	if l, ok := bin.L.(Leaf); !ok || l.Item != wantA {
		t.Errorf("lhs = %v, want %%a", bin.L)
	}
	if r, ok := bin.R.(Leaf); !ok || r.Item != wantB {
		t.Errorf("rhs = %v, want %%b", bin.R)
	}
}

func TestPartitionStartsFreshContextAtLabelsAndCalls(t *testing.T) {
	fn := &ir3.Function{
		Name: "loop",
		Instrs: []ir3.Instr{
			ir3.Assign{Dst: ir3.Variable{Name: "i"}, Src: ir3.Number{N: 0}},
			ir3.LabelDef{Label: ir3.Label{Name: "top"}},
			ir3.Call{Builtin: "print", Args: []ir3.Item{ir3.Variable{Name: "i"}}},
			ir3.Ret{},
		},
	}

	built, liveIdx := partition(fn)

	if len(built.Contexts) != 4 {
		t.Fatalf("got %d contexts, want 4 (assign | label | call | return)", len(built.Contexts))
	}
	if len(liveIdx) != len(built.Contexts) {
		t.Fatalf("liveIdx has %d entries, want %d", len(liveIdx), len(built.Contexts))
	}

	if _, ok := built.Contexts[1].Nodes[0].(LabelNode); !ok {
		t.Errorf("context 1 node is %T, want LabelNode", built.Contexts[1].Nodes[0])
	}
	if _, ok := built.Contexts[2].Nodes[0].(CallNode); !ok {
		t.Errorf("context 2 node is %T, want CallNode", built.Contexts[2].Nodes[0])
	}
}
