package live3

import (
	"context"
	"testing"

	"github.com/l3bridge/l3c/internal/ir3"
)

// %c <- %a + %b; return %c: %a and %b are live-in to the BinOp, %c is
// live-in to the Ret and dead before it.
func TestAnalyzeBinOpThenRet(t *testing.T) {
	fn := &ir3.Function{
		Name:   "f",
		Params: []ir3.Variable{{Name: "a"}, {Name: "b"}},
		Instrs: []ir3.Instr{
			ir3.BinOp{Dst: ir3.Variable{Name: "c"}, Op: ir3.Add, L: ir3.Variable{Name: "a"}, R: ir3.Variable{Name: "b"}},
			ir3.Ret{Val: ir3.Variable{Name: "c"}},
		},
	}

	res, err := Analyze(context.Background(), fn)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if !res.Sets[0].In.Has("a") || !res.Sets[0].In.Has("b") {
		t.Fatalf("%%a and %%b should be live-in to the BinOp: %v", res.Sets[0].In.Sorted())
	}
	if res.Sets[0].In.Has("c") {
		t.Fatalf("%%c is only defined by this instruction, it can't be live-in: %v", res.Sets[0].In.Sorted())
	}
	if !res.Sets[1].In.Has("c") {
		t.Fatalf("%%c should be live-in to the return that reads it: %v", res.Sets[1].In.Sorted())
	}
}

func TestAnalyzeRejectsBranchToUndefinedLabel(t *testing.T) {
	fn := &ir3.Function{
		Name: "f",
		Instrs: []ir3.Instr{
			ir3.Branch{Label: ir3.Label{Name: "nowhere"}},
		},
	}
	if _, err := Analyze(context.Background(), fn); err == nil {
		t.Fatalf("expected an error for a branch to an undefined label")
	}
}

func TestAnalyzeBareReturnGeneratesNothing(t *testing.T) {
	fn := &ir3.Function{
		Name:   "f",
		Instrs: []ir3.Instr{ir3.Ret{}},
	}
	res, err := Analyze(context.Background(), fn)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Sets[0].Gen.Len() != 0 {
		t.Fatalf("bare return should gen nothing: %v", res.Sets[0].Gen.Sorted())
	}
}

func TestAnalyzeCallAssignGensArgsAndKillsDst(t *testing.T) {
	// %r <- call @f(%x)
	fn := &ir3.Function{
		Name:   "g",
		Params: []ir3.Variable{{Name: "x"}},
		Instrs: []ir3.Instr{
			ir3.CallAssign{
				Dst: ir3.Variable{Name: "r"},
				Call: ir3.Call{
					Callee: ir3.Func{Name: "f"},
					Args:   []ir3.Item{ir3.Variable{Name: "x"}},
				},
			},
			ir3.Ret{Val: ir3.Variable{Name: "r"}},
		},
	}

	res, err := Analyze(context.Background(), fn)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !res.Sets[0].Gen.Has("x") {
		t.Fatalf("call argument %%x should be genned: %v", res.Sets[0].Gen.Sorted())
	}
	if !res.Sets[0].Kill.Has("r") {
		t.Fatalf("call-assign destination %%r should be killed: %v", res.Sets[0].Kill.Sorted())
	}
}

func TestAnalyzeIndirectCallGensCalleeVariable(t *testing.T) {
	fn := &ir3.Function{
		Name:   "g",
		Params: []ir3.Variable{{Name: "fp"}},
		Instrs: []ir3.Instr{
			ir3.Call{Callee: ir3.Variable{Name: "fp"}},
			ir3.Ret{},
		},
	}
	res, err := Analyze(context.Background(), fn)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !res.Sets[0].Gen.Has("fp") {
		t.Fatalf("indirect call should gen its callee variable: %v", res.Sets[0].Gen.Sorted())
	}
}

func TestAnalyzeBuiltinCallDoesNotGenBuiltinName(t *testing.T) {
	fn := &ir3.Function{
		Name: "g",
		Instrs: []ir3.Instr{
			ir3.Call{Builtin: "print", Args: []ir3.Item{ir3.Number{N: 1}}},
			ir3.Ret{},
		},
	}
	res, err := Analyze(context.Background(), fn)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Sets[0].Gen.Has("print") {
		t.Fatalf("a builtin call must not gen its own name as a variable: %v", res.Sets[0].Gen.Sorted())
	}
}
