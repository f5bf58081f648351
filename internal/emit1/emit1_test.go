package emit1

import (
	"testing"

	"github.com/l3bridge/l3c/internal/ir1"
	"github.com/l3bridge/l3c/internal/ir2"
)

func TestEmitResolvesColoredVariable(t *testing.T) {
	fn := &ir2.Function{
		Name:   "f",
		Params: []ir2.Variable{{Name: "a"}},
		Instrs: []ir2.Instr{
			ir2.AOp{Dst: ir2.Variable{Name: "a"}, Op: ir2.AOPAdd, RHS: ir2.Number{N: 1}},
			ir2.Ret{},
		},
	}
	colors := map[string]ir2.Reg{"a": ir2.RAX}

	out, err := Emit(fn, colors, 0)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if out.NumArgs != 1 {
		t.Fatalf("NumArgs: got %d, want 1", out.NumArgs)
	}

	aop, ok := out.Instrs[0].(ir1.AOp)
	if !ok {
		t.Fatalf("Instrs[0]: got %T, want ir1.AOp", out.Instrs[0])
	}
	if reg, ok := aop.Dst.(ir1.Register); !ok || reg.Reg != ir2.RAX {
		t.Fatalf("AOp.Dst: got %v, want register rax", aop.Dst)
	}
}

func TestEmitErrorsOnUncoloredVariable(t *testing.T) {
	fn := &ir2.Function{
		Name:   "f",
		Params: []ir2.Variable{{Name: "a"}},
		Instrs: []ir2.Instr{ir2.Ret{}},
	}

	if _, err := Emit(fn, map[string]ir2.Reg{}, 0); err == nil {
		t.Fatalf("expected an error for a variable with no assigned color")
	}
}

func TestEmitResolvesStackArgAgainstLocalsCount(t *testing.T) {
	fn := &ir2.Function{
		Name: "f",
		Instrs: []ir2.Instr{
			ir2.StackArgAssign{Dst: ir2.Variable{Name: "a"}, Src: ir2.StackArg{Index: 0}},
		},
	}
	colors := map[string]ir2.Reg{"a": ir2.RAX}

	out, err := Emit(fn, colors, 3)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}

	assign, ok := out.Instrs[0].(ir1.Assign)
	if !ok {
		t.Fatalf("Instrs[0]: got %T, want ir1.Assign", out.Instrs[0])
	}
	mem, ok := assign.Src.(ir1.Memory)
	if !ok {
		t.Fatalf("Assign.Src: got %T, want ir1.Memory", assign.Src)
	}
	if want := int64(3)*8 + 0*8; mem.Offset != want {
		t.Fatalf("stack-arg offset: got %d, want %d", mem.Offset, want)
	}
}

func TestEmitPassesNonCallL1CallsThroughWithoutResolvingCallee(t *testing.T) {
	fn := &ir2.Function{
		Name: "f",
		Instrs: []ir2.Instr{
			ir2.Call{Type: ir2.CallPrint, NArgs: 1},
		},
	}

	out, err := Emit(fn, map[string]ir2.Reg{}, 0)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	call, ok := out.Instrs[0].(ir1.Call)
	if !ok || call.Type != ir2.CallPrint || call.NArgs != 1 {
		t.Fatalf("Instrs[0]: got %+v", out.Instrs[0])
	}
}
