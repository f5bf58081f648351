package l3parse

import (
	"testing"

	"github.com/l3bridge/l3c/internal/ir3"
)

func TestParseMinimalFunction(t *testing.T) {
	src := `
define @id(%a) {
	return %a
}
`
	prog, err := Parse("t", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(prog.Funcs) != 1 {
		t.Fatalf("Funcs: got %d, want 1", len(prog.Funcs))
	}
	fn := prog.Funcs[0]
	if fn.Name != "id" {
		t.Fatalf("Name: got %q, want %q", fn.Name, "id")
	}
	if len(fn.Params) != 1 || fn.Params[0].Name != "a" {
		t.Fatalf("Params: got %v", fn.Params)
	}
	ret, ok := fn.Instrs[0].(ir3.Ret)
	if !ok {
		t.Fatalf("Instrs[0]: got %T, want ir3.Ret", fn.Instrs[0])
	}
	v, ok := ret.Val.(ir3.Variable)
	if !ok || v.Name != "a" {
		t.Fatalf("Ret.Val: got %v", ret.Val)
	}
}

func TestParseBinOpAndCmpOp(t *testing.T) {
	src := `
define @f(%a, %b) {
	%c <- %a + %b
	%d <- %a < %b
	return %c
}
`
	prog, err := Parse("t", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	fn := prog.Funcs[0]

	bin, ok := fn.Instrs[0].(ir3.BinOp)
	if !ok || bin.Op != ir3.Add {
		t.Fatalf("Instrs[0]: got %+v", fn.Instrs[0])
	}
	cmp, ok := fn.Instrs[1].(ir3.CmpOp)
	if !ok || cmp.Cmp != ir3.Less {
		t.Fatalf("Instrs[1]: got %+v", fn.Instrs[1])
	}
}

func TestParseLoadStoreBranchLabel(t *testing.T) {
	src := `
define @f(%p) {
	%v <- load %p
	store %p <- %v
	br :done
	:done
	return
}
`
	prog, err := Parse("t", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	fn := prog.Funcs[0]

	if _, ok := fn.Instrs[0].(ir3.Load); !ok {
		t.Fatalf("Instrs[0]: got %T, want ir3.Load", fn.Instrs[0])
	}
	if _, ok := fn.Instrs[1].(ir3.Store); !ok {
		t.Fatalf("Instrs[1]: got %T, want ir3.Store", fn.Instrs[1])
	}
	br, ok := fn.Instrs[2].(ir3.Branch)
	if !ok || br.Label.Name != "done" {
		t.Fatalf("Instrs[2]: got %+v", fn.Instrs[2])
	}
	if _, ok := fn.Instrs[3].(ir3.LabelDef); !ok {
		t.Fatalf("Instrs[3]: got %T, want ir3.LabelDef", fn.Instrs[3])
	}
}

func TestParseConditionalBranch(t *testing.T) {
	src := `
define @f(%c) {
	br %c :target
	:target
	return
}
`
	prog, err := Parse("t", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cb, ok := prog.Funcs[0].Instrs[0].(ir3.CondBranch)
	if !ok || cb.Label.Name != "target" {
		t.Fatalf("Instrs[0]: got %+v", prog.Funcs[0].Instrs[0])
	}
}

func TestParseCallStatementAndCallAssign(t *testing.T) {
	src := `
define @f(%x) {
	call @g(%x)
	%r <- call @g(%x)
	return %r
}
`
	prog, err := Parse("t", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	fn := prog.Funcs[0]

	call, ok := fn.Instrs[0].(ir3.Call)
	if !ok {
		t.Fatalf("Instrs[0]: got %T, want ir3.Call", fn.Instrs[0])
	}
	callee, ok := call.Callee.(ir3.Func)
	if !ok || callee.Name != "g" {
		t.Fatalf("Call.Callee: got %v", call.Callee)
	}

	ca, ok := fn.Instrs[1].(ir3.CallAssign)
	if !ok || ca.Dst.Name != "r" {
		t.Fatalf("Instrs[1]: got %+v", fn.Instrs[1])
	}
}

func TestParseBuiltinCall(t *testing.T) {
	src := `
define @f(%x) {
	call tuple-error(%x)
	return
}
`
	prog, err := Parse("t", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	call, ok := prog.Funcs[0].Instrs[0].(ir3.Call)
	if !ok || call.Builtin != "tuple-error" {
		t.Fatalf("Instrs[0]: got %+v", prog.Funcs[0].Instrs[0])
	}
}

func TestParseRejectsEmptyProgram(t *testing.T) {
	if _, err := Parse("t", []byte("")); err == nil {
		t.Fatalf("expected an error for an empty program")
	}
}

func TestParseRejectsMalformedFunction(t *testing.T) {
	if _, err := Parse("t", []byte("define @f(%a { return %a }")); err == nil {
		t.Fatalf("expected an error for a missing close-paren")
	}
}

func TestAdapterSatisfiesParserInterface(t *testing.T) {
	var _ interface {
		Parse(name string, text []byte) (*ir3.Program, error)
	} = Adapter{}
}
