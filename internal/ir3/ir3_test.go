package ir3

import "testing"

func TestItemStrings(t *testing.T) {
	cases := []struct {
		it   Item
		want string
	}{
		{Number{N: 42}, "42"},
		{Variable{Name: "a"}, "%a"},
		{Label{Name: "L1"}, ":L1"},
		{Func{Name: "f"}, "@f"},
	}
	for _, c := range cases {
		if got := c.it.String(); got != c.want {
			t.Errorf("String(): got %q, want %q", got, c.want)
		}
	}
}

func TestIsVariable(t *testing.T) {
	if _, ok := IsVariable(Number{N: 1}); ok {
		t.Fatalf("IsVariable(Number) reported true")
	}
	v, ok := IsVariable(Variable{Name: "x"})
	if !ok || v.Name != "x" {
		t.Fatalf("IsVariable(Variable): got %v, %v", v, ok)
	}
}

func TestIsBuiltin(t *testing.T) {
	for _, name := range []string{"print", "input", "allocate", "tuple-error", "tensor-error"} {
		if !IsBuiltin(name) {
			t.Errorf("IsBuiltin(%q) = false, want true", name)
		}
	}
	for _, name := range []string{"f", "main", "printx"} {
		if IsBuiltin(name) {
			t.Errorf("IsBuiltin(%q) = true, want false", name)
		}
	}
}

func TestInstrsImplementClosedSum(t *testing.T) {
	// Each concrete type must satisfy Instr via its unexported marker
	// method; this is mostly a compile-time check, exercised here so the
	// slice literal below fails to build if any of them stop satisfying
	// the interface.
	instrs := []Instr{
		Assign{},
		BinOp{},
		CmpOp{},
		Load{},
		Store{},
		Ret{},
		LabelDef{},
		Branch{},
		CondBranch{},
		Call{},
		CallAssign{},
	}
	if len(instrs) != 11 {
		t.Fatalf("expected 11 instruction kinds, got %d", len(instrs))
	}
}
