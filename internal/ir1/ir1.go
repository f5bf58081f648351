// Package ir1 models L1: L2 after coloring, with every Variable
// resolved to a physical Register and every StackArg resolved to a
// concrete Memory offset. No spill-temporary ("%S...") names remain.
package ir1

import (
	"fmt"

	"github.com/l3bridge/l3c/internal/ir2"
)

type Reg = ir2.Reg

const (
	R10 = ir2.R10
	R11 = ir2.R11
	R8  = ir2.R8
	R9  = ir2.R9
	RAX = ir2.RAX
	RCX = ir2.RCX
	RDX = ir2.RDX
	RSI = ir2.RSI
	RDI = ir2.RDI
	RBX = ir2.RBX
	RBP = ir2.RBP
	R12 = ir2.R12
	R13 = ir2.R13
	R14 = ir2.R14
	R15 = ir2.R15
	RSP = ir2.RSP
)

type Item interface {
	item()
	String() string
}

type (
	Number struct{ N int64 }

	Label struct{ Name string }

	Func struct{ Name string }

	Register struct{ Reg Reg }

	Memory struct {
		Base   Register
		Offset int64
	}
)

func (Number) item()   {}
func (Label) item()    {}
func (Func) item()     {}
func (Register) item() {}
func (Memory) item()   {}

func (n Number) String() string   { return fmt.Sprintf("%d", n.N) }
func (l Label) String() string    { return ":" + l.Name }
func (f Func) String() string     { return "@" + f.Name }
func (r Register) String() string { return string(r.Reg) }
func (m Memory) String() string   { return fmt.Sprintf("mem %s %d", m.Base, m.Offset) }

type AOP = ir2.AOP
type SOP = ir2.SOP
type CMP = ir2.CMP
type IncDec = ir2.IncDec
type CallType = ir2.CallType

const (
	AOPAdd    = ir2.AOPAdd
	AOPSub    = ir2.AOPSub
	AOPMul    = ir2.AOPMul
	AOPBitAnd = ir2.AOPBitAnd
)

const (
	SOPShiftL = ir2.SOPShiftL
	SOPShiftR = ir2.SOPShiftR
)

const (
	Less   = ir2.Less
	LessEq = ir2.LessEq
	Eq     = ir2.Eq
)

const (
	Inc = ir2.Inc
	Dec = ir2.Dec
)

const (
	CallL1          = ir2.CallL1
	CallPrint       = ir2.CallPrint
	CallInput       = ir2.CallInput
	CallAllocate    = ir2.CallAllocate
	CallTupleError  = ir2.CallTupleError
	CallTensorError = ir2.CallTensorError
)

// Instr is the closed sum of L1 instruction kinds: L2 minus
// StackArgAssign (resolved into plain memory reads by emit1).
type Instr interface {
	instr()
}

type (
	Assign struct {
		Dst Item
		Src Item
	}

	AOp struct {
		Dst Item
		Op  AOP
		RHS Item
	}

	SOp struct {
		Dst Item
		Op  SOP
		Src Item
	}

	MemAOp struct {
		LHS Item
		Op  AOP
		RHS Item
	}

	CmpAssign struct {
		Dst      Item
		Cmp      CMP
		LHS, RHS Item
	}

	CJump struct {
		LHS, RHS Item
		Cmp      CMP
		Label    Label
	}

	LabelDef struct{ Label Label }

	Goto struct{ Label Label }

	Ret struct{}

	Call struct {
		Type   CallType
		Callee Item // Func or Register
		NArgs  int64
	}

	IncDecInstr struct {
		Dst Item
		Op  IncDec
	}

	Lea struct {
		Dst      Item
		LHS, RHS Item
		Scale    int64
	}
)

func (Assign) instr()      {}
func (AOp) instr()         {}
func (SOp) instr()         {}
func (MemAOp) instr()      {}
func (CmpAssign) instr()   {}
func (CJump) instr()       {}
func (LabelDef) instr()    {}
func (Goto) instr()        {}
func (Ret) instr()         {}
func (Call) instr()        {}
func (IncDecInstr) instr() {}
func (Lea) instr()         {}

type Function struct {
	Name       string
	NumArgs    int
	NumLocals  int // locals-area slots: one per spill slot, no padding
	Instrs     []Instr
}

type Program struct {
	Funcs          []*Function
	EntryPointLabel string
}
