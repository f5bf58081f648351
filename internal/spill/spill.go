// Package spill rewrites an L2 function's instruction list so that
// every use and definition of a spilled variable goes through a stack
// slot instead of staying resident in a register candidate.
//
// tempCounter and spillCounter are threaded through by the caller and
// are never reset between rounds: spillCounter in particular keeps
// counting up across every round for one function, because its final
// value is that function's locals count in internal/emit1. Resetting it
// per round would hand a later spill the stack slot an earlier round
// already gave another variable. The caller starts both at zero for
// each function. See DESIGN.md.
package spill

import (
	"fmt"

	"github.com/l3bridge/l3c/internal/ir2"
	"github.com/l3bridge/l3c/internal/strset"
)

// Rewrite replaces every spilled use/def in fn with stack-slot traffic,
// returning a new function (fn is left untouched) and the updated
// counters.
func Rewrite(fn *ir2.Function, spillSet strset.Set, tempCounter, spillCounter int) (*ir2.Function, int, int) {
	r := &rewriter{
		spillSet:     spillSet,
		varOffsets:   map[string]int64{},
		tempCounter:  tempCounter,
		spillCounter: spillCounter,
	}

	for _, v := range spillSet.Sorted() {
		r.varOffsets[v] = int64(r.spillCounter) * 8
		r.spillCounter++
	}

	out := &ir2.Function{Name: fn.Name, Params: fn.Params}
	for _, in := range fn.Instrs {
		r.rewriteOne(in)
	}
	out.Instrs = r.out

	return out, r.tempCounter, r.spillCounter
}

type rewriter struct {
	spillSet     strset.Set
	varOffsets   map[string]int64
	tempCounter  int
	spillCounter int
	out          []ir2.Instr
}

func (r *rewriter) emit(in ir2.Instr) { r.out = append(r.out, in) }

func (r *rewriter) isSpilled(name string) bool { return r.spillSet.Has(name) }

func (r *rewriter) newTemp() ir2.Variable {
	t := ir2.Variable{Name: fmt.Sprintf("S%d", r.tempCounter)}
	r.tempCounter++
	return t
}

func containsSpilled(it ir2.Item, spillSet strset.Set) bool {
	switch v := it.(type) {
	case ir2.Variable:
		return spillSet.Has(v.Name)
	case ir2.Memory:
		return containsSpilled(v.Base, spillSet)
	default:
		return false
	}
}

func operands(in ir2.Instr) []ir2.Item {
	switch x := in.(type) {
	case ir2.Assign:
		return []ir2.Item{x.Dst, x.Src}
	case ir2.StackArgAssign:
		return []ir2.Item{x.Dst}
	case ir2.AOp:
		return []ir2.Item{x.Dst, x.RHS}
	case ir2.SOp:
		return []ir2.Item{x.Dst, x.Src}
	case ir2.MemAOp:
		return []ir2.Item{x.LHS, x.RHS}
	case ir2.CmpAssign:
		return []ir2.Item{x.Dst, x.LHS, x.RHS}
	case ir2.CJump:
		return []ir2.Item{x.LHS, x.RHS}
	case ir2.Call:
		if x.Type == ir2.CallL1 {
			return []ir2.Item{x.Callee}
		}
		return nil
	case ir2.IncDecInstr:
		return []ir2.Item{x.Dst}
	case ir2.Lea:
		return []ir2.Item{x.Dst, x.LHS, x.RHS}
	default:
		return nil
	}
}

func touchesSpilled(in ir2.Instr, spillSet strset.Set) bool {
	for _, op := range operands(in) {
		if containsSpilled(op, spillSet) {
			return true
		}
	}
	return false
}

// read loads a spilled operand into a fresh temp (and recurses through
// Memory bases), or passes non-spilled operands through unchanged.
func (r *rewriter) read(it ir2.Item) ir2.Item {
	switch v := it.(type) {
	case ir2.Memory:
		return ir2.Memory{Base: r.read(v.Base), Offset: v.Offset}
	case ir2.Variable:
		if !r.isSpilled(v.Name) {
			return v
		}
		t := r.newTemp()
		r.emit(ir2.Assign{
			Dst: t,
			Src: ir2.Memory{Base: ir2.Register{Reg: ir2.RSP}, Offset: r.varOffsets[v.Name]},
		})
		return t
	default:
		return it
	}
}

// write stores toWrite back into dst's stack slot if dst is spilled, or
// copies it into dst otherwise. When toWrite already *is* dst (read
// passed it through unchanged) no copy is needed.
func (r *rewriter) write(dst, toWrite ir2.Item) {
	if v, ok := dst.(ir2.Variable); ok && r.isSpilled(v.Name) {
		r.emit(ir2.Assign{
			Dst: ir2.Memory{Base: ir2.Register{Reg: ir2.RSP}, Offset: r.varOffsets[v.Name]},
			Src: toWrite,
		})
		return
	}
	if toWrite != dst {
		r.emit(ir2.Assign{Dst: dst, Src: toWrite})
	}
}

func (r *rewriter) rewriteOne(in ir2.Instr) {
	if !touchesSpilled(in, r.spillSet) {
		r.emit(in)
		return
	}

	switch x := in.(type) {
	case ir2.Assign:
		switch {
		case isMemory(x.Dst):
			m := x.Dst.(ir2.Memory)
			base := r.read(m.Base)
			src := r.read(x.Src)
			r.emit(ir2.Assign{Dst: ir2.Memory{Base: base, Offset: m.Offset}, Src: src})
		case isMemory(x.Src):
			m := x.Src.(ir2.Memory)
			base := r.read(m.Base)
			t := r.newTemp()
			r.emit(ir2.Assign{Dst: t, Src: ir2.Memory{Base: base, Offset: m.Offset}})
			r.write(x.Dst, t)
		default:
			t := r.read(x.Src)
			r.write(x.Dst, t)
		}

	case ir2.StackArgAssign:
		t := r.newTemp()
		r.emit(ir2.StackArgAssign{Dst: t, Src: x.Src})
		r.write(x.Dst, t)

	case ir2.AOp:
		dstTemp := r.read(x.Dst)
		rhsTemp := r.read(x.RHS)
		r.emit(ir2.AOp{Dst: dstTemp, Op: x.Op, RHS: rhsTemp})
		r.write(x.Dst, dstTemp)

	case ir2.SOp:
		dstTemp := r.read(x.Dst)
		srcTemp := r.read(x.Src)
		r.emit(ir2.SOp{Dst: dstTemp, Op: x.Op, Src: srcTemp})
		r.write(x.Dst, dstTemp)

	case ir2.MemAOp:
		lhsTemp := r.read(x.LHS)
		rhsTemp := r.read(x.RHS)
		r.emit(ir2.MemAOp{LHS: lhsTemp, Op: x.Op, RHS: rhsTemp})
		if isMemory(x.RHS) {
			r.write(x.LHS, lhsTemp)
		}

	case ir2.CmpAssign:
		lhsTemp := r.read(x.LHS)
		rhsTemp := r.read(x.RHS)
		dstTemp := r.newTemp()
		r.emit(ir2.CmpAssign{Dst: dstTemp, Cmp: x.Cmp, LHS: lhsTemp, RHS: rhsTemp})
		r.write(x.Dst, dstTemp)

	case ir2.CJump:
		lhsTemp := r.read(x.LHS)
		rhsTemp := r.read(x.RHS)
		r.emit(ir2.CJump{LHS: lhsTemp, Cmp: x.Cmp, RHS: rhsTemp, Label: x.Label})

	case ir2.Call:
		calleeTemp := r.read(x.Callee)
		r.emit(ir2.Call{Type: x.Type, Callee: calleeTemp, NArgs: x.NArgs})

	case ir2.IncDecInstr:
		dstTemp := r.read(x.Dst)
		r.emit(ir2.IncDecInstr{Dst: dstTemp, Op: x.Op})
		r.write(x.Dst, dstTemp)

	case ir2.Lea:
		lhsTemp := r.read(x.LHS)
		rhsTemp := r.read(x.RHS)
		dstTemp := r.newTemp()
		r.emit(ir2.Lea{Dst: dstTemp, LHS: lhsTemp, RHS: rhsTemp, Scale: x.Scale})
		r.write(x.Dst, dstTemp)

	default:
		r.emit(in)
	}
}

func isMemory(it ir2.Item) bool {
	_, ok := it.(ir2.Memory)
	return ok
}
