// Package tile is the L3-to-L2 tiling engine: it walks a treebuild
// Function's contexts and turns every Tree and raw Node into the
// equivalent run of L2 instructions, materializing call arguments into
// the System-V argument registers and globalizing label names along
// the way.
package tile

import (
	"fmt"

	"tlog.app/go/errors"

	"github.com/l3bridge/l3c/internal/ir2"
	"github.com/l3bridge/l3c/internal/ir3"
	"github.com/l3bridge/l3c/internal/treebuild"
)

// Labeler globalizes L3 label names that would otherwise collide across
// functions: the pair (function name, local label) maps to :PREFIX_N the
// first time it is seen, where N counts up across the whole program.
type Labeler struct {
	prefix string
	next   int
	seen   map[labelKey]string
}

type labelKey struct {
	fn, local string
}

// NewLabeler scans every label mentioned in prog to compute the globalization
// prefix: the longest local label in the program, with "_global_" appended,
// which cannot collide with any label a user program could have written.
func NewLabeler(prog *ir3.Program) *Labeler {
	longest := ""
	note := func(name string) {
		if len(name) > len(longest) {
			longest = name
		}
	}

	for _, fn := range prog.Funcs {
		for _, in := range fn.Instrs {
			switch x := in.(type) {
			case ir3.LabelDef:
				note(x.Label.Name)
			case ir3.Branch:
				note(x.Label.Name)
			case ir3.CondBranch:
				note(x.Label.Name)
			}
		}
	}

	return &Labeler{prefix: longest + "_global_", seen: map[labelKey]string{}}
}

// Global returns the globalized name for (fn, local), minting a fresh one
// the first time this pair is requested.
func (l *Labeler) Global(fn, local string) string {
	key := labelKey{fn, local}
	if g, ok := l.seen[key]; ok {
		return g
	}
	g := fmt.Sprintf("%s%d", l.prefix, l.next)
	l.next++
	l.seen[key] = g
	return g
}

type emitter struct {
	fnName      string
	lab         *Labeler
	tempCounter int
	retCounter  int
	out         []ir2.Instr
}

func (e *emitter) emit(in ir2.Instr) { e.out = append(e.out, in) }

func (e *emitter) newTemp() ir2.Variable {
	t := ir2.Variable{Name: fmt.Sprintf("__tmp%d", e.tempCounter)}
	e.tempCounter++
	return t
}

// newReturnLabel mints a synthetic local label name for the instruction
// following an L1-style call, then globalizes it through the same
// allocator as user labels so it can never collide with one.
func (e *emitter) newReturnLabel() ir2.Label {
	local := fmt.Sprintf("__ret%d", e.retCounter)
	e.retCounter++
	return ir2.Label{Name: e.lab.Global(e.fnName, local)}
}

// Function tiles fn, producing the equivalent L2 function. lab must have
// been built from the whole program fn came from.
func Function(fn *treebuild.Function, lab *Labeler) (*ir2.Function, error) {
	e := &emitter{fnName: fn.Name, lab: lab}

	params := make([]ir2.Variable, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = ir2.Variable{Name: p.Name}
	}
	e.emitParamPrologue(params)

	for _, ctx := range fn.Contexts {
		for _, node := range ctx.Nodes {
			if err := e.emitNode(node); err != nil {
				return nil, errors.Wrap(err, "tile: function %q", fn.Name)
			}
		}
	}

	return &ir2.Function{Name: fn.Name, Params: params, Instrs: e.out}, nil
}

// emitParamPrologue materializes every incoming parameter from its
// System-V location before any of the function's own instructions run:
// the first six arrive in ir2.ArgRegs, the rest on the incoming stack
// frame at StackArg{Index: i-6}.
func (e *emitter) emitParamPrologue(params []ir2.Variable) {
	for i, p := range params {
		if i < len(ir2.ArgRegs) {
			e.emit(ir2.Assign{Dst: p, Src: ir2.Register{Reg: ir2.ArgRegs[i]}})
			continue
		}
		e.emit(ir2.StackArgAssign{Dst: p, Src: ir2.StackArg{Index: int64(i - len(ir2.ArgRegs))}})
	}
}

func (e *emitter) emitNode(n treebuild.Node) error {
	switch x := n.(type) {
	case treebuild.LabelNode:
		e.emit(ir2.LabelDef{Label: ir2.Label{Name: e.lab.Global(e.fnName, x.Label.Name)}})
		return nil

	case treebuild.CallNode:
		return e.emitCall(x.Call, nil)

	case treebuild.CallAssignNode:
		dst := ir2.Variable{Name: x.Dst.Name}
		return e.emitCall(x.Call, &dst)

	case treebuild.TreeNode:
		return e.tileTree(x.Tree)

	default:
		return errors.New("tile: unhandled node %T", n)
	}
}

func (e *emitter) tileTree(t treebuild.Tree) error {
	switch x := t.(type) {
	case treebuild.Assign:
		dst, err := convItem(x.Dst.Item)
		if err != nil {
			return err
		}
		return e.emitAssignInto(dst, x.Src)

	case treebuild.Load:
		addr, err := e.lowerExpr(x.Addr)
		if err != nil {
			return err
		}
		dst, err := convItem(x.Dst.Item)
		if err != nil {
			return err
		}
		e.emit(ir2.Assign{Dst: dst, Src: ir2.Memory{Base: addr, Offset: 0}})
		return nil

	case treebuild.Store:
		addr, err := e.lowerExpr(x.Addr)
		if err != nil {
			return err
		}
		val, err := e.lowerExpr(x.Src)
		if err != nil {
			return err
		}
		e.emit(ir2.Assign{Dst: ir2.Memory{Base: addr, Offset: 0}, Src: val})
		return nil

	case treebuild.Return:
		if x.Val != nil {
			val, err := e.lowerExpr(x.Val)
			if err != nil {
				return err
			}
			e.emit(ir2.Assign{Dst: ir2.Register{Reg: ir2.RAX}, Src: val})
		}
		e.emit(ir2.Ret{})
		return nil

	case treebuild.Break:
		label, err := e.breakLabel(x.Label)
		if err != nil {
			return err
		}
		if x.Cond == nil {
			e.emit(ir2.Goto{Label: label})
			return nil
		}
		cond, err := e.lowerExpr(x.Cond)
		if err != nil {
			return err
		}
		e.emit(ir2.CJump{LHS: cond, RHS: ir2.Number{N: 1}, Cmp: ir2.Eq, Label: label})
		return nil

	default:
		return errors.New("tile: unmatched tree %T", t)
	}
}

func (e *emitter) breakLabel(l treebuild.Leaf) (ir2.Label, error) {
	lbl, ok := l.Item.(ir3.Label)
	if !ok {
		return ir2.Label{}, errors.New("tile: break target %v is not a label", l.Item)
	}
	return ir2.Label{Name: e.lab.Global(e.fnName, lbl.Name)}, nil
}

// emitAssignInto implements the Assign(Leaf dst, rhs) tile family: a
// plain move, a binop/shift pair, or a comparison.
func (e *emitter) emitAssignInto(dst ir2.Item, src treebuild.Tree) error {
	switch x := src.(type) {
	case treebuild.Leaf:
		s, err := convItem(x.Item)
		if err != nil {
			return err
		}
		e.emit(ir2.Assign{Dst: dst, Src: s})
		return nil

	case treebuild.BinOp:
		return e.emitBinOp(dst, x)

	case treebuild.Cmp:
		return e.emitCmp(dst, x)

	default:
		return errors.New("tile: unmatched assign source %T", src)
	}
}

func (e *emitter) emitBinOp(dst ir2.Item, x treebuild.BinOp) error {
	lhs, err := e.lowerExpr(x.L)
	if err != nil {
		return err
	}
	rhs, err := e.lowerExpr(x.R)
	if err != nil {
		return err
	}

	switch {
	case dst == lhs:
		// dst already holds lhs; skip the redundant move.
	case dst == rhs:
		tmp := e.newTemp()
		e.emit(ir2.Assign{Dst: tmp, Src: rhs})
		rhs = tmp
		e.emit(ir2.Assign{Dst: dst, Src: lhs})
	default:
		e.emit(ir2.Assign{Dst: dst, Src: lhs})
	}

	if sop, ok := shiftOp(x.Op); ok {
		e.emit(ir2.SOp{Dst: dst, Op: sop, Src: rhs})
		return nil
	}
	aop, err := arithOp(x.Op)
	if err != nil {
		return err
	}
	e.emit(ir2.AOp{Dst: dst, Op: aop, RHS: rhs})
	return nil
}

func (e *emitter) emitCmp(dst ir2.Item, x treebuild.Cmp) error {
	lhs, err := e.lowerExpr(x.L)
	if err != nil {
		return err
	}
	rhs, err := e.lowerExpr(x.R)
	if err != nil {
		return err
	}

	cmp := x.Cmp
	if cmp == ir3.Greater || cmp == ir3.GreaterEq {
		lhs, rhs = rhs, lhs
		if cmp == ir3.Greater {
			cmp = ir3.Less
		} else {
			cmp = ir3.LessEq
		}
	}

	mapped, err := convCmp(cmp)
	if err != nil {
		return err
	}
	e.emit(ir2.CmpAssign{Dst: dst, Cmp: mapped, LHS: lhs, RHS: rhs})
	return nil
}

// lowerExpr uses a Leaf directly, or tiles a nested BinOp/Cmp into a
// fresh temp and returns that temp.
func (e *emitter) lowerExpr(t treebuild.Tree) (ir2.Item, error) {
	if l, ok := t.(treebuild.Leaf); ok {
		return convItem(l.Item)
	}

	tmp := e.newTemp()
	if err := e.emitAssignInto(tmp, t); err != nil {
		return nil, err
	}
	return tmp, nil
}

func convItem(it ir3.Item) (ir2.Item, error) {
	switch v := it.(type) {
	case ir3.Number:
		return ir2.Number{N: v.N}, nil
	case ir3.Variable:
		return ir2.Variable{Name: v.Name}, nil
	case ir3.Label:
		return ir2.Label{Name: v.Name}, nil
	case ir3.Func:
		return ir2.Func{Name: v.Name}, nil
	default:
		return nil, errors.New("tile: unhandled item %T", it)
	}
}

func shiftOp(op ir3.OP) (ir2.SOP, bool) {
	switch op {
	case ir3.ShiftL:
		return ir2.SOPShiftL, true
	case ir3.ShiftR:
		return ir2.SOPShiftR, true
	default:
		return "", false
	}
}

func arithOp(op ir3.OP) (ir2.AOP, error) {
	switch op {
	case ir3.Add:
		return ir2.AOPAdd, nil
	case ir3.Sub:
		return ir2.AOPSub, nil
	case ir3.Mul:
		return ir2.AOPMul, nil
	case ir3.BitAnd:
		return ir2.AOPBitAnd, nil
	default:
		return "", errors.New("tile: unhandled binop %q", op)
	}
}

func convCmp(c ir3.CMP) (ir2.CMP, error) {
	switch c {
	case ir3.Less:
		return ir2.Less, nil
	case ir3.LessEq:
		return ir2.LessEq, nil
	case ir3.Eq:
		return ir2.Eq, nil
	default:
		return "", errors.New("tile: cmp %q should have been flipped already", c)
	}
}
