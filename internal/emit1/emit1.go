// Package emit1 lowers a fully colored L2 function into L1: every
// Variable becomes the Register its coloring map chose, and every
// StackArg becomes a concrete Memory offset against the frame that
// internal/spill grew.
package emit1

import (
	"tlog.app/go/errors"

	"github.com/l3bridge/l3c/internal/ir1"
	"github.com/l3bridge/l3c/internal/ir2"
)

// Emit converts fn into an L1 function using colors (the per-variable
// coloring map produced by internal/color) and locals (the function's
// final spill-slot count, i.e. the spillCounter value once coloring
// succeeded for this function — see DESIGN.md on how this folds the
// §4.8 frame-growth arithmetic into a single count). It fails if a
// parameter, or any variable an instruction mentions, has no color.
func Emit(fn *ir2.Function, colors map[string]ir2.Reg, locals int) (*ir1.Function, error) {
	out := &ir1.Function{
		Name:      fn.Name,
		NumArgs:   len(fn.Params),
		NumLocals: locals,
	}

	for _, p := range fn.Params {
		if _, ok := colors[p.Name]; !ok {
			return nil, errors.New("emit1: function %q: parameter %q has no assigned color", fn.Name, p.Name)
		}
	}

	for _, in := range fn.Instrs {
		lowered, err := lowerInstr(in, colors, locals)
		if err != nil {
			return nil, errors.Wrap(err, "emit1: function %q", fn.Name)
		}
		out.Instrs = append(out.Instrs, lowered)
	}

	return out, nil
}

func resolve(it ir2.Item, colors map[string]ir2.Reg, locals int) (ir1.Item, error) {
	switch v := it.(type) {
	case ir2.Number:
		return ir1.Number{N: v.N}, nil
	case ir2.Label:
		return ir1.Label{Name: v.Name}, nil
	case ir2.Func:
		return ir1.Func{Name: v.Name}, nil
	case ir2.Register:
		return ir1.Register{Reg: v.Reg}, nil
	case ir2.Variable:
		r, ok := colors[v.Name]
		if !ok {
			return nil, errors.New("emit1: variable %q has no assigned color", v.Name)
		}
		return ir1.Register{Reg: r}, nil
	case ir2.Memory:
		base, err := resolve(v.Base, colors, locals)
		if err != nil {
			return nil, err
		}
		reg, ok := base.(ir1.Register)
		if !ok {
			return nil, errors.New("emit1: memory base resolved to non-register %v", base)
		}
		return ir1.Memory{Base: reg, Offset: v.Offset}, nil
	case ir2.StackArg:
		return ir1.Memory{Base: ir1.Register{Reg: ir1.RSP}, Offset: int64(locals)*8 + v.Index*8}, nil
	default:
		return nil, errors.New("emit1: unhandled item %T", it)
	}
}

func lowerInstr(in ir2.Instr, colors map[string]ir2.Reg, locals int) (ir1.Instr, error) {
	r := func(it ir2.Item) (ir1.Item, error) { return resolve(it, colors, locals) }

	switch x := in.(type) {
	case ir2.Assign:
		dst, err := r(x.Dst)
		if err != nil {
			return nil, err
		}
		src, err := r(x.Src)
		if err != nil {
			return nil, err
		}
		return ir1.Assign{Dst: dst, Src: src}, nil

	case ir2.StackArgAssign:
		dst, err := r(x.Dst)
		if err != nil {
			return nil, err
		}
		src, err := r(x.Src)
		if err != nil {
			return nil, err
		}
		return ir1.Assign{Dst: dst, Src: src}, nil

	case ir2.AOp:
		dst, err := r(x.Dst)
		if err != nil {
			return nil, err
		}
		rhs, err := r(x.RHS)
		if err != nil {
			return nil, err
		}
		return ir1.AOp{Dst: dst, Op: x.Op, RHS: rhs}, nil

	case ir2.SOp:
		dst, err := r(x.Dst)
		if err != nil {
			return nil, err
		}
		src, err := r(x.Src)
		if err != nil {
			return nil, err
		}
		return ir1.SOp{Dst: dst, Op: x.Op, Src: src}, nil

	case ir2.MemAOp:
		lhs, err := r(x.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := r(x.RHS)
		if err != nil {
			return nil, err
		}
		return ir1.MemAOp{LHS: lhs, Op: x.Op, RHS: rhs}, nil

	case ir2.CmpAssign:
		dst, err := r(x.Dst)
		if err != nil {
			return nil, err
		}
		lhs, err := r(x.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := r(x.RHS)
		if err != nil {
			return nil, err
		}
		return ir1.CmpAssign{Dst: dst, Cmp: x.Cmp, LHS: lhs, RHS: rhs}, nil

	case ir2.CJump:
		lhs, err := r(x.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := r(x.RHS)
		if err != nil {
			return nil, err
		}
		return ir1.CJump{LHS: lhs, RHS: rhs, Cmp: x.Cmp, Label: ir1.Label{Name: x.Label.Name}}, nil

	case ir2.LabelDef:
		return ir1.LabelDef{Label: ir1.Label{Name: x.Label.Name}}, nil

	case ir2.Goto:
		return ir1.Goto{Label: ir1.Label{Name: x.Label.Name}}, nil

	case ir2.Ret:
		return ir1.Ret{}, nil

	case ir2.Call:
		if x.Type != ir2.CallL1 {
			return ir1.Call{Type: x.Type, NArgs: x.NArgs}, nil
		}
		callee, err := r(x.Callee)
		if err != nil {
			return nil, err
		}
		return ir1.Call{Type: x.Type, Callee: callee, NArgs: x.NArgs}, nil

	case ir2.IncDecInstr:
		dst, err := r(x.Dst)
		if err != nil {
			return nil, err
		}
		return ir1.IncDecInstr{Dst: dst, Op: x.Op}, nil

	case ir2.Lea:
		dst, err := r(x.Dst)
		if err != nil {
			return nil, err
		}
		lhs, err := r(x.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := r(x.RHS)
		if err != nil {
			return nil, err
		}
		return ir1.Lea{Dst: dst, LHS: lhs, RHS: rhs, Scale: x.Scale}, nil

	default:
		return nil, errors.New("emit1: unhandled instruction %T", in)
	}
}
