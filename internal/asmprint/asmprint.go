// Package asmprint renders an L1 program as AT&T-syntax x86-64
// assembly with the System-V calling convention, the final step of the
// pipeline in spec.md's sense: a thin, mechanical textual rendering of
// an already fully-resolved IR, with no analysis left to do.
package asmprint

import (
	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"

	"github.com/l3bridge/l3c/internal/ir1"
)

// entryTrampoline is the fixed "go" entry point: it saves the
// callee-save registers the System-V convention requires a called
// function to preserve, calls into the program's own entry function, restores them,
// and returns to the C runtime that invoked it.
const entryTrampoline = `.text
  .globl go
go:
  pushq %rbx
  pushq %rbp
  pushq %r12
  pushq %r13
  pushq %r14
  pushq %r15
  call _%[1]s
  popq %r15
  popq %r14
  popq %r13
  popq %r12
  popq %rbp
  popq %rbx
  retq
`

// Print renders p as a complete assembly file.
func Print(p *ir1.Program) ([]byte, error) {
	var obj []byte

	obj = hfmt.Appendf(obj, entryTrampoline, p.EntryPointLabel)

	for _, fn := range p.Funcs {
		var err error
		obj, err = printFunc(obj, fn)
		if err != nil {
			return nil, errors.Wrap(err, "asmprint: function %q", fn.Name)
		}
	}

	return obj, nil
}

func printFunc(obj []byte, fn *ir1.Function) ([]byte, error) {
	obj = hfmt.Appendf(obj, "_%s:\n", fn.Name)

	localsSpace := int64(fn.NumLocals) * 8
	stackArgsSpace := int64(0)
	if fn.NumArgs > 6 {
		stackArgsSpace = int64(fn.NumArgs-6) * 8
	}
	if localsSpace != 0 {
		obj = hfmt.Appendf(obj, "  subq $%d, %%rsp\n", localsSpace)
	}
	frameSize := localsSpace + stackArgsSpace

	for _, in := range fn.Instrs {
		var err error
		obj, err = printInstr(obj, in, frameSize)
		if err != nil {
			return nil, err
		}
	}

	return obj, nil
}

func printInstr(obj []byte, in ir1.Instr, frameSize int64) ([]byte, error) {
	switch x := in.(type) {
	case ir1.Assign:
		src := operandAsSrc(x.Src)
		dst := operand(x.Dst)
		return hfmt.Appendf(obj, "  movq %s, %s\n", src, dst), nil

	case ir1.AOp:
		mnem, err := aopMnemonic(x.Op)
		if err != nil {
			return nil, err
		}
		return hfmt.Appendf(obj, "  %s %s, %s\n", mnem, operand(x.RHS), operand(x.Dst)), nil

	case ir1.SOp:
		mnem, err := sopMnemonic(x.Op)
		if err != nil {
			return nil, err
		}
		return hfmt.Appendf(obj, "  %s %s, %s\n", mnem, eightBitOperand(x.Src), operand(x.Dst)), nil

	case ir1.MemAOp:
		mnem, err := aopMnemonic(x.Op)
		if err != nil {
			return nil, err
		}
		return hfmt.Appendf(obj, "  %s %s, %s\n", mnem, operand(x.RHS), operand(x.LHS)), nil

	case ir1.CmpAssign:
		return printCmpAssign(obj, x)

	case ir1.CJump:
		return printCJump(obj, x)

	case ir1.LabelDef:
		return hfmt.Appendf(obj, "  %s:\n", jumpTarget(x.Label)), nil

	case ir1.Goto:
		return hfmt.Appendf(obj, "  jmp %s\n", jumpTarget(x.Label)), nil

	case ir1.Ret:
		if frameSize != 0 {
			obj = hfmt.Appendf(obj, "  addq $%d, %%rsp\n", frameSize)
		}
		return hfmt.Appendf(obj, "  retq\n"), nil

	case ir1.Call:
		return printCall(obj, x)

	case ir1.IncDecInstr:
		mnem, err := incDecMnemonic(x.Op)
		if err != nil {
			return nil, err
		}
		return hfmt.Appendf(obj, "  %s %s\n", mnem, operand(x.Dst)), nil

	case ir1.Lea:
		return hfmt.Appendf(obj, "  lea (%s, %s, %d), %s\n", operand(x.LHS), operand(x.RHS), x.Scale, operand(x.Dst)), nil

	default:
		return nil, errors.New("asmprint: unhandled instruction %T", in)
	}
}

func printCmpAssign(obj []byte, x ir1.CmpAssign) ([]byte, error) {
	lhsNum, lhsIsNum := x.LHS.(ir1.Number)
	rhsNum, rhsIsNum := x.RHS.(ir1.Number)

	if lhsIsNum && rhsIsNum {
		v, err := compare(lhsNum.N, rhsNum.N, x.Cmp)
		if err != nil {
			return nil, err
		}
		n := int64(0)
		if v {
			n = 1
		}
		return hfmt.Appendf(obj, "  movq $%d, %s\n", n, operand(x.Dst)), nil
	}

	flip := lhsIsNum && !rhsIsNum
	left, right := x.RHS, x.LHS
	if flip {
		left, right = x.LHS, x.RHS
	}

	setMnem, err := setMnemonic(x.Cmp, flip)
	if err != nil {
		return nil, err
	}

	obj = hfmt.Appendf(obj, "  cmpq %s, %s\n", operand(left), operand(right))
	obj = hfmt.Appendf(obj, "  %s %s\n", setMnem, eightBitOperand(x.Dst))
	obj = hfmt.Appendf(obj, "  movzbq %s, %s\n", eightBitOperand(x.Dst), operand(x.Dst))
	return obj, nil
}

func printCJump(obj []byte, x ir1.CJump) ([]byte, error) {
	lhsNum, lhsIsNum := x.LHS.(ir1.Number)
	rhsNum, rhsIsNum := x.RHS.(ir1.Number)

	if lhsIsNum && rhsIsNum {
		v, err := compare(lhsNum.N, rhsNum.N, x.Cmp)
		if err != nil {
			return nil, err
		}
		if v {
			return hfmt.Appendf(obj, "  jmp %s\n", jumpTarget(x.Label)), nil
		}
		return obj, nil
	}

	flip := lhsIsNum && !rhsIsNum
	left, right := x.RHS, x.LHS
	if flip {
		left, right = x.LHS, x.RHS
	}

	jumpMnem, err := jumpMnemonic(x.Cmp, flip)
	if err != nil {
		return nil, err
	}

	obj = hfmt.Appendf(obj, "  cmpq %s, %s\n", operand(left), operand(right))
	obj = hfmt.Appendf(obj, "  %s %s\n", jumpMnem, jumpTarget(x.Label))
	return obj, nil
}

func printCall(obj []byte, x ir1.Call) ([]byte, error) {
	switch x.Type {
	case ir1.CallL1:
		space := int64(8)
		if x.NArgs >= 6 {
			space = (x.NArgs-6)*8 + 8
		}
		if space != 0 {
			obj = hfmt.Appendf(obj, "  subq $%d, %%rsp\n", space)
		}
		return hfmt.Appendf(obj, "  jmp %s\n", calleeOperand(x.Callee)), nil
	case ir1.CallPrint:
		return hfmt.Appendf(obj, "  call print\n"), nil
	case ir1.CallAllocate:
		return hfmt.Appendf(obj, "  call allocate\n"), nil
	case ir1.CallInput:
		return hfmt.Appendf(obj, "  call input\n"), nil
	case ir1.CallTupleError:
		return hfmt.Appendf(obj, "  call tuple_error\n"), nil
	case ir1.CallTensorError:
		switch x.NArgs {
		case 1:
			return hfmt.Appendf(obj, "  call array_tensor_error_null\n"), nil
		case 3:
			return hfmt.Appendf(obj, "  call array_error\n"), nil
		case 4:
			return hfmt.Appendf(obj, "  call tensor_error\n"), nil
		default:
			return nil, errors.New("asmprint: tensor-error call with unsupported arg count %d", x.NArgs)
		}
	default:
		return nil, errors.New("asmprint: unhandled call type %v", x.Type)
	}
}

func compare(lhs, rhs int64, cmp ir1.CMP) (bool, error) {
	switch cmp {
	case ir1.Less:
		return lhs < rhs, nil
	case ir1.LessEq:
		return lhs <= rhs, nil
	case ir1.Eq:
		return lhs == rhs, nil
	default:
		return false, errors.New("asmprint: bad cmp %q", cmp)
	}
}

func aopMnemonic(op ir1.AOP) (string, error) {
	switch op {
	case ir1.AOPAdd:
		return "addq", nil
	case ir1.AOPSub:
		return "subq", nil
	case ir1.AOPMul:
		return "imulq", nil
	case ir1.AOPBitAnd:
		return "andq", nil
	default:
		return "", errors.New("asmprint: bad aop %q", op)
	}
}

func sopMnemonic(op ir1.SOP) (string, error) {
	switch op {
	case ir1.SOPShiftL:
		return "salq", nil
	case ir1.SOPShiftR:
		return "sarq", nil
	default:
		return "", errors.New("asmprint: bad sop %q", op)
	}
}

func incDecMnemonic(op ir1.IncDec) (string, error) {
	switch op {
	case ir1.Inc:
		return "inc", nil
	case ir1.Dec:
		return "dec", nil
	default:
		return "", errors.New("asmprint: bad inc/dec %q", op)
	}
}

func setMnemonic(cmp ir1.CMP, flip bool) (string, error) {
	switch cmp {
	case ir1.Less:
		if flip {
			return "setg", nil
		}
		return "setl", nil
	case ir1.LessEq:
		if flip {
			return "setge", nil
		}
		return "setle", nil
	case ir1.Eq:
		return "sete", nil
	default:
		return "", errors.New("asmprint: bad cmp %q", cmp)
	}
}

func jumpMnemonic(cmp ir1.CMP, flip bool) (string, error) {
	switch cmp {
	case ir1.Less:
		if flip {
			return "jg", nil
		}
		return "jl", nil
	case ir1.LessEq:
		if flip {
			return "jge", nil
		}
		return "jle", nil
	case ir1.Eq:
		return "je", nil
	default:
		return "", errors.New("asmprint: bad cmp %q", cmp)
	}
}

var eightBitSuffix = map[ir1.Reg]string{
	ir1.RAX: "%al", ir1.RBX: "%bl", ir1.RCX: "%cl", ir1.RDX: "%dl",
	ir1.RDI: "%dil", ir1.RSI: "%sil", ir1.RBP: "%bpl", ir1.RSP: "%spl",
	ir1.R8: "%r8b", ir1.R9: "%r9b", ir1.R10: "%r10b", ir1.R11: "%r11b",
	ir1.R12: "%r12b", ir1.R13: "%r13b", ir1.R14: "%r14b", ir1.R15: "%r15b",
}

func eightBitOperand(it ir1.Item) string {
	r, ok := it.(ir1.Register)
	if !ok {
		return operand(it)
	}
	return eightBitSuffix[r.Reg]
}

// operand renders it in its default form: a bare "%reg", an immediate
// "$N", a memory operand "OFF(%base)", or an immediate label/function
// address "$_name".
func operand(it ir1.Item) string {
	switch v := it.(type) {
	case ir1.Number:
		return string(hfmt.Appendf(nil, "$%d", v.N))
	case ir1.Register:
		return "%" + string(v.Reg)
	case ir1.Memory:
		return string(hfmt.Appendf(nil, "%d(%s)", v.Offset, operand(v.Base)))
	case ir1.Label:
		return "$_" + v.Name
	case ir1.Func:
		return "$_" + v.Name
	default:
		return "?"
	}
}

// operandAsSrc is exactly operand: a Label renders as an immediate
// ("$_name"), whereas jumpTarget would render the same Label as a bare
// target — the one place this matters is the manually pushed return
// address ahead of an L1-style call.
func operandAsSrc(it ir1.Item) string {
	return operand(it)
}

// jumpTarget renders a Label as a bare branch/definition target, with
// no leading "$".
func jumpTarget(l ir1.Label) string {
	return "_" + l.Name
}

// calleeOperand renders an L1-style call's callee: a direct jump target
// for a known function, or an indirect jump through a register holding
// a function pointer.
func calleeOperand(it ir1.Item) string {
	switch v := it.(type) {
	case ir1.Func:
		return "_" + v.Name
	case ir1.Register:
		return "*%" + string(v.Reg)
	default:
		return operand(it)
	}
}
