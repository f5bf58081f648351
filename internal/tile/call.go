package tile

import (
	"tlog.app/go/errors"

	"github.com/l3bridge/l3c/internal/ir2"
	"github.com/l3bridge/l3c/internal/ir3"
)

// builtinCallType maps an L3 builtin name to its L2 call type, or false
// if name is not a runtime builtin.
func builtinCallType(name string) (ir2.CallType, bool) {
	switch name {
	case "print":
		return ir2.CallPrint, true
	case "input":
		return ir2.CallInput, true
	case "allocate":
		return ir2.CallAllocate, true
	case "tuple-error":
		return ir2.CallTupleError, true
	case "tensor-error":
		return ir2.CallTensorError, true
	default:
		return 0, false
	}
}

// emitCall materializes c's arguments into the argument registers (and,
// past the sixth, onto the stack), then emits the call itself. dst is
// non-nil for a call-assignment, in which case the result is copied out
// of rax afterward.
//
// A user/indirect call additionally gets the manual return-address dance
// an L1-style jmp-based call needs: the return address is stored at
// mem rsp -8 before the stack is adjusted, and the instruction right
// after the call defines the label that address points at. Runtime
// builtins use a real `call`, so the hardware manages the return address
// and none of that is needed.
func (e *emitter) emitCall(c ir3.Call, dst *ir2.Variable) error {
	extras := 0
	if len(c.Args) > 6 {
		extras = len(c.Args) - 6
	}

	for i, arg := range c.Args {
		item, err := convItem(arg)
		if err != nil {
			return err
		}
		if i < 6 {
			e.emit(ir2.Assign{Dst: ir2.Register{Reg: ir2.ArgRegs[i]}, Src: item})
			continue
		}
		j := i - 6
		offset := int64(j-extras-1) * 8
		e.emit(ir2.Assign{Dst: ir2.Memory{Base: ir2.Register{Reg: ir2.RSP}, Offset: offset}, Src: item})
	}

	if c.Builtin != "" {
		typ, ok := builtinCallType(c.Builtin)
		if !ok {
			return errors.New("tile: unknown builtin %q", c.Builtin)
		}
		e.emit(ir2.Call{Type: typ, NArgs: int64(len(c.Args))})
	} else {
		callee, err := convItem(c.Callee)
		if err != nil {
			return err
		}

		retLabel := e.newReturnLabel()
		e.emit(ir2.Assign{
			Dst: ir2.Memory{Base: ir2.Register{Reg: ir2.RSP}, Offset: -8},
			Src: ir2.Label{Name: retLabel.Name},
		})
		e.emit(ir2.Call{Type: ir2.CallL1, Callee: callee, NArgs: int64(len(c.Args))})
		e.emit(ir2.LabelDef{Label: retLabel})
	}

	if dst != nil {
		e.emit(ir2.Assign{Dst: ir2.Variable{Name: dst.Name}, Src: ir2.Register{Reg: ir2.RAX}})
	}

	return nil
}
