// Package live2 computes per-instruction liveness over an L2 function,
// adding the calling-convention semantics spec.md §4.1 layers on top of
// the generic GEN/KILL/IN/OUT shape: assign-to-memory is a GEN of the
// base, return/call touch the caller/callee-save sets, and rsp never
// participates.
package live2

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/l3bridge/l3c/internal/ir2"
	"github.com/l3bridge/l3c/internal/strset"
)

type Set struct {
	Gen, Kill, In, Out strset.Set
}

type Result struct {
	Sets   []Set
	Labels map[string]int
}

func Analyze(ctx context.Context, fn *ir2.Function) (res Result, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "live2: analyze", "func", fn.Name)
	defer tr.Finish("err", &err)
	_ = ctx

	res.Sets = make([]Set, len(fn.Instrs))
	res.Labels = map[string]int{}

	for i, in := range fn.Instrs {
		if l, ok := in.(ir2.LabelDef); ok {
			res.Labels[l.Label.Name] = i
		}
	}

	for i, in := range fn.Instrs {
		res.Sets[i] = genKill(in)
	}

	if err := fixpoint(fn, res); err != nil {
		return Result{}, err
	}

	if tr.If("dump_func_live2") {
		for i, s := range res.Sets {
			tr.Printw("live2", "i", i, "gen", s.Gen.Sorted(), "kill", s.Kill.Sorted(), "in", s.In.Sorted(), "out", s.Out.Sorted())
		}
	}

	return res, nil
}

// contribName returns the liveness-relevant name for an operand: a
// Variable's name, a Register's name (rsp excluded), or (recursively) a
// Memory operand's base name. StackArg never contributes.
func contribName(it ir2.Item) (string, bool) {
	switch v := it.(type) {
	case ir2.Variable:
		return v.Name, true
	case ir2.Register:
		if v.Reg == ir2.RSP {
			return "", false
		}
		return string(v.Reg), true
	case ir2.Memory:
		return contribName(v.Base)
	default:
		return "", false
	}
}

// CollectVariables returns every Variable name appearing anywhere in fn
// (operand or destination), independent of liveness contribution — used
// by internal/interfere to seed graph nodes for variables that never
// show up in a gen/kill set (e.g. a parameter that is only ever
// re-spilled).
func CollectVariables(fn *ir2.Function) []string {
	seen := strset.Set{}

	var add func(it ir2.Item)
	add = func(it ir2.Item) {
		switch v := it.(type) {
		case ir2.Variable:
			seen.Add(v.Name)
		case ir2.Memory:
			add(v.Base)
		}
	}

	for _, p := range fn.Params {
		seen.Add(p.Name)
	}

	for _, in := range fn.Instrs {
		switch x := in.(type) {
		case ir2.Assign:
			add(x.Dst)
			add(x.Src)
		case ir2.StackArgAssign:
			add(x.Dst)
		case ir2.AOp:
			add(x.Dst)
			add(x.RHS)
		case ir2.SOp:
			add(x.Dst)
			add(x.Src)
		case ir2.MemAOp:
			add(x.LHS)
			add(x.RHS)
		case ir2.CmpAssign:
			add(x.Dst)
			add(x.LHS)
			add(x.RHS)
		case ir2.CJump:
			add(x.LHS)
			add(x.RHS)
		case ir2.Call:
			if x.Type == ir2.CallL1 {
				add(x.Callee)
			}
		case ir2.IncDecInstr:
			add(x.Dst)
		case ir2.Lea:
			add(x.Dst)
			add(x.LHS)
			add(x.RHS)
		}
	}

	return seen.Sorted()
}

func genKill(in ir2.Instr) Set {
	s := Set{Gen: strset.Set{}, Kill: strset.Set{}, In: strset.Set{}, Out: strset.Set{}}

	gen := func(it ir2.Item) {
		if n, ok := contribName(it); ok {
			s.Gen.Add(n)
		}
	}
	kill := func(it ir2.Item) {
		if n, ok := contribName(it); ok {
			s.Kill.Add(n)
		}
	}
	isMemory := func(it ir2.Item) bool {
		_, ok := it.(ir2.Memory)
		return ok
	}

	switch x := in.(type) {
	case ir2.Assign:
		if isMemory(x.Dst) {
			gen(x.Dst)
		} else {
			kill(x.Dst)
		}
		gen(x.Src)
	case ir2.StackArgAssign:
		kill(x.Dst)
	case ir2.AOp:
		gen(x.RHS)
		gen(x.Dst)
		kill(x.Dst)
	case ir2.SOp:
		gen(x.Src)
		gen(x.Dst)
		kill(x.Dst)
	case ir2.MemAOp:
		gen(x.LHS)
		if !isMemory(x.LHS) {
			kill(x.LHS)
		}
		gen(x.RHS)
	case ir2.CmpAssign:
		kill(x.Dst)
		gen(x.LHS)
		gen(x.RHS)
	case ir2.CJump:
		gen(x.LHS)
		gen(x.RHS)
	case ir2.LabelDef, ir2.Goto:
		// no gen/kill
	case ir2.Ret:
		s.Gen.Add(string(ir2.RAX))
		for r := range ir2.CalleeSaved {
			s.Gen.Add(string(r))
		}
	case ir2.Call:
		for r := range ir2.CallerSaved {
			s.Kill.Add(string(r))
		}
		if x.Type == ir2.CallL1 {
			gen(x.Callee)
		}
		n := x.NArgs
		if n > 6 {
			n = 6
		}
		for i := int64(0); i < n; i++ {
			s.Gen.Add(string(ir2.ArgRegs[i]))
		}
	case ir2.IncDecInstr:
		gen(x.Dst)
		kill(x.Dst)
	case ir2.Lea:
		gen(x.LHS)
		gen(x.RHS)
		kill(x.Dst)
	}

	return s
}

// hasSuccessor reports whether control can fall through or branch out of
// instruction i at all. `ret` and the two runtime-error call forms are
// terminal, per spec.md §4.1 and the no-successor rule for
// tuple-error/tensor-error calls carried over from the original
// implementation (see SPEC_FULL.md §4, supplemented features).
func hasSuccessor(in ir2.Instr) bool {
	switch x := in.(type) {
	case ir2.Ret:
		return false
	case ir2.Call:
		return x.Type.HasSuccessor()
	default:
		return true
	}
}

func successors(fn *ir2.Function, labels map[string]int, i int) []int {
	in := fn.Instrs[i]

	if !hasSuccessor(in) {
		return nil
	}

	switch x := in.(type) {
	case ir2.Goto:
		idx, ok := labels[x.Label.Name]
		if !ok {
			return nil
		}
		return []int{idx}
	case ir2.CJump:
		succ := []int{}
		if idx, ok := labels[x.Label.Name]; ok {
			succ = append(succ, idx)
		}
		if i+1 < len(fn.Instrs) {
			succ = append(succ, i+1)
		}
		return succ
	default:
		if i+1 < len(fn.Instrs) {
			return []int{i + 1}
		}
		return nil
	}
}

func fixpoint(fn *ir2.Function, res Result) error {
	for i, in := range fn.Instrs {
		var target string
		switch x := in.(type) {
		case ir2.Goto:
			target = x.Label.Name
		case ir2.CJump:
			target = x.Label.Name
		default:
			continue
		}
		if _, ok := res.Labels[target]; !ok {
			return errors.New("live2: function %q instruction %d branches to undefined label %q", fn.Name, i, target)
		}
	}

	changed := true
	for changed {
		changed = false

		for i := len(fn.Instrs) - 1; i >= 0; i-- {
			s := &res.Sets[i]

			newOut := strset.Set{}
			for _, succ := range successors(fn, res.Labels, i) {
				newOut.AddAll(res.Sets[succ].In)
			}

			newIn := strset.Union(s.Gen, strset.Diff(newOut, s.Kill))

			if !newIn.Equal(s.In) || !newOut.Equal(s.Out) {
				changed = true
			}
			s.In = newIn
			s.Out = newOut
		}
	}

	return nil
}
