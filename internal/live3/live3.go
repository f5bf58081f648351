// Package live3 computes per-instruction liveness (GEN/KILL/IN/OUT) over
// an L3 function, per spec §4.1. It is the leaf-most analysis the tree
// builder depends on.
package live3

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/l3bridge/l3c/internal/ir3"
	"github.com/l3bridge/l3c/internal/strset"
)

type Set struct {
	Gen, Kill, In, Out strset.Set
}

// Result is one Set per instruction, plus the label-name -> instruction
// index map built along the way (treebuild reads only Sets).
type Result struct {
	Sets   []Set
	Labels map[string]int
}

func Analyze(ctx context.Context, fn *ir3.Function) (res Result, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "live3: analyze", "func", fn.Name)
	defer tr.Finish("err", &err)
	_ = ctx

	res.Sets = make([]Set, len(fn.Instrs))
	res.Labels = map[string]int{}

	for i, in := range fn.Instrs {
		if l, ok := in.(ir3.LabelDef); ok {
			res.Labels[l.Label.Name] = i
		}
	}

	for i, in := range fn.Instrs {
		res.Sets[i] = genKill(in)
	}

	if err := fixpoint(fn, res); err != nil {
		return Result{}, err
	}

	if tr.If("dump_func_live3") {
		for i, s := range res.Sets {
			tr.Printw("live3", "i", i, "gen", s.Gen.Sorted(), "kill", s.Kill.Sorted(), "in", s.In.Sorted(), "out", s.Out.Sorted())
		}
	}

	return res, nil
}

func genKill(in ir3.Instr) Set {
	s := Set{Gen: strset.Set{}, Kill: strset.Set{}, In: strset.Set{}, Out: strset.Set{}}

	addGen := func(it ir3.Item) {
		if v, ok := ir3.IsVariable(it); ok {
			s.Gen.Add(v.Name)
		}
	}
	addKill := func(it ir3.Item) {
		if v, ok := ir3.IsVariable(it); ok {
			s.Kill.Add(v.Name)
		}
	}

	switch x := in.(type) {
	case ir3.Assign:
		addGen(x.Src)
		addKill(x.Dst)
	case ir3.BinOp:
		addGen(x.L)
		addGen(x.R)
		addKill(x.Dst)
	case ir3.CmpOp:
		addGen(x.L)
		addGen(x.R)
		addKill(x.Dst)
	case ir3.Load:
		addGen(x.Addr)
		addKill(x.Dst)
	case ir3.Store:
		addGen(x.Addr)
		addGen(x.Src)
	case ir3.Ret:
		if x.Val != nil {
			addGen(x.Val)
		}
	case ir3.LabelDef, ir3.Branch:
		// no gen/kill
	case ir3.CondBranch:
		addGen(x.Cond)
	case ir3.Call:
		genCall(&s, x, addGen)
	case ir3.CallAssign:
		genCall(&s, x.Call, addGen)
		addKill(x.Dst)
	}

	return s
}

func genCall(s *Set, c ir3.Call, addGen func(ir3.Item)) {
	if c.Builtin == "" {
		if v, ok := ir3.IsVariable(c.Callee); ok {
			s.Gen.Add(v.Name)
		}
	}
	for _, a := range c.Args {
		addGen(a)
	}
}

func successors(fn *ir3.Function, labels map[string]int, i int) []int {
	switch x := fn.Instrs[i].(type) {
	case ir3.Ret:
		return nil
	case ir3.Branch:
		idx, ok := labels[x.Label.Name]
		if !ok {
			return nil
		}
		return []int{idx}
	case ir3.CondBranch:
		idx, ok := labels[x.Label.Name]
		succ := []int{}
		if ok {
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

func fixpoint(fn *ir3.Function, res Result) error {
	// validate label targets up front so the dataflow loop never indexes
	// a missing entry.
	for i, in := range fn.Instrs {
		var target string
		switch x := in.(type) {
		case ir3.Branch:
			target = x.Label.Name
		case ir3.CondBranch:
			target = x.Label.Name
		default:
			continue
		}
		if _, ok := res.Labels[target]; !ok {
			return errors.New("live3: function %q instruction %d branches to undefined label %q", fn.Name, i, target)
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
