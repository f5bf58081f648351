// Package treebuild turns a flat L3 instruction list into the
// context-partitioned, tree-shaped form the tiler consumes: straight-line
// instructions become small expression Trees, while labels, calls, and
// call-assignments stay as raw Nodes that never participate in tiling.
//
// Once a function is partitioned, adjacent producer/consumer trees within
// the same context are coalesced by Build's merge pass whenever doing so
// is liveness-safe, shrinking the number of temporaries that ever need a
// register.
package treebuild

import (
	"github.com/l3bridge/l3c/internal/ir3"
	"github.com/l3bridge/l3c/internal/live3"
)

// Tree is the closed sum of expression-tree node kinds. Dst positions
// (the variable being defined) are always a Leaf; everywhere else a
// Tree can be a Leaf or a nested expression, since tree merging clones a
// producer's right-hand side into any Leaf occurrence of the variable it
// defines, regardless of how deep that occurrence sits.
type Tree interface{ tree() }

type (
	Leaf struct{ Item ir3.Item }

	Assign struct {
		Dst Leaf
		Src Tree
	}

	BinOp struct {
		Op   ir3.OP
		L, R Tree
	}

	Cmp struct {
		Cmp  ir3.CMP
		L, R Tree
	}

	Load struct {
		Dst  Leaf
		Addr Tree
	}

	Store struct {
		Addr, Src Tree
	}

	// Return models both bare `return` (Val == nil) and `return v`.
	Return struct{ Val Tree }

	// Break models both `br :L` (Cond == nil) and `br t :L`.
	Break struct {
		Label Leaf
		Cond  Tree
	}
)

func (Leaf) tree()   {}
func (Assign) tree() {}
func (BinOp) tree()  {}
func (Cmp) tree()    {}
func (Load) tree()   {}
func (Store) tree()  {}
func (Return) tree() {}
func (Break) tree()  {}

// Node is the closed sum of per-context entries: a tiling-ready Tree, or
// one of the three raw instruction kinds tiling handles directly.
type Node interface{ node() }

type (
	TreeNode       struct{ Tree Tree }
	LabelNode      struct{ Label ir3.Label }
	CallNode       struct{ Call ir3.Call }
	CallAssignNode struct {
		Dst  ir3.Variable
		Call ir3.Call
	}
)

func (TreeNode) node()       {}
func (LabelNode) node()      {}
func (CallNode) node()       {}
func (CallAssignNode) node() {}

type Context struct {
	Nodes []Node
}

type Function struct {
	Name   string
	Params []ir3.Variable
	Contexts []Context
}

// Build partitions fn into contexts, builds a tree per straight-line
// instruction, and then coalesces producer/consumer pairs wherever
// merging is liveness-safe. live must be the result of running live3 over
// fn beforehand; Build does not recompute it.
func Build(fn *ir3.Function, live live3.Result) *Function {
	out, liveIdx := partition(fn)

	for ci := range out.Contexts {
		lives := make([]live3.Set, len(out.Contexts[ci].Nodes))
		for ni := range lives {
			lives[ni] = live.Sets[liveIdx[ci][ni]]
		}
		out.Contexts[ci].Nodes = mergeContext(out.Contexts[ci].Nodes, lives)
	}

	return out
}

// partition walks fn's flat instruction list into contexts per spec
// §4.2: a new context starts before a label and after any call,
// call-assign, label, return, or branch.
func partition(fn *ir3.Function) (*Function, [][]int) {
	out := &Function{Name: fn.Name, Params: fn.Params}

	var curNodes []Node
	var curIdx []int
	var liveIdx [][]int

	flush := func() {
		if len(curNodes) > 0 {
			out.Contexts = append(out.Contexts, Context{Nodes: curNodes})
			liveIdx = append(liveIdx, curIdx)
		}
		curNodes = nil
		curIdx = nil
	}
	push := func(n Node, idx int) {
		curNodes = append(curNodes, n)
		curIdx = append(curIdx, idx)
	}

	for i, in := range fn.Instrs {
		switch x := in.(type) {
		case ir3.LabelDef:
			flush()
			push(LabelNode{Label: x.Label}, i)
			flush()
		case ir3.Call:
			push(CallNode{Call: x}, i)
			flush()
		case ir3.CallAssign:
			push(CallAssignNode{Dst: x.Dst, Call: x.Call}, i)
			flush()
		case ir3.Ret:
			push(TreeNode{Tree: makeReturn(x)}, i)
			flush()
		case ir3.Branch:
			push(TreeNode{Tree: Break{Label: Leaf{Item: x.Label}}}, i)
			flush()
		case ir3.CondBranch:
			push(TreeNode{Tree: Break{Label: Leaf{Item: x.Label}, Cond: Leaf{Item: x.Cond}}}, i)
			flush()
		default:
			push(TreeNode{Tree: makeTree(x)}, i)
		}
	}
	flush()

	return out, liveIdx
}

func makeTree(in ir3.Instr) Tree {
	switch x := in.(type) {
	case ir3.Assign:
		return Assign{Dst: Leaf{x.Dst}, Src: Leaf{x.Src}}
	case ir3.BinOp:
		return Assign{Dst: Leaf{x.Dst}, Src: BinOp{Op: x.Op, L: Leaf{x.L}, R: Leaf{x.R}}}
	case ir3.CmpOp:
		return Assign{Dst: Leaf{x.Dst}, Src: Cmp{Cmp: x.Cmp, L: Leaf{x.L}, R: Leaf{x.R}}}
	case ir3.Load:
		return Load{Dst: Leaf{x.Dst}, Addr: Leaf{x.Addr}}
	case ir3.Store:
		return Store{Addr: Leaf{x.Addr}, Src: Leaf{x.Src}}
	default:
		panic("treebuild: unreachable instruction kind")
	}
}

func makeReturn(x ir3.Ret) Tree {
	if x.Val == nil {
		return Return{}
	}
	return Return{Val: Leaf{x.Val}}
}
