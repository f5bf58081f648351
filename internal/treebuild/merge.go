package treebuild

import (
	"github.com/l3bridge/l3c/internal/ir3"
	"github.com/l3bridge/l3c/internal/live3"
	"github.com/l3bridge/l3c/internal/strset"
)

// mergeContext repeatedly scans adjacent node pairs (T2, T1) in textual
// order and folds T2 into T1 wherever it is liveness-safe to do so,
// restarting the scan one step back after every successful merge so a
// chain of producers collapses in one pass.
func mergeContext(nodes []Node, lives []live3.Set) []Node {
	changed := true
	for changed {
		changed = false

		for j := 1; j < len(nodes); j++ {
			t2, t1 := j-1, j

			merged, mergedLive, ok := tryMergePair(nodes[t2], nodes[t1], lives[t2], lives[t1])
			if !ok {
				continue
			}

			nodes[t1] = merged
			lives[t1] = mergedLive
			nodes = append(nodes[:t2], nodes[t2+1:]...)
			lives = append(lives[:t2], lives[t2+1:]...)
			changed = true
			j--
		}
	}

	return nodes
}

func tryMergePair(n2, n1 Node, l2, l1 live3.Set) (Node, live3.Set, bool) {
	t2n, ok := n2.(TreeNode)
	if !ok {
		return nil, live3.Set{}, false
	}
	t1n, ok := n1.(TreeNode)
	if !ok {
		return nil, live3.Set{}, false
	}

	v, ok := findDefUseVar(l2, l1)
	if !ok {
		return nil, live3.Set{}, false
	}
	if l1.Out.Has(v) {
		return nil, live3.Set{}, false
	}
	if !l2.Out.Equal(l1.In) {
		return nil, live3.Set{}, false
	}

	defVar, ok := treeDefinesVar(t2n.Tree)
	if !ok || defVar != v {
		return nil, live3.Set{}, false
	}
	if !treeUsesVar(t1n.Tree, v) {
		return nil, live3.Set{}, false
	}

	assignT2, ok := t2n.Tree.(Assign)
	if !ok {
		return nil, live3.Set{}, false
	}

	merged := substituteUsesOfVar(t1n.Tree, v, assignT2.Src)
	mergedLive := mergeLiveness(l2, l1)

	return TreeNode{Tree: merged}, mergedLive, true
}

// findDefUseVar looks for a variable T2 kills that T1 generates: the
// producer/consumer pair tree merging exists to coalesce.
func findDefUseVar(l2, l1 live3.Set) (string, bool) {
	for _, v := range l2.Kill.Sorted() {
		if l1.Gen.Has(v) {
			return v, true
		}
	}
	return "", false
}

func mergeLiveness(l2, l1 live3.Set) live3.Set {
	var m live3.Set

	m.Kill = l2.Kill.Clone()
	m.Kill.AddAll(l1.Kill)

	m.Gen = l1.Gen.Clone()
	for _, v := range l2.Gen.Sorted() {
		if !l1.Kill.Has(v) {
			m.Gen.Add(v)
		}
	}

	m.Out = l1.Out.Clone()

	outMinusKill := strset.Set{}
	for _, v := range m.Out.Sorted() {
		if !m.Kill.Has(v) {
			outMinusKill.Add(v)
		}
	}

	m.In = m.Gen.Clone()
	m.In.AddAll(outMinusKill)

	return m
}

func leafVar(l Leaf) (string, bool) {
	v, ok := l.Item.(ir3.Variable)
	if !ok {
		return "", false
	}
	return v.Name, true
}

func treeDefinesVar(t Tree) (string, bool) {
	a, ok := t.(Assign)
	if !ok {
		return "", false
	}
	return leafVar(a.Dst)
}

func treeUsesVar(t Tree, v string) bool {
	if t == nil {
		return false
	}
	switch x := t.(type) {
	case Leaf:
		name, ok := leafVar(x)
		return ok && name == v
	case Assign:
		return treeUsesVar(x.Src, v)
	case BinOp:
		return treeUsesVar(x.L, v) || treeUsesVar(x.R, v)
	case Cmp:
		return treeUsesVar(x.L, v) || treeUsesVar(x.R, v)
	case Load:
		return treeUsesVar(x.Addr, v)
	case Store:
		return treeUsesVar(x.Addr, v) || treeUsesVar(x.Src, v)
	case Return:
		return treeUsesVar(x.Val, v)
	case Break:
		return treeUsesVar(x.Cond, v)
	default:
		return false
	}
}

func cloneTree(t Tree) Tree {
	switch x := t.(type) {
	case nil:
		return nil
	case Leaf:
		return x
	case Assign:
		return Assign{Dst: x.Dst, Src: cloneTree(x.Src)}
	case BinOp:
		return BinOp{Op: x.Op, L: cloneTree(x.L), R: cloneTree(x.R)}
	case Cmp:
		return Cmp{Cmp: x.Cmp, L: cloneTree(x.L), R: cloneTree(x.R)}
	case Load:
		return Load{Dst: x.Dst, Addr: cloneTree(x.Addr)}
	case Store:
		return Store{Addr: cloneTree(x.Addr), Src: cloneTree(x.Src)}
	case Return:
		return Return{Val: cloneTree(x.Val)}
	case Break:
		return Break{Label: x.Label, Cond: cloneTree(x.Cond)}
	default:
		return x
	}
}

// substituteVarInSubtree returns a copy of t with every Leaf(var==name)
// occurrence replaced by a fresh clone of replacement.
func substituteVarInSubtree(t Tree, name string, replacement Tree) Tree {
	if t == nil {
		return nil
	}
	if l, ok := t.(Leaf); ok {
		if v, ok := leafVar(l); ok && v == name {
			return cloneTree(replacement)
		}
		return l
	}

	switch x := t.(type) {
	case Assign:
		return Assign{Dst: x.Dst, Src: substituteVarInSubtree(x.Src, name, replacement)}
	case BinOp:
		return BinOp{Op: x.Op, L: substituteVarInSubtree(x.L, name, replacement), R: substituteVarInSubtree(x.R, name, replacement)}
	case Cmp:
		return Cmp{Cmp: x.Cmp, L: substituteVarInSubtree(x.L, name, replacement), R: substituteVarInSubtree(x.R, name, replacement)}
	case Load:
		return Load{Dst: x.Dst, Addr: substituteVarInSubtree(x.Addr, name, replacement)}
	case Store:
		return Store{Addr: substituteVarInSubtree(x.Addr, name, replacement), Src: substituteVarInSubtree(x.Src, name, replacement)}
	case Return:
		return Return{Val: substituteVarInSubtree(x.Val, name, replacement)}
	case Break:
		return Break{Label: x.Label, Cond: substituteVarInSubtree(x.Cond, name, replacement)}
	default:
		return t
	}
}

// substituteUsesOfVar substitutes only within root's right-hand side when
// root is itself an Assign (its Dst leaf must never be touched), and
// throughout the whole tree otherwise.
func substituteUsesOfVar(root Tree, name string, replacement Tree) Tree {
	if a, ok := root.(Assign); ok {
		return Assign{Dst: a.Dst, Src: substituteVarInSubtree(a.Src, name, replacement)}
	}
	return substituteVarInSubtree(root, name, replacement)
}
