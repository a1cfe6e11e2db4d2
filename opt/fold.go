// package opt contains the optimization passes over instruction graphs.
package opt

import (
	"fmt"
	"math"

	"elementlang.org/numc/instr"
	"elementlang.org/numc/spec"
)

type Node = instr.Node

// Folder evaluates constant parts of instruction graphs and applies algebraic identities.
// A Folder remembers every node it has folded, so shared sub graphs are only folded once.
type Folder struct {
	memo map[Node]Node
}

func NewFolder() *Folder {
	return &Folder{memo: make(map[Node]Node)}
}

// Fold folds a single instruction with a new Folder
func Fold(x Node) Node {
	return NewFolder().Fold(x)
}

// FoldAll folds each of xs with a shared Folder, returning a new slice.
func FoldAll(xs []Node) []Node {
	f := NewFolder()
	ret := make([]Node, len(xs))
	for i := range xs {
		ret[i] = f.Fold(xs[i])
	}
	return ret
}

// Fold returns an instruction equivalent to x.
func (f *Folder) Fold(x Node) Node {
	if y, exists := f.memo[x]; exists {
		return y
	}
	y := f.fold(x)
	f.memo[x] = y
	return y
}

func (f *Folder) fold(x Node) Node {
	switch x := x.(type) {
	case *instr.Constant, *instr.Input, *instr.State:
		return x
	case *instr.Unary:
		a := f.Fold(x.X)
		if c, ok := instr.ConstValue(a); ok {
			return instr.Const(spec.EvalUnary(x.Op, c))
		}
		if a == x.X {
			return x
		}
		return instr.NewUnary(x.Op, a)
	case *instr.Binary:
		a, b := f.Fold(x.A), f.Fold(x.B)
		if y := foldBinary(x.Op, a, b); y != nil {
			return y
		}
		if a == x.A && b == x.B {
			return x
		}
		return instr.NewBinary(x.Op, a, b)
	case *instr.Mux:
		return f.foldMux(x)
	case *instr.Cached:
		v := f.Fold(x.Value)
		if v == x.Value {
			return x
		}
		return instr.NewCached(x.Ordinal, v)
	case *instr.GroupElement:
		return f.foldElement(x)
	case instr.Group:
		return f.foldGroup(x)
	default:
		panic(fmt.Sprintf("unknown instruction %T", x))
	}
}

// foldBinary returns a simpler instruction for op(a, b), or nil if there is none.
func foldBinary(op spec.BinaryOp, a, b Node) Node {
	cA, aConst := instr.ConstValue(a)
	cB, bConst := instr.ConstValue(b)
	if aConst && bConst {
		return instr.Const(spec.EvalBinary(op, cA, cB))
	}
	if (aConst && isNaN(cA)) || (bConst && isNaN(cB)) {
		return instr.NaN()
	}
	is := func(n Node, x float32) bool { return instr.IsConst(n, x) }
	switch op {
	case spec.Add:
		if is(a, 0) {
			return b
		}
		if is(b, 0) {
			return a
		}
		// (x - y) + y => x
		if s, ok := b.(*instr.Binary); ok && s.Op == spec.Sub && instr.Equal(s.B, a) {
			return s.A
		}
		if s, ok := a.(*instr.Binary); ok && s.Op == spec.Sub && instr.Equal(s.B, b) {
			return s.A
		}
	case spec.Sub:
		if is(b, 0) {
			return a
		}
		if instr.Equal(a, b) {
			return instr.Zero
		}
		// (x + y) - y => x, (y + x) - y => x
		if s, ok := a.(*instr.Binary); ok && s.Op == spec.Add {
			if instr.Equal(s.B, b) {
				return s.A
			}
			if instr.Equal(s.A, b) {
				return s.B
			}
		}
	case spec.Mul:
		if is(a, 0) || is(b, 0) {
			return instr.Zero
		}
		if is(a, 1) {
			return b
		}
		if is(b, 1) {
			return a
		}
	case spec.Div:
		if is(b, 1) {
			return a
		}
		if instr.Equal(a, b) {
			return instr.One
		}
		if bConst {
			inv := instr.Const(1 / cB)
			if y := foldBinary(spec.Mul, a, inv); y != nil {
				return y
			}
			return instr.NewBinary(spec.Mul, a, inv)
		}
	case spec.Rem:
		if is(a, 0) || instr.Equal(a, b) {
			return instr.Zero
		}
	case spec.Pow:
		if is(b, 0) || is(a, 1) {
			return instr.One
		}
		if is(a, 0) {
			return instr.Zero
		}
		if is(b, 1) {
			return a
		}
		if is(b, 2) {
			return instr.NewBinary(spec.Mul, a, a)
		}
	case spec.Log:
		// log of 1 is 0 in any base
		if is(a, 1) {
			return instr.Zero
		}
		if aConst && cA < 0 {
			return instr.NaN()
		}
	}
	return nil
}

func (f *Folder) foldMux(x *instr.Mux) Node {
	sel := f.Fold(x.Selector)
	changed := sel != x.Selector
	ops := make([]Node, len(x.Operands))
	for i := range x.Operands {
		ops[i] = f.Fold(x.Operands[i])
		changed = changed || ops[i] != x.Operands[i]
	}
	allSame := true
	for _, op := range ops[1:] {
		if !instr.Equal(op, ops[0]) {
			allSame = false
			break
		}
	}
	if allSame {
		return ops[0]
	}
	if c, ok := instr.ConstValue(sel); ok {
		return ops[spec.SelectIndex(c, len(ops))]
	}
	if !changed {
		return x
	}
	return instr.NewMux(sel, ops...)
}

func (f *Folder) foldElement(x *instr.GroupElement) Node {
	switch g := x.Group.(type) {
	case *instr.BasicGroup:
		return f.Fold(g.Items[x.Index])
	case *instr.Loop:
		// the loop never runs
		if instr.IsConst(f.Fold(g.Condition), 0) {
			return f.Fold(g.State[x.Index].Initial)
		}
		// the element does not change between iterations
		if !usesScope(g.Body[x.Index], g.Scope()) {
			return f.Fold(g.Body[x.Index])
		}
		g2 := f.Fold(g).(*instr.Loop)
		if g2 == g {
			return x
		}
		return instr.NewElement(g2, x.Index)
	default:
		g2 := f.Fold(g).(instr.Group)
		if g2 == g {
			return x
		}
		return instr.NewElement(g2, x.Index)
	}
}

func (f *Folder) foldGroup(g instr.Group) Node {
	switch g := g.(type) {
	case *instr.BasicGroup:
		items, changed := f.foldList(g.Items)
		if !changed {
			return g
		}
		return instr.NewBasicGroup(items...)
	case *instr.Loop:
		initial, c1 := f.foldInitial(g.State)
		cond := f.Fold(g.Condition)
		body, c2 := f.foldList(g.Body)
		if !c1 && !c2 && cond == g.Condition {
			return g
		}
		return g.With(initial, cond, body)
	case *instr.Persist:
		initial, c1 := f.foldInitial(g.State)
		nv, c2 := f.foldList(g.NewValue)
		if !c1 && !c2 {
			return g
		}
		return g.With(initial, nv)
	default:
		panic(fmt.Sprintf("unknown group %T", g))
	}
}

func (f *Folder) foldList(xs []Node) ([]Node, bool) {
	ret := make([]Node, len(xs))
	var changed bool
	for i := range xs {
		ret[i] = f.Fold(xs[i])
		changed = changed || ret[i] != xs[i]
	}
	return ret, changed
}

func (f *Folder) foldInitial(state []*instr.State) ([]Node, bool) {
	return f.foldList(initialValues(state))
}

// usesScope returns true if x depends on a State with the scope
func usesScope(x Node, scope int) bool {
	for _, n := range append(instr.AllDependent(x), x) {
		if s, ok := n.(*instr.State); ok && s.Scope == scope {
			return true
		}
	}
	return false
}

func isNaN(x float32) bool {
	return math.IsNaN(float64(x))
}
