package opt

import (
	"fmt"

	"elementlang.org/numc/instr"
)

// CSE performs common subexpression elimination.
// Every compound instruction is wrapped in an instr.Cached with a unique ordinal.
// Structurally equal instructions share an ordinal, including across calls to Extract,
// so a single CSE should be used for all the outputs of a function.
type CSE struct {
	byFP  map[instr.Fingerprint]*instr.Cached
	memo  map[Node]Node
	insts []*instr.Cached
}

func NewCSE() *CSE {
	return &CSE{
		byFP: make(map[instr.Fingerprint]*instr.Cached),
		memo: make(map[Node]Node),
	}
}

// Extract returns x with every compound sub instruction replaced by a cached one.
// The ordinals are assigned children first, so an instruction only refers to instructions with smaller ordinals.
func (c *CSE) Extract(x Node) Node {
	if y, exists := c.memo[x]; exists {
		return y
	}
	y := c.extract(x)
	c.memo[x] = y
	return y
}

// ExtractAll calls Extract on each of xs
func (c *CSE) ExtractAll(xs []Node) []Node {
	ret := make([]Node, len(xs))
	for i := range xs {
		ret[i] = c.Extract(xs[i])
	}
	return ret
}

// Instructions returns the cached instructions in ordinal order.
func (c *CSE) Instructions() []*instr.Cached {
	return append([]*instr.Cached{}, c.insts...)
}

// Len returns the number of distinct cached instructions
func (c *CSE) Len() int {
	return len(c.insts)
}

func (c *CSE) extract(x Node) Node {
	switch x := x.(type) {
	case *instr.Constant, *instr.Input, *instr.State, *instr.Cached:
		return x
	case *instr.Unary:
		return c.cache(instr.NewUnary(x.Op, c.Extract(x.X)))
	case *instr.Binary:
		return c.cache(instr.NewBinary(x.Op, c.Extract(x.A), c.Extract(x.B)))
	case *instr.Mux:
		sel := c.Extract(x.Selector)
		return c.cache(instr.NewMux(sel, c.ExtractAll(x.Operands)...))
	case *instr.GroupElement:
		g := c.Extract(x.Group).(instr.Group)
		return c.cache(instr.NewElement(g, x.Index))
	case *instr.BasicGroup:
		return instr.NewBasicGroup(c.ExtractAll(x.Items)...)
	case *instr.Loop:
		initial := c.ExtractAll(initialValues(x.State))
		return x.With(initial, c.Extract(x.Condition), c.ExtractAll(x.Body))
	case *instr.Persist:
		initial := c.ExtractAll(initialValues(x.State))
		return x.With(initial, c.ExtractAll(x.NewValue))
	default:
		panic(fmt.Sprintf("unknown instruction %T", x))
	}
}

func (c *CSE) cache(x Node) *instr.Cached {
	fp := x.Fingerprint()
	if y, exists := c.byFP[fp]; exists {
		return y
	}
	y := instr.NewCached(len(c.insts), x)
	c.byFP[fp] = y
	c.insts = append(c.insts, y)
	return y
}

// Optimize folds and then extracts common subexpressions from roots.
func Optimize(c *CSE, roots []Node) []Node {
	return c.ExtractAll(FoldAll(roots))
}

func initialValues(xs []*instr.State) []Node {
	ret := make([]Node, len(xs))
	for i := range xs {
		ret[i] = xs[i].Initial
	}
	return ret
}
