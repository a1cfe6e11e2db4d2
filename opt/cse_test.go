package opt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"elementlang.org/numc/instr"
	"elementlang.org/numc/spec"
)

func TestCSELeaves(t *testing.T) {
	cse := NewCSE()
	one := c(1)
	require.Equal(t, Node(inA), cse.Extract(inA))
	require.Equal(t, one, cse.Extract(one))
	cached := instr.NewCached(10, bin(spec.Add, inA, inB))
	require.Equal(t, Node(cached), cse.Extract(cached))
	require.Equal(t, 0, cse.Len())
}

func TestCSEDedup(t *testing.T) {
	a, b := inA, inB
	// distinct nodes with the same structure
	x := bin(spec.Add, a, b)
	y := bin(spec.Mul, bin(spec.Add, a, b), bin(spec.Add, a, b))

	cse := NewCSE()
	outs := cse.ExtractAll([]Node{x, y})
	require.Equal(t, 2, cse.Len())

	c0 := outs[0].(*instr.Cached)
	c1 := outs[1].(*instr.Cached)
	require.Equal(t, 0, c0.Ordinal)
	require.Equal(t, 1, c1.Ordinal)
	mul := c1.Value.(*instr.Binary)
	require.Same(t, c0, mul.A)
	require.Same(t, c0, mul.B)

	// stable across calls
	require.Same(t, c1, cse.Extract(bin(spec.Mul, bin(spec.Add, a, b), bin(spec.Add, a, b))))
	require.Same(t, c0, cse.Extract(x))
	require.Equal(t, 2, cse.Len())
}

func TestCSEOrder(t *testing.T) {
	a, b := inA, inB
	l := countTo(t, a)
	roots := []Node{
		instr.NewUnary(spec.Sin, bin(spec.Mul, bin(spec.Add, a, b), c(3))),
		instr.NewMux(a, bin(spec.Add, a, b), bin(spec.Sub, b, a)),
		instr.NewElement(l, 1),
		bin(spec.Add, instr.NewElement(l, 1), bin(spec.Add, a, b)),
	}
	cse := NewCSE()
	outs := cse.ExtractAll(roots)
	for _, out := range outs {
		_, ok := out.(*instr.Cached)
		require.True(t, ok)
	}
	insts := cse.Instructions()
	for i, inst := range insts {
		require.Equal(t, i, inst.Ordinal)
		for _, dep := range instr.Dependent(inst.Value) {
			if dc, ok := dep.(*instr.Cached); ok {
				require.Less(t, dc.Ordinal, i)
			}
		}
		for j := range insts[:i] {
			require.False(t, instr.Equal(insts[j].Value, inst.Value), "%d and %d are the same", i, j)
		}
	}
	// the group element is cached once
	require.Same(t, outs[2], outs[3].(*instr.Cached).Value.(*instr.Binary).A)
}

func TestOptimize(t *testing.T) {
	a, b := inA, inB
	a2 := bin(spec.Mul, a, c(2))
	cse := NewCSE()
	outs := Optimize(cse, []Node{bin(spec.Sub, bin(spec.Add, a2, b), b)})
	require.Equal(t, 1, cse.Len())
	require.True(t, instr.Equal(a2, outs[0].(*instr.Cached).Value))
}
