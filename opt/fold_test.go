package opt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"elementlang.org/numc/instr"
	"elementlang.org/numc/spec"
)

var (
	inA = instr.NewInput(0, "a")
	inB = instr.NewInput(1, "b")
)

func bin(op spec.BinaryOp, a, b Node) Node {
	return instr.NewBinary(op, a, b)
}

func c(x float32) Node {
	return instr.Const(x)
}

func TestFoldIdentities(t *testing.T) {
	a := inA
	type testCase struct {
		In  Node
		Out Node
	}
	tcs := []testCase{
		{bin(spec.Add, c(2), c(3)), c(5)},
		{bin(spec.Add, a, c(0)), a},
		{bin(spec.Add, c(0), a), a},
		{bin(spec.Sub, a, c(0)), a},
		{bin(spec.Sub, a, a), c(0)},
		{bin(spec.Mul, a, c(0)), c(0)},
		{bin(spec.Mul, c(0), a), c(0)},
		{bin(spec.Mul, a, c(1)), a},
		{bin(spec.Mul, c(1), a), a},
		{bin(spec.Div, a, c(1)), a},
		{bin(spec.Div, a, a), c(1)},
		{bin(spec.Div, a, c(4)), bin(spec.Mul, a, c(0.25))},
		{bin(spec.Rem, a, a), c(0)},
		{bin(spec.Rem, c(0), a), c(0)},
		{bin(spec.Pow, a, c(0)), c(1)},
		{bin(spec.Pow, c(1), a), c(1)},
		{bin(spec.Pow, a, c(1)), a},
		{bin(spec.Pow, c(0), a), c(0)},
		{bin(spec.Pow, a, c(2)), bin(spec.Mul, a, a)},
		{bin(spec.Log, c(1), a), c(0)},
		{bin(spec.Add, a, instr.NaN()), instr.NaN()},
		{bin(spec.Mul, instr.NaN(), a), instr.NaN()},
		{instr.NewUnary(spec.Sin, c(0)), c(0)},
		{instr.NewUnary(spec.Not, bin(spec.Lt, c(1), c(2))), c(0)},
		// nested
		{bin(spec.Mul, bin(spec.Sub, a, a), inB), c(0)},
		{bin(spec.Add, a, bin(spec.Mul, c(2), c(3))), bin(spec.Add, a, c(6))},
	}
	for i, tc := range tcs {
		actual := Fold(tc.In)
		require.True(t, instr.Equal(tc.Out, actual), "#%d: %v -> %v, expected %v", i, tc.In, actual, tc.Out)
	}
}

func TestFoldCancel(t *testing.T) {
	a, b := inA, inB
	a2 := bin(spec.Mul, a, c(2))
	// (a * 2 + b) - b
	x := bin(spec.Sub, bin(spec.Add, a2, b), b)
	require.True(t, instr.Equal(a2, Fold(x)), "%v", Fold(x))
	// a * 2 + (b - b)
	y := bin(spec.Add, a2, bin(spec.Sub, b, b))
	require.True(t, instr.Equal(a2, Fold(y)), "%v", Fold(y))
	// (a * 2 - b) + b
	z := bin(spec.Add, bin(spec.Sub, a2, b), b)
	require.True(t, instr.Equal(a2, Fold(z)), "%v", Fold(z))
}

func TestFoldConstantSound(t *testing.T) {
	vals := []float32{0, 1, -1, 2, 0.5, -3.25, 100, float32(math.NaN()), float32(math.Inf(1))}
	for _, op := range spec.AllBinary() {
		for _, x := range vals {
			for _, y := range vals {
				expected := instr.Const(spec.EvalBinary(op, x, y))
				actual := Fold(bin(op, c(x), c(y)))
				require.True(t, instr.Equal(expected, actual), "%v(%v, %v) = %v, expected %v", op, x, y, actual, expected)
			}
		}
	}
	for _, op := range spec.AllUnary() {
		for _, x := range vals {
			expected := instr.Const(spec.EvalUnary(op, x))
			actual := Fold(instr.NewUnary(op, c(x)))
			require.True(t, instr.Equal(expected, actual), "%v(%v)", op, x)
		}
	}
}

func TestFoldIdempotent(t *testing.T) {
	a, b := inA, inB
	l := countTo(t, a)
	xs := []Node{
		bin(spec.Div, a, c(8)),
		bin(spec.Pow, bin(spec.Add, a, c(0)), c(2)),
		bin(spec.Sub, bin(spec.Add, bin(spec.Mul, a, c(2)), b), b),
		instr.NewMux(a, b, bin(spec.Add, c(1), c(1)), a),
		instr.NewMux(c(1), a, b),
		instr.NewElement(l, 0),
		instr.NewElement(l, 1),
		instr.NewUnary(spec.Cos, bin(spec.Max, a, bin(spec.Min, c(1), c(2)))),
	}
	for i, x := range xs {
		y := Fold(x)
		z := Fold(y)
		require.True(t, instr.Equal(y, z), "#%d: %v then %v", i, y, z)
	}
}

func TestFoldMux(t *testing.T) {
	a, b := inA, inB
	type testCase struct {
		In  Node
		Out Node
	}
	tcs := []testCase{
		{instr.NewMux(a, b, b), b},
		{instr.NewMux(a, b, bin(spec.Add, b, c(0))), b},
		{instr.NewMux(c(0), a, b), a},
		{instr.NewMux(c(1), a, b), b},
		{instr.NewMux(c(1.9), a, b), b},
		{instr.NewMux(c(5), a, b), b},
		{instr.NewMux(c(-1), a, b), a},
		{instr.NewMux(instr.NaN(), a, b), a},
		{instr.NewMux(a, bin(spec.Add, c(1), c(1)), b), instr.NewMux(a, c(2), b)},
	}
	for i, tc := range tcs {
		actual := Fold(tc.In)
		require.True(t, instr.Equal(tc.Out, actual), "#%d: %v -> %v, expected %v", i, tc.In, actual, tc.Out)
	}
}

func TestFoldGroups(t *testing.T) {
	a, b := inA, inB
	g := instr.NewBasicGroup(bin(spec.Add, a, c(0)), b)
	require.Equal(t, Node(a), Fold(instr.NewElement(g, 0)))

	t.Run("Hoist", func(t *testing.T) {
		l, err := instr.NewLoop([]Node{c(0), c(0)},
			func(s []Node) (Node, error) { return bin(spec.Lt, s[0], a), nil },
			func(s []Node) ([]Node, error) {
				return []Node{bin(spec.Add, s[0], c(1)), bin(spec.Add, b, c(1))}, nil
			},
		)
		require.NoError(t, err)
		require.True(t, instr.Equal(bin(spec.Add, b, c(1)), Fold(instr.NewElement(l, 1))))
		_, isElem := Fold(instr.NewElement(l, 0)).(*instr.GroupElement)
		require.True(t, isElem)
	})
	t.Run("NeverRuns", func(t *testing.T) {
		l, err := instr.NewLoop([]Node{a},
			func(s []Node) (Node, error) { return bin(spec.Lt, c(2), c(1)), nil },
			func(s []Node) ([]Node, error) { return []Node{bin(spec.Add, s[0], c(1))}, nil },
		)
		require.NoError(t, err)
		require.Equal(t, Node(a), Fold(instr.NewElement(l, 0)))
	})
	t.Run("NeverRunsInvariant", func(t *testing.T) {
		// the body element is loop invariant, but the loop never runs so the state keeps its initial value
		l, err := instr.NewLoop([]Node{c(7)},
			func(s []Node) (Node, error) { return instr.False(), nil },
			func(s []Node) ([]Node, error) { return []Node{c(5)}, nil },
		)
		require.NoError(t, err)
		require.True(t, instr.Equal(c(7), Fold(instr.NewElement(l, 0))))

		l, err = instr.NewLoop([]Node{bin(spec.Add, c(3), c(4))},
			func(s []Node) (Node, error) { return bin(spec.Gt, c(1), c(2)), nil },
			func(s []Node) ([]Node, error) { return []Node{a}, nil },
		)
		require.NoError(t, err)
		require.True(t, instr.Equal(c(7), Fold(instr.NewElement(l, 0))))
	})
	t.Run("Refold", func(t *testing.T) {
		l, err := instr.NewLoop([]Node{bin(spec.Mul, c(3), c(1))},
			func(s []Node) (Node, error) { return bin(spec.Lt, s[0], a), nil },
			func(s []Node) ([]Node, error) { return []Node{bin(spec.Add, s[0], bin(spec.Add, c(1), c(1)))}, nil },
		)
		require.NoError(t, err)
		ge := Fold(instr.NewElement(l, 0)).(*instr.GroupElement)
		l2 := ge.Group.(*instr.Loop)
		require.Equal(t, l.Scope(), l2.Scope())
		require.True(t, instr.Equal(c(3), l2.State[0].Initial))
		require.True(t, instr.Equal(bin(spec.Add, l.State[0], c(2)), l2.Body[0]))
	})
	t.Run("Persist", func(t *testing.T) {
		p, err := instr.NewPersist([]Node{c(0)}, func(s []Node) ([]Node, error) {
			return []Node{bin(spec.Add, s[0], bin(spec.Add, c(1), c(1)))}, nil
		})
		require.NoError(t, err)
		ge := Fold(instr.NewElement(p, 0)).(*instr.GroupElement)
		p2 := ge.Group.(*instr.Persist)
		require.True(t, instr.Equal(bin(spec.Add, p.State[0], c(2)), p2.NewValue[0]))
	})
}

func TestFoldShared(t *testing.T) {
	x := bin(spec.Add, inA, c(0))
	y := bin(spec.Mul, x, x)
	out := FoldAll([]Node{x, y})
	require.Equal(t, Node(inA), out[0])
	require.True(t, instr.Equal(bin(spec.Mul, inA, inA), out[1]))
}

// countTo builds a loop which counts from 0 to n, accumulating the count.
func countTo(t testing.TB, n Node) *instr.Loop {
	l, err := instr.NewLoop([]Node{c(0), c(0)},
		func(s []Node) (Node, error) {
			return bin(spec.Lt, s[0], n), nil
		},
		func(s []Node) ([]Node, error) {
			return []Node{bin(spec.Add, s[0], c(1)), bin(spec.Add, s[1], s[0])}, nil
		},
	)
	require.NoError(t, err)
	return l
}
