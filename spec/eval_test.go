package spec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvalBinary(t *testing.T) {
	type testCase struct {
		Op   BinaryOp
		A, B float32
		Out  float32
	}
	tcs := []testCase{
		{Add, 1, 2, 3},
		{Sub, 1, 2, -1},
		{Mul, 3, 4, 12},
		{Div, 1, 4, 0.25},
		{Rem, 7, 3, 1},
		{Rem, -7, 3, -1},
		{Pow, 2, 10, 1024},
		{Min, 2, -3, -3},
		{Max, 2, -3, 2},
		{Log, 8, 2, 3},
		{Atan2, 0, 1, 0},

		{And, 1, 1, True},
		{And, 1, 0, False},
		{And, -1, -1, True},
		{Or, 0, 1, True},
		{Or, 0, 0, False},
		{Eq, 2, 2, True},
		{Eq, 2, 3, False},
		{NEq, 2, 3, True},
		{Lt, 2, 3, True},
		{Lt, 3, 3, False},
		{LEq, 3, 3, True},
		{Gt, 3, 2, True},
		{Gt, 3, 3, False},
		{GEq, 3, 3, True},
		{GEq, 2, 3, False},
	}
	for _, tc := range tcs {
		require.Equal(t, tc.Out, EvalBinary(tc.Op, tc.A, tc.B), "%v(%v, %v)", tc.Op, tc.A, tc.B)
	}
}

func TestEvalUnary(t *testing.T) {
	require.Equal(t, False, EvalUnary(Not, 1))
	require.Equal(t, True, EvalUnary(Not, 0))
	require.Equal(t, True, EvalUnary(Not, -5))
	require.True(t, math.IsNaN(float64(EvalUnary(Not, float32(math.NaN())))))
	require.Equal(t, float32(3), EvalUnary(Abs, -3))
	require.Equal(t, float32(2), EvalUnary(Ceil, 1.2))
	require.Equal(t, float32(1), EvalUnary(Floor, 1.8))
	require.Equal(t, float32(0), EvalUnary(Sin, 0))
	require.Equal(t, float32(1), EvalUnary(Cos, 0))
	require.Equal(t, float32(0), EvalUnary(Ln, 1))
}

func TestLogNegative(t *testing.T) {
	require.True(t, math.IsNaN(float64(EvalBinary(Log, -1, 2))))
}

func TestSelectIndex(t *testing.T) {
	type testCase struct {
		Sel float32
		N   int
		Out int
	}
	tcs := []testCase{
		{0, 3, 0},
		{1.9, 3, 1},
		{2, 3, 2},
		{7, 3, 2},
		{-4, 3, 0},
		{float32(math.NaN()), 3, 0},
	}
	for _, tc := range tcs {
		require.Equal(t, tc.Out, SelectIndex(tc.Sel, tc.N), "select(%v, %d)", tc.Sel, tc.N)
	}
}

func TestParseOp(t *testing.T) {
	for _, op := range AllBinary() {
		op2, ok := ParseBinaryOp(op.String())
		require.True(t, ok)
		require.Equal(t, op, op2)
	}
	for _, op := range AllUnary() {
		op2, ok := ParseUnaryOp(op.String())
		require.True(t, ok)
		require.Equal(t, op, op2)
	}
	_, ok := ParseBinaryOp("nope")
	require.False(t, ok)
	op, ok := ParseBinaryOp("add")
	require.True(t, ok)
	require.Equal(t, Add, op)
}
