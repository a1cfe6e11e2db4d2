package lmnt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"elementlang.org/numc/diag"
	"elementlang.org/numc/instr"
	"elementlang.org/numc/spec"
)

var (
	inA = instr.NewInput(0, "a")
	inB = instr.NewInput(1, "b")
)

func bin(op spec.BinaryOp, a, b instr.Node) instr.Node {
	return instr.NewBinary(op, a, b)
}

func TestRoundTrip(t *testing.T) {
	data, err := Compile("add", 2, []instr.Node{bin(spec.Add, inA, inB)})
	require.NoError(t, err)
	require.Equal(t, "LMNT", string(data[:4]))
	require.Zero(t, len(data)%Alignment)
	require.Equal(t, uint32(DefSize), binary.LittleEndian.Uint32(data[12:]))

	a, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, "add", a.Name)
	require.Equal(t, 2, a.Inputs)
	require.Equal(t, 1, a.Outputs)
	require.Equal(t, 3, a.StackSize)
	require.Equal(t, []Record{{Op: OpAddSS, A: 0, B: 1, Dst: 2}}, a.Code)
	require.Empty(t, a.Constants)

	data2, err := a.Marshal()
	require.NoError(t, err)
	require.Equal(t, data, data2)
}

func TestCancel(t *testing.T) {
	// a * 2 + b - b
	x := bin(spec.Sub, bin(spec.Add, bin(spec.Mul, inA, instr.Const(2)), inB), inB)
	data, err := Compile("f", 2, []instr.Node{x})
	require.NoError(t, err)
	a, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, []Record{{Op: OpMulSS, A: 0, B: 3, Dst: 2}}, a.Code)
	require.Equal(t, []float32{2}, a.Constants)

	out, err := NewVM(a).Run([]float32{5, 100})
	require.NoError(t, err)
	require.Equal(t, []float32{10}, out)
}

func TestOutputCopies(t *testing.T) {
	sum := bin(spec.Add, inA, inB)
	outs := []instr.Node{instr.Const(3), inA, sum, bin(spec.Add, inA, inB)}
	data, err := Compile("copies", 2, outs)
	require.NoError(t, err)
	a, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, 4, a.Outputs)
	// one add, and three copies
	require.Len(t, a.Code, 4)
	require.Equal(t, OpAddSS, a.Code[0].Op)
	for _, r := range a.Code[1:] {
		require.Equal(t, OpAssignSS, r.Op)
	}
	out, err := NewVM(a).Run([]float32{1, 2})
	require.NoError(t, err)
	require.Equal(t, []float32{3, 1, 3, 3}, out)
}

func TestSharedSubexpression(t *testing.T) {
	sum := func() instr.Node { return bin(spec.Add, inA, inB) }
	outs := []instr.Node{
		bin(spec.Mul, sum(), sum()),
		instr.NewUnary(spec.Sin, sum()),
	}
	data, err := Compile("shared", 2, outs)
	require.NoError(t, err)
	a, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, a.Code, 3)

	out, err := NewVM(a).Run([]float32{1, 2})
	require.NoError(t, err)
	require.Equal(t, []float32{9, spec.EvalUnary(spec.Sin, 3)}, out)
}

func TestOpcodes(t *testing.T) {
	vals := [][2]float32{{1, 2}, {-3, 0.5}, {7, -2}, {0, 0}}
	for op, code := range binaryOpcodes {
		for _, v := range vals {
			data, err := Compile(op.String(), 2, []instr.Node{bin(op, inA, inB)})
			require.NoError(t, err)
			a, err := Parse(data)
			require.NoError(t, err)
			require.Equal(t, code, a.Code[0].Op)
			out, err := NewVM(a).Run(v[:])
			require.NoError(t, err)
			requireSame(t, spec.EvalBinary(op, v[0], v[1]), out[0], "%v%v", op, v)
		}
	}
	for op, code := range unaryOpcodes {
		for _, v := range []float32{0, 0.5, -0.25, 3} {
			data, err := Compile(op.String(), 1, []instr.Node{instr.NewUnary(op, inA)})
			require.NoError(t, err)
			a, err := Parse(data)
			require.NoError(t, err)
			require.Equal(t, code, a.Code[0].Op)
			out, err := NewVM(a).Run([]float32{v})
			require.NoError(t, err)
			requireSame(t, spec.EvalUnary(op, v), out[0], "%v(%v)", op, v)
		}
	}
}

func TestUnsupported(t *testing.T) {
	type testCase struct {
		Inputs int
		Out    instr.Node
		Code   diag.Code
	}
	tcs := []testCase{
		{2, bin(spec.Lt, inA, inB), diag.InvalidCompileTarget},
		{2, bin(spec.Log, inA, inB), diag.InvalidCompileTarget},
		{1, instr.NewUnary(spec.Not, inA), diag.InvalidCompileTarget},
		{2, instr.NewMux(inA, inB, instr.Const(1)), diag.InvalidCompileTarget},
		{1, bin(spec.Add, inA, inB), diag.ArgumentCountMismatch},
		{1, inB, diag.ArgumentCountMismatch},
	}
	for i, tc := range tcs {
		_, err := Compile("bad", tc.Inputs, []instr.Node{tc.Out})
		require.Error(t, err, "#%d", i)
		require.Equal(t, tc.Code, diag.CodeOf(err), "#%d: %v", i, err)
	}
}

func TestParseErrors(t *testing.T) {
	good, err := Compile("add", 2, []instr.Node{bin(spec.Mul, inA, instr.Const(4))})
	require.NoError(t, err)
	_, err = Parse(good)
	require.NoError(t, err)

	modify := func(fn func(data []byte) []byte) []byte {
		return fn(bytes.Clone(good))
	}
	codeStart := HeaderSize + 2 + len("add") + 1 + DefSize
	tcs := map[string][]byte{
		"Empty":     nil,
		"Truncated": good[:len(good)-1],
		"Magic":     modify(func(d []byte) []byte { d[0] = 'X'; return d }),
		"Version":   modify(func(d []byte) []byte { d[4] = 1; return d }),
		"NoNull": modify(func(d []byte) []byte {
			d[HeaderSize+2+len("add")] = 'x'
			return d
		}),
		"Opcode": modify(func(d []byte) []byte {
			binary.LittleEndian.PutUint16(d[codeStart+4:], 0xFFFF)
			return d
		}),
		// 0x00 is RETURN, which is not used in a definition's code
		"Return": modify(func(d []byte) []byte {
			binary.LittleEndian.PutUint16(d[codeStart+4:], 0x00)
			return d
		}),
		"OutOfBounds": modify(func(d []byte) []byte {
			binary.LittleEndian.PutUint16(d[codeStart+4+6:], 100)
			return d
		}),
		"Padding": modify(func(d []byte) []byte {
			d[codeStart+4+RecordSize] = 1
			return d
		}),
	}
	for name, data := range tcs {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(data)
			require.Error(t, err)
			var fe FormatError
			require.True(t, errors.As(err, &fe), "%v", err)
		})
	}
}

func TestNoop(t *testing.T) {
	data, err := Compile("nop", 2, []instr.Node{bin(spec.Mul, inA, instr.Const(4))})
	require.NoError(t, err)
	codeStart := HeaderSize + 2 + len("nop") + 1 + DefSize
	binary.LittleEndian.PutUint16(data[codeStart+4:], 0x01)
	a, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, OpNoop, a.Code[0].Op)
	require.Equal(t, "NOOP", a.Code[0].Op.String())
}

func TestDisassemble(t *testing.T) {
	data, err := Compile("f", 2, []instr.Node{bin(spec.Add, bin(spec.Mul, inA, instr.Const(0.5)), inB)})
	require.NoError(t, err)
	a, err := Parse(data)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, a.Disassemble(&buf))
	require.Equal(t, `def "f" inputs=2 outputs=1 stack=5
  0000  MULSS    s0, s4 -> s3
  0001  ADDSS    s3, s1 -> s2
constants:
  s4 = 0.5
`, buf.String())
}

func TestArgumentCount(t *testing.T) {
	data, err := Compile("add", 2, []instr.Node{bin(spec.Add, inA, inB)})
	require.NoError(t, err)
	a, err := Parse(data)
	require.NoError(t, err)
	_, err = NewVM(a).Run([]float32{1})
	require.Equal(t, diag.ArgumentCountMismatch, diag.CodeOf(err))
}

func requireSame(t testing.TB, expected, actual float32, msgAndArgs ...any) {
	t.Helper()
	if math.IsNaN(float64(expected)) {
		require.True(t, math.IsNaN(float64(actual)), msgAndArgs...)
		return
	}
	require.Equal(t, expected, actual, msgAndArgs...)
}
