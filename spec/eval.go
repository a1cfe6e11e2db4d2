package spec

import (
	"fmt"
	"math"
)

const (
	True  float32 = 1
	False float32 = 0
)

// ToBool interprets a number as a boolean: only values > 0 are true.
func ToBool(x float32) bool {
	return x > 0
}

func FromBool(x bool) float32 {
	if x {
		return True
	}
	return False
}

// EvalBinary applies op to a and b.
// Comparisons are computed from the sign of the difference of their operands, without any tolerance.
// Eq, LEq and GEq are the negations of NEq, Gt and Lt.
func EvalBinary(op BinaryOp, a, b float32) float32 {
	switch op {
	case And:
		return FromBool(a*b > 0)
	case Or:
		return FromBool((a+b)-(a*b) > 0)
	case NEq:
		return FromBool(abs32(a-b) > 0)
	case Lt:
		return FromBool(b-a > 0)
	case Gt:
		return FromBool(a-b > 0)
	case Eq:
		return EvalUnary(Not, EvalBinary(NEq, a, b))
	case LEq:
		return EvalUnary(Not, EvalBinary(Gt, a, b))
	case GEq:
		return EvalUnary(Not, EvalBinary(Lt, a, b))

	case Add:
		return a + b
	case Sub:
		return a - b
	case Mul:
		return a * b
	case Div:
		return a / b
	case Rem:
		return float32(math.Mod(float64(a), float64(b)))
	case Pow:
		return float32(math.Pow(float64(a), float64(b)))
	case Min:
		return float32(math.Min(float64(a), float64(b)))
	case Max:
		return float32(math.Max(float64(a), float64(b)))
	case Log:
		if a < 0 {
			return float32(math.NaN())
		}
		return float32(math.Log(float64(a)) / math.Log(float64(b)))
	case Atan2:
		return float32(math.Atan2(float64(a), float64(b)))
	default:
		panic(fmt.Sprintf("unknown binary op %v", op))
	}
}

// EvalUnary applies op to a.
func EvalUnary(op UnaryOp, a float32) float32 {
	x := float64(a)
	switch op {
	case Not:
		if math.IsNaN(x) {
			return a
		}
		return FromBool(!ToBool(a))
	case Sin:
		return float32(math.Sin(x))
	case Cos:
		return float32(math.Cos(x))
	case Tan:
		return float32(math.Tan(x))
	case ASin:
		return float32(math.Asin(x))
	case ACos:
		return float32(math.Acos(x))
	case ATan:
		return float32(math.Atan(x))
	case Ln:
		return float32(math.Log(x))
	case Abs:
		return abs32(a)
	case Ceil:
		return float32(math.Ceil(x))
	case Floor:
		return float32(math.Floor(x))
	default:
		panic(fmt.Sprintf("unknown unary op %v", op))
	}
}

// SelectIndex returns the operand index chosen by a selector among n operands.
// The selector is rounded down and clamped to [0, n).
func SelectIndex(sel float32, n int) int {
	if n <= 0 {
		panic("select from no operands")
	}
	switch {
	case math.IsNaN(float64(sel)) || sel < 0:
		return 0
	case sel >= float32(n):
		return n - 1
	default:
		return int(math.Floor(float64(sel)))
	}
}

func abs32(x float32) float32 {
	return float32(math.Abs(float64(x)))
}
