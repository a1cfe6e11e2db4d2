// package spec contains the primitive numeric operations.
package spec

import "fmt"

// BinaryOp is a 2-arity primitive, f(a, b)
type BinaryOp uint8

const (
	// Num
	Add BinaryOp = iota
	Sub
	Mul
	Div
	Rem
	Pow
	Min
	Max
	// Log: (a, base) => log_base(a)
	Log
	Atan2

	// Bool
	And
	Or
	Eq
	NEq
	Lt
	LEq
	Gt
	GEq

	numBinaryOps
)

// UnaryOp is a 1-arity primitive, f(a)
type UnaryOp uint8

const (
	// Bool
	Not UnaryOp = iota

	// Num
	Sin
	Cos
	Tan
	ASin
	ACos
	ATan
	Ln
	Abs
	Ceil
	Floor

	numUnaryOps
)

func (op BinaryOp) String() string {
	if !op.Valid() {
		return fmt.Sprintf("BinaryOp(%d)", uint8(op))
	}
	return binaryInfos[op].Name
}

func (op UnaryOp) String() string {
	if !op.Valid() {
		return fmt.Sprintf("UnaryOp(%d)", uint8(op))
	}
	return unaryInfos[op].Name
}

func (op BinaryOp) Valid() bool {
	return op < numBinaryOps
}

func (op UnaryOp) Valid() bool {
	return op < numUnaryOps
}
