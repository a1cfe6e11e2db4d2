// package lmnt emits, reads and executes LMNT modules.
// An LMNT module is a flat program of scalar float32 operations on a stack of slots.
package lmnt

import (
	"fmt"

	"elementlang.org/numc/spec"
)

type Opcode uint16

const (
	OpNoop     Opcode = 0x01
	OpAssignSS Opcode = 0x02
	OpAddSS    Opcode = 0x0C
	OpSubSS    Opcode = 0x0D
	OpMulSS    Opcode = 0x0E
	OpDivSS    Opcode = 0x0F
	OpRemSS    Opcode = 0x13
	OpSinR     Opcode = 0x1D
	OpCosR     Opcode = 0x1E
	OpTanR     Opcode = 0x1F
	OpASinR    Opcode = 0x24
	OpACosR    Opcode = 0x2C
	OpATanR    Opcode = 0x34
	OpATan2R   Opcode = 0x36
	OpPowSS    Opcode = 0x38
	OpAbsS     Opcode = 0x42
	OpMinSS    Opcode = 0x43
	OpMaxSS    Opcode = 0x46
	OpFloorS   Opcode = 0x49
	OpCeilS    Opcode = 0x4B
)

var opNames = map[Opcode]string{
	OpNoop:     "NOOP",
	OpAssignSS: "ASSIGNSS",
	OpAddSS:    "ADDSS",
	OpSubSS:    "SUBSS",
	OpMulSS:    "MULSS",
	OpDivSS:    "DIVSS",
	OpRemSS:    "REMSS",
	OpSinR:     "SINR",
	OpCosR:     "COSR",
	OpTanR:     "TANR",
	OpASinR:    "ASINR",
	OpACosR:    "ACOSR",
	OpATanR:    "ATANR",
	OpATan2R:   "ATAN2R",
	OpPowSS:    "POWSS",
	OpAbsS:     "ABSS",
	OpMinSS:    "MINSS",
	OpMaxSS:    "MAXSS",
	OpFloorS:   "FLOORS",
	OpCeilS:    "CEILS",
}

func (op Opcode) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(0x%02x)", uint16(op))
}

// Valid returns true if the opcode is one this package can emit and execute.
func (op Opcode) Valid() bool {
	_, ok := opNames[op]
	return ok
}

// Unary returns true if the opcode only reads its first operand.
func (op Opcode) Unary() bool {
	switch op {
	case OpAddSS, OpSubSS, OpMulSS, OpDivSS, OpRemSS, OpATan2R, OpPowSS, OpMinSS, OpMaxSS:
		return false
	}
	return true
}

var binaryOpcodes = map[spec.BinaryOp]Opcode{
	spec.Add:   OpAddSS,
	spec.Sub:   OpSubSS,
	spec.Mul:   OpMulSS,
	spec.Div:   OpDivSS,
	spec.Rem:   OpRemSS,
	spec.Pow:   OpPowSS,
	spec.Min:   OpMinSS,
	spec.Max:   OpMaxSS,
	spec.Atan2: OpATan2R,
}

var unaryOpcodes = map[spec.UnaryOp]Opcode{
	spec.Sin:   OpSinR,
	spec.Cos:   OpCosR,
	spec.Tan:   OpTanR,
	spec.ASin:  OpASinR,
	spec.ACos:  OpACosR,
	spec.ATan:  OpATanR,
	spec.Abs:   OpAbsS,
	spec.Floor: OpFloorS,
	spec.Ceil:  OpCeilS,
}

// BinaryOpcode returns the opcode implementing op, if there is one.
func BinaryOpcode(op spec.BinaryOp) (Opcode, bool) {
	code, ok := binaryOpcodes[op]
	return code, ok
}

// UnaryOpcode returns the opcode implementing op, if there is one.
func UnaryOpcode(op spec.UnaryOp) (Opcode, bool) {
	code, ok := unaryOpcodes[op]
	return code, ok
}

type execFunc = func(a, b float32) float32

// execTable maps each opcode to its implementation, which is always the same as the
// instruction the opcode was emitted for.
var execTable = func() map[Opcode]execFunc {
	ret := map[Opcode]execFunc{
		OpAssignSS: func(a, b float32) float32 { return a },
	}
	for op, code := range binaryOpcodes {
		ret[code] = func(a, b float32) float32 { return spec.EvalBinary(op, a, b) }
	}
	for op, code := range unaryOpcodes {
		ret[code] = func(a, _ float32) float32 { return spec.EvalUnary(op, a) }
	}
	return ret
}()
