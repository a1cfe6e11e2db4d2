package spec

import "strings"

// Info is information about an operation
type Info struct {
	// Name is the canonical name, used when printing instructions.
	Name string `json:"name"`
	// Bool is true if the operation produces a boolean (1 or 0).
	Bool bool `json:"bool"`
}

func (op BinaryOp) Info() Info {
	return binaryInfos[op]
}

func (op UnaryOp) Info() Info {
	return unaryInfos[op]
}

// IsBool returns true if the operation always produces 1 or 0 (or NaN).
func (op BinaryOp) IsBool() bool {
	return op.Valid() && binaryInfos[op].Bool
}

func (op UnaryOp) IsBool() bool {
	return op.Valid() && unaryInfos[op].Bool
}

var binaryInfos = [numBinaryOps]Info{
	Add:   {Name: "Add"},
	Sub:   {Name: "Sub"},
	Mul:   {Name: "Mul"},
	Div:   {Name: "Div"},
	Rem:   {Name: "Rem"},
	Pow:   {Name: "Pow"},
	Min:   {Name: "Min"},
	Max:   {Name: "Max"},
	Log:   {Name: "Log"},
	Atan2: {Name: "Atan2"},

	And: {Name: "And", Bool: true},
	Or:  {Name: "Or", Bool: true},
	Eq:  {Name: "Eq", Bool: true},
	NEq: {Name: "NEq", Bool: true},
	Lt:  {Name: "Lt", Bool: true},
	LEq: {Name: "LEq", Bool: true},
	Gt:  {Name: "Gt", Bool: true},
	GEq: {Name: "GEq", Bool: true},
}

var unaryInfos = [numUnaryOps]Info{
	Not:   {Name: "Not", Bool: true},
	Sin:   {Name: "Sin"},
	Cos:   {Name: "Cos"},
	Tan:   {Name: "Tan"},
	ASin:  {Name: "ASin"},
	ACos:  {Name: "ACos"},
	ATan:  {Name: "ATan"},
	Ln:    {Name: "Ln"},
	Abs:   {Name: "Abs"},
	Ceil:  {Name: "Ceil"},
	Floor: {Name: "Floor"},
}

// ParseBinaryOp looks up a binary operation by name, ignoring case.
func ParseBinaryOp(x string) (BinaryOp, bool) {
	for _, op := range AllBinary() {
		if strings.EqualFold(op.String(), x) {
			return op, true
		}
	}
	return 0, false
}

// ParseUnaryOp looks up a unary operation by name, ignoring case.
func ParseUnaryOp(x string) (UnaryOp, bool) {
	for _, op := range AllUnary() {
		if strings.EqualFold(op.String(), x) {
			return op, true
		}
	}
	return 0, false
}
