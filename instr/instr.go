// package instr contains the instruction graph: an immutable DAG of numeric operations.
//
// Instructions are compared structurally using a Fingerprint, which is computed when the instruction is created.
// The set of instruction kinds is closed: Constant, Input, State, Unary, Binary, Mux, Cached,
// and the groups BasicGroup, Loop, Persist with GroupElement to address their outputs.
package instr

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"elementlang.org/numc/spec"
)

// Node is an instruction
type Node interface {
	// Fingerprint identifies the structure of the node.
	// Two nodes with the same Fingerprint are interchangeable.
	Fingerprint() Fingerprint
	// String returns the canonical textual form of the node.
	String() string

	isNode()
}

type baseNode struct {
	fp Fingerprint
}

func (n *baseNode) Fingerprint() Fingerprint {
	return n.fp
}

func (*baseNode) isNode() {}

// Equal returns true if a and b are structurally equal.
func Equal(a, b Node) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.Fingerprint() == b.Fingerprint()
}

// Constant is a literal number
type Constant struct {
	baseNode
	Value float32
}

var (
	Zero = Const(0)
	One  = Const(1)
)

func Const(x float32) *Constant {
	// all NaNs are the same constant
	bits := math.Float32bits(x)
	if x != x {
		bits = math.Float32bits(float32(math.NaN()))
	}
	var e encoder
	e.kind(kindConstant)
	e.u32(bits)
	return &Constant{baseNode: baseNode{fp: e.sum()}, Value: x}
}

func True() *Constant  { return Const(spec.True) }
func False() *Constant { return Const(spec.False) }
func NaN() *Constant   { return Const(float32(math.NaN())) }

func (c *Constant) String() string {
	return strconv.FormatFloat(float64(c.Value), 'g', -1, 32)
}

// ConstValue returns the value of n if it is a Constant
func ConstValue(n Node) (float32, bool) {
	if c, ok := n.(*Constant); ok {
		return c.Value, true
	}
	return 0, false
}

// IsConst returns true if n is a Constant equal to x
func IsConst(n Node, x float32) bool {
	v, ok := ConstValue(n)
	return ok && v == x
}

// Input is an external input to a function, identified by its slot.
type Input struct {
	baseNode
	Slot int
	// Name is only used for printing.
	Name string
}

func NewInput(slot int, name string) *Input {
	var e encoder
	e.kind(kindInput)
	e.int(slot)
	return &Input{baseNode: baseNode{fp: e.sum()}, Slot: slot, Name: name}
}

func (in *Input) String() string {
	if in.Name != "" {
		return in.Name
	}
	return fmt.Sprintf("in%d", in.Slot)
}

// Unary is a 1-arity operation
type Unary struct {
	baseNode
	Op spec.UnaryOp
	X  Node
}

func NewUnary(op spec.UnaryOp, x Node) *Unary {
	if !op.Valid() {
		panic(fmt.Sprintf("invalid unary op %v", op))
	}
	var e encoder
	e.kind(kindUnary)
	e.u8(uint8(op))
	e.node(x)
	return &Unary{baseNode: baseNode{fp: e.sum()}, Op: op, X: x}
}

func (u *Unary) String() string {
	return fmt.Sprintf("%v(%v)", u.Op, u.X)
}

// Binary is a 2-arity operation
type Binary struct {
	baseNode
	Op   spec.BinaryOp
	A, B Node
}

func NewBinary(op spec.BinaryOp, a, b Node) *Binary {
	if !op.Valid() {
		panic(fmt.Sprintf("invalid binary op %v", op))
	}
	var e encoder
	e.kind(kindBinary)
	e.u8(uint8(op))
	e.node(a)
	e.node(b)
	return &Binary{baseNode: baseNode{fp: e.sum()}, Op: op, A: a, B: b}
}

func (b *Binary) String() string {
	return fmt.Sprintf("%v(%v, %v)", b.Op, b.A, b.B)
}

// Mux selects one of its operands using the selector.
// The selector is rounded down and clamped to the range of operands.
type Mux struct {
	baseNode
	Selector Node
	Operands []Node
}

func NewMux(sel Node, operands ...Node) *Mux {
	if len(operands) == 0 {
		panic("mux requires at least one operand")
	}
	var e encoder
	e.kind(kindMux)
	e.node(sel)
	e.nodes(operands)
	return &Mux{
		baseNode: baseNode{fp: e.sum()},
		Selector: sel,
		Operands: append([]Node{}, operands...),
	}
}

func (m *Mux) String() string {
	return fmt.Sprintf("Mux(%v)[%s]", m.Selector, joinNodes(m.Operands))
}

// Cached is a handle to a de-duplicated sub expression.
// Cached nodes are produced by common subexpression extraction.
type Cached struct {
	baseNode
	Ordinal int
	Value   Node
}

func NewCached(ordinal int, x Node) *Cached {
	var e encoder
	e.kind(kindCached)
	e.int(ordinal)
	e.node(x)
	return &Cached{baseNode: baseNode{fp: e.sum()}, Ordinal: ordinal, Value: x}
}

func (c *Cached) String() string {
	return fmt.Sprintf("$%d", c.Ordinal)
}

// State is a value carried between iterations of a Loop or invocations of a Persist.
// States are equal if they have the same ID and Scope, the initial value is not considered.
type State struct {
	baseNode
	ID    int
	Scope int
	// Initial is the value of the state before the first iteration.
	Initial Node
}

func NewState(id, scope int, initial Node) *State {
	var e encoder
	e.kind(kindState)
	e.int(id)
	e.int(scope)
	return &State{baseNode: baseNode{fp: e.sum()}, ID: id, Scope: scope, Initial: initial}
}

func (s *State) String() string {
	return fmt.Sprintf("state%d@%d", s.ID, s.Scope)
}

func joinNodes(xs []Node) string {
	var sb strings.Builder
	for i, x := range xs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(x.String())
	}
	return sb.String()
}
