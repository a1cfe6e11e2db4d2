package compiler

import (
	"context"
	"fmt"
	"strings"

	"go.brendoncarroll.net/exp/slices2"

	"elementlang.org/numc/diag"
	"elementlang.org/numc/instr"
)

// Type describes the structure of a Value.
type Type interface {
	// Size is the number of scalars in a serialized Value of this Type
	Size() int
	// Deserialize builds a Value, taking each scalar from next.
	Deserialize(next func() instr.Node) (Value, error)
	String() string
}

// Value is a structured value, made of scalar instructions.
type Value interface {
	Type() Type
	// Serialize appends the scalars in the value to dst.
	Serialize(dst []instr.Node) ([]instr.Node, error)
}

// Port is a named and typed input or output of a Function.
type Port struct {
	Name string
	Type Type
}

func (p Port) String() string {
	return p.Name + ": " + p.Type.String()
}

// Function is a resolved function, which can be called with Values built from instructions.
type Function interface {
	Name() string
	Inputs() []Port
	Outputs() []Port
	// Call returns the output named output, for the arguments args.
	Call(ctx context.Context, args []Value, output string) (Value, error)
}

// Num is the scalar number type
var Num Type = numType{}

type numType struct{}

func (numType) Size() int { return 1 }

func (numType) Deserialize(next func() instr.Node) (Value, error) {
	x := next()
	if x == nil {
		return nil, diag.Errorf(diag.SerializationError, "no instruction available for Num")
	}
	return Scalar{X: x}, nil
}

func (numType) String() string { return "Num" }

// Scalar is a Value of type Num
type Scalar struct {
	X instr.Node
}

func (s Scalar) Type() Type {
	return Num
}

func (s Scalar) Serialize(dst []instr.Node) ([]instr.Node, error) {
	if s.X == nil {
		return nil, diag.Errorf(diag.SerializationError, "Num has no instruction")
	}
	return append(dst, s.X), nil
}

// Struct is a Type with named fields.
type Struct struct {
	Name   string
	Fields []Port
}

func (s *Struct) Size() (ret int) {
	for _, f := range s.Fields {
		ret += f.Type.Size()
	}
	return ret
}

func (s *Struct) Deserialize(next func() instr.Node) (Value, error) {
	r := &Record{Struct: s, Fields: make([]Value, len(s.Fields))}
	for i, f := range s.Fields {
		v, err := f.Type.Deserialize(next)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", s.Name, f.Name, err)
		}
		r.Fields[i] = v
	}
	return r, nil
}

// Field returns the index of the field with name, or -1 if there is no such field.
func (s *Struct) Field(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func (s *Struct) String() string {
	fields := slices2.Map(s.Fields, func(p Port) string { return p.String() })
	return fmt.Sprintf("%s{%s}", s.Name, strings.Join(fields, ", "))
}

// Record is a Value of a Struct type
type Record struct {
	Struct *Struct
	Fields []Value
}

func (r *Record) Type() Type {
	return r.Struct
}

func (r *Record) Serialize(dst []instr.Node) ([]instr.Node, error) {
	if len(r.Fields) != len(r.Struct.Fields) {
		return nil, diag.Errorf(diag.SerializationError, "%s has %d fields, record has %d", r.Struct.Name, len(r.Struct.Fields), len(r.Fields))
	}
	var err error
	for i, f := range r.Fields {
		if dst, err = f.Serialize(dst); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", r.Struct.Name, r.Struct.Fields[i].Name, err)
		}
	}
	return dst, nil
}

// Get returns the field with name
func (r *Record) Get(name string) (Value, bool) {
	i := r.Struct.Field(name)
	if i < 0 {
		return nil, false
	}
	return r.Fields[i], true
}

// BodyFunc computes all the outputs of a function from its arguments, in port order.
type BodyFunc = func(args []Value) ([]Value, error)

// FuncOf returns a Function with the given ports, which calls body to compute its outputs.
func FuncOf(name string, inputs, outputs []Port, body BodyFunc) Function {
	return &function{name: name, inputs: inputs, outputs: outputs, body: body}
}

type function struct {
	name            string
	inputs, outputs []Port
	body            BodyFunc
}

func (f *function) Name() string    { return f.name }
func (f *function) Inputs() []Port  { return f.inputs }
func (f *function) Outputs() []Port { return f.outputs }

func (f *function) Call(ctx context.Context, args []Value, output string) (Value, error) {
	if len(args) != len(f.inputs) {
		return nil, diag.Errorf(diag.ArgumentCountMismatch, "%s takes %d arguments, have %d", f.name, len(f.inputs), len(args))
	}
	idx := -1
	for i, p := range f.outputs {
		if p.Name == output {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, diag.Errorf(diag.SerializationError, "%s has no output %q", f.name, output)
	}
	outs, err := f.body(args)
	if err != nil {
		return nil, err
	}
	if len(outs) != len(f.outputs) {
		return nil, diag.Errorf(diag.ArgumentCountMismatch, "%s returned %d outputs, expected %d", f.name, len(outs), len(f.outputs))
	}
	return outs[idx], nil
}
