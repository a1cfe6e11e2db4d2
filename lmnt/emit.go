package lmnt

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"elementlang.org/numc/diag"
	"elementlang.org/numc/instr"
	"elementlang.org/numc/opt"
)

const (
	HeaderSize = 24
	DefSize    = 21
	RecordSize = 8
	// Alignment is the alignment of the end of the code table.
	Alignment = 8

	MaxSlots = math.MaxUint16
)

var magic = [4]byte{'L', 'M', 'N', 'T'}

// Def is a function definition ready to be emitted.
type Def struct {
	Name   string
	Inputs int
	// Outputs are the roots of the function, after common subexpression elimination.
	// Each output must be an *instr.Cached, *instr.Constant or *instr.Input.
	Outputs []instr.Node
	// Instructions are all the cached instructions reachable from Outputs, in ordinal order.
	Instructions []*instr.Cached
}

// Compile optimizes outputs and returns the bytes of an LMNT module containing a single function.
func Compile(name string, inputs int, outputs []instr.Node) ([]byte, error) {
	def := Prepare(name, inputs, outputs)
	var buf bytes.Buffer
	if err := Emit(&buf, def); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Prepare folds outputs, and extracts their common subexpressions with a single cache.
func Prepare(name string, inputs int, outputs []instr.Node) Def {
	cse := opt.NewCSE()
	roots := opt.Optimize(cse, outputs)
	return Def{
		Name:         name,
		Inputs:       inputs,
		Outputs:      roots,
		Instructions: cse.Instructions(),
	}
}

// layout is the assignment of nodes to stack slots.
// The stack is [inputs][instructions][constants], with the outputs in the first instruction slots.
type layout struct {
	inputs    int
	slots     map[*instr.Cached]int
	constants []float32
	constIdx  map[instr.Fingerprint]int
	// copies are the outputs which are not computed in place
	copies []Record

	size int
}

func newLayout(def Def) (*layout, error) {
	if def.Inputs > MaxSlots {
		return nil, diag.Errorf(diag.InvalidCompileTarget, "lmnt: too many inputs %d", def.Inputs)
	}
	l := &layout{
		inputs:   def.Inputs,
		slots:    make(map[*instr.Cached]int, len(def.Instructions)),
		constIdx: make(map[instr.Fingerprint]int),
	}
	next := def.Inputs
	var pending []int
	for i, out := range def.Outputs {
		dst := def.Inputs + i
		next++
		if c, ok := out.(*instr.Cached); ok {
			if _, exists := l.slots[c]; !exists {
				l.slots[c] = dst
				continue
			}
		}
		pending = append(pending, i)
	}
	for _, c := range def.Instructions {
		if _, exists := l.slots[c]; !exists {
			l.slots[c] = next
			next++
		}
	}
	// constants are numbered in the order they are first used
	for _, c := range def.Instructions {
		for _, dep := range instr.Dependent(c.Value) {
			l.addConstant(dep)
		}
	}
	for _, out := range def.Outputs {
		l.addConstant(out)
	}
	l.size = next + len(l.constants)
	if l.size > MaxSlots {
		return nil, diag.Errorf(diag.InvalidCompileTarget, "lmnt: function needs %d stack slots, max is %d", l.size, MaxSlots)
	}
	for _, i := range pending {
		src, err := l.slot(def.Outputs[i])
		if err != nil {
			return nil, err
		}
		l.copies = append(l.copies, Record{Op: OpAssignSS, A: src, Dst: uint16(def.Inputs + i)})
	}
	return l, nil
}

func (l *layout) addConstant(x instr.Node) {
	c, ok := x.(*instr.Constant)
	if !ok {
		return
	}
	fp := c.Fingerprint()
	if _, exists := l.constIdx[fp]; exists {
		return
	}
	l.constIdx[fp] = len(l.constants)
	l.constants = append(l.constants, c.Value)
}

func (l *layout) constBase() int {
	return l.size - len(l.constants)
}

// slot returns the stack slot holding the value of x.
func (l *layout) slot(x instr.Node) (uint16, error) {
	switch x := x.(type) {
	case *instr.Input:
		if x.Slot < 0 || x.Slot >= l.inputs {
			return 0, diag.Errorf(diag.ArgumentCountMismatch, "lmnt: %v refers to input %d, function has %d inputs", x, x.Slot, l.inputs)
		}
		return uint16(x.Slot), nil
	case *instr.Constant:
		return uint16(l.constBase() + l.constIdx[x.Fingerprint()]), nil
	case *instr.Cached:
		s, ok := l.slots[x]
		if !ok {
			return 0, diag.Errorf(diag.InvalidCompileTarget, "lmnt: %v is not in the instruction list", x)
		}
		return uint16(s), nil
	default:
		return 0, diag.Errorf(diag.InvalidCompileTarget, "lmnt: unsupported instruction %v", x)
	}
}

// record returns the code for a single cached instruction
func (l *layout) record(c *instr.Cached) (Record, error) {
	dst, err := l.slot(c)
	if err != nil {
		return Record{}, err
	}
	switch x := c.Value.(type) {
	case *instr.Binary:
		code, ok := BinaryOpcode(x.Op)
		if !ok {
			return Record{}, diag.Errorf(diag.InvalidCompileTarget, "lmnt: no opcode for %v", x)
		}
		a, err := l.slot(x.A)
		if err != nil {
			return Record{}, err
		}
		b, err := l.slot(x.B)
		if err != nil {
			return Record{}, err
		}
		return Record{Op: code, A: a, B: b, Dst: dst}, nil
	case *instr.Unary:
		code, ok := UnaryOpcode(x.Op)
		if !ok {
			return Record{}, diag.Errorf(diag.InvalidCompileTarget, "lmnt: no opcode for %v", x)
		}
		a, err := l.slot(x.X)
		if err != nil {
			return Record{}, err
		}
		return Record{Op: code, A: a, Dst: dst}, nil
	default:
		return Record{}, diag.Errorf(diag.InvalidCompileTarget, "lmnt: unsupported instruction %v", x)
	}
}

// Emit writes def as an LMNT module to w.
func Emit(w io.Writer, def Def) error {
	l, err := newLayout(def)
	if err != nil {
		return err
	}
	code := make([]Record, 0, len(def.Instructions)+len(l.copies))
	for _, c := range def.Instructions {
		r, err := l.record(c)
		if err != nil {
			return err
		}
		code = append(code, r)
	}
	code = append(code, l.copies...)
	a := &Archive{
		Name:      def.Name,
		StackSize: l.size,
		Inputs:    def.Inputs,
		Outputs:   len(def.Outputs),
		Code:      code,
		Constants: l.constants,
	}
	data, err := a.Marshal()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Pad returns the number of zero bytes needed to make n a multiple of align.
func Pad(n, align int) int {
	return (align - n%align) % align
}

// Marshal returns the archive in the LMNT binary format.
func (a *Archive) Marshal() ([]byte, error) {
	name := []byte(a.Name)
	if len(name)+1 > math.MaxUint16 {
		return nil, diag.Errorf(diag.InvalidCompileTarget, "lmnt: function name is too long")
	}
	if len(a.Code) > math.MaxUint32/RecordSize {
		return nil, diag.Errorf(diag.InvalidCompileTarget, "lmnt: too many instructions")
	}
	if a.StackSize > MaxSlots || a.Inputs > MaxSlots || a.Outputs > MaxSlots {
		return nil, diag.Errorf(diag.InvalidCompileTarget, "lmnt: stack of %d slots is too large", a.StackSize)
	}
	stringsLen := 2 + len(name) + 1
	codeLen := 4 + RecordSize*len(a.Code)
	padding := Pad(HeaderSize+stringsLen+DefSize+codeLen, Alignment)

	var buf bytes.Buffer
	le := binary.LittleEndian
	// header
	buf.Write(magic[:])
	buf.Write([]byte{0, 0}) // version
	buf.Write([]byte{0, 0}) // reserved
	buf.Write(le.AppendUint32(nil, uint32(stringsLen)))
	buf.Write(le.AppendUint32(nil, DefSize))
	buf.Write(le.AppendUint32(nil, uint32(codeLen+padding)))
	buf.Write(le.AppendUint32(nil, uint32(4*len(a.Constants))))

	// strings
	buf.Write(le.AppendUint16(nil, uint16(len(name)+1)))
	buf.Write(name)
	buf.WriteByte(0)

	// definitions
	buf.Write(le.AppendUint16(nil, DefSize))
	buf.Write(le.AppendUint16(nil, 0)) // name offset
	buf.Write(le.AppendUint16(nil, a.Flags))
	buf.Write(le.AppendUint32(nil, 0)) // code offset
	buf.Write(le.AppendUint16(nil, uint16(a.StackSize)))
	buf.Write(le.AppendUint16(nil, uint16(a.StackSize)))
	buf.Write(le.AppendUint16(nil, 0)) // base args
	buf.Write(le.AppendUint16(nil, uint16(a.Inputs)))
	buf.Write(le.AppendUint16(nil, uint16(a.Outputs)))
	buf.WriteByte(0) // bases

	// code
	buf.Write(le.AppendUint32(nil, uint32(len(a.Code))))
	for _, r := range a.Code {
		buf.Write(r.appendTo(nil))
	}
	buf.Write(make([]byte, padding))

	// constants
	for _, c := range a.Constants {
		buf.Write(le.AppendUint32(nil, math.Float32bits(c)))
	}
	return buf.Bytes(), nil
}
