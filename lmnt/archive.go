package lmnt

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
)

// Record is a single instruction in the code table.
type Record struct {
	Op   Opcode
	A, B uint16
	Dst  uint16
}

func (r Record) appendTo(out []byte) []byte {
	le := binary.LittleEndian
	out = le.AppendUint16(out, uint16(r.Op))
	out = le.AppendUint16(out, r.A)
	out = le.AppendUint16(out, r.B)
	out = le.AppendUint16(out, r.Dst)
	return out
}

func (r Record) String() string {
	if r.Op.Unary() {
		return fmt.Sprintf("%-8v s%d -> s%d", r.Op, r.A, r.Dst)
	}
	return fmt.Sprintf("%-8v s%d, s%d -> s%d", r.Op, r.A, r.B, r.Dst)
}

// Archive is an LMNT module containing a single function definition.
type Archive struct {
	Name      string
	Flags     uint16
	StackSize int
	Inputs    int
	Outputs   int
	Code      []Record
	// Constants occupy the last len(Constants) slots of the stack.
	Constants []float32
}

// FormatError is returned when parsing an invalid module.
type FormatError struct {
	Offset int
	Msg    string
}

func (e FormatError) Error() string {
	return fmt.Sprintf("lmnt: invalid module at offset %d: %s", e.Offset, e.Msg)
}

func formatErr(off int, format string, args ...any) error {
	return FormatError{Offset: off, Msg: fmt.Sprintf(format, args...)}
}

// Parse parses and validates an LMNT module.
func Parse(data []byte) (*Archive, error) {
	le := binary.LittleEndian
	if len(data) < HeaderSize {
		return nil, formatErr(0, "too short for header (%d bytes)", len(data))
	}
	if [4]byte(data[:4]) != magic {
		return nil, formatErr(0, "bad magic %q", data[:4])
	}
	if data[4] != 0 || data[5] != 0 {
		return nil, formatErr(4, "unsupported version %d.%d", data[4], data[5])
	}
	stringsLen := int(le.Uint32(data[8:]))
	defsLen := int(le.Uint32(data[12:]))
	codeLen := int(le.Uint32(data[16:]))
	constsLen := int(le.Uint32(data[20:]))
	total := HeaderSize + stringsLen + defsLen + codeLen + constsLen
	if total < HeaderSize || total != len(data) {
		return nil, formatErr(8, "table lengths sum to %d, module is %d bytes", total, len(data))
	}
	if (HeaderSize+stringsLen+defsLen+codeLen)%Alignment != 0 {
		return nil, formatErr(16, "code table does not end on a %d byte boundary", Alignment)
	}
	if constsLen%4 != 0 {
		return nil, formatErr(20, "constant table length %d is not a multiple of 4", constsLen)
	}

	// strings
	off := HeaderSize
	if stringsLen < 3 {
		return nil, formatErr(off, "string table too short")
	}
	nameLen := int(le.Uint16(data[off:]))
	if nameLen < 1 || 2+nameLen > stringsLen {
		return nil, formatErr(off, "string length %d does not fit in table of %d bytes", nameLen, stringsLen)
	}
	nameBytes := data[off+2 : off+2+nameLen]
	if nameBytes[nameLen-1] != 0 {
		return nil, formatErr(off+2+nameLen-1, "string is not null terminated")
	}
	a := &Archive{Name: string(nameBytes[:nameLen-1])}

	// definitions
	off += stringsLen
	if defsLen != DefSize {
		return nil, formatErr(12, "expected a single definition of %d bytes, have %d", DefSize, defsLen)
	}
	def := data[off : off+defsLen]
	if l := le.Uint16(def[0:]); l != DefSize {
		return nil, formatErr(off, "definition length is %d", l)
	}
	if nameOff := le.Uint16(def[2:]); nameOff != 0 {
		return nil, formatErr(off+2, "name offset %d does not refer to a string", nameOff)
	}
	a.Flags = le.Uint16(def[4:])
	if codeOff := le.Uint32(def[6:]); codeOff != 0 {
		return nil, formatErr(off+6, "code offset %d", codeOff)
	}
	a.StackSize = int(le.Uint16(def[10:]))
	if aligned := int(le.Uint16(def[12:])); aligned < a.StackSize {
		return nil, formatErr(off+12, "aligned stack size %d is less than %d", aligned, a.StackSize)
	}
	if baseArgs := le.Uint16(def[14:]); baseArgs != 0 {
		return nil, formatErr(off+14, "base args are not supported")
	}
	a.Inputs = int(le.Uint16(def[16:]))
	a.Outputs = int(le.Uint16(def[18:]))
	if def[20] != 0 {
		return nil, formatErr(off+20, "bases are not supported")
	}

	// code
	off += defsLen
	if codeLen < 4 {
		return nil, formatErr(off, "code table too short")
	}
	count := int(le.Uint32(data[off:]))
	if count > (codeLen-4)/RecordSize {
		return nil, formatErr(off, "%d records do not fit in code table of %d bytes", count, codeLen)
	}
	for i := 0; i < count; i++ {
		roff := off + 4 + i*RecordSize
		r := Record{
			Op:  Opcode(le.Uint16(data[roff:])),
			A:   le.Uint16(data[roff+2:]),
			B:   le.Uint16(data[roff+4:]),
			Dst: le.Uint16(data[roff+6:]),
		}
		if !r.Op.Valid() {
			return nil, formatErr(roff, "unknown opcode %v", r.Op)
		}
		if int(r.A) >= a.StackSize || int(r.B) >= a.StackSize || int(r.Dst) >= a.StackSize {
			return nil, formatErr(roff, "record %d (%v) is out of bounds for stack of %d", i, r, a.StackSize)
		}
		a.Code = append(a.Code, r)
	}
	for i := off + 4 + count*RecordSize; i < off+codeLen; i++ {
		if data[i] != 0 {
			return nil, formatErr(i, "non-zero padding")
		}
	}

	// constants
	off += codeLen
	for i := 0; i < constsLen/4; i++ {
		a.Constants = append(a.Constants, math.Float32frombits(le.Uint32(data[off+4*i:])))
	}
	if a.Inputs+a.Outputs+len(a.Constants) > a.StackSize {
		return nil, formatErr(10, "stack of %d slots cannot hold %d inputs, %d outputs and %d constants",
			a.StackSize, a.Inputs, a.Outputs, len(a.Constants))
	}
	return a, nil
}

// ConstBase returns the first stack slot holding a constant.
func (a *Archive) ConstBase() int {
	return a.StackSize - len(a.Constants)
}

// Disassemble writes a human readable listing of the archive to w.
func (a *Archive) Disassemble(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "def %s inputs=%d outputs=%d stack=%d\n", strconv.Quote(a.Name), a.Inputs, a.Outputs, a.StackSize); err != nil {
		return err
	}
	for i, r := range a.Code {
		if _, err := fmt.Fprintf(w, "  %04d  %v\n", i, r); err != nil {
			return err
		}
	}
	if len(a.Constants) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "constants:\n"); err != nil {
		return err
	}
	base := a.ConstBase()
	for i, c := range a.Constants {
		if _, err := fmt.Fprintf(w, "  s%d = %v\n", base+i, c); err != nil {
			return err
		}
	}
	return nil
}
