package instr

import (
	"encoding/base64"
	"encoding/binary"

	"lukechampine.com/blake3"
)

// Fingerprint is a hash of the canonical encoding of an instruction.
type Fingerprint [32]byte

func (fp Fingerprint) String() string {
	return base64.RawURLEncoding.EncodeToString(fp[:8])
}

type kind uint8

const (
	kindConstant kind = iota + 1
	kindInput
	kindState
	kindUnary
	kindBinary
	kindMux
	kindCached
	kindBasicGroup
	kindLoop
	kindPersist
	kindGroupElement
)

// encoder builds the canonical encoding of a node.
// Children are encoded as their fingerprints.
type encoder struct {
	buf []byte
}

func (e *encoder) kind(k kind) {
	e.buf = append(e.buf, byte(k))
}

func (e *encoder) u8(x uint8) {
	e.buf = append(e.buf, x)
}

func (e *encoder) u32(x uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, x)
}

func (e *encoder) int(x int) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, uint64(int64(x)))
}

func (e *encoder) node(x Node) {
	if x == nil {
		panic("nil instruction")
	}
	fp := x.Fingerprint()
	e.buf = append(e.buf, fp[:]...)
}

func (e *encoder) nodes(xs []Node) {
	e.int(len(xs))
	for _, x := range xs {
		e.node(x)
	}
}

func (e *encoder) sum() Fingerprint {
	return blake3.Sum256(e.buf)
}
