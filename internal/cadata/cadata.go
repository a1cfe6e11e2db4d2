// package cadata provides content addressed storage for compiled modules.
//
// Modules are addressed by a keyed hash of their bytes, see numc.ModuleHash.
package cadata

import (
	"bytes"
	"context"
	"crypto/subtle"
	"database/sql/driver"
	"encoding/base64"
	"errors"
	"fmt"

	"go.brendoncarroll.net/state"
	"go.brendoncarroll.net/state/kv"
)

const (
	IDSize = 32
	// Base64Alphabet is used to print IDs.
	// Encoded IDs sort in the same order as the raw bytes.
	Base64Alphabet = "-0123456789" + "ABCDEFGHIJKLMNOPQRSTUVWXYZ" + "_" + "abcdefghijklmnopqrstuvwxyz"
)

var enc = base64.NewEncoding(Base64Alphabet).WithPadding(base64.NoPadding)

// ID is the hash of a module
type ID [IDSize]byte

func IDFromBytes(x []byte) (id ID) {
	copy(id[:], x)
	return id
}

// ParseID parses the output of ID.String
func ParseID(x string) (ID, error) {
	if enc.DecodedLen(len(x)) != IDSize {
		return ID{}, fmt.Errorf("cadata: %q is not a %d byte ID", x, IDSize)
	}
	var id ID
	if _, err := enc.Decode(id[:], []byte(x)); err != nil {
		return ID{}, fmt.Errorf("cadata: parsing ID: %w", err)
	}
	return id, nil
}

func (id ID) String() string {
	return enc.EncodeToString(id[:])
}

func (id ID) Compare(other ID) int {
	return bytes.Compare(id[:], other[:])
}

func (id ID) IsZero() bool {
	return id == ID{}
}

// Scan implements sql.Scanner, IDs are stored as blobs.
func (id *ID) Scan(x any) error {
	data, ok := x.([]byte)
	if !ok {
		return fmt.Errorf("cadata: cannot scan %T into ID", x)
	}
	if len(data) != IDSize {
		return fmt.Errorf("cadata: ID blob has length %d, need %d", len(data), IDSize)
	}
	*id = IDFromBytes(data)
	return nil
}

// Value implements driver.Valuer
func (id ID) Value() (driver.Value, error) {
	return id[:], nil
}

// Successor returns the smallest ID greater than id
func (id ID) Successor() ID {
	for i := IDSize - 1; i >= 0; i-- {
		id[i]++
		if id[i] != 0 {
			break
		}
	}
	return id
}

type HashFunc = func(x []byte) ID

type Poster interface {
	// Post stores data and returns its ID.
	Post(ctx context.Context, data []byte) (ID, error)
}

type Getter interface {
	// Get copies the data for k into buf, and returns the number of bytes copied.
	Get(ctx context.Context, k *ID, buf []byte) (int, error)
}

type Span = state.Span[ID]

// Store holds modules.
type Store interface {
	Poster
	Getter
	Exists(ctx context.Context, k *ID) (bool, error)
	Delete(ctx context.Context, k *ID) error
	List(ctx context.Context, span Span, ids []ID) (int, error)
	// MaxSize is the size of the largest module the store accepts
	MaxSize() int
}

// ForEach calls fn with each ID in span, in order.
func ForEach(ctx context.Context, s Store, span Span, fn func(ID) error) error {
	return kv.ForEach[ID](ctx, s, span, fn)
}

// GetBytes returns the data for id, which must be no larger than maxSize.
func GetBytes(ctx context.Context, s Getter, id ID, maxSize int) ([]byte, error) {
	buf := make([]byte, maxSize)
	n, err := s.Get(ctx, &id, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

var ErrTooLarge = errors.New("cadata: data exceeds the maximum size of the store")

type ErrNotFound struct {
	Key *ID
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("cadata: %v not found", e.Key)
}

func IsNotFound(err error) bool {
	return errors.As(err, &ErrNotFound{})
}

// ErrBadData is returned when data does not match the ID it was stored under.
type ErrBadData struct {
	Have, Want ID
}

func (e ErrBadData) Error() string {
	return fmt.Sprintf("cadata: data hashes to %v, expected %v", e.Have, e.Want)
}

// Check returns ErrBadData if data does not hash to expected
func Check(hf HashFunc, expected *ID, data []byte) error {
	actual := hf(data)
	if subtle.ConstantTimeCompare(actual[:], expected[:]) != 1 {
		return ErrBadData{Have: actual, Want: *expected}
	}
	return nil
}

// BeginFromSpan returns the first ID included in x.
func BeginFromSpan(x Span) ID {
	lb, ok := x.LowerBound()
	if !ok {
		return ID{}
	}
	if !x.IncludesLower() {
		lb = lb.Successor()
	}
	return lb
}
