// package numc compiles numeric expression graphs into flat arithmetic programs.
package numc

import (
	"lukechampine.com/blake3"

	"elementlang.org/numc/internal/cadata"
)

const (
	// MaxModuleSize is the largest LMNT module which will be stored.
	MaxModuleSize = 1 << 20
)

type (
	// CID is a Content ID
	CID = cadata.ID

	Store  = cadata.Store
	Getter = cadata.Getter
	Poster = cadata.Poster
)

// Hash calculates the hash of x.
// If tag == nil, then the hash is unkeyed.
// If tag != nil, then the hash will be keyed with the tag.
func Hash(tag *cadata.ID, x []byte) (ret cadata.ID) {
	var key []byte
	if tag != nil {
		key = tag[:]
	}
	h := blake3.New(32, key)
	h.Write(x)
	h.Sum(ret[:0])
	return ret
}

// moduleTag keys the hash of LMNT modules
var moduleTag = Hash(nil, []byte("numc/lmnt"))

// ModuleHash returns the CID of an LMNT module.
func ModuleHash(data []byte) CID {
	return Hash(&moduleTag, data)
}
