// Package hash provides the deterministic, seeded, non-cryptographic string
// hash the indexing core uses to key its dictionary entries. Two engine
// instances opened against the same base directory must produce identical
// hashes for the same token, or lookups fail silently — this is the only
// piece of durable schema besides the file layout itself, so the seed and
// algorithm are fixed constants, not configuration.
package hash

import "github.com/cespare/xxhash/v2"

// Seed is mixed into every digest before the token bytes, as an 8-byte
// little-endian prefix.
const Seed uint64 = 0x12345678

// Width identifies which on-disk dictionary-entry layout a Func produces
// hashes for: 4-byte hashes (Width32) or 8-byte hashes (Width64).
type Width int

const (
	Width32 Width = 32
	Width64 Width = 64
)

// Func is a seeded string hash. Sum always returns a uint64; Width32
// implementations fold their result into the low bits so callers can carry
// a single numeric type regardless of variant.
type Func interface {
	Width() Width
	Sum(token string) uint64
}

// New returns the Func for the requested width. Any width other than 32 or
// 64 returns the 64-bit implementation (the engine's default).
func New(w Width) Func {
	if w == Width32 {
		return hash32{}
	}
	return hash64{}
}

type hash64 struct{}

func (hash64) Width() Width { return Width64 }

func (hash64) Sum(token string) uint64 {
	d := xxhash.New()
	var seedBuf [8]byte
	putUint64LE(seedBuf[:], Seed)
	d.Write(seedBuf[:])
	d.Write([]byte(token))
	return d.Sum64()
}

type hash32 struct{}

func (hash32) Width() Width { return Width32 }

// Sum XOR-folds the 64-bit digest into 32 bits: a deterministic derivation
// that needs no second hash family and stays stable across processes, which
// is all the spec requires of a 32-bit variant.
func (hash32) Sum(token string) uint64 {
	full := hash64{}.Sum(token)
	folded := uint32(full>>32) ^ uint32(full)
	return uint64(folded)
}

func putUint64LE(b []byte, v uint64) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	b[4] = byte(v >> 32)
	b[5] = byte(v >> 40)
	b[6] = byte(v >> 48)
	b[7] = byte(v >> 56)
}
