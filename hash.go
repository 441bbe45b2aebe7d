package bloom

import (
	"github.com/dgryski/go-metro"
	"github.com/spaolacci/murmur3"
)

// DefaultSeed is the seed used by every filter constructor that
// doesn't take an explicit one.
const DefaultSeed uint32 = 1373

// Hash128 produces two independent 64 bit hash values for _data_,
// usually the two halves of a single 128 bit digest. Implementations
// must be deterministic for a given (data, seed) pair and uniformly
// distributed over the output space; any such function can back a
// filter. Every byte slice, including the empty one, is valid input.
type Hash128 func(data []byte, seed uint32) (uint64, uint64)

// Murmur3Hash128 is the default provider, backed by the 128 bit
// x64 variant of murmur3.
func Murmur3Hash128(data []byte, seed uint32) (uint64, uint64) {
	return murmur3.Sum128WithSeed(data, seed)
}

// MetroHash128 is an alternative provider backed by metro hash.
func MetroHash128(data []byte, seed uint32) (uint64, uint64) {
	return metro.Hash128(data, uint64(seed))
}
