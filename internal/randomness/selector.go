package randomness

import (
	"errors"
	"math/big"
)

// ErrInvalidRndLength is returned when the supplied digest is shorter
// than the 16 bytes selector requires. Derive always produces 32
// bytes, so this is unreachable in normal operation; it is kept as
// defense-in-depth per spec §9 open question 5.
var ErrInvalidRndLength = errors.New("randomness: digest too short for selection")

// two128 is 2^128, used to bound the bias argument below.
var two128 = new(big.Int).Lsh(big.NewInt(1), 128)

// Selector reduces the first 16 bytes of rnd, interpreted as a
// big-endian unsigned 128-bit integer, modulo n. Bias introduced by
// this reduction is bounded by 2^-64 when n <= 2^64 (spec §4.1, §8 P5).
func Selector(n uint8, rnd []byte) (uint8, error) {
	if len(rnd) < 16 {
		return 0, ErrInvalidRndLength
	}
	if n == 0 {
		return 0, errors.New("randomness: n must be positive")
	}

	m := new(big.Int).SetBytes(rnd[:16])
	mod := new(big.Int).SetUint64(uint64(n))
	result := new(big.Int).Mod(m, mod)

	return uint8(result.Uint64()), nil
}

// biasBound returns an upper bound on the statistical distance from
// uniform introduced by reducing a uniform 128-bit integer modulo n,
// used only in tests to document P5 rather than in the hot path.
func biasBound(n uint64) *big.Rat {
	// bias <= n / 2^128, safely below 2^-64 for any n <= 2^64.
	return new(big.Rat).SetFrac(new(big.Int).SetUint64(n), two128)
}
