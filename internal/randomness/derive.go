package randomness

import (
	"crypto/sha256"
	"encoding/binary"
)

// Derive computes SHA-256(sig || be64(timestampMillis)), a 32-byte
// digest binding the beacon signature to the settlement moment (spec
// §4.1). Replaying the same (sig, seed) at a different settlement time
// yields a different digest.
func Derive(sig []byte, timestampMillis uint64) [32]byte {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], timestampMillis)

	h := sha256.New()
	h.Write(sig)
	h.Write(ts[:])

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
