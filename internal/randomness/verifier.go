// Package randomness implements the Randomness Verifier (RV): BLS12-381
// min-pk signature verification over a beacon round, derivation of a
// per-round seed digest, and unbiased reduction of that digest to a
// winning number (spec §4.1).
//
// Verification uses github.com/supranational/blst, an audited
// BLS12-381 implementation used by drand and Ethereum consensus
// clients for this exact signature scheme (min-pk: public keys in G1,
// signatures in G2).
package randomness

import (
	"crypto/sha256"
	"errors"

	blst "github.com/supranational/blst/bindings/go"
)

// dst is the domain separation tag for BLS signatures over G2, the
// standard tag used by drand and the Ethereum consensus BLS12-381
// min-pk ciphersuite.
var dst = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_POP_")

// PublicKeySize is the compressed size of a min-pk BLS12-381 public
// key (a G1 element).
const PublicKeySize = 48

// SignatureSize is the compressed size of a min-pk BLS12-381 signature
// (a G2 element).
const SignatureSize = 96

// ErrInvalidProof is returned when signature verification fails, for
// any reason (malformed key, malformed signature, or a genuine
// cryptographic mismatch) — the specification reports verification
// failure as a single error kind (spec §6, drand-1).
var ErrInvalidProof = errors.New("randomness: invalid proof")

// Verifier checks beacon signatures against a hard-coded deployment
// public key.
type Verifier struct {
	pubKey *blst.P1Affine
}

// NewVerifier constructs a Verifier from a 48-byte compressed min-pk
// BLS12-381 public key. The key is fixed for the lifetime of the
// deployment (spec §3: "hard-coded beacon public key").
func NewVerifier(pubKeyBytes []byte) (*Verifier, error) {
	if len(pubKeyBytes) != PublicKeySize {
		return nil, ErrInvalidProof
	}
	pk := new(blst.P1Affine).Uncompress(pubKeyBytes)
	if pk == nil || !pk.KeyValidate() {
		return nil, ErrInvalidProof
	}
	return &Verifier{pubKey: pk}, nil
}

// Verify checks that sig is a valid BLS12-381 min-pk signature under
// the deployment's public key over the message SHA-256(seed).
func (v *Verifier) Verify(sig, seed []byte) error {
	if len(sig) != SignatureSize {
		return ErrInvalidProof
	}
	sigPoint := new(blst.P2Affine).Uncompress(sig)
	if sigPoint == nil {
		return ErrInvalidProof
	}

	msg := sha256.Sum256(seed)

	if !sigPoint.Verify(true, v.pubKey, true, msg[:], dst) {
		return ErrInvalidProof
	}
	return nil
}
