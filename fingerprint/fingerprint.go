// Package fingerprint computes the fixed-size digest that identifies the
// original bytes of a state vector.
//
// The digest is SHA-256. It is always taken over uncompressed data, so two
// vectors holding the same original bytes carry the same fingerprint even if
// their compressed payloads differ.
package fingerprint

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	sha256 "github.com/minio/sha256-simd"
	"github.com/multiformats/go-multihash"
)

var errUndefinedCID = errors.New("fingerprint: undefined cid")

// Size is the byte length of a Fingerprint.
const Size = sha256.Size

// Fingerprint is a SHA-256 digest.
type Fingerprint [Size]byte

// Sum returns the fingerprint of data. It is total: every byte sequence,
// including the empty one, has exactly one fingerprint.
func Sum(data []byte) Fingerprint {
	return Fingerprint(sha256.Sum256(data))
}

// Equal reports whether f and other are byte-for-byte identical.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return subtle.ConstantTimeCompare(f[:], other[:]) == 1
}

// IsZero reports whether f is the all-zero value (never a real digest in practice).
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Multihash encodes f as a sha2-256 multihash.
func (f Fingerprint) Multihash() (multihash.Multihash, error) {
	return multihash.Encode(f[:], multihash.SHA2_256)
}

// FromMultihash extracts a Fingerprint from a sha2-256 multihash.
// Any other hash function or digest length is rejected.
func FromMultihash(mh []byte) (Fingerprint, error) {
	dec, err := multihash.Decode(mh)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint: invalid multihash: %w", err)
	}
	if dec.Code != multihash.SHA2_256 {
		return Fingerprint{}, fmt.Errorf("fingerprint: unsupported hash function %q", dec.Name)
	}
	if dec.Length != Size || len(dec.Digest) != Size {
		return Fingerprint{}, fmt.Errorf("fingerprint: digest must be %d bytes, got %d", Size, len(dec.Digest))
	}
	var f Fingerprint
	copy(f[:], dec.Digest)
	return f, nil
}

// Parse decodes a hex-encoded fingerprint as produced by String.
func Parse(s string) (Fingerprint, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint: %w", err)
	}
	if len(b) != Size {
		return Fingerprint{}, fmt.Errorf("fingerprint: expected %d bytes, got %d", Size, len(b))
	}
	var f Fingerprint
	copy(f[:], b)
	return f, nil
}
