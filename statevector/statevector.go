package statevector

import (
	"xdao.co/dsv/fingerprint"
	"xdao.co/dsv/metadata"
)

// StateVector is the immutable {compressed payload, fingerprint, metadata}
// aggregate.
//
// The zero value is not a valid vector; obtain one from Vectorize or New.
type StateVector struct {
	payload     []byte
	fingerprint fingerprint.Fingerprint
	metadata    metadata.Metadata
}

// New assembles a StateVector from its parts. The payload is copied.
//
// New performs no validation: a vector built this way is only as trustworthy
// as its fields, which is exactly what Verify and ReconstituteVerified check.
// Serialization layers use New to rebuild vectors they decoded.
func New(payload []byte, fp fingerprint.Fingerprint, md metadata.Metadata) StateVector {
	return StateVector{
		payload:     clone(payload),
		fingerprint: fp,
		metadata:    md,
	}
}

// Payload returns a copy of the compressed payload.
func (v StateVector) Payload() []byte { return clone(v.payload) }

// PayloadSize returns the compressed payload length without copying it.
func (v StateVector) PayloadSize() int { return len(v.payload) }

// Fingerprint returns the digest of the original, uncompressed bytes.
func (v StateVector) Fingerprint() fingerprint.Fingerprint { return v.fingerprint }

// Metadata returns the descriptive attributes of the original bytes.
func (v StateVector) Metadata() metadata.Metadata { return v.metadata }

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
