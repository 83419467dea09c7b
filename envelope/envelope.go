// Package envelope serializes state vectors for storage and transport.
//
// An envelope is a CBOR map encoded with Core Deterministic Encoding
// (RFC 8949 §4.2), so the same vector always produces the same bytes and the
// envelope itself can be content-addressed:
//
//	{1: version, 2: payload, 3: fingerprint multihash, 4: {1: original_size, 2: data_type}}
//
// The fingerprint is carried as a sha2-256 multihash. Unmarshal rebuilds the
// vector with statevector.New; it neither decompresses nor verifies. A decoded
// envelope is therefore untrusted until statevector.ReconstituteBounded
// accepts it.
package envelope

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"xdao.co/dsv/fingerprint"
	"xdao.co/dsv/metadata"
	"xdao.co/dsv/statevector"
)

// Version is the only envelope format version this package reads or writes.
const Version = 1

var (
	ErrMalformed          = errors.New("envelope: malformed")
	ErrUnsupportedVersion = errors.New("envelope: unsupported version")
)

type wireVector struct {
	Version     *uint64       `cbor:"1,keyasint"`
	Payload     []byte        `cbor:"2,keyasint"`
	Fingerprint []byte        `cbor:"3,keyasint"`
	Metadata    *wireMetadata `cbor:"4,keyasint"`
}

type wireMetadata struct {
	OriginalSize uint64 `cbor:"1,keyasint"`
	DataType     string `cbor:"2,keyasint"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("envelope: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
		IndefLength:       cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic("envelope: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v.
//
// The only failure is a fingerprint that cannot be expressed as a sha2-256
// multihash, reported as statevector.KindHashing.
func Marshal(v statevector.StateVector) ([]byte, error) {
	mh, err := v.Fingerprint().Multihash()
	if err != nil {
		return nil, statevector.NewError(statevector.KindHashing, "encode fingerprint multihash", err)
	}
	version := uint64(Version)
	md := v.Metadata()
	return encMode.Marshal(wireVector{
		Version:     &version,
		Payload:     v.Payload(),
		Fingerprint: mh,
		Metadata: &wireMetadata{
			OriginalSize: md.OriginalSize,
			DataType:     md.DataType,
		},
	})
}

// Unmarshal decodes an envelope produced by Marshal.
func Unmarshal(b []byte) (statevector.StateVector, error) {
	var w wireVector
	if err := decMode.Unmarshal(b, &w); err != nil {
		return statevector.StateVector{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if w.Version == nil {
		return statevector.StateVector{}, fmt.Errorf("%w: missing version", ErrMalformed)
	}
	if *w.Version != Version {
		return statevector.StateVector{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, *w.Version)
	}
	if w.Fingerprint == nil {
		return statevector.StateVector{}, fmt.Errorf("%w: missing fingerprint", ErrMalformed)
	}
	if w.Metadata == nil {
		return statevector.StateVector{}, fmt.Errorf("%w: missing metadata", ErrMalformed)
	}
	fp, err := fingerprint.FromMultihash(w.Fingerprint)
	if err != nil {
		return statevector.StateVector{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return statevector.New(w.Payload, fp, metadata.Metadata{
		OriginalSize: w.Metadata.OriginalSize,
		DataType:     w.Metadata.DataType,
	}), nil
}
