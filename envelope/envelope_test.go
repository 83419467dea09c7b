package envelope

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/multiformats/go-multihash"

	"xdao.co/dsv/fingerprint"
	"xdao.co/dsv/metadata"
	"xdao.co/dsv/statevector"
)

func vectorOf(t *testing.T, data []byte) statevector.StateVector {
	t.Helper()
	v, err := statevector.Vectorize(data)
	if err != nil {
		t.Fatalf("Vectorize: %v", err)
	}
	return v
}

func TestEnvelope_RoundTripPreservesFields(t *testing.T) {
	v := vectorOf(t, []byte("This is the integrity test string."))

	b, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(b)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !bytes.Equal(got.Payload(), v.Payload()) {
		t.Fatalf("payload changed")
	}
	if got.Fingerprint() != v.Fingerprint() {
		t.Fatalf("fingerprint changed")
	}
	if got.Metadata() != v.Metadata() {
		t.Fatalf("metadata changed: %+v vs %+v", got.Metadata(), v.Metadata())
	}

	out, err := statevector.ReconstituteVerified(got)
	if err != nil {
		t.Fatalf("ReconstituteVerified: %v", err)
	}
	if string(out) != "This is the integrity test string." {
		t.Fatalf("unexpected bytes: %q", out)
	}
}

func TestEnvelope_Deterministic(t *testing.T) {
	v := vectorOf(t, bytes.Repeat([]byte("determinism "), 64))
	a, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	b, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("expected identical envelope bytes")
	}
}

func TestEnvelope_PreservesForgedVectors(t *testing.T) {
	v := vectorOf(t, []byte("forge me"))
	fp := v.Fingerprint()
	fp[0]++
	forged := statevector.New(v.Payload(), fp, metadata.Metadata{OriginalSize: 99, DataType: "x/forged"})

	b, err := Marshal(forged)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(b)
	if err != nil {
		t.Fatalf("Unmarshal must not verify content: %v", err)
	}
	if got.Fingerprint() != fp || got.Metadata().OriginalSize != 99 {
		t.Fatalf("forged fields not preserved")
	}
	if _, err := statevector.ReconstituteVerified(got); !statevector.IsKind(err, statevector.KindIntegrity) {
		t.Fatalf("expected KindIntegrity, got %v", err)
	}
}

func TestUnmarshal_Malformed(t *testing.T) {
	v := vectorOf(t, []byte("x"))
	valid, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	version := uint64(Version)
	sha512, err := multihash.Sum([]byte("x"), multihash.SHA2_512, -1)
	if err != nil {
		t.Fatalf("multihash.Sum: %v", err)
	}
	otherHash, err := cbor.Marshal(wireVector{
		Version:     &version,
		Payload:     v.Payload(),
		Fingerprint: sha512,
		Metadata:    &wireMetadata{OriginalSize: 1, DataType: metadata.DefaultDataType},
	})
	if err != nil {
		t.Fatalf("cbor.Marshal: %v", err)
	}
	noMetadata, err := cbor.Marshal(map[int]any{1: Version, 2: v.Payload(), 3: []byte(mustMultihash(t, v.Fingerprint()))})
	if err != nil {
		t.Fatalf("cbor.Marshal: %v", err)
	}
	unknownField, err := cbor.Marshal(map[int]any{1: Version, 9: "extra"})
	if err != nil {
		t.Fatalf("cbor.Marshal: %v", err)
	}

	cases := map[string][]byte{
		"empty":        {},
		"garbage":      {0xff, 0x00, 0x13},
		"truncated":    valid[:len(valid)-3],
		"trailing":     append(append([]byte(nil), valid...), 0x00),
		"otherHash":    otherHash,
		"noMetadata":   noMetadata,
		"unknownField": unknownField,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Unmarshal(in)
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestUnmarshal_UnsupportedVersion(t *testing.T) {
	v := vectorOf(t, []byte("x"))
	version := uint64(Version + 1)
	b, err := cbor.Marshal(wireVector{
		Version:     &version,
		Payload:     v.Payload(),
		Fingerprint: mustMultihash(t, v.Fingerprint()),
		Metadata:    &wireMetadata{OriginalSize: 1},
	})
	if err != nil {
		t.Fatalf("cbor.Marshal: %v", err)
	}
	if _, err := Unmarshal(b); !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func mustMultihash(t *testing.T, f fingerprint.Fingerprint) multihash.Multihash {
	t.Helper()
	mh, err := f.Multihash()
	if err != nil {
		t.Fatalf("Multihash: %v", err)
	}
	return mh
}
