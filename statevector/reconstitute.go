package statevector

import "xdao.co/dsv/codec"

// Reconstitute decodes v's payload and returns the candidate bytes.
//
// It does not check the fingerprint: a vector whose payload decodes cleanly
// but was substituted or forged is returned as-is. Pass the result to Verify,
// or use ReconstituteVerified.
func Reconstitute(v StateVector) ([]byte, error) {
	out, err := codec.Decompress(v.payload)
	if err != nil {
		return nil, NewError(KindDecompression, "decompress payload", err)
	}
	return out, nil
}

// ReconstituteVerified decodes v's payload and accepts the result only if it
// matches v's fingerprint.
//
// The outcome is exactly one of: a KindDecompression error, a KindIntegrity
// error, or the trusted original bytes.
func ReconstituteVerified(v StateVector) ([]byte, error) {
	out, err := Reconstitute(v)
	if err != nil {
		return nil, err
	}
	if !Verify(v, out) {
		return nil, &Error{
			Kind:    KindIntegrity,
			Message: "fingerprint mismatch: want " + v.fingerprint.String(),
		}
	}
	return out, nil
}

// ReconstituteBounded is ReconstituteVerified for vectors of unknown origin.
// Decoding stops once the output exceeds the vector's claimed
// Metadata().OriginalSize, which is reported as KindDecompression wrapping
// codec.ErrTooLarge. A payload that decodes to fewer bytes than claimed is
// left to the fingerprint check.
func ReconstituteBounded(v StateVector) ([]byte, error) {
	out, err := codec.DecompressLimit(v.payload, v.metadata.OriginalSize)
	if err != nil {
		return nil, NewError(KindDecompression, "decompress payload", err)
	}
	if !Verify(v, out) {
		return nil, &Error{
			Kind:    KindIntegrity,
			Message: "fingerprint mismatch: want " + v.fingerprint.String(),
		}
	}
	return out, nil
}
