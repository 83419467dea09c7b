package statevector

import "xdao.co/dsv/fingerprint"

// Verify reports whether candidate is exactly the data v was built from.
//
// Equality of fingerprints is the only criterion. Verify never fails; any
// mismatch, including empty-versus-non-empty, yields false.
func Verify(v StateVector, candidate []byte) bool {
	return fingerprint.Sum(candidate).Equal(v.fingerprint)
}
