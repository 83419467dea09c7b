// Package statevector turns raw bytes into a compact, self-verifying
// StateVector and back.
//
// The pipeline has three steps:
//
//	RAW --Vectorize--> VECTOR --Reconstitute--> CANDIDATE --Verify--> TRUSTED | REJECTED
//
// Reconstitute only decodes; Verify only compares fingerprints. Callers that
// want both in one call use ReconstituteVerified, which reports a
// decompression failure and an integrity mismatch as different Kinds.
//
// Every function in this package is pure: no shared state, no I/O, no
// logging. All of them may be called concurrently without coordination.
package statevector
