package statevector

import "errors"

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind rather than matching error strings.
// Use errors.As to extract *Error, or IsKind for a quick check.
type Kind string

const (
	// KindCompression: the encoder failed while vectorizing.
	KindCompression Kind = "Compression"
	// KindDecompression: the payload is not a valid, complete encoding.
	KindDecompression Kind = "Decompression"
	// KindIntegrity: the payload decoded, but the bytes do not match the
	// vector's fingerprint.
	KindIntegrity Kind = "Integrity"
	// KindHashing is reserved for catastrophic digest failures. Computing a
	// fingerprint cannot fail; collaborators use this kind when a fingerprint
	// cannot be expressed in their encoding.
	KindHashing Kind = "Hashing"
)

// Error is the package's structured error type.
//
// Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return string(e.Kind) + ": " + e.Message
	}
	return string(e.Kind) + ": " + e.Message + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewError returns a structured error of the given kind. It is exported for
// collaborators that surface core failure kinds from their own layers.
func NewError(kind Kind, msg string, cause error) error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf returns the Kind of a structured error, or "" if err is not one.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}
