package statevector

import (
	"xdao.co/dsv/codec"
	"xdao.co/dsv/fingerprint"
	"xdao.co/dsv/metadata"
)

// Option configures Vectorize.
type Option func(*options)

type options struct {
	describe []metadata.Option
}

// WithClassifier labels the vector's DataType using c. Without it the
// generic metadata.DefaultDataType is recorded.
func WithClassifier(c metadata.Classifier) Option {
	return func(o *options) { o.describe = append(o.describe, metadata.WithClassifier(c)) }
}

// Vectorize compresses data, fingerprints it, and describes it.
//
// The fingerprint and metadata are always computed over data itself, never
// over the compressed payload. On failure no partial vector is returned.
func Vectorize(data []byte, opts ...Option) (StateVector, error) {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	payload, err := codec.Compress(data)
	if err != nil {
		return StateVector{}, NewError(KindCompression, "compress payload", err)
	}

	return StateVector{
		payload:     payload,
		fingerprint: fingerprint.Sum(data),
		metadata:    metadata.Describe(data, o.describe...),
	}, nil
}
