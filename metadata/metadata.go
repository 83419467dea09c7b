// Package metadata derives the descriptive attributes stored alongside a
// state vector's payload.
package metadata

// DefaultDataType is the generic label for bytes whose type is unknown.
// Describe uses it unless a classifier supplies something else.
const DefaultDataType = "application/octet-stream"

// Metadata describes the original, uncompressed input of a state vector.
type Metadata struct {
	// OriginalSize is the exact byte length of the input.
	OriginalSize uint64
	// DataType is a short, free-form label for the input.
	DataType string
}

// Classifier returns a type label for data, or "" when it has no opinion.
type Classifier func(data []byte) string

// Option configures Describe.
type Option func(*options)

type options struct {
	classifier Classifier
}

// WithClassifier installs a content classifier. Passing nil restores the
// default behavior of never inspecting content.
func WithClassifier(c Classifier) Option {
	return func(o *options) { o.classifier = c }
}

// Describe builds the Metadata for data. It always succeeds.
func Describe(data []byte, opts ...Option) Metadata {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	dataType := DefaultDataType
	if o.classifier != nil {
		if label := o.classifier(data); label != "" {
			dataType = label
		}
	}
	return Metadata{
		OriginalSize: uint64(len(data)),
		DataType:     dataType,
	}
}
