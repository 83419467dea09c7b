// Package vectorstore keeps state vectors in a content-addressable store.
//
// Vectors are stored as envelopes, so a vector's address is the CID of its
// envelope bytes. The storage layer guarantees the envelope bytes are the ones
// that were written; this package adds the guarantee that the data inside
// them is the data that was vectorized.
package vectorstore

import (
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	"github.com/sirupsen/logrus"

	"xdao.co/dsv/envelope"
	"xdao.co/dsv/statevector"
	"xdao.co/dsv/storage"
)

const defaultConcurrency = 4

// Store reads and writes vectors through a storage.CAS.
type Store struct {
	cas         storage.CAS
	logger      logrus.FieldLogger
	concurrency int
	vectorize   []statevector.Option
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used by Patrol. The default discards output.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithConcurrency bounds the number of vectors Patrol checks at once.
func WithConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithVectorizeOptions sets the options Write passes to statevector.Vectorize.
func WithVectorizeOptions(opts ...statevector.Option) Option {
	return func(s *Store) { s.vectorize = append(s.vectorize, opts...) }
}

func New(cas storage.CAS, opts ...Option) *Store {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	s := &Store{
		cas:         cas,
		logger:      discard,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CAS returns the underlying store.
func (s *Store) CAS() storage.CAS { return s.cas }

// Put stores v and returns its address.
func (s *Store) Put(v statevector.StateVector) (cid.Cid, error) {
	b, err := envelope.Marshal(v)
	if err != nil {
		return cid.Undef, fmt.Errorf("vectorstore: encode: %w", err)
	}
	id, err := s.cas.Put(b)
	if err != nil {
		return cid.Undef, fmt.Errorf("vectorstore: put: %w", err)
	}
	return id, nil
}

// Get loads the vector stored under id. The vector is not verified.
func (s *Store) Get(id cid.Cid) (statevector.StateVector, error) {
	b, err := s.cas.Get(id)
	if err != nil {
		return statevector.StateVector{}, fmt.Errorf("vectorstore: get %s: %w", id, err)
	}
	v, err := envelope.Unmarshal(b)
	if err != nil {
		return statevector.StateVector{}, fmt.Errorf("vectorstore: decode %s: %w", id, err)
	}
	return v, nil
}

// Has reports whether a vector is stored under id.
func (s *Store) Has(id cid.Cid) bool { return s.cas.Has(id) }

// Write vectorizes data and stores the result.
func (s *Store) Write(data []byte) (cid.Cid, error) {
	v, err := statevector.Vectorize(data, s.vectorize...)
	if err != nil {
		return cid.Undef, err
	}
	return s.Put(v)
}

// Read loads the vector stored under id and returns its original bytes,
// accepting them only if they match the vector's fingerprint.
//
// Decoding stops at the vector's claimed original size. Decompression and
// integrity failures carry their statevector.Kind.
func (s *Store) Read(id cid.Cid) ([]byte, error) {
	v, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	out, err := statevector.ReconstituteBounded(v)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: read %s: %w", id, err)
	}
	return out, nil
}
