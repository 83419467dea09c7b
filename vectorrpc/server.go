package vectorrpc

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/dsv/codec"
	"xdao.co/dsv/envelope"
	"xdao.co/dsv/fingerprint"
	"xdao.co/dsv/statevector"
	"xdao.co/dsv/storage"
)

// DefaultMaxOriginalSize bounds the original size a Put may claim when
// Server.MaxOriginalSize is zero.
const DefaultMaxOriginalSize = 256 << 20

var discardLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

// Server exposes a storage.CAS of encoded envelopes over the Vectors service.
//
// Put only stores envelopes that decode and reconstitute to bytes matching
// their fingerprint. Decoding never runs past the size the envelope claims,
// and claims above MaxOriginalSize are refused before any decoding. The
// envelope bytes are stored as received.
type Server struct {
	UnimplementedVectorsServer
	CAS storage.CAS

	// MaxOriginalSize caps the claimed original size of a Put.
	// Zero means DefaultMaxOriginalSize.
	MaxOriginalSize uint64

	// Logger receives one entry per rejected Put. Nil discards.
	Logger logrus.FieldLogger
}

func (s *Server) Put(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	_ = ctx
	if s == nil || s.CAS == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing CAS")
	}
	b := in.GetValue()
	if err := s.admit(b); err != nil {
		s.logger().WithField("bytes", len(b)).WithError(err).Warn("rejected vector")
		return nil, err
	}

	expected, err := fingerprint.CID(b)
	if err != nil {
		return nil, status.Error(codes.Internal, "cid computation failed")
	}
	id, err := s.CAS.Put(b)
	if err != nil {
		return nil, mapErr(err)
	}
	if !id.Equals(expected) {
		return nil, status.Error(codes.Internal, storage.ErrCIDMismatch.Error())
	}
	return wrapperspb.String(id.String()), nil
}

func (s *Server) Get(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	if s == nil || s.CAS == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing CAS")
	}
	id, err := cid.Decode(in.GetValue())
	if err != nil || !id.Defined() {
		return nil, status.Error(codes.InvalidArgument, storage.ErrInvalidCID.Error())
	}
	b, err := s.CAS.Get(id)
	if err != nil {
		return nil, mapErr(err)
	}
	got, err := fingerprint.CID(b)
	if err != nil {
		return nil, status.Error(codes.Internal, "cid computation failed")
	}
	if !got.Equals(id) {
		return nil, status.Error(codes.DataLoss, storage.ErrCIDMismatch.Error())
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Has(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	_ = ctx
	if s == nil || s.CAS == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing CAS")
	}
	id, err := cid.Decode(in.GetValue())
	if err != nil || !id.Defined() {
		return nil, status.Error(codes.InvalidArgument, storage.ErrInvalidCID.Error())
	}
	return wrapperspb.Bool(s.CAS.Has(id)), nil
}

func (s *Server) logger() logrus.FieldLogger {
	if s.Logger != nil {
		return s.Logger
	}
	return discardLogger
}

func (s *Server) maxOriginalSize() uint64 {
	if s.MaxOriginalSize > 0 {
		return s.MaxOriginalSize
	}
	return DefaultMaxOriginalSize
}

// admit returns a status error if b is not a trustworthy envelope.
func (s *Server) admit(b []byte) error {
	v, err := envelope.Unmarshal(b)
	if err != nil {
		return rejection(codes.InvalidArgument, reasonEnvelope, err)
	}
	if claimed, limit := v.Metadata().OriginalSize, s.maxOriginalSize(); claimed > limit {
		err := statevector.NewError(statevector.KindDecompression,
			fmt.Sprintf("claimed original size %d exceeds limit %d", claimed, limit), codec.ErrTooLarge)
		return rejection(codes.InvalidArgument, string(statevector.KindDecompression), err)
	}
	if _, err := statevector.ReconstituteBounded(v); err != nil {
		kind := statevector.KindOf(err)
		if kind == statevector.KindIntegrity {
			return rejection(codes.DataLoss, string(kind), err)
		}
		return rejection(codes.InvalidArgument, string(kind), err)
	}
	return nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return status.Error(codes.NotFound, storage.ErrNotFound.Error())
	case errors.Is(err, storage.ErrInvalidCID):
		return status.Error(codes.InvalidArgument, storage.ErrInvalidCID.Error())
	case errors.Is(err, storage.ErrCIDMismatch):
		return status.Error(codes.DataLoss, storage.ErrCIDMismatch.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
