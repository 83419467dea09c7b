package vectorrpc

import (
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"xdao.co/dsv/statevector"
	"xdao.co/dsv/storage"
)

// ErrRejected matches every *RejectedError.
var ErrRejected = errors.New("vectorrpc: vector rejected")

// errorDomain scopes the ErrorInfo detail attached to rejections.
const errorDomain = "vectorrpc.dsv.xdao.co"

// reasonEnvelope is the ErrorInfo reason for envelopes that do not decode.
// Every other rejection uses its statevector.Kind as the reason.
const reasonEnvelope = "Envelope"

// RejectedError is returned by Client.Put when the server refused the
// envelope.
type RejectedError struct {
	Code codes.Code
	// Kind is empty when the envelope itself could not be decoded.
	Kind    statevector.Kind
	Message string
}

func (e *RejectedError) Error() string {
	return ErrRejected.Error() + ": " + e.Message
}

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

// RejectionKind returns the statevector.Kind of a rejection from Client.Put,
// or "" for envelope rejections and for other errors.
func RejectionKind(err error) statevector.Kind {
	var re *RejectedError
	if !errors.As(err, &re) {
		return ""
	}
	return re.Kind
}

func rejection(code codes.Code, reason string, err error) error {
	st := status.New(code, err.Error())
	if withInfo, derr := st.WithDetails(&errdetails.ErrorInfo{Reason: reason, Domain: errorDomain}); derr == nil {
		st = withInfo
	}
	return st.Err()
}

func rejectionInfo(st *status.Status) (*errdetails.ErrorInfo, bool) {
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == errorDomain {
			return info, true
		}
	}
	return nil, false
}

func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	if info, ok := rejectionInfo(st); ok {
		re := &RejectedError{Code: st.Code(), Message: st.Message()}
		if info.GetReason() != reasonEnvelope {
			re.Kind = statevector.Kind(info.GetReason())
		}
		return re
	}

	switch st.Code() {
	case codes.NotFound:
		return storage.ErrNotFound
	case codes.InvalidArgument:
		return storage.ErrInvalidCID
	case codes.DataLoss:
		return storage.ErrCIDMismatch
	default:
		switch st.Message() {
		case storage.ErrNotFound.Error():
			return storage.ErrNotFound
		case storage.ErrInvalidCID.Error():
			return storage.ErrInvalidCID
		case storage.ErrCIDMismatch.Error():
			return storage.ErrCIDMismatch
		default:
			return err
		}
	}
}
