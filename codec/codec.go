// Package codec is the lossless compressor behind state vector payloads.
//
// Payloads are single zstd frames. The algorithm is fixed: a payload carries
// no algorithm tag, and readers never negotiate one.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Name identifies the payload format.
const Name = "zstd"

// WindowSize is the largest zstd window Compress produces and the largest
// either decoder accepts.
const WindowSize = 8 << 20

var (
	// ErrMalformed is returned by Decompress when the payload is not a
	// complete, well-formed zstd stream.
	ErrMalformed = errors.New("codec: malformed payload")

	// ErrEncoder is returned by Compress when the encoder cannot be built.
	ErrEncoder = errors.New("codec: encoder unavailable")

	// ErrTooLarge is returned by DecompressLimit when the payload decodes to
	// more bytes than allowed.
	ErrTooLarge = errors.New("codec: decoded size exceeds limit")
)

// The encoder and decoder are immutable after construction and safe for
// concurrent use; EncodeAll/DecodeAll keep no state between calls.
var (
	encoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithWindowSize(WindowSize),
			zstd.WithEncoderCRC(true),
			// Empty input still yields a complete frame, so a valid payload
			// is never zero-length.
			zstd.WithZeroFrames(true),
		)
	})
	decoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil, zstd.WithDecoderMaxWindow(WindowSize))
	})
)

// Compress encodes data into a single zstd frame.
func Compress(data []byte) ([]byte, error) {
	enc, err := encoder()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncoder, err)
	}
	return enc.EncodeAll(data, nil), nil
}

// Decompress decodes a payload produced by Compress.
//
// Framing problems (empty input, wrong magic, truncation, checksum failure)
// are reported as ErrMalformed. Decompress never judges whether the decoded
// bytes are the "right" ones; that is the fingerprint's job.
func Decompress(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformed)
	}
	dec, err := decoder()
	if err != nil {
		return nil, fmt.Errorf("%w: decoder unavailable: %w", ErrMalformed, err)
	}
	out, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if out == nil {
		out = []byte{}
	}
	return out, nil
}

// DecompressLimit is Decompress for payloads of unknown origin: decoding
// stops as soon as the output would exceed limit bytes, and ErrTooLarge is
// returned. Memory use is bounded by limit plus the decoder window, whatever
// sizes the frame headers claim.
func DecompressLimit(payload []byte, limit uint64) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformed)
	}
	dec, err := zstd.NewReader(bytes.NewReader(payload),
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true),
		zstd.WithDecoderMaxWindow(WindowSize),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: decoder unavailable: %w", ErrMalformed, err)
	}
	defer dec.Close()

	n := int64(math.MaxInt64)
	if limit < math.MaxInt64 {
		n = int64(limit) + 1
	}
	out, err := io.ReadAll(io.LimitReader(dec, n))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if uint64(len(out)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return out, nil
}
