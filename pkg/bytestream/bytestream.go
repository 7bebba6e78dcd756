// Package bytestream implements the lazy byte-chunk sequence primitives
// used to carry request and response bodies through the pipeline without
// forcing full materialization.
package bytestream

import (
	"errors"
	"io"
)

// HintKind discriminates the three shapes a remaining-length hint can take.
type HintKind int

const (
	// HintUnknown means the remaining size cannot be predicted.
	HintUnknown HintKind = iota
	// HintExact means exactly N bytes remain.
	HintExact
	// HintBounded means between Min and Max bytes remain.
	HintBounded
)

// Hint is the remaining-length hint attached to a Stream.
type Hint struct {
	Kind     HintKind
	Min, Max int64 // valid only when Kind == HintBounded
	N        int64 // valid only when Kind == HintExact
}

// Exact builds an exact-length hint.
func Exact(n int64) Hint { return Hint{Kind: HintExact, N: n} }

// Bounded builds a bounded hint.
func Bounded(min, max int64) Hint { return Hint{Kind: HintBounded, Min: min, Max: max} }

// Unknown is the hint for streams whose length cannot be predicted.
var Unknown = Hint{Kind: HintUnknown}

// Stream is a lazily-consumed sequence of opaque byte chunks. It wraps an
// io.Reader (the body's natural Go representation) together with a
// length hint that downstream stages use without having to buffer the
// body themselves. A Stream is consumed once; passing it to a function
// transfers exclusive ownership of the underlying reader.
type Stream struct {
	R    io.Reader
	hint Hint
}

// New wraps r with the given hint.
func New(r io.Reader, hint Hint) *Stream {
	return &Stream{R: r, hint: hint}
}

// FromExactReader wraps r, recording an exact remaining length. This is the
// common case: an HTTP body with a known Content-Length.
func FromExactReader(r io.Reader, n int64) *Stream {
	return New(r, Exact(n))
}

// Hint returns the stream's remaining-length hint. It never blocks.
func (s *Stream) Hint() Hint { return s.hint }

// SetHint overrides the stream's hint, used when a decorator (chunked
// decoder, upload-stream wrapper) changes the effective remaining size.
func (s *Stream) SetHint(h Hint) { s.hint = h }

// Read implements io.Reader, suspending (blocking) on the underlying
// reader. This is the sole suspension point of the byte-stream contract.
func (s *Stream) Read(p []byte) (int, error) {
	return s.R.Read(p)
}

// ErrTooLarge is returned by StoreAllLimited when the aggregate size
// would exceed the configured maximum.
var ErrTooLarge = errors.New("bytestream: aggregate size exceeds limit")

// StoreAll concatenates the stream into a single byte slice. Callers
// should prefer StoreAllLimited unless the size is already known to be
// bounded by an outer check (e.g. Content-Length was validated).
func StoreAll(s *Stream) ([]byte, error) {
	return io.ReadAll(s)
}

// StoreAllLimited concatenates the stream into a single byte slice,
// failing with ErrTooLarge if more than max bytes would be read. It never
// buffers more than max+1 bytes before failing.
func StoreAllLimited(s *Stream, max int64) ([]byte, error) {
	if h := s.Hint(); h.Kind == HintExact && h.N > max {
		return nil, ErrTooLarge
	}
	lr := io.LimitReader(s, max+1)
	buf, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(buf)) > max {
		return nil, ErrTooLarge
	}
	return buf, nil
}
