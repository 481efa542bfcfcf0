package scroll

import (
	"fmt"

	"github.com/scrollkeep/scrollkeep/chainquery"
)

// ErrNotFound is the engine-level alias for a pointer that resolves to
// nothing on chain. It is the same sentinel the query client returns, so
// errors.Is matches across both layers.
var ErrNotFound = chainquery.ErrNotFound

// ErrAborted marks a reconstruction cancelled by the caller. Partially
// fetched state is discarded, never returned.
var ErrAborted = fmt.Errorf("reconstruction aborted")

// DecodeError reports a container or payload that could not be
// interpreted as bytes.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode: %s: %v", e.Reason, e.Err)
	}
	return "decode: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// AssemblyError reports a page set that violates the ordering invariant:
// zero pages, an index gap, or a count that contradicts the manifest.
type AssemblyError struct {
	Reason string
}

func (e *AssemblyError) Error() string {
	return "assemble: " + e.Reason
}

// CodecError reports a declared compression transform that failed to
// invert.
type CodecError struct {
	Codec string
	Err   error
}

func (e *CodecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("codec %q: %v", e.Codec, e.Err)
	}
	return fmt.Sprintf("codec %q failed", e.Codec)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}
