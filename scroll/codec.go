package scroll

import (
	"bytes"
	"errors"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/scrollkeep/scrollkeep/constants"
)

var (
	gzipMagic       = []byte{0x1f, 0x8b}
	errUnknownCodec = errors.New("unknown codec")
)

// Decompress inverts the declared codec over the assembled payload.
// CodecAuto sniffs the gzip magic number and otherwise passes bytes
// through unchanged; brotli carries no magic number and is only applied
// when declared.
func Decompress(data []byte, c constants.Codec) ([]byte, error) {
	switch c {
	case constants.CodecNone, constants.Codec("none"):
		return data, nil
	case constants.CodecGzip:
		return gunzip(data)
	case constants.CodecBrotli:
		out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, &CodecError{Codec: c.String(), Err: err}
		}
		return out, nil
	case constants.CodecAuto:
		if bytes.HasPrefix(data, gzipMagic) {
			return gunzip(data)
		}
		return data, nil
	}
	return nil, &CodecError{Codec: c.String(), Err: errUnknownCodec}
}

func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, &CodecError{Codec: constants.CodecGzip.String(), Err: err}
	}
	defer func() { _ = r.Close() }()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, &CodecError{Codec: constants.CodecGzip.String(), Err: err}
	}
	return out, nil
}

// Compress applies a codec, the inverse of Decompress. It exists for the
// cache layer and for round-trip tests; the reconstruction path never
// compresses.
func Compress(data []byte, c constants.Codec) ([]byte, error) {
	switch c {
	case constants.CodecNone, constants.Codec("none"), constants.CodecAuto:
		return data, nil
	case constants.CodecGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, &CodecError{Codec: c.String(), Err: err}
		}
		if err := w.Close(); err != nil {
			return nil, &CodecError{Codec: c.String(), Err: err}
		}
		return buf.Bytes(), nil
	case constants.CodecBrotli:
		var buf bytes.Buffer
		w := brotli.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, &CodecError{Codec: c.String(), Err: err}
		}
		if err := w.Close(); err != nil {
			return nil, &CodecError{Codec: c.String(), Err: err}
		}
		return buf.Bytes(), nil
	}
	return nil, &CodecError{Codec: c.String(), Err: errUnknownCodec}
}

// htmlSniffWindow bounds how far into the final bytes the markup
// signature may appear.
const htmlSniffWindow = 100

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// RefineContentType corrects a declared content type against the decoded
// bytes: documents that open with an HTML signature are HTML no matter
// what they were labeled. Anything else keeps the declared type.
func RefineContentType(declared constants.ContentType, body []byte) constants.ContentType {
	window := body
	if len(window) > htmlSniffWindow {
		window = window[:htmlSniffWindow]
	}
	window = bytes.TrimPrefix(window, utf8BOM)
	window = bytes.ToLower(window)
	if bytes.Contains(window, []byte("<!doctype html")) || bytes.Contains(window, []byte("<html")) {
		return constants.ContentTypeTextHtml
	}
	return declared
}
