package constants

import "regexp"

const (
	AppName = "scrollkeep"

	// RegistryHeadFormat and RegistryListFormat are the format tags a
	// registry head/list document must declare to be accepted.
	RegistryHeadFormat = "scrollkeep/head@v1"
	RegistryListFormat = "scrollkeep/list@v1"

	// TxRefDelimiter separates the transaction hash from the output index
	// in a canonical transaction reference.
	TxRefDelimiter = "#"

	// ManifestRefDelimiter separates a policy id from an optional manifest
	// transaction reference in a canonical paged-metadata pointer.
	ManifestRefDelimiter = "@"

	// MetadataChunkLimit is the ledger's cap on a single metadata string.
	// Page payloads and chunked datum byte strings are emitted in chunks
	// of at most this many bytes.
	MetadataChunkLimit = 64

	TxHashLen   = 64 // hex characters
	PolicyIdLen = 56 // hex characters
)

var (
	TxRefRegexp        = regexp.MustCompile(`^[0-9a-f]{64}#(0|[1-9]\d*)$`)
	PolicyIdRegexp     = regexp.MustCompile(`^[0-9a-f]{56}$`)
	RegistryNameRegexp = regexp.MustCompile(`^[a-z0-9-]{1,64}$`)
)

// Codec identifies the compression transform declared for a scroll.
type Codec string

const (
	CodecNone   Codec = ""
	CodecGzip   Codec = "gzip"
	CodecBrotli Codec = "br"
	// CodecAuto sniffs the payload for a gzip magic number and otherwise
	// passes bytes through unchanged.
	CodecAuto Codec = "auto"
)

func (c Codec) String() string {
	return string(c)
}

// Known reports whether the codec is one this engine can invert.
func (c Codec) Known() bool {
	switch c {
	case CodecNone, Codec("none"), CodecGzip, CodecBrotli, CodecAuto:
		return true
	default:
		return false
	}
}

// Manifest and page record field names as written on chain.
const (
	FieldName        = "name"
	FieldRole        = "role"
	FieldPage        = "page"
	FieldPayload     = "payload"
	FieldPages       = "pages"
	FieldPrefix      = "prefix"
	FieldContentType = "content_type"
	FieldEncoding    = "encoding"
	FieldSHA256      = "sha256"
	FieldPayloadSHA  = "payload_sha256"

	RoleManifest = "manifest"
)
