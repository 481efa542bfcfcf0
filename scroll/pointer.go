package scroll

import (
	"fmt"
	"strings"

	"github.com/scrollkeep/scrollkeep/chainquery"
	"github.com/scrollkeep/scrollkeep/constants"
)

// PointerKind tags the closed set of pointer variants.
type PointerKind string

const (
	// PointerInlineDatum locates bytes in one datum attached to one
	// unspendable output.
	PointerInlineDatum PointerKind = "inline-datum"
	// PointerPagedMetadata locates bytes split across metadata records
	// minted under one policy, optionally summarized by a manifest.
	PointerPagedMetadata PointerKind = "paged-metadata"
	// PointerURL locates bytes behind a plain HTTP fetch.
	PointerURL PointerKind = "url"
)

// Pointer describes how to fetch bytes, never the bytes themselves. A
// pointer is immutable once published and carries no authenticity of its
// own; only hash verification establishes trust.
type Pointer struct {
	Kind PointerKind

	TxRef chainquery.TxRef // inline-datum

	PolicyID    string           // paged-metadata
	ManifestRef chainquery.TxRef // paged-metadata, optional

	URL string // url
}

// ParsePointer parses the canonical string forms:
//
//	<64-hex>#<index>                inline-datum
//	<56-hex-policy>                 paged-metadata
//	<56-hex-policy>@<64-hex>#<idx>  paged-metadata with manifest
//	http(s)://...                   url
func ParsePointer(s string) (Pointer, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Pointer{}, fmt.Errorf("empty pointer")
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return Pointer{Kind: PointerURL, URL: s}, nil
	}
	if strings.Contains(s, constants.ManifestRefDelimiter) {
		parts := strings.SplitN(s, constants.ManifestRefDelimiter, 2)
		if !constants.PolicyIdRegexp.MatchString(strings.ToLower(parts[0])) {
			return Pointer{}, fmt.Errorf("invalid policy id %q", parts[0])
		}
		ref, err := chainquery.ParseTxRef(parts[1])
		if err != nil {
			return Pointer{}, fmt.Errorf("invalid manifest reference: %w", err)
		}
		return Pointer{
			Kind:        PointerPagedMetadata,
			PolicyID:    strings.ToLower(parts[0]),
			ManifestRef: ref,
		}, nil
	}
	if strings.Contains(s, constants.TxRefDelimiter) {
		ref, err := chainquery.ParseTxRef(s)
		if err != nil {
			return Pointer{}, err
		}
		return Pointer{Kind: PointerInlineDatum, TxRef: ref}, nil
	}
	low := strings.ToLower(s)
	if constants.PolicyIdRegexp.MatchString(low) {
		return Pointer{Kind: PointerPagedMetadata, PolicyID: low}, nil
	}
	return Pointer{}, fmt.Errorf("unrecognized pointer %q", s)
}

// String renders the canonical form ParsePointer accepts.
func (p Pointer) String() string {
	switch p.Kind {
	case PointerInlineDatum:
		return p.TxRef.String()
	case PointerPagedMetadata:
		if p.ManifestRef.IsZero() {
			return p.PolicyID
		}
		return p.PolicyID + constants.ManifestRefDelimiter + p.ManifestRef.String()
	case PointerURL:
		return p.URL
	}
	return ""
}

// Scroll is the logical document to recover, a closed union of the two
// on-chain layouts. The engine only resolves and verifies scrolls; it
// never mutates or publishes them.
type Scroll interface {
	Pointer() Pointer
	scroll()
}

// SingleFragment is a scroll whose bytes live in one datum attached to
// one unspendable output.
type SingleFragment struct {
	Ref            chainquery.TxRef
	Address        string
	ContentType    constants.ContentType
	Codec          constants.Codec
	ExpectedSHA256 string
}

func (s *SingleFragment) Pointer() Pointer {
	return Pointer{Kind: PointerInlineDatum, TxRef: s.Ref}
}

func (s *SingleFragment) scroll() {}

// MultiFragment is a scroll whose bytes are split across page records
// minted under one policy, plus an optional manifest.
type MultiFragment struct {
	PolicyID    string
	ManifestRef chainquery.TxRef // zero when no manifest is pinned
	ContentType constants.ContentType
	Codec       constants.Codec
	// ExpectedSHA256 covers the final decompressed bytes,
	// ExpectedPayloadSHA256 the assembled on-chain form before the codec
	// is applied. Either may be empty; the manifest can supply both.
	ExpectedSHA256        string
	ExpectedPayloadSHA256 string
}

func (s *MultiFragment) Pointer() Pointer {
	return Pointer{Kind: PointerPagedMetadata, PolicyID: s.PolicyID, ManifestRef: s.ManifestRef}
}

func (s *MultiFragment) scroll() {}
