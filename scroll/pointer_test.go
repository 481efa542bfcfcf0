package scroll

import (
	"testing"

	"github.com/scrollkeep/scrollkeep/chainquery"
	"gotest.tools/assert"
)

func mustTxRef(t *testing.T, s string) chainquery.TxRef {
	t.Helper()
	ref, err := chainquery.ParseTxRef(s)
	assert.NilError(t, err)
	return ref
}

func TestParsePointer(t *testing.T) {
	cases := []struct {
		in   string
		kind PointerKind
	}{
		{testTxHash + "#0", PointerInlineDatum},
		{testTxHash + "#42", PointerInlineDatum},
		{testPolicy, PointerPagedMetadata},
		{testPolicy + "@" + testTxHash + "#0", PointerPagedMetadata},
		{"https://example.com/scroll.bin", PointerURL},
		{"http://localhost:8080/x", PointerURL},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			p, err := ParsePointer(tc.in)
			assert.NilError(t, err)
			assert.Equal(t, p.Kind, tc.kind)
			// The canonical form round-trips.
			assert.Equal(t, p.String(), tc.in)
		})
	}
}

func TestParsePointerManifestRef(t *testing.T) {
	p, err := ParsePointer(testPolicy + "@" + testTxHash + "#7")
	assert.NilError(t, err)
	assert.Equal(t, p.PolicyID, testPolicy)
	assert.Equal(t, p.ManifestRef.Hash, testTxHash)
	assert.Equal(t, p.ManifestRef.Index, uint32(7))
}

func TestParsePointerRejectsGarbage(t *testing.T) {
	for _, in := range []string{
		"",
		"   ",
		"not-a-pointer",
		"ftp://example.com/x",
		testPolicy[:40],
		testPolicy + "@nothash#0",
		testTxHash, // a bare hash is not a reference without an index
	} {
		_, err := ParsePointer(in)
		assert.Assert(t, err != nil, "input %q", in)
	}
}

func TestPointerScrollVariants(t *testing.T) {
	single := &SingleFragment{Ref: mustTxRef(t, testTxHash+"#0")}
	assert.Equal(t, single.Pointer().Kind, PointerInlineDatum)

	multi := &MultiFragment{PolicyID: testPolicy}
	assert.Equal(t, multi.Pointer().Kind, PointerPagedMetadata)
	assert.Equal(t, multi.Pointer().String(), testPolicy)

	multi.ManifestRef = mustTxRef(t, testTxHash+"#3")
	assert.Equal(t, multi.Pointer().String(), testPolicy+"@"+testTxHash+"#3")
}
