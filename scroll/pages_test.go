package scroll

import (
	"errors"
	"math/rand"
	"testing"

	"gotest.tools/assert"
)

func pageRecord(name string, index int, payload interface{}) map[string]interface{} {
	return map[string]interface{}{
		"name":    name,
		"page":    index,
		"payload": payload,
	}
}

func TestAssembleSortsByIndexNotFetchOrder(t *testing.T) {
	records := []map[string]interface{}{
		pageRecord("doc-0002", 2, "43"),
		pageRecord("doc-0000", 0, "41"),
		pageRecord("doc-0001", 1, "42"),
	}
	asm := &Assembler{}
	got, err := asm.Assemble(records)
	assert.NilError(t, err)
	assert.Equal(t, string(got.Payload), "ABC")
	assert.Equal(t, got.PageCount, 3)
	assert.Assert(t, got.Manifest == nil)
}

func TestAssembleIsFetchOrderInvariant(t *testing.T) {
	records := []map[string]interface{}{
		pageRecord("doc-0000", 0, "41"),
		pageRecord("doc-0001", 1, "42"),
		pageRecord("doc-0002", 2, "43"),
		pageRecord("doc-0003", 3, "44"),
		pageRecord("doc-0004", 4, "45"),
	}
	asm := &Assembler{}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		shuffled := make([]map[string]interface{}, len(records))
		copy(shuffled, records)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		got, err := asm.Assemble(shuffled)
		assert.NilError(t, err)
		assert.Equal(t, string(got.Payload), "ABCDE")
	}
}

func TestAssemblePayloadChunkArrays(t *testing.T) {
	records := []map[string]interface{}{
		pageRecord("doc-0000", 0, []interface{}{"4142", "43"}),
		pageRecord("doc-0001", 1, []interface{}{"44"}),
	}
	asm := &Assembler{}
	got, err := asm.Assemble(records)
	assert.NilError(t, err)
	assert.Equal(t, string(got.Payload), "ABCD")
}

func TestAssembleOneBasedIndices(t *testing.T) {
	records := []map[string]interface{}{
		pageRecord("doc-0002", 2, "42"),
		pageRecord("doc-0001", 1, "41"),
	}
	asm := &Assembler{}
	got, err := asm.Assemble(records)
	assert.NilError(t, err)
	assert.Equal(t, string(got.Payload), "AB")
}

func TestAssembleDuplicateIndexFirstWins(t *testing.T) {
	records := []map[string]interface{}{
		pageRecord("doc-0000", 0, "41"),
		pageRecord("doc-0001", 1, "42"),
		pageRecord("doc-0001-dup", 1, "5a"),
	}
	asm := &Assembler{}
	got, err := asm.Assemble(records)
	assert.NilError(t, err)
	assert.Equal(t, string(got.Payload), "AB")
	assert.Equal(t, got.PageCount, 2)
}

func TestAssembleFailsOnGap(t *testing.T) {
	records := []map[string]interface{}{
		pageRecord("doc-0000", 0, "41"),
		pageRecord("doc-0002", 2, "43"),
	}
	asm := &Assembler{}
	_, err := asm.Assemble(records)
	var asmErr *AssemblyError
	assert.Assert(t, errors.As(err, &asmErr))
	assert.ErrorContains(t, err, "missing page 1")

	asm.AllowGaps = true
	got, err := asm.Assemble(records)
	assert.NilError(t, err)
	assert.Equal(t, string(got.Payload), "AC")
}

func TestAssembleFailsOnHighStart(t *testing.T) {
	records := []map[string]interface{}{
		pageRecord("doc-0002", 2, "43"),
		pageRecord("doc-0003", 3, "44"),
	}
	asm := &Assembler{}
	_, err := asm.Assemble(records)
	var asmErr *AssemblyError
	assert.Assert(t, errors.As(err, &asmErr))
}

func TestAssembleFailsOnZeroPages(t *testing.T) {
	asm := &Assembler{}
	_, err := asm.Assemble(nil)
	var asmErr *AssemblyError
	assert.Assert(t, errors.As(err, &asmErr))

	// Records that are neither pages nor manifests do not count.
	_, err = asm.Assemble([]map[string]interface{}{
		{"name": "stray", "note": "no index or payload"},
	})
	assert.Assert(t, errors.As(err, &asmErr))
}

func TestAssembleManifestClassification(t *testing.T) {
	manifest := map[string]interface{}{
		"name":         "doc",
		"role":         "manifest",
		"pages":        2,
		"prefix":       "doc-",
		"content_type": "text/plain",
		"encoding":     "gzip",
		"sha256":       "aa",
	}
	records := []map[string]interface{}{
		manifest,
		pageRecord("doc-0001", 1, "42"),
		pageRecord("doc-0000", 0, "41"),
		pageRecord("other-0000", 0, "5a"),
	}
	asm := &Assembler{}
	got, err := asm.Assemble(records)
	assert.NilError(t, err)
	assert.Assert(t, got.Manifest != nil)
	assert.Equal(t, got.Manifest.Pages, 2)
	assert.Equal(t, got.Manifest.Prefix, "doc-")
	assert.Equal(t, string(got.Manifest.Encoding), "gzip")
	// The out-of-scope page is discarded by the prefix, and the record
	// with a page count is never treated as a page.
	assert.Equal(t, string(got.Payload), "AB")
	assert.Equal(t, got.PageCount, 2)
}

func TestAssembleManifestByPageCountAlone(t *testing.T) {
	// A record with both index-like and summary fields is a manifest,
	// not a page: the page-count marker wins.
	records := []map[string]interface{}{
		{"name": "doc", "pages": 1, "page": 0, "payload": "5a"},
		pageRecord("doc-0000", 0, "41"),
	}
	asm := &Assembler{}
	got, err := asm.Assemble(records)
	assert.NilError(t, err)
	assert.Equal(t, string(got.Payload), "A")
}

func TestAssembleManifestCountMismatch(t *testing.T) {
	records := []map[string]interface{}{
		{"name": "doc", "role": "manifest", "pages": 3},
		pageRecord("doc-0000", 0, "41"),
		pageRecord("doc-0001", 1, "42"),
	}
	asm := &Assembler{}
	_, err := asm.Assemble(records)
	var asmErr *AssemblyError
	assert.Assert(t, errors.As(err, &asmErr))
	assert.ErrorContains(t, err, "declares 3 pages")
}

func TestAssembleEmbeddedPageListCountsEntries(t *testing.T) {
	records := []map[string]interface{}{
		{"name": "doc", "pages": []interface{}{"doc-0000", "doc-0001"}},
		pageRecord("doc-0000", 0, "41"),
		pageRecord("doc-0001", 1, "42"),
	}
	asm := &Assembler{}
	got, err := asm.Assemble(records)
	assert.NilError(t, err)
	assert.Equal(t, got.Manifest.Pages, 2)
	assert.Equal(t, string(got.Payload), "AB")
}

func TestAssembleRejectsNonHexPayload(t *testing.T) {
	records := []map[string]interface{}{
		pageRecord("doc-0000", 0, "zz"),
	}
	asm := &Assembler{}
	_, err := asm.Assemble(records)
	var decodeErr *DecodeError
	assert.Assert(t, errors.As(err, &decodeErr))
}
