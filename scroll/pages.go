package scroll

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/gogf/gf/v2/util/gconv"
	"github.com/scrollkeep/scrollkeep/constants"
)

// Manifest is the summary record of a multi-fragment scroll: page count,
// name scope, and the expected hashes of both payload forms.
type Manifest struct {
	Name          string
	Pages         int
	Prefix        string
	ContentType   constants.ContentType
	Encoding      constants.Codec
	SHA256        string // final decompressed bytes
	PayloadSHA256 string // assembled on-chain form
}

// page is one fragment as classified from a metadata record.
type page struct {
	name  string
	index uint32
	hex   string
}

// Assembly is the outcome of ordering and concatenating a page set.
type Assembly struct {
	Manifest  *Manifest // nil when no manifest record was present
	Payload   []byte
	PageCount int
}

// Assembler turns a fetched record set into one ordered byte sequence.
// Records arrive in fetch order; assembly order is by page index, so the
// output is invariant under fetch reordering.
type Assembler struct {
	// AllowGaps tolerates missing indices and manifest count mismatches.
	// Zero pages remain fatal regardless.
	AllowGaps bool
}

// IsManifestRecord reports whether a record is a manifest rather than a
// page: it names the manifest role, or carries a page-count or embedded
// page-list summary.
func IsManifestRecord(body map[string]interface{}) bool {
	if gconv.String(body[constants.FieldRole]) == constants.RoleManifest {
		return true
	}
	_, ok := body[constants.FieldPages]
	return ok
}

// parseManifest extracts the manifest fields, all optional except that
// the record already classified as a manifest.
func parseManifest(body map[string]interface{}) *Manifest {
	m := &Manifest{
		Name:          gconv.String(body[constants.FieldName]),
		Prefix:        gconv.String(body[constants.FieldPrefix]),
		ContentType:   constants.ContentType(gconv.String(body[constants.FieldContentType])),
		Encoding:      constants.Codec(gconv.String(body[constants.FieldEncoding])),
		SHA256:        gconv.String(body[constants.FieldSHA256]),
		PayloadSHA256: gconv.String(body[constants.FieldPayloadSHA]),
	}
	if v, ok := body[constants.FieldPages]; ok {
		switch pv := v.(type) {
		case []interface{}:
			// An embedded page list counts its entries.
			m.Pages = len(pv)
		default:
			m.Pages = gconv.Int(pv)
		}
	}
	return m
}

// parsePage extracts a page from a record, requiring both an index and a
// payload field. The payload is a single hex string or an array of hex
// chunks concatenated in array order.
func parsePage(body map[string]interface{}) (page, bool) {
	idx, hasIdx := body[constants.FieldPage]
	payload, hasPayload := body[constants.FieldPayload]
	if !hasIdx || !hasPayload {
		return page{}, false
	}
	chunks := payloadChunks(payload)
	if chunks == nil {
		return page{}, false
	}
	return page{
		name:  gconv.String(body[constants.FieldName]),
		index: gconv.Uint32(idx),
		hex:   strings.Join(chunks, ""),
	}, true
}

func payloadChunks(v interface{}) []string {
	switch pv := v.(type) {
	case string:
		return []string{pv}
	case []string:
		return pv
	case []interface{}:
		chunks := make([]string, 0, len(pv))
		for _, c := range pv {
			chunks = append(chunks, gconv.String(c))
		}
		return chunks
	}
	return nil
}

// Assemble classifies records into one optional manifest and a page set,
// scopes pages to the manifest's name prefix, orders them by index, and
// concatenates their payloads into bytes. The first manifest in fetch
// order wins; so does the first page of a duplicated index.
func (a *Assembler) Assemble(records []map[string]interface{}) (*Assembly, error) {
	var manifest *Manifest
	pages := make([]page, 0, len(records))
	for _, body := range records {
		if body == nil {
			continue
		}
		if IsManifestRecord(body) {
			if manifest == nil {
				manifest = parseManifest(body)
			}
			continue
		}
		if p, ok := parsePage(body); ok {
			pages = append(pages, p)
		}
	}

	if manifest != nil && manifest.Prefix != "" {
		scoped := pages[:0]
		for _, p := range pages {
			if strings.HasPrefix(p.name, manifest.Prefix) {
				scoped = append(scoped, p)
			}
		}
		pages = scoped
	}
	if len(pages) == 0 {
		return nil, &AssemblyError{Reason: "no pages found"}
	}

	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].index < pages[j].index
	})
	kept := pages[:0]
	for i, p := range pages {
		if i > 0 && p.index == kept[len(kept)-1].index {
			continue
		}
		kept = append(kept, p)
	}
	pages = kept

	if !a.AllowGaps {
		if err := checkContiguous(pages, manifest); err != nil {
			return nil, err
		}
	}

	var sb strings.Builder
	for _, p := range pages {
		sb.WriteString(p.hex)
	}
	payload, err := hex.DecodeString(sb.String())
	if err != nil {
		return nil, &DecodeError{Reason: "page payload is not hex", Err: err}
	}
	if len(payload) == 0 {
		return nil, &AssemblyError{Reason: "pages resolved to zero bytes"}
	}
	return &Assembly{Manifest: manifest, Payload: payload, PageCount: len(pages)}, nil
}

// checkContiguous enforces the index invariant: the first index is 0 or
// 1, subsequent indices increase by exactly one, and the count matches
// the manifest's declaration when present.
func checkContiguous(pages []page, manifest *Manifest) error {
	start := pages[0].index
	if start > 1 {
		return &AssemblyError{Reason: fmt.Sprintf("pages start at index %d, want 0 or 1", start)}
	}
	for i, p := range pages {
		if want := start + uint32(i); p.index != want {
			return &AssemblyError{Reason: fmt.Sprintf("missing page %d", want)}
		}
	}
	if manifest != nil && manifest.Pages > 0 && manifest.Pages != len(pages) {
		return &AssemblyError{
			Reason: fmt.Sprintf("manifest declares %d pages, found %d", manifest.Pages, len(pages)),
		}
	}
	return nil
}
