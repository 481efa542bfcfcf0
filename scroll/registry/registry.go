package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/scrollkeep/scrollkeep/constants"
	"github.com/scrollkeep/scrollkeep/scroll"
	"github.com/scrollkeep/scrollkeep/scroll/log"
)

// Entry maps a registry name to the pointer of the scroll published under
// it. The pointer is kept in its canonical string form, the form lists are
// written with on chain.
type Entry struct {
	Name        string `json:"name"`
	Pointer     string `json:"pointer"`
	ContentType string `json:"content_type"`
	SHA256      string `json:"sha256"`
	Description string `json:"description,omitempty"`
}

// Target parses the entry's canonical pointer.
func (e Entry) Target() (scroll.Pointer, error) {
	return scroll.ParsePointer(e.Pointer)
}

// List is one published snapshot of name to pointer entries. Lists are
// append-only like everything else in the registry: an update is a new
// list behind a new head.
type List struct {
	Format  string  `json:"fmt"`
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

// Head is the published reference to a list snapshot, plus an optional
// link to the head it superseded. Heads are never mutated; publishing an
// update means publishing a new head.
type Head struct {
	Format  string `json:"fmt"`
	Version int    `json:"version"`
	List    string `json:"list"`
	Prev    string `json:"prev,omitempty"`
}

// ListPointer parses the head's list pointer.
func (h *Head) ListPointer() (scroll.Pointer, error) {
	return scroll.ParsePointer(h.List)
}

// PrevPointer parses the link to the superseded head. ok is false when
// this head is the first of its chain.
func (h *Head) PrevPointer() (scroll.Pointer, bool, error) {
	if h.Prev == "" {
		return scroll.Pointer{}, false, nil
	}
	ptr, err := scroll.ParsePointer(h.Prev)
	if err != nil {
		return scroll.Pointer{}, false, err
	}
	return ptr, true, nil
}

// Identity is the head's content address: the SHA-256 of its canonical
// serialization. Canonical means stable key order with the prev link
// omitted when empty, so the same head always hashes the same.
func (h *Head) Identity() string {
	canonical := map[string]interface{}{
		"fmt":     h.Format,
		"version": h.Version,
		"list":    h.List,
	}
	if h.Prev != "" {
		canonical["prev"] = h.Prev
	}
	// encoding/json writes map keys in sorted order.
	data, err := json.Marshal(canonical)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ValidName reports whether a name fits the registry identifier alphabet.
func ValidName(name string) bool {
	return constants.RegistryNameRegexp.MatchString(name)
}

// DecodeHead parses head JSON and checks its format tag. Bytes that are
// not a head document, whatever else they may be, fail with a DecodeError.
func DecodeHead(data []byte) (*Head, error) {
	var h Head
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, &scroll.DecodeError{Reason: "registry head is not valid json", Err: err}
	}
	if h.Format != constants.RegistryHeadFormat {
		return nil, &scroll.DecodeError{
			Reason: fmt.Sprintf("registry head declares format %q, want %q", h.Format, constants.RegistryHeadFormat),
		}
	}
	if h.List == "" {
		return nil, &scroll.DecodeError{Reason: "registry head carries no list pointer"}
	}
	return &h, nil
}

// DecodeList parses list JSON and checks its format tag. Entries whose
// name falls outside the identifier alphabet or whose pointer does not
// parse are dropped with a warning; one malformed entry must not take the
// whole directory down.
func DecodeList(data []byte) (*List, error) {
	var l List
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, &scroll.DecodeError{Reason: "registry list is not valid json", Err: err}
	}
	if l.Format != constants.RegistryListFormat {
		return nil, &scroll.DecodeError{
			Reason: fmt.Sprintf("registry list declares format %q, want %q", l.Format, constants.RegistryListFormat),
		}
	}
	kept := l.Entries[:0]
	for _, e := range l.Entries {
		if !ValidName(e.Name) {
			log.Srv.Warnf("registry: dropping entry with invalid name %q", e.Name)
			continue
		}
		if _, err := e.Target(); err != nil {
			log.Srv.Warnf("registry: dropping entry %q: %v", e.Name, err)
			continue
		}
		kept = append(kept, e)
	}
	l.Entries = kept
	return &l, nil
}
