package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/scrollkeep/scrollkeep/scroll"
	"gotest.tools/assert"
)

// fakeFetcher serves canned payloads keyed by canonical pointer string.
type fakeFetcher struct {
	mu       sync.Mutex
	payloads map[string][]byte
	calls    []string
}

func (f *fakeFetcher) Reconstruct(ctx context.Context, ptr scroll.Pointer, opts ...scroll.FetchOption) (*scroll.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, ptr.String())
	f.mu.Unlock()
	b, ok := f.payloads[ptr.String()]
	if !ok {
		return nil, scroll.ErrNotFound
	}
	return &scroll.Result{
		Bytes:         b,
		SizeBytes:     len(b),
		SHA256:        scroll.HashHex(b),
		Verification:  scroll.VerificationNotAttempted,
		FragmentCount: 1,
	}, nil
}

func (f *fakeFetcher) fetchCount(pointer string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == pointer {
			n++
		}
	}
	return n
}

// txPtr builds a distinct canonical inline-datum pointer per ordinal.
func txPtr(i int) string {
	return fmt.Sprintf("%064x#0", i+1)
}

func headJSON(list string, prev string) []byte {
	h := map[string]interface{}{
		"fmt":     "scrollkeep/head@v1",
		"version": 1,
		"list":    list,
	}
	if prev != "" {
		h["prev"] = prev
	}
	b, _ := json.Marshal(h)
	return b
}

func listJSON(entries ...Entry) []byte {
	b, _ := json.Marshal(map[string]interface{}{
		"fmt":     "scrollkeep/list@v1",
		"version": 1,
		"entries": entries,
	})
	return b
}

func entry(name, pointer string) Entry {
	return Entry{
		Name:        name,
		Pointer:     pointer,
		ContentType: "text/plain",
		SHA256:      "00",
	}
}

func newTestResolver(t *testing.T, f Fetcher, opts ...Option) *Resolver {
	t.Helper()
	r, err := NewResolver(append([]Option{WithFetcher(f)}, opts...)...)
	assert.NilError(t, err)
	return r
}

func TestNewResolverRequiresFetcher(t *testing.T) {
	_, err := NewResolver()
	assert.Assert(t, err != nil)
}

func TestResolveSingleHead(t *testing.T) {
	f := &fakeFetcher{payloads: map[string][]byte{
		txPtr(0): headJSON(txPtr(1), ""),
		txPtr(1): listJSON(entry("lorem", txPtr(5)), entry("ipsum", txPtr(6))),
	}}
	trust, err := ParseTrust(txPtr(0))
	assert.NilError(t, err)

	dir, err := newTestResolver(t, f).Resolve(context.Background(), trust)
	assert.NilError(t, err)
	assert.Equal(t, dir.Len(), 2)

	got, ok := dir.Lookup("lorem")
	assert.Assert(t, ok)
	assert.Equal(t, got.Pointer, txPtr(5))

	_, ok = dir.Lookup("missing")
	assert.Assert(t, !ok, "an unknown name is a normal miss")
}

func TestResolveOverrideWinsByName(t *testing.T) {
	f := &fakeFetcher{payloads: map[string][]byte{
		txPtr(0): headJSON(txPtr(1), ""),
		txPtr(1): listJSON(entry("alpha", txPtr(5)), entry("beta", txPtr(6))),
		txPtr(2): headJSON(txPtr(3), ""),
		txPtr(3): listJSON(entry("beta", txPtr(7)), entry("gamma", txPtr(8))),
	}}
	trust, err := ParseTrust(txPtr(0), txPtr(2))
	assert.NilError(t, err)

	dir, err := newTestResolver(t, f).Resolve(context.Background(), trust)
	assert.NilError(t, err)

	beta, ok := dir.Lookup("beta")
	assert.Assert(t, ok)
	assert.Equal(t, beta.Pointer, txPtr(7), "the override's entry wins")

	// The overridden name keeps its base position; the new name appends.
	names := make([]string, 0, dir.Len())
	for _, e := range dir.Entries() {
		names = append(names, e.Name)
	}
	assert.DeepEqual(t, names, []string{"alpha", "beta", "gamma"})
}

func TestMergeAppendPreservesOverrideOrder(t *testing.T) {
	base := &List{Entries: []Entry{entry("a", txPtr(5))}}
	override := &List{Entries: []Entry{
		entry("z", txPtr(6)),
		entry("m", txPtr(7)),
		entry("a", txPtr(8)),
	}}
	merged := Merge(base, override)

	names := make([]string, 0, len(merged))
	for _, e := range merged {
		names = append(names, e.Name)
	}
	// New names appear in the override's own order, after the base.
	assert.DeepEqual(t, names, []string{"a", "z", "m"})
	assert.Equal(t, merged[0].Pointer, txPtr(8))
}

func TestMergeLastWriteWinsWithinOneList(t *testing.T) {
	base := &List{Entries: []Entry{
		entry("dup", txPtr(5)),
		entry("dup", txPtr(6)),
	}}
	merged := Merge(base)
	assert.Equal(t, len(merged), 1)
	assert.Equal(t, merged[0].Pointer, txPtr(6))
}

func TestResolveRejectsWrongHeadFormat(t *testing.T) {
	f := &fakeFetcher{payloads: map[string][]byte{
		txPtr(0): []byte(`{"fmt":"scrollkeep/list@v1","version":1,"list":"x"}`),
	}}
	trust, _ := ParseTrust(txPtr(0))

	_, err := newTestResolver(t, f).Resolve(context.Background(), trust)
	var decodeErr *scroll.DecodeError
	assert.Assert(t, errors.As(err, &decodeErr))
	assert.ErrorContains(t, err, "scrollkeep/head@v1")
}

func TestResolveRejectsWrongListFormat(t *testing.T) {
	f := &fakeFetcher{payloads: map[string][]byte{
		txPtr(0): headJSON(txPtr(1), ""),
		txPtr(1): headJSON(txPtr(2), ""),
	}}
	trust, _ := ParseTrust(txPtr(0))

	_, err := newTestResolver(t, f).Resolve(context.Background(), trust)
	var decodeErr *scroll.DecodeError
	assert.Assert(t, errors.As(err, &decodeErr))
}

func TestResolveMissingListIsNotFound(t *testing.T) {
	// The head exists but its list pointer resolves to nothing. That is a
	// NotFound, not a decode failure.
	f := &fakeFetcher{payloads: map[string][]byte{
		txPtr(0): headJSON(txPtr(1), ""),
	}}
	trust, _ := ParseTrust(txPtr(0))

	_, err := newTestResolver(t, f).Resolve(context.Background(), trust)
	assert.Assert(t, errors.Is(err, scroll.ErrNotFound))
	var decodeErr *scroll.DecodeError
	assert.Assert(t, !errors.As(err, &decodeErr))
}

func TestResolveMissingHeadIsNotFound(t *testing.T) {
	f := &fakeFetcher{payloads: map[string][]byte{}}
	trust, _ := ParseTrust(txPtr(0))

	_, err := newTestResolver(t, f).Resolve(context.Background(), trust)
	assert.Assert(t, errors.Is(err, scroll.ErrNotFound))
}

func TestDecodeListDropsMalformedEntries(t *testing.T) {
	list, err := DecodeList(listJSON(
		entry("good", txPtr(5)),
		entry("BAD NAME", txPtr(6)),
		entry("bad-pointer", "not a pointer"),
	))
	assert.NilError(t, err)
	assert.Equal(t, len(list.Entries), 1)
	assert.Equal(t, list.Entries[0].Name, "good")
}

func TestHeadIdentityIsStable(t *testing.T) {
	a := &Head{Format: "scrollkeep/head@v1", Version: 1, List: txPtr(1)}
	b := &Head{Format: "scrollkeep/head@v1", Version: 1, List: txPtr(1)}
	assert.Equal(t, a.Identity(), b.Identity())
	assert.Equal(t, len(a.Identity()), 64)

	withPrev := &Head{Format: "scrollkeep/head@v1", Version: 1, List: txPtr(1), Prev: txPtr(0)}
	assert.Assert(t, withPrev.Identity() != a.Identity())
}

func TestHistoryFollowsPrevChain(t *testing.T) {
	f := &fakeFetcher{payloads: map[string][]byte{
		txPtr(0): headJSON(txPtr(10), txPtr(1)),
		txPtr(1): headJSON(txPtr(11), txPtr(2)),
		txPtr(2): headJSON(txPtr(12), ""),
	}}
	r := newTestResolver(t, f)
	ptr, err := scroll.ParsePointer(txPtr(0))
	assert.NilError(t, err)

	chain, err := r.History(context.Background(), ptr, 0)
	assert.NilError(t, err)
	assert.Equal(t, len(chain), 3)
	assert.Equal(t, chain[0].List, txPtr(10))
	assert.Equal(t, chain[2].List, txPtr(12))

	limited, err := r.History(context.Background(), ptr, 2)
	assert.NilError(t, err)
	assert.Equal(t, len(limited), 2)
}

func TestHistoryDanglingPrevIsNotFound(t *testing.T) {
	f := &fakeFetcher{payloads: map[string][]byte{
		txPtr(0): headJSON(txPtr(10), txPtr(1)),
	}}
	r := newTestResolver(t, f)
	ptr, _ := scroll.ParsePointer(txPtr(0))

	_, err := r.History(context.Background(), ptr, 0)
	assert.Assert(t, errors.Is(err, scroll.ErrNotFound))
}

// mapSnapshotCache is an in-memory SnapshotCache for tests.
type mapSnapshotCache struct {
	snaps map[string]*List
}

func (m *mapSnapshotCache) LoadSnapshot(identity string) (*List, bool) {
	l, ok := m.snaps[identity]
	return l, ok
}

func (m *mapSnapshotCache) StoreSnapshot(identity string, list *List) {
	m.snaps[identity] = list
}

func TestResolveUsesSnapshotCache(t *testing.T) {
	f := &fakeFetcher{payloads: map[string][]byte{
		txPtr(0): headJSON(txPtr(1), ""),
		txPtr(1): listJSON(entry("lorem", txPtr(5))),
	}}
	cache := &mapSnapshotCache{snaps: map[string]*List{}}
	r := newTestResolver(t, f, WithSnapshotCache(cache))
	trust, _ := ParseTrust(txPtr(0))

	_, err := r.Resolve(context.Background(), trust)
	assert.NilError(t, err)
	assert.Equal(t, f.fetchCount(txPtr(1)), 1)

	// The head is refetched, the pinned list is not.
	dir, err := r.Resolve(context.Background(), trust)
	assert.NilError(t, err)
	assert.Equal(t, f.fetchCount(txPtr(0)), 2)
	assert.Equal(t, f.fetchCount(txPtr(1)), 1)
	_, ok := dir.Lookup("lorem")
	assert.Assert(t, ok)
}
