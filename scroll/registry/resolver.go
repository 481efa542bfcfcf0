package registry

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/scrollkeep/scrollkeep/scroll"
	"github.com/scrollkeep/scrollkeep/scroll/log"
)

// Fetcher recovers the bytes a pointer locates. A scroll.Reconstructor
// satisfies it; registry objects are ordinary scrolls whose payload is
// UTF-8 JSON.
type Fetcher interface {
	Reconstruct(ctx context.Context, ptr scroll.Pointer, opts ...scroll.FetchOption) (*scroll.Result, error)
}

// SnapshotCache stores resolved lists keyed by head identity. A head's
// identity pins its list forever, so a hit can be served without
// refetching. Implementations absorb their own failures; a miss and a
// broken cache look the same to the resolver.
type SnapshotCache interface {
	LoadSnapshot(identity string) (*List, bool)
	StoreSnapshot(identity string, list *List)
}

// Trust is the caller-supplied anchor set for one resolution: the public
// head every client agrees on, plus zero or more private heads overlaid
// on top. It is explicit configuration, never inferred from network state.
type Trust struct {
	Head      scroll.Pointer
	Overrides []scroll.Pointer
}

// ParseTrust builds a Trust from canonical pointer strings.
func ParseTrust(head string, overrides ...string) (Trust, error) {
	base, err := scroll.ParsePointer(head)
	if err != nil {
		return Trust{}, fmt.Errorf("trust head: %w", err)
	}
	t := Trust{Head: base}
	for _, s := range overrides {
		ptr, err := scroll.ParsePointer(s)
		if err != nil {
			return Trust{}, fmt.Errorf("trust override: %w", err)
		}
		t.Overrides = append(t.Overrides, ptr)
	}
	return t, nil
}

// IsZero reports whether no anchor was configured.
func (t Trust) IsZero() bool {
	return t.Head.Kind == ""
}

// Options configures a Resolver.
type Options struct {
	Fetcher Fetcher `validate:"required"`
	Cache   SnapshotCache
}

type Option func(*Options)

// WithFetcher sets the scroll fetcher the resolver reads heads and lists
// through, required.
func WithFetcher(f Fetcher) Option {
	return func(o *Options) {
		o.Fetcher = f
	}
}

// WithSnapshotCache adds a list cache keyed by head identity.
func WithSnapshotCache(c SnapshotCache) Option {
	return func(o *Options) {
		o.Cache = c
	}
}

// Resolver fetches and merges registry directories. It holds no state of
// its own between calls; retries and backoff are inherited from the query
// client underneath the fetcher.
type Resolver struct {
	opts *Options
}

// NewResolver builds a Resolver from the supplied options.
func NewResolver(optFns ...Option) (*Resolver, error) {
	opts := &Options{}
	for _, fn := range optFns {
		fn(opts)
	}
	if err := validator.New().Struct(opts); err != nil {
		return nil, err
	}
	return &Resolver{opts: opts}, nil
}

// Resolve fetches the trust anchor's directory and overlays each private
// head in order. Overrides win by name; see Merge for the ordering rules.
func (r *Resolver) Resolve(ctx context.Context, trust Trust) (*Directory, error) {
	if trust.IsZero() {
		return nil, fmt.Errorf("no trust anchor configured")
	}
	base, err := r.fetchList(ctx, trust.Head)
	if err != nil {
		return nil, err
	}
	overrides := make([]*List, 0, len(trust.Overrides))
	for _, ptr := range trust.Overrides {
		l, err := r.fetchList(ctx, ptr)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, l)
	}
	return NewDirectory(Merge(base, overrides...)), nil
}

// fetchList follows one head to its list: fetch head, decode, fetch the
// list it points at, decode. Either fetch failing to locate anything
// propagates as NotFound, not as a decode error.
func (r *Resolver) fetchList(ctx context.Context, headPtr scroll.Pointer) (*List, error) {
	head, err := r.fetchHead(ctx, headPtr)
	if err != nil {
		return nil, err
	}

	identity := head.Identity()
	if r.opts.Cache != nil {
		if list, ok := r.opts.Cache.LoadSnapshot(identity); ok {
			log.Srv.Debugf("registry: head %s served from snapshot cache", identity[:12])
			return list, nil
		}
	}

	listPtr, err := head.ListPointer()
	if err != nil {
		return nil, &scroll.DecodeError{Reason: "registry head list pointer", Err: err}
	}
	res, err := r.opts.Fetcher.Reconstruct(ctx, listPtr)
	if err != nil {
		return nil, fmt.Errorf("registry list %s: %w", listPtr, err)
	}
	list, err := DecodeList(res.Bytes)
	if err != nil {
		return nil, err
	}

	if r.opts.Cache != nil {
		r.opts.Cache.StoreSnapshot(identity, list)
	}
	return list, nil
}

func (r *Resolver) fetchHead(ctx context.Context, ptr scroll.Pointer) (*Head, error) {
	res, err := r.opts.Fetcher.Reconstruct(ctx, ptr)
	if err != nil {
		return nil, fmt.Errorf("registry head %s: %w", ptr, err)
	}
	return DecodeHead(res.Bytes)
}

// defaultHistoryLimit bounds History walks when the caller passes no
// limit of its own.
const defaultHistoryLimit = 32

// History walks a head's prev chain, newest first, up to limit heads. A
// prev pointer that resolves to nothing ends the walk with NotFound; the
// chain is append-only, so a dangling link means the caller's view of the
// chain is wrong, not that the chain legitimately ends there.
func (r *Resolver) History(ctx context.Context, headPtr scroll.Pointer, limit int) ([]*Head, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	var chain []*Head
	ptr := headPtr
	for len(chain) < limit {
		head, err := r.fetchHead(ctx, ptr)
		if err != nil {
			return nil, err
		}
		chain = append(chain, head)
		prev, ok, err := head.PrevPointer()
		if err != nil {
			return nil, &scroll.DecodeError{Reason: "registry head prev pointer", Err: err}
		}
		if !ok {
			break
		}
		ptr = prev
	}
	return chain, nil
}

// Merge overlays lists onto a base snapshot. Every list's entries apply
// in order: a name already present is overwritten in place, keeping its
// first-seen position; a new name is appended where it first appears.
// Name uniqueness is enforced by this last-write-wins rule, never by
// rejection.
func Merge(base *List, overrides ...*List) []Entry {
	var ordered []Entry
	index := make(map[string]int)
	apply := func(l *List) {
		if l == nil {
			return
		}
		for _, e := range l.Entries {
			if at, ok := index[e.Name]; ok {
				ordered[at] = e
				continue
			}
			index[e.Name] = len(ordered)
			ordered = append(ordered, e)
		}
	}
	apply(base)
	for _, l := range overrides {
		apply(l)
	}
	return ordered
}

// Directory is a resolved, merged entry set. Lookups by name are a normal
// miss when absent, not an error.
type Directory struct {
	entries []Entry
	index   map[string]int
}

// NewDirectory indexes a merged entry slice.
func NewDirectory(entries []Entry) *Directory {
	d := &Directory{
		entries: entries,
		index:   make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		d.index[e.Name] = i
	}
	return d
}

// Entries returns the merged snapshot in merge order.
func (d *Directory) Entries() []Entry {
	return d.entries
}

// Len returns the number of resolved names.
func (d *Directory) Len() int {
	return len(d.entries)
}

// Lookup returns the entry registered under name.
func (d *Directory) Lookup(name string) (Entry, bool) {
	i, ok := d.index[name]
	if !ok {
		return Entry{}, false
	}
	return d.entries[i], true
}
