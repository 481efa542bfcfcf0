package scroll

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/scrollkeep/scrollkeep/chainquery"
	"github.com/scrollkeep/scrollkeep/constants"
	"github.com/scrollkeep/scrollkeep/scroll/log"
	"golang.org/x/sync/errgroup"
)

// Querier is the read-only ledger surface the engine consumes. A
// chainquery.Client satisfies it; tests substitute fakes.
type Querier interface {
	FetchUtxo(ctx context.Context, ref chainquery.TxRef) (*chainquery.Utxo, error)
	FetchDatum(ctx context.Context, datumHash string) (string, error)
	FetchMetadata(ctx context.Context, txHash string) ([]chainquery.MetadataRecord, error)
	ListPolicyAssets(ctx context.Context, policyID string) ([]chainquery.AssetID, error)
	FetchAssetInfo(ctx context.Context, id chainquery.AssetID) (*chainquery.AssetInfo, error)
}

// ProgressFunc receives reconstruction milestones. percent is 0-100 when
// the step count is known and -1 when indeterminate. Callers may ignore
// progress entirely; the engine never blocks on it.
type ProgressFunc func(message string, percent int)

const indeterminate = -1

// Result is the output contract of one reconstruction. Bytes are only
// populated on full success; Verification alone may report failed while
// the bytes are still returned.
type Result struct {
	Bytes         []byte
	ContentType   constants.ContentType
	SizeBytes     int
	SHA256        string
	Verification  VerificationStatus
	FragmentCount int
}

// Options configures a Reconstructor.
type Options struct {
	Querier     Querier `validate:"required"`
	PageWorkers int     `validate:"min=1"`
	AllowGaps   bool
	Progress    ProgressFunc
	HTTPClient  *http.Client
}

type Option func(*Options)

// WithQuerier sets the ledger query client, required.
func WithQuerier(q Querier) Option {
	return func(o *Options) {
		o.Querier = q
	}
}

// WithPageWorkers bounds the parallel page fetch fan-out. One worker
// fetches strictly sequentially.
func WithPageWorkers(n int) Option {
	return func(o *Options) {
		o.PageWorkers = n
	}
}

// WithAllowGaps tolerates missing page indices instead of failing.
func WithAllowGaps(allow bool) Option {
	return func(o *Options) {
		o.AllowGaps = allow
	}
}

// WithProgress registers a milestone observer.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Options) {
		o.Progress = fn
	}
}

// WithHTTPClient overrides the transport used for url pointers.
func WithHTTPClient(cli *http.Client) Option {
	return func(o *Options) {
		o.HTTPClient = cli
	}
}

// Reconstructor recovers scroll bytes from chain pointers. One instance
// serves sequential reconstructions; all state is per request.
type Reconstructor struct {
	opts *Options
}

// NewReconstructor builds a Reconstructor from the supplied options.
func NewReconstructor(optFns ...Option) (*Reconstructor, error) {
	opts := &Options{PageWorkers: 4}
	for _, fn := range optFns {
		fn(opts)
	}
	if err := validator.New().Struct(opts); err != nil {
		return nil, err
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Reconstructor{opts: opts}, nil
}

// Querier exposes the underlying ledger query client, for callers that
// need raw chain shapes alongside reconstruction.
func (r *Reconstructor) Querier() Querier {
	return r.opts.Querier
}

func (r *Reconstructor) progress(message string, percent int) {
	if r.opts.Progress != nil {
		r.opts.Progress(message, percent)
	}
}

// fetchSpec carries per-call knowledge about the document, typically
// sourced from a registry entry.
type fetchSpec struct {
	contentType constants.ContentType
	codec       constants.Codec
	codecSet    bool
	expectedSHA string
}

type FetchOption func(*fetchSpec)

// WithContentType declares the expected content type; refinement may
// still override it.
func WithContentType(ct constants.ContentType) FetchOption {
	return func(s *fetchSpec) {
		s.contentType = ct
	}
}

// WithCodec declares the compression codec instead of the pointer-kind
// default.
func WithCodec(c constants.Codec) FetchOption {
	return func(s *fetchSpec) {
		s.codec = c
		s.codecSet = true
	}
}

// WithExpectedSHA256 supplies the digest the final bytes must match.
func WithExpectedSHA256(hexDigest string) FetchOption {
	return func(s *fetchSpec) {
		s.expectedSHA = hexDigest
	}
}

// Reconstruct recovers the bytes a pointer locates. Pointer kinds choose
// their flow: inline-datum and paged-metadata resolve on chain, url over
// plain HTTP. Defaults: inline datums apply no codec unless one is
// declared; paged documents auto-detect unless the manifest declares one.
func (r *Reconstructor) Reconstruct(ctx context.Context, ptr Pointer, optFns ...FetchOption) (*Result, error) {
	spec := &fetchSpec{}
	for _, fn := range optFns {
		fn(spec)
	}
	switch ptr.Kind {
	case PointerInlineDatum:
		codec := constants.CodecNone
		if spec.codecSet {
			codec = spec.codec
		}
		return r.ReconstructScroll(ctx, &SingleFragment{
			Ref:            ptr.TxRef,
			ContentType:    spec.contentType,
			Codec:          codec,
			ExpectedSHA256: spec.expectedSHA,
		})
	case PointerPagedMetadata:
		codec := constants.CodecAuto
		if spec.codecSet {
			codec = spec.codec
		}
		return r.ReconstructScroll(ctx, &MultiFragment{
			PolicyID:       ptr.PolicyID,
			ManifestRef:    ptr.ManifestRef,
			ContentType:    spec.contentType,
			Codec:          codec,
			ExpectedSHA256: spec.expectedSHA,
		})
	case PointerURL:
		return r.fetchURL(ctx, ptr.URL, spec)
	}
	return nil, fmt.Errorf("unsupported pointer kind %q", ptr.Kind)
}

// ReconstructScroll recovers a scroll whose attributes are already known.
func (r *Reconstructor) ReconstructScroll(ctx context.Context, s Scroll) (*Result, error) {
	switch sc := s.(type) {
	case *SingleFragment:
		return r.singleFragment(ctx, sc)
	case *MultiFragment:
		return r.multiFragment(ctx, sc)
	}
	return nil, fmt.Errorf("unsupported scroll variant %T", s)
}

// abortIf maps caller cancellation to the engine's abort error. It is
// checked before every network fetch.
func abortIf(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrAborted, err)
	}
	return nil
}

// fetchErr normalizes a failed fetch: cancellation surfaces as abort, and
// everything else keeps its pointer context attached.
func fetchErr(ctx context.Context, what string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrAborted, ctx.Err())
	}
	return fmt.Errorf("fetch %s: %w", what, err)
}

func (r *Reconstructor) singleFragment(ctx context.Context, s *SingleFragment) (*Result, error) {
	if err := abortIf(ctx); err != nil {
		return nil, err
	}
	r.progress(fmt.Sprintf("fetching output %s", s.Ref), indeterminate)
	utxo, err := r.opts.Querier.FetchUtxo(ctx, s.Ref)
	if err != nil {
		return nil, fetchErr(ctx, "output "+s.Ref.String(), err)
	}

	datumHex := utxo.InlineDatumHex
	if datumHex == "" && utxo.DatumHash != "" {
		if err := abortIf(ctx); err != nil {
			return nil, err
		}
		r.progress("fetching datum by hash", indeterminate)
		datumHex, err = r.opts.Querier.FetchDatum(ctx, utxo.DatumHash)
		if err != nil {
			return nil, fetchErr(ctx, "datum "+utxo.DatumHash, err)
		}
	}
	if datumHex == "" {
		return nil, fmt.Errorf("output %s carries no datum: %w", s.Ref, ErrNotFound)
	}

	r.progress("decoding datum", indeterminate)
	raw, err := hexBytes(datumHex)
	if err != nil {
		return nil, err
	}
	if err := CheckDatumHash(raw, utxo.DatumHash); err != nil {
		return nil, err
	}
	payload, err := DecodeDatum(raw)
	if err != nil {
		return nil, err
	}
	return r.finish(payload, s.Codec, s.ContentType, s.ExpectedSHA256, "", 1)
}

func (r *Reconstructor) multiFragment(ctx context.Context, s *MultiFragment) (*Result, error) {
	records, err := r.fetchPolicyRecords(ctx, s)
	if err != nil {
		return nil, err
	}

	r.progress("assembling pages", indeterminate)
	asm := &Assembler{AllowGaps: r.opts.AllowGaps}
	assembly, err := asm.Assemble(records)
	if err != nil {
		return nil, err
	}

	contentType := s.ContentType
	codec := s.Codec
	expectedSHA := s.ExpectedSHA256
	expectedPayloadSHA := s.ExpectedPayloadSHA256
	if m := assembly.Manifest; m != nil {
		if m.ContentType != "" {
			contentType = m.ContentType
		}
		if m.Encoding != "" {
			codec = m.Encoding
		}
		if m.SHA256 != "" {
			expectedSHA = m.SHA256
		}
		if m.PayloadSHA256 != "" {
			expectedPayloadSHA = m.PayloadSHA256
		}
	}
	return r.finish(assembly.Payload, codec, contentType, expectedSHA, expectedPayloadSHA, assembly.PageCount)
}

// fetchPolicyRecords collects the metadata record of every asset under
// the policy, in asset order, with the pinned manifest's records first
// when one is referenced.
func (r *Reconstructor) fetchPolicyRecords(ctx context.Context, s *MultiFragment) ([]map[string]interface{}, error) {
	var records []map[string]interface{}

	if !s.ManifestRef.IsZero() {
		if err := abortIf(ctx); err != nil {
			return nil, err
		}
		r.progress("fetching manifest", indeterminate)
		metadata, err := r.opts.Querier.FetchMetadata(ctx, s.ManifestRef.Hash)
		if err != nil {
			return nil, fetchErr(ctx, "manifest "+s.ManifestRef.String(), err)
		}
		records = append(records, manifestRecords(metadata, s.PolicyID)...)
	}

	if err := abortIf(ctx); err != nil {
		return nil, err
	}
	r.progress("listing policy assets", indeterminate)
	assets, err := r.opts.Querier.ListPolicyAssets(ctx, s.PolicyID)
	if err != nil {
		return nil, fetchErr(ctx, "policy "+s.PolicyID, err)
	}

	infos := make([]*chainquery.AssetInfo, len(assets))
	var (
		mu   sync.Mutex
		done int
	)
	errWg, gctx := errgroup.WithContext(ctx)
	ch := make(chan int, r.opts.PageWorkers)
	errWg.Go(func() error {
		defer close(ch)
		for idx := range infos {
			select {
			case ch <- idx:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})
	for i := 0; i < r.opts.PageWorkers; i++ {
		errWg.Go(func() error {
			for idx := range ch {
				if err := abortIf(gctx); err != nil {
					return err
				}
				info, err := r.opts.Querier.FetchAssetInfo(gctx, assets[idx])
				if err != nil {
					return fetchErr(gctx, "asset "+assets[idx].Unit(), err)
				}
				infos[idx] = info
				mu.Lock()
				done++
				r.progress(fmt.Sprintf("fetched page record %d/%d", done, len(infos)), done*100/len(infos))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := errWg.Wait(); err != nil {
		return nil, err
	}
	// A cancelled context can drain the feeder without any worker
	// erroring; never hand back a partial record set.
	if err := abortIf(ctx); err != nil {
		return nil, err
	}

	for _, info := range infos {
		if info == nil || info.Metadata == nil {
			continue
		}
		records = append(records, info.Metadata)
	}
	log.Srv.Debugf("scroll: policy %s yielded %d records", s.PolicyID, len(records))
	return records, nil
}

// manifestRecords digs record bodies out of raw transaction metadata. The
// token metadata label nests as policy -> asset name -> record; a body
// that is already record-shaped is taken as is.
func manifestRecords(metadata []chainquery.MetadataRecord, policyID string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, rec := range metadata {
		if rec.Body == nil {
			continue
		}
		if byName, ok := rec.Body[policyID].(map[string]interface{}); ok {
			for _, v := range byName {
				if leaf, ok := v.(map[string]interface{}); ok {
					out = append(out, leaf)
				}
			}
			continue
		}
		if IsManifestRecord(rec.Body) {
			out = append(out, rec.Body)
		}
	}
	return out
}

func (r *Reconstructor) fetchURL(ctx context.Context, url string, spec *fetchSpec) (*Result, error) {
	if err := abortIf(ctx); err != nil {
		return nil, err
	}
	r.progress("fetching "+url, indeterminate)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fetchErr(ctx, url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("fetch %s: %w", url, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fetchErr(ctx, url, err)
	}

	contentType := spec.contentType
	if contentType == "" {
		contentType = constants.ContentType(resp.Header.Get("Content-Type"))
	}
	codec := constants.CodecAuto
	if spec.codecSet {
		codec = spec.codec
	}
	return r.finish(body, codec, contentType, spec.expectedSHA, "", 1)
}

// finish runs the tail of every flow: codec inversion, content type
// refinement, hashing, and verification. expectedPayloadSHA, when
// present, must match the payload before the codec is inverted.
func (r *Reconstructor) finish(payload []byte, codec constants.Codec, contentType constants.ContentType, expectedSHA, expectedPayloadSHA string, fragments int) (*Result, error) {
	verification := VerificationNotAttempted
	if expectedPayloadSHA != "" {
		if status, _ := Verify(payload, expectedPayloadSHA); status == VerificationFailed {
			verification = VerificationFailed
		} else {
			verification = VerificationPassed
		}
	}

	r.progress("decompressing", indeterminate)
	body, err := Decompress(payload, codec)
	if err != nil {
		return nil, err
	}

	r.progress("hashing", indeterminate)
	status, sum := Verify(body, expectedSHA)
	switch {
	case status == VerificationFailed || verification == VerificationFailed:
		verification = VerificationFailed
	case status == VerificationPassed:
		verification = VerificationPassed
	}

	contentType = RefineContentType(contentType, body)
	if contentType == "" {
		contentType = constants.ContentTypeOctetStream
	}

	r.progress("done", 100)
	return &Result{
		Bytes:         body,
		ContentType:   contentType,
		SizeBytes:     len(body),
		SHA256:        sum,
		Verification:  verification,
		FragmentCount: fragments,
	}, nil
}

func hexBytes(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, &DecodeError{Reason: "datum is not hex", Err: err}
	}
	return b, nil
}
