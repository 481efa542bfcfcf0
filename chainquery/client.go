package chainquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/scrollkeep/scrollkeep/scroll/log"
	"golang.org/x/time/rate"
)

const (
	BackendBlockfrost = "blockfrost"
	BackendKoios      = "koios"

	defaultMinInterval  = 100 * time.Millisecond
	defaultRetryCap     = 3
	defaultRetryBackoff = time.Second
)

// Options configures a Client. Construct through New with Option setters;
// the zero value is not usable.
type Options struct {
	Backend      string        `validate:"required,oneof=blockfrost koios"`
	ProjectID    string        `validate:"required_if=Backend blockfrost"`
	Mirrors      []string      `validate:"omitempty,dive,url"`
	MinInterval  time.Duration `validate:"min=0"`
	RetryCap     int           `validate:"min=0"`
	RetryBackoff time.Duration `validate:"min=0"`

	httpClient *http.Client
}

type Option func(*Options)

// WithBackend selects the query backend: "blockfrost" or "koios".
func WithBackend(backend string) Option {
	return func(o *Options) {
		o.Backend = backend
	}
}

// WithProjectID sets the access credential for backends that require one.
func WithProjectID(projectID string) Option {
	return func(o *Options) {
		o.ProjectID = projectID
	}
}

// WithMirrors replaces the backend's default base URLs. Mirrors are tried
// in order until one succeeds.
func WithMirrors(mirrors ...string) Option {
	return func(o *Options) {
		o.Mirrors = mirrors
	}
}

// WithMinInterval sets the minimum spacing between any two requests issued
// by this client, shared across mirrors and retries.
func WithMinInterval(d time.Duration) Option {
	return func(o *Options) {
		o.MinInterval = d
	}
}

// WithRetryCap bounds how many times a throttled request is retried before
// it fails.
func WithRetryCap(n int) Option {
	return func(o *Options) {
		o.RetryCap = n
	}
}

// WithRetryBackoff sets the base delay used when a throttling response
// carries no Retry-After hint. The delay doubles per retry.
func WithRetryBackoff(d time.Duration) Option {
	return func(o *Options) {
		o.RetryBackoff = d
	}
}

// WithHTTPClient overrides the transport, mainly for tests.
func WithHTTPClient(cli *http.Client) Option {
	return func(o *Options) {
		o.httpClient = cli
	}
}

// backend issues requests against one base URL and normalizes the
// backend-native response shapes. Implementations never retry; the Client
// owns rate limiting, retry, and mirror fallback.
type backend interface {
	name() string
	defaultMirrors() []string
	fetchUtxo(ctx context.Context, base string, ref TxRef) (*Utxo, error)
	fetchDatum(ctx context.Context, base string, datumHash string) (string, error)
	fetchMetadata(ctx context.Context, base string, txHash string) ([]MetadataRecord, error)
	listPolicyAssets(ctx context.Context, base string, policyID string) ([]AssetID, error)
	fetchAssetInfo(ctx context.Context, base string, id AssetID) (*AssetInfo, error)
}

// Client is a read-only ledger query client. All shared state (rate
// limiter clock, sticky mirror) is scoped to one instance; nothing is
// process-global.
type Client struct {
	opts    *Options
	backend backend
	limiter *rate.Limiter
	mirrors []string

	mu     sync.Mutex
	sticky int
}

// New builds a Client from the supplied options.
func New(optFns ...Option) (*Client, error) {
	opts := &Options{
		MinInterval:  defaultMinInterval,
		RetryCap:     defaultRetryCap,
		RetryBackoff: defaultRetryBackoff,
	}
	for _, fn := range optFns {
		fn(opts)
	}
	if err := validator.New().Struct(opts); err != nil {
		return nil, err
	}
	if opts.httpClient == nil {
		opts.httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	rest := &rest{cli: opts.httpClient}
	var b backend
	switch opts.Backend {
	case BackendBlockfrost:
		rest.headers = map[string]string{"project_id": opts.ProjectID}
		b = &blockfrost{rest: rest}
	case BackendKoios:
		b = &koios{rest: rest}
	default:
		return nil, fmt.Errorf("unknown backend %q", opts.Backend)
	}

	mirrors := opts.Mirrors
	if len(mirrors) == 0 {
		mirrors = b.defaultMirrors()
	}
	if len(mirrors) == 0 {
		return nil, fmt.Errorf("backend %q has no mirrors configured", opts.Backend)
	}

	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}
	return &Client{
		opts:    opts,
		backend: b,
		limiter: rate.NewLimiter(limit, 1),
		mirrors: mirrors,
	}, nil
}

// Backend returns the configured backend name.
func (c *Client) Backend() string {
	return c.opts.Backend
}

// StickyMirror returns the base URL the next request will try first.
func (c *Client) StickyMirror() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mirrors[c.sticky]
}

func (c *Client) stickyIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sticky
}

func (c *Client) setSticky(idx int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sticky = idx
}

// do runs op against each mirror starting from the sticky one until a
// mirror succeeds. NotFound and cancellation short-circuit: every mirror
// would answer the same. A mirror that succeeds becomes sticky.
func (c *Client) do(ctx context.Context, op func(base string) error) error {
	start := c.stickyIndex()
	failures := make([]MirrorFailure, 0, len(c.mirrors))
	for i := 0; i < len(c.mirrors); i++ {
		idx := (start + i) % len(c.mirrors)
		base := c.mirrors[idx]
		err := c.attempt(ctx, base, op)
		if err == nil {
			c.setSticky(idx)
			return nil
		}
		if errors.Is(err, ErrNotFound) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Srv.Debugf("chainquery: mirror %s failed: %v", base, err)
		failures = append(failures, MirrorFailure{Mirror: base, Err: err})
	}
	return &BackendExhaustedError{Backend: c.opts.Backend, Failures: failures}
}

// attempt runs op against one mirror, absorbing throttling responses with
// the server-supplied or default backoff, up to the retry cap.
func (c *Client) attempt(ctx context.Context, base string, op func(base string) error) error {
	throttles := 0
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		err := op(base)
		var te *throttleError
		if !errors.As(err, &te) {
			return err
		}
		throttles++
		if throttles > c.opts.RetryCap {
			return fmt.Errorf("throttled %d times, giving up: %w", throttles, err)
		}
		delay := te.retryAfter
		if delay <= 0 {
			delay = c.opts.RetryBackoff << (throttles - 1)
		}
		log.Srv.Debugf("chainquery: throttled by %s, retry %d/%d in %s", base, throttles, c.opts.RetryCap, delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// FetchUtxo returns the output identified by ref. Missing transactions and
// missing output indices both map to ErrNotFound.
func (c *Client) FetchUtxo(ctx context.Context, ref TxRef) (*Utxo, error) {
	var out *Utxo
	err := c.do(ctx, func(base string) error {
		u, err := c.backend.fetchUtxo(ctx, base, ref)
		if err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchDatum returns the hex-encoded datum bytes stored under a datum
// hash, for outputs that reference their datum instead of inlining it.
func (c *Client) FetchDatum(ctx context.Context, datumHash string) (string, error) {
	var out string
	err := c.do(ctx, func(base string) error {
		hex, err := c.backend.fetchDatum(ctx, base, datumHash)
		if err != nil {
			return err
		}
		out = hex
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// FetchMetadata returns the metadata records attached to a transaction.
// A transaction with no metadata yields an empty slice, not an error.
func (c *Client) FetchMetadata(ctx context.Context, txHash string) ([]MetadataRecord, error) {
	var out []MetadataRecord
	err := c.do(ctx, func(base string) error {
		records, err := c.backend.fetchMetadata(ctx, base, txHash)
		if err != nil {
			return err
		}
		out = records
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListPolicyAssets returns every asset minted under the policy.
func (c *Client) ListPolicyAssets(ctx context.Context, policyID string) ([]AssetID, error) {
	var out []AssetID
	err := c.do(ctx, func(base string) error {
		assets, err := c.backend.listPolicyAssets(ctx, base, policyID)
		if err != nil {
			return err
		}
		out = assets
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchAssetInfo returns mint information and on-chain metadata for one
// asset.
func (c *Client) FetchAssetInfo(ctx context.Context, id AssetID) (*AssetInfo, error) {
	var out *AssetInfo
	err := c.do(ctx, func(base string) error {
		info, err := c.backend.fetchAssetInfo(ctx, base, id)
		if err != nil {
			return err
		}
		out = info
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
