package handle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/scrollkeep/scrollkeep/dao"
	"github.com/scrollkeep/scrollkeep/internal/signal"
	"github.com/scrollkeep/scrollkeep/scroll"
	"github.com/scrollkeep/scrollkeep/scroll/log"
	"github.com/scrollkeep/scrollkeep/scroll/registry"
	"github.com/scrollkeep/scrollkeep/server/handle/middlewares"
)

// Fetcher recovers scroll bytes for a pointer. A scroll.Reconstructor
// satisfies it; handler tests substitute fakes.
type Fetcher interface {
	Reconstruct(ctx context.Context, ptr scroll.Pointer, opts ...scroll.FetchOption) (*scroll.Result, error)
}

// Resolver produces the merged registry directory for a trust anchor set.
type Resolver interface {
	Resolve(ctx context.Context, trust registry.Trust) (*registry.Directory, error)
}

type Options struct {
	addr             string
	engine           *gin.Engine
	db               *dao.DB
	fetcher          Fetcher
	resolver         Resolver
	trust            registry.Trust
	querier          scroll.Querier
	enablePProf      bool
	enablePrometheus bool
}

type Option func(*Options)

func WithAddr(addr string) func(*Options) {
	return func(options *Options) {
		options.addr = addr
	}
}

func WithEngine(g *gin.Engine) func(*Options) {
	return func(options *Options) {
		options.engine = g
	}
}

// WithDB attaches the reconstruction cache. Without it every request
// refetches from chain.
func WithDB(db *dao.DB) func(*Options) {
	return func(options *Options) {
		options.db = db
	}
}

func WithFetcher(f Fetcher) func(*Options) {
	return func(options *Options) {
		options.fetcher = f
	}
}

func WithResolver(r Resolver) func(*Options) {
	return func(options *Options) {
		options.resolver = r
	}
}

// WithTrust pins the registry anchor set served under /registry.
func WithTrust(trust registry.Trust) func(*Options) {
	return func(options *Options) {
		options.trust = trust
	}
}

// WithQuerier exposes raw chain shapes to the info endpoint.
func WithQuerier(q scroll.Querier) func(*Options) {
	return func(options *Options) {
		options.querier = q
	}
}

func WithEnablePProf(enable bool) func(*Options) {
	return func(options *Options) {
		options.enablePProf = enable
	}
}

func WithPrometheus(enable bool) func(*Options) {
	return func(options *Options) {
		options.enablePrometheus = enable
	}
}

type Handler struct {
	options *Options
}

func New(opts ...Option) (*Handler, error) {
	h := &Handler{}
	h.options = &Options{}
	for _, opt := range opts {
		opt(h.options)
	}
	if h.options.addr == "" {
		h.options.addr = ":8080"
	}
	if h.options.fetcher == nil {
		return nil, fmt.Errorf("fetcher is nil")
	}
	if h.options.engine == nil {
		h.options.engine = gin.New()
		h.options.engine.Use(gin.Recovery(), middlewares.Logger())
	}
	return h, nil
}

func (h *Handler) Engine() *gin.Engine {
	return h.options.engine
}

func (h *Handler) DB() *dao.DB {
	return h.options.db
}

func (h *Handler) Run() error {
	h.InitRouter()
	srv := &http.Server{
		Addr:    h.options.addr,
		Handler: h.options.engine,
	}
	signal.AddInterruptHandler(func() {
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Srv.Errorf("srv.Shutdown err: %v", err)
		}
	})
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Srv.Errorf("srv.ListenAndServe err: %v", err)
			os.Exit(1)
		}
	}()
	return nil
}
