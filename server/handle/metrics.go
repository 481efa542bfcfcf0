package handle

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/scrollkeep/scrollkeep/chainquery"
	"github.com/scrollkeep/scrollkeep/scroll"
)

var (
	reconstructionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scrollkeep",
		Name:      "reconstructions_total",
		Help:      "Reconstruction attempts by outcome.",
	}, []string{"outcome"})

	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "scrollkeep",
		Name:      "cache_hits_total",
		Help:      "Requests served from the reconstruction cache.",
	})

	registryResolvesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scrollkeep",
		Name:      "registry_resolves_total",
		Help:      "Registry directory resolutions by outcome.",
	}, []string{"outcome"})
)

func outcomeLabel(err error) string {
	var (
		decodeErr   *scroll.DecodeError
		assemblyErr *scroll.AssemblyError
		codecErr    *scroll.CodecError
		exhausted   *chainquery.BackendExhaustedError
	)
	switch {
	case errors.Is(err, scroll.ErrNotFound):
		return "not_found"
	case errors.Is(err, scroll.ErrAborted):
		return "aborted"
	case errors.As(err, &decodeErr):
		return "decode_error"
	case errors.As(err, &assemblyErr):
		return "assembly_error"
	case errors.As(err, &codecErr):
		return "codec_error"
	case errors.As(err, &exhausted):
		return "backend_exhausted"
	default:
		return "error"
	}
}
