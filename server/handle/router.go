package handle

import (
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (h *Handler) InitRouter() {
	if h.options.enablePProf {
		pprof.Register(h.Engine())
	}
	if h.options.enablePrometheus {
		h.Engine().GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	h.Engine().GET("/scroll/*pointer", h.Content)
	h.Engine().GET("/info/*pointer", h.Info)
	h.Engine().GET("/registry", h.Registry)
	h.Engine().GET("/registry/:name", h.RegistryEntry)
	h.Engine().GET("/stats", h.Stats)
}
