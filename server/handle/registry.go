package handle

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/scrollkeep/scrollkeep/scroll"
	"github.com/scrollkeep/scrollkeep/scroll/registry"
	"github.com/scrollkeep/scrollkeep/server/handle/api"
)

// Registry serves the merged directory of the pinned trust anchors.
func (h *Handler) Registry(ctx *gin.Context) {
	dir, ok := h.resolveDirectory(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, api.RespOK(gin.H{
		"count":   dir.Len(),
		"entries": dir.Entries(),
	}))
}

// RegistryEntry looks one name up in the merged directory. An unknown
// name is a 404, not a resolution failure.
func (h *Handler) RegistryEntry(ctx *gin.Context) {
	name := ctx.Param("name")
	if !registry.ValidName(name) {
		ctx.JSON(http.StatusBadRequest, api.RespErr(api.CodeParamsInvalid, "invalid registry name"))
		return
	}
	dir, ok := h.resolveDirectory(ctx)
	if !ok {
		return
	}
	entry, found := dir.Lookup(name)
	if !found {
		ctx.JSON(http.StatusNotFound, api.RespErr(api.CodeNotFound, "name not registered"))
		return
	}
	ctx.JSON(http.StatusOK, api.RespOK(entry))
}

func (h *Handler) resolveDirectory(ctx *gin.Context) (*registry.Directory, bool) {
	if h.options.resolver == nil || h.options.trust.IsZero() {
		ctx.JSON(http.StatusNotImplemented, api.RespErr(api.CodeParamsInvalid, "no registry trust anchor configured"))
		return nil, false
	}
	dir, err := h.options.resolver.Resolve(ctx.Request.Context(), h.options.trust)
	if err != nil {
		registryResolvesTotal.WithLabelValues(outcomeLabel(err)).Inc()
		if errors.Is(err, scroll.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, api.RespErr(api.CodeNotFound, err.Error()))
			return nil, false
		}
		ctx.JSON(http.StatusBadGateway, api.RespErr(api.CodeUpstreamError, err.Error()))
		return nil, false
	}
	registryResolvesTotal.WithLabelValues("ok").Inc()
	return dir, true
}
