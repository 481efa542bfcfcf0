package handle

import (
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/scrollkeep/scrollkeep/server/handle/api"
	"golang.org/x/sync/errgroup"
)

// StatsResp summarizes the reconstruction cache.
type StatsResp struct {
	CachedScrolls        int64  `json:"cached_scrolls"`
	StoredBytes          uint64 `json:"stored_bytes"`
	StoredSize           string `json:"stored_size"`
	VerificationFailures int64  `json:"verification_failures"`
}

// Stats reports cache totals. Requires the cache database.
func (h *Handler) Stats(ctx *gin.Context) {
	if h.options.db == nil {
		ctx.JSON(http.StatusNotImplemented, api.RespErr(api.CodeDbError, "no cache database configured"))
		return
	}
	resp := &StatsResp{}
	errWg := &errgroup.Group{}
	errWg.Go(func() error {
		count, stored, err := h.DB().ScrollStats()
		if err != nil {
			return err
		}
		resp.CachedScrolls = count
		resp.StoredBytes = stored
		resp.StoredSize = humanize.Bytes(stored)
		return nil
	})
	errWg.Go(func() error {
		failures, err := h.DB().VerificationFailures()
		if err != nil {
			return err
		}
		resp.VerificationFailures = failures
		return nil
	})
	if err := errWg.Wait(); err != nil {
		ctx.JSON(http.StatusInternalServerError, api.RespErr(api.CodeDbError, err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, api.RespOK(resp))
}
