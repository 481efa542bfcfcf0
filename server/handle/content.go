package handle

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/scrollkeep/scrollkeep/constants"
	"github.com/scrollkeep/scrollkeep/dao"
	"github.com/scrollkeep/scrollkeep/scroll"
	"github.com/scrollkeep/scrollkeep/scroll/log"
)

const verificationHeader = "X-Scroll-Verification"

// Content serves the reconstructed bytes of one pointer. On-chain content
// is immutable, so responses carry a long-lived immutable cache policy and
// the content hash as ETag. A failed hash check never blocks serving; it
// is surfaced through the verification header so viewers can warn.
func (h *Handler) Content(ctx *gin.Context) {
	ptr, ok := h.pointerParam(ctx)
	if !ok {
		return
	}
	res, err := h.reconstruct(ctx, ptr)
	if err != nil {
		h.contentErr(ctx, err)
		return
	}

	ctx.Header("Cache-Control", "public, max-age=1209600, immutable")
	ctx.Header("ETag", `"`+res.SHA256+`"`)
	ctx.Header(verificationHeader, string(res.Verification))

	contentType := res.ContentType
	if contentType == "" {
		contentType = constants.ContentTypeOctetStream
	}
	if len(res.Bytes) == 0 {
		ctx.Status(http.StatusOK)
		return
	}
	ctx.Data(http.StatusOK, contentType.String(), res.Bytes)
}

// pointerParam parses the wildcard pointer path segment. gin keeps the
// leading slash of a wildcard match.
func (h *Handler) pointerParam(ctx *gin.Context) (scroll.Pointer, bool) {
	raw := strings.TrimPrefix(ctx.Param("pointer"), "/")
	ptr, err := scroll.ParsePointer(raw)
	if err != nil {
		ctx.String(http.StatusBadRequest, "invalid pointer: %v", err)
		return scroll.Pointer{}, false
	}
	return ptr, true
}

// reconstruct serves a pointer from the cache when one is attached, and
// falls back to a full reconstruction otherwise. Cache writes are best
// effort; a failed store never fails the request.
func (h *Handler) reconstruct(ctx *gin.Context, ptr scroll.Pointer) (*scroll.Result, error) {
	canonical := ptr.String()
	if h.options.db != nil {
		cache, err := h.options.db.GetScrollByPointer(canonical)
		if err != nil {
			log.Srv.Warnf("handle: cache lookup %s: %v", canonical, err)
		} else if cache.Id != 0 {
			cacheHitsTotal.Inc()
			return dao.CachedResult(&cache), nil
		}
	}

	res, err := h.options.fetcher.Reconstruct(ctx.Request.Context(), ptr)
	if err != nil {
		reconstructionsTotal.WithLabelValues(outcomeLabel(err)).Inc()
		return nil, err
	}
	reconstructionsTotal.WithLabelValues("ok").Inc()

	if h.options.db != nil {
		if err := h.options.db.SaveScrollResult(canonical, res); err != nil {
			log.Srv.Warnf("handle: cache store %s: %v", canonical, err)
		}
	}
	return res, nil
}

func (h *Handler) contentErr(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, scroll.ErrNotFound):
		ctx.Status(http.StatusNotFound)
	case errors.Is(err, scroll.ErrAborted):
		// Client went away mid-reconstruction; nothing to answer.
		ctx.Abort()
	default:
		log.Srv.Errorf("handle: reconstruction failed: %v", err)
		ctx.Status(http.StatusBadGateway)
	}
}
