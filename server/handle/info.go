package handle

import (
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/scrollkeep/scrollkeep/scroll"
	"github.com/scrollkeep/scrollkeep/server/handle/api"
)

// InfoResp is the metadata view of one reconstructed scroll. Bytes are
// not included; /scroll serves those.
type InfoResp struct {
	Pointer       string `json:"pointer"`
	ContentType   string `json:"content_type"`
	MediaType     string `json:"media_type"`
	SizeBytes     int    `json:"size_bytes"`
	SHA256        string `json:"sha256"`
	Verification  string `json:"verification"`
	FragmentCount int    `json:"fragment_count"`

	// Populated for inline-datum pointers when a querier is attached.
	Address string      `json:"address,omitempty"`
	Ada     string      `json:"ada,omitempty"`
	Datum   interface{} `json:"datum,omitempty"`
}

// Info reports reconstruction metadata for a pointer without serving the
// body.
func (h *Handler) Info(ctx *gin.Context) {
	ptr, ok := h.pointerParam(ctx)
	if !ok {
		return
	}
	res, err := h.reconstruct(ctx, ptr)
	if err != nil {
		if errors.Is(err, scroll.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, api.RespErr(api.CodeNotFound, "pointer resolves to nothing"))
			return
		}
		ctx.JSON(http.StatusBadGateway, api.RespErr(api.CodeUpstreamError, err.Error()))
		return
	}

	info := &InfoResp{
		Pointer:       ptr.String(),
		ContentType:   res.ContentType.String(),
		MediaType:     res.ContentType.MediaType().String(),
		SizeBytes:     res.SizeBytes,
		SHA256:        res.SHA256,
		Verification:  string(res.Verification),
		FragmentCount: res.FragmentCount,
	}
	if ptr.Kind == scroll.PointerInlineDatum && h.options.querier != nil {
		if utxo, err := h.options.querier.FetchUtxo(ctx.Request.Context(), ptr.TxRef); err == nil {
			info.Address = utxo.Address
			info.Ada = utxo.Ada().String()
			if raw, err := hex.DecodeString(utxo.InlineDatumHex); err == nil && len(raw) > 0 {
				// Loose decode of the whole container for display, not
				// the payload path.
				if v, err := scroll.DatumValue(raw); err == nil {
					info.Datum = v
				}
			}
		}
	}
	ctx.JSON(http.StatusOK, api.RespOK(info))
}
