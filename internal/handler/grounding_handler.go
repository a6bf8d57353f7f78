package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pgmiso/sc-landingai/internal/model"
	"github.com/pgmiso/sc-landingai/internal/pkg/errcode"
	"github.com/pgmiso/sc-landingai/internal/pkg/response"
)

// Grounder is the grounding reconstructor boundary.
type Grounder interface {
	Resolve(ctx context.Context, chunkID string) (*model.ChunkRecord, error)
	Image(ctx context.Context, chunkID string, style model.HighlightStyle) (*model.GroundingImage, error)
}

type GroundingHandler struct {
	grounding Grounder
}

func NewGroundingHandler(grounding Grounder) *GroundingHandler {
	return &GroundingHandler{grounding: grounding}
}

// Chunk returns the record behind a chunk id.
func (h *GroundingHandler) Chunk(c *gin.Context) {
	chunkID := strings.TrimSpace(c.Query("chunk_id"))
	if chunkID == "" {
		response.Error(c, errcode.ErrInvalid, "chunk_id is required")
		return
	}
	rec, err := h.grounding.Resolve(c.Request.Context(), chunkID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, rec)
}

// Image returns the highlighted crop for a chunk. With format=png the raw
// image bytes stream back; otherwise the response carries the image metadata
// and a presigned url when the store can mint one.
func (h *GroundingHandler) Image(c *gin.Context) {
	chunkID := strings.TrimSpace(c.Query("chunk_id"))
	if chunkID == "" {
		response.Error(c, errcode.ErrInvalid, "chunk_id is required")
		return
	}
	img, err := h.grounding.Image(c.Request.Context(), chunkID, styleFromQuery(c))
	if err != nil {
		handleError(c, err)
		return
	}
	if c.Query("format") == "png" {
		c.Data(http.StatusOK, "image/png", img.PNG)
		return
	}
	response.Success(c, img)
}
