package handler

import (
	"context"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pgmiso/sc-landingai/internal/model"
	"github.com/pgmiso/sc-landingai/internal/pkg/errcode"
	"github.com/pgmiso/sc-landingai/internal/pkg/response"
	"github.com/pgmiso/sc-landingai/internal/retrieval"
)

// Searcher is the retrieval service boundary.
type Searcher interface {
	Search(ctx context.Context, query string, opts retrieval.Options) ([]model.SearchResult, error)
}

type SearchHandler struct {
	retrieval Searcher
}

func NewSearchHandler(retrieval Searcher) *SearchHandler {
	return &SearchHandler{retrieval: retrieval}
}

func (h *SearchHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		response.Error(c, errcode.ErrInvalid, "q is required")
		return
	}
	topK, _ := strconv.Atoi(c.Query("top_k"))
	withImage := c.Query("with_image") == "true"
	opts := retrieval.Options{
		TopK:      topK,
		WithImage: withImage,
		Style:     styleFromQuery(c),
	}
	results, err := h.retrieval.Search(c.Request.Context(), query, opts)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"results": results})
}

func styleFromQuery(c *gin.Context) model.HighlightStyle {
	style := model.HighlightStyle{Color: strings.TrimSpace(c.Query("color"))}
	if width, err := strconv.Atoi(c.Query("width")); err == nil && width > 0 {
		style.Width = width
	}
	return style
}
