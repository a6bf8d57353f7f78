package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/pgmiso/sc-landingai/internal/pkg/errcode"
	appErr "github.com/pgmiso/sc-landingai/internal/pkg/errors"
	"github.com/pgmiso/sc-landingai/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, appErr.ErrChunkNotFound):
		response.Error(c, errcode.ErrChunkNotFound, "chunk not found")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, "unauthorized")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, appErr.ErrPageRender), errors.Is(err, appErr.ErrInvalidGeometry):
		response.Error(c, errcode.ErrGroundingFailed, "grounding reconstruction failed")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
