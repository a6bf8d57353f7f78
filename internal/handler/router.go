package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/pgmiso/sc-landingai/internal/middleware"
	"github.com/pgmiso/sc-landingai/internal/pkg/response"
)

type RouterDeps struct {
	Events    *EventHandler
	Search    *SearchHandler
	Grounding *GroundingHandler
	Status    *StatusHandler
	JWTSecret []byte
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/healthz", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "ok"})
	})
	api.POST("/events/s3", deps.Events.HandleS3)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.GET("/search", deps.Search.Search)
	authGroup.GET("/chunks", deps.Grounding.Chunk)
	authGroup.GET("/chunks/image", deps.Grounding.Image)
	authGroup.GET("/documents/status", deps.Status.Document)
	authGroup.GET("/index/job", deps.Status.IndexJob)
}
