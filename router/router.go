package router

import (
	"net/http"

	"github.com/ajgcsol/videopipeline/handler"
	"github.com/ajgcsol/videopipeline/middleware"
	metricsgin "github.com/ajgcsol/videopipeline/pkg/metrics/gin"
	"github.com/gin-gonic/gin"
)

func Setup(apiKey string, pipelineHandler *handler.PipelineHandler, videoHandler *handler.VideoHandler) *gin.Engine {
	r := gin.Default()
	r.Use(metricsgin.PrometheusMiddleware("videopipeline"))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(middleware.APIKeyAuth(apiKey))
	{
		api.POST("/videos", pipelineHandler.UploadVideo)
		api.GET("/videos", videoHandler.ListVideos)
		api.GET("/videos/:id", videoHandler.GetVideo)
		api.PUT("/videos/:id/status", videoHandler.UpdateVideoStatus)
		api.DELETE("/videos/:id", videoHandler.DeleteVideo)
		api.GET("/assets/:asset_id/video", videoHandler.GetVideoByAsset)

		api.GET("/sessions/:id", pipelineHandler.GetSession)
		api.POST("/sessions/:id/reset", pipelineHandler.ResetSession)
		api.DELETE("/sessions/:id", pipelineHandler.CloseSession)

		api.GET("/sessions/:id/speakers", pipelineHandler.ListSpeakers)
		api.POST("/sessions/:id/speakers/confirm", pipelineHandler.ConfirmSpeakers)
		api.POST("/sessions/:id/speakers/skip", pipelineHandler.SkipSpeakers)
		api.PUT("/sessions/:id/speakers/:label", pipelineHandler.RenameSpeaker)
		api.POST("/sessions/:id/speakers/:label/screenshot", pipelineHandler.AttachScreenshot)
	}
	return r
}
