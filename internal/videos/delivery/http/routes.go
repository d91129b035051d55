package http

import (
	"github.com/labstack/echo/v4"

	"github.com/kalesh-app/video-backend/internal/videos"
)

func MapVideoRoutes(videoGroup *echo.Group, h videos.Handlers) {
	videoGroup.POST("/upload", h.UploadVideo())
	videoGroup.GET("/list-videos", h.ListVideos())
	videoGroup.GET("/:video_id", h.GetVideoByID())
	videoGroup.GET("/:video_id/status", h.GetProcessingState())
	videoGroup.DELETE("/:video_id", h.DeleteVideo())
}
