package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kalesh-app/video-backend/internal/config"
	"github.com/kalesh-app/video-backend/internal/models"
	"github.com/kalesh-app/video-backend/internal/videos"
	"github.com/kalesh-app/video-backend/pkg/logger"
	"github.com/kalesh-app/video-backend/pkg/utils"
)

type videoHandlers struct {
	cfg     *config.Config
	videoUC videos.UseCase
	logger  logger.Logger
}

func NewVideoHandlers(cfg *config.Config, videoUC videos.UseCase, log logger.Logger) videos.Handlers {
	return &videoHandlers{
		cfg:     cfg,
		videoUC: videoUC,
		logger:  log,
	}
}

// UploadVideo accepts a multipart upload, stores it and returns the
// pending record. Processing happens asynchronously; the caller polls
// the status endpoint to find out when the video is playable.
func (h *videoHandlers) UploadVideo() echo.HandlerFunc {
	return func(c echo.Context) error {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "video file is required"})
		}
		file, err := fileHeader.Open()
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "could not read the uploaded file"})
		}
		defer file.Close()

		input := &models.VideoUploadInput{
			UploaderID:       c.FormValue("uploader_id"),
			UploaderUsername: c.FormValue("uploader_username"),
			Title:            c.FormValue("title"),
			Description:      c.FormValue("description"),
			Tags:             c.FormValue("tags"),
			FileName:         fileHeader.Filename,
			ContentType:      fileHeader.Header.Get("Content-Type"),
			FileSize:         fileHeader.Size,
		}

		video, err := h.videoUC.UploadVideo(c.Request().Context(), input, file)
		if err != nil {
			h.logger.Errorf("UploadVideo RequestID: %s, Error: %v", utils.GetRequestID(c), err)
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusAccepted, video)
	}
}

func (h *videoHandlers) GetVideoByID() echo.HandlerFunc {
	return func(c echo.Context) error {
		videoID := c.Param("video_id")
		if videoID == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "video id is required"})
		}
		video, err := h.videoUC.GetVideo(c.Request().Context(), videoID)
		if err != nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, video)
	}
}

func (h *videoHandlers) ListVideos() echo.HandlerFunc {
	return func(c echo.Context) error {
		pagination, err := utils.GetPaginationFromCtx(c)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		list, err := h.videoUC.ListVideos(c.Request().Context(), pagination)
		if err != nil {
			h.logger.Errorf("ListVideos RequestID: %s, Error: %v", utils.GetRequestID(c), err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, list)
	}
}

func (h *videoHandlers) DeleteVideo() echo.HandlerFunc {
	return func(c echo.Context) error {
		videoID := c.Param("video_id")
		uploaderID := c.QueryParam("uploader_id")
		if videoID == "" || uploaderID == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "video id and uploader id are required"})
		}
		if err := h.videoUC.DeleteVideo(c.Request().Context(), videoID, uploaderID); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]string{"message": "video deleted successfully"})
	}
}

func (h *videoHandlers) GetProcessingState() echo.HandlerFunc {
	return func(c echo.Context) error {
		videoID := c.Param("video_id")
		if videoID == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "video id is required"})
		}
		state, err := h.videoUC.GetProcessingState(c.Request().Context(), videoID)
		if err != nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, state)
	}
}
