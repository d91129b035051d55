package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kalesh-app/video-backend/internal/middleware"
	"github.com/kalesh-app/video-backend/internal/pipeline"
	"github.com/kalesh-app/video-backend/internal/storage"
	"github.com/kalesh-app/video-backend/internal/transcode"
	videoHttp "github.com/kalesh-app/video-backend/internal/videos/delivery/http"
	videoRepository "github.com/kalesh-app/video-backend/internal/videos/repository"
	videoUsecase "github.com/kalesh-app/video-backend/internal/videos/usecase"
	"github.com/kalesh-app/video-backend/pkg/utils"
)

func (s *Server) MapHandlers(e *echo.Echo) error {
	vMongoRepo := videoRepository.NewVideoMongoRepo(s.mongoClient, s.cfg)
	vRedisRepo := videoRepository.NewVideoRedisRepo(s.redisClient, s.cfg)
	vAWSRepo := videoRepository.NewAwsRepository(s.s3Client, s.cfg)

	publisher := storage.NewBlobPublisher(s.cfg, vAWSRepo, s.logger)
	inspector := transcode.NewInspector(s.cfg, s.logger)
	encoder := transcode.NewHLSEncoder(s.cfg, s.logger)

	s.ingestQueue = pipeline.NewIngestQueue(s.cfg, s.logger, vMongoRepo, vRedisRepo, publisher, inspector, encoder)
	s.delQueue = pipeline.NewDeletionQueue(s.cfg, s.logger, publisher)

	videoUC := videoUsecase.NewVideosUseCase(s.cfg, s.logger, vMongoRepo, vRedisRepo, vAWSRepo, s.ingestQueue, s.delQueue)
	videoHandlers := videoHttp.NewVideoHandlers(s.cfg, videoUC, s.logger)

	mw := middleware.NewMiddlewareManager(s.cfg, []string{"*"}, s.logger)
	e.Use(mw.RequestLoggerMiddleware)

	v1 := e.Group("/api/v1")
	health := v1.Group("/health")
	videoGroup := v1.Group("/videos")

	videoHttp.MapVideoRoutes(videoGroup, videoHandlers)
	health.GET("", func(c echo.Context) error {
		s.logger.Infof("Health check RequestID: %s", utils.GetRequestID(c))
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":      "OK",
			"queue_depth": videoUC.QueueDepth(),
		})
	})
	return nil
}
