package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/kalesh-app/video-backend/internal/config"
	"github.com/kalesh-app/video-backend/internal/pipeline"
	"github.com/kalesh-app/video-backend/pkg/logger"
)

const (
	maxHeaderBytes  = 1 << 20
	ctxTimeout      = 5
	readTimeout     = 10 * time.Second
	writeTimeout    = 10 * time.Second
	idleTimeout     = 60 * time.Second
	shutdownTimeout = time.Second * ctxTimeout
)

// Server owns the HTTP surface and the background queues. Both live in
// the same process because the ingestion queue is in memory; a separate
// API binary would not see the worker's jobs.
type Server struct {
	echo        *echo.Echo
	cfg         *config.Config
	mongoClient *mongo.Client
	redisClient *redis.Client
	s3Client    *s3.Client
	logger      logger.Logger

	ingestQueue *pipeline.IngestQueue
	delQueue    *pipeline.DeletionQueue
}

func NewServer(cfg *config.Config, mongoClient *mongo.Client, redisClient *redis.Client, s3Client *s3.Client, logger logger.Logger) *Server {
	return &Server{
		echo:        echo.New(),
		cfg:         cfg,
		mongoClient: mongoClient,
		redisClient: redisClient,
		s3Client:    s3Client,
		logger:      logger,
	}
}

func (s *Server) Run() error {
	if err := s.MapHandlers(s.echo); err != nil {
		return err
	}

	s.ingestQueue.Start()
	s.delQueue.Start()

	s.echo.Server.MaxHeaderBytes = maxHeaderBytes
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       300,
	}))

	server := &http.Server{
		Addr:         s.cfg.Server.Port,
		ReadTimeout:  readTimeout,
		IdleTimeout:  idleTimeout,
		WriteTimeout: writeTimeout,
	}
	go func() {
		if err := s.echo.StartServer(server); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("error starting server: ", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, os.Interrupt)
	<-quit

	ctx, shutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdown()
	s.logger.Infof("shutting down server")
	err := s.echo.Server.Shutdown(ctx)

	// stop accepting work first, then let the in-flight job drain
	s.ingestQueue.Stop()
	s.delQueue.Stop()
	return err
}
