package main

import (
	"context"
	"log"

	"github.com/kalesh-app/video-backend/internal/config"
	"github.com/kalesh-app/video-backend/internal/server"
	"github.com/kalesh-app/video-backend/pkg/db/aws"
	"github.com/kalesh-app/video-backend/pkg/db/mongodb"
	"github.com/kalesh-app/video-backend/pkg/db/redis"
	"github.com/kalesh-app/video-backend/pkg/logger"
)

func main() {
	log.Println("Starting server")
	configFile := "config.yml"
	cfgFile, err := config.LoadConfig(configFile)
	if err != nil {
		log.Fatalf("loadConfig: %v", err)
	}
	cfg, err := config.ParseConfig(cfgFile)
	if err != nil {
		log.Fatalf("parseConfig: %v", err)
	}

	appLogger := logger.NewApiLogger(cfg)
	appLogger.InitLogger()
	appLogger.Infof("AppVersion: %s, LogLevel: %s, Mode: %s", cfg.Server.AppVersion, cfg.Logger.Level, cfg.Server.Mode)

	mongoClient, err := mongodb.NewMongoClient(cfg)
	if err != nil {
		appLogger.Fatalf("could not connect to mongo: %s", err)
	}
	defer mongoClient.Disconnect(context.Background())
	appLogger.Infof("mongo connected")

	redisClient, err := redis.NewRedisClient(cfg)
	if err != nil {
		appLogger.Fatalf("could not connect to redis: %s", err)
	}
	defer redisClient.Close()
	appLogger.Infof("redis connected")

	s3Client, err := aws.NewAWSClient(cfg.S3.Endpoint, cfg.S3.Region, cfg.S3.AccessKey, cfg.S3.SecretKey)
	if err != nil {
		appLogger.Fatalf("could not connect to s3: %s", err)
	}

	s := server.NewServer(cfg, mongoClient, redisClient, s3Client, appLogger)
	if err = s.Run(); err != nil {
		appLogger.Infof("could not start server: %s", err)
	}
}
