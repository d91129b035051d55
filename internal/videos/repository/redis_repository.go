package repository

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/kalesh-app/video-backend/internal/config"
	"github.com/kalesh-app/video-backend/internal/models"
	"github.com/kalesh-app/video-backend/internal/videos"
)

type videoRedisRepo struct {
	redisClient  *redis.Client
	statusPrefix string
}

func NewVideoRedisRepo(redisClient *redis.Client, cfg *config.Config) videos.RedisRepository {
	return &videoRedisRepo{
		redisClient:  redisClient,
		statusPrefix: cfg.Redis.StatusPrefix,
	}
}

func (v *videoRedisRepo) statusKey(videoID string) string {
	return v.statusPrefix + videoID
}

func (v *videoRedisRepo) SetStatus(ctx context.Context, videoID string, state *models.ProcessingState) error {
	err := v.redisClient.HSet(ctx, v.statusKey(videoID),
		"status", string(state.Status),
		"error", state.Error,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to cache processing state: %w", err)
	}
	return nil
}

func (v *videoRedisRepo) GetStatus(ctx context.Context, videoID string) (*models.ProcessingState, error) {
	fields, err := v.redisClient.HGetAll(ctx, v.statusKey(videoID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cached processing state: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return &models.ProcessingState{
		VideoID: videoID,
		Status:  models.ProcessingStatus(fields["status"]),
		Error:   fields["error"],
	}, nil
}

func (v *videoRedisRepo) DeleteStatus(ctx context.Context, videoID string) error {
	if err := v.redisClient.Del(ctx, v.statusKey(videoID)).Err(); err != nil {
		return fmt.Errorf("failed to drop cached processing state: %w", err)
	}
	return nil
}
