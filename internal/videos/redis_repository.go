package videos

import (
	"context"

	"github.com/kalesh-app/video-backend/internal/models"
)

// RedisRepository caches processing state so status polling does not hit
// the document store on every request. Mongo stays the source of truth.
type RedisRepository interface {
	SetStatus(ctx context.Context, videoID string, state *models.ProcessingState) error
	GetStatus(ctx context.Context, videoID string) (*models.ProcessingState, error)
	DeleteStatus(ctx context.Context, videoID string) error
}
