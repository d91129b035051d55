package videos

import (
	"context"

	"github.com/kalesh-app/video-backend/internal/models"
	"github.com/kalesh-app/video-backend/pkg/utils"
)

// MongoRepository owns the durable video metadata records. The pipeline
// worker is the only writer while a job is in flight; handlers write only
// before enqueue (create) or after a terminal state (delete).
type MongoRepository interface {
	CreateVideo(ctx context.Context, video *models.Video) (*models.Video, error)
	GetVideoByID(ctx context.Context, videoID string) (*models.Video, error)
	ListVideos(ctx context.Context, pagination *utils.Pagination) (*models.VideoList, error)
	IncrementViews(ctx context.Context, videoID string) error
	SoftDeleteVideo(ctx context.Context, videoID string) error

	SetProcessing(ctx context.Context, videoID string) error
	MarkCompleted(ctx context.Context, videoID string, result *models.CompletedResult) error
	MarkFailed(ctx context.Context, videoID string, cause string) error
}
