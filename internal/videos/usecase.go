package videos

import (
	"context"
	"io"

	"github.com/kalesh-app/video-backend/internal/models"
	"github.com/kalesh-app/video-backend/pkg/utils"
)

type UseCase interface {
	UploadVideo(ctx context.Context, input *models.VideoUploadInput, file io.Reader) (*models.Video, error)
	GetVideo(ctx context.Context, videoID string) (*models.Video, error)
	ListVideos(ctx context.Context, pagination *utils.Pagination) (*models.VideoList, error)
	DeleteVideo(ctx context.Context, videoID, uploaderID string) error
	GetProcessingState(ctx context.Context, videoID string) (*models.ProcessingState, error)
	QueueDepth() int
}
