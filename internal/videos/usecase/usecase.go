package usecase

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kalesh-app/video-backend/internal/config"
	"github.com/kalesh-app/video-backend/internal/models"
	"github.com/kalesh-app/video-backend/internal/videos"
	"github.com/kalesh-app/video-backend/pkg/logger"
	"github.com/kalesh-app/video-backend/pkg/utils"
)

const maxTags = 10

// videosUC orchestrates the upload-to-playback lifecycle: persist the
// pending record, park the raw file in the blob store, hand the job to the
// ingestion queue and later fan deletion tasks out to the cleanup workers.
type videosUC struct {
	cfg         *config.Config
	logger      logger.Logger
	mongoRepo   videos.MongoRepository
	redisRepo   videos.RedisRepository
	awsRepo     videos.AWSRepository
	ingestQueue videos.IngestQueue
	delQueue    videos.DeletionQueue
}

func NewVideosUseCase(
	cfg *config.Config,
	log logger.Logger,
	mongoRepo videos.MongoRepository,
	redisRepo videos.RedisRepository,
	awsRepo videos.AWSRepository,
	ingestQueue videos.IngestQueue,
	delQueue videos.DeletionQueue,
) videos.UseCase {
	return &videosUC{
		cfg:         cfg,
		logger:      log,
		mongoRepo:   mongoRepo,
		redisRepo:   redisRepo,
		awsRepo:     awsRepo,
		ingestQueue: ingestQueue,
		delQueue:    delQueue,
	}
}

// UploadVideo stores the raw file, creates the pending metadata record and
// enqueues the ingestion job. The record's playlist URL points at the raw
// upload until the pipeline replaces it with the HLS master playlist.
func (u *videosUC) UploadVideo(ctx context.Context, input *models.VideoUploadInput, file io.Reader) (*models.Video, error) {
	if err := utils.ValidateStruct(ctx, input); err != nil {
		return nil, errors.Wrap(err, "videosUC.UploadVideo.ValidateStruct")
	}
	if err := u.checkUploadLimits(input); err != nil {
		return nil, err
	}

	rawKey := fmt.Sprintf("raw_%s_%s", uuid.New().String(), sanitizeFileName(input.FileName))
	if err := u.awsRepo.PutObject(ctx, rawKey, file, input.FileSize, input.ContentType); err != nil {
		return nil, errors.Wrap(err, "videosUC.UploadVideo.PutObject")
	}
	rawURL := u.cfg.S3.BaseURL() + "/" + rawKey

	now := time.Now().UTC()
	video := &models.Video{
		UploaderID:       input.UploaderID,
		UploaderUsername: input.UploaderUsername,
		Title:            utils.SanitizeText(input.Title),
		Description:      utils.SanitizeText(input.Description),
		Tags:             utils.ParseTags(input.Tags, maxTags),
		PlaylistURL:      rawURL,
		FileSize:         input.FileSize,
		ProcessingStatus: models.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
		IsActive:         true,
	}

	created, err := u.mongoRepo.CreateVideo(ctx, video)
	if err != nil {
		return nil, errors.Wrap(err, "videosUC.UploadVideo.CreateVideo")
	}

	videoID := created.ID.Hex()
	state := &models.ProcessingState{VideoID: videoID, Status: models.StatusPending}
	if err := u.redisRepo.SetStatus(ctx, videoID, state); err != nil {
		u.logger.Warnf("failed to cache pending status for video %s: %v", videoID, err)
	}

	if err := u.ingestQueue.Enqueue(videoID, rawURL); err != nil {
		// the record stays pending; a later requeue sweep can pick it up
		u.logger.Errorf("failed to enqueue video %s: %v", videoID, err)
		return nil, errors.Wrap(err, "videosUC.UploadVideo.Enqueue")
	}

	return created, nil
}

func (u *videosUC) checkUploadLimits(input *models.VideoUploadInput) error {
	maxBytes := u.cfg.Upload.MaxVideoSizeMB * 1024 * 1024
	if input.FileSize > maxBytes {
		return fmt.Errorf("file size %d exceeds the %dMB limit", input.FileSize, u.cfg.Upload.MaxVideoSizeMB)
	}
	for _, allowed := range u.cfg.Upload.AllowedVideoTypes {
		if strings.EqualFold(input.ContentType, allowed) {
			return nil
		}
	}
	return fmt.Errorf("unsupported video type %q", input.ContentType)
}

func (u *videosUC) GetVideo(ctx context.Context, videoID string) (*models.Video, error) {
	video, err := u.mongoRepo.GetVideoByID(ctx, videoID)
	if err != nil {
		return nil, errors.Wrap(err, "videosUC.GetVideo.GetVideoByID")
	}
	if err := u.mongoRepo.IncrementViews(ctx, videoID); err != nil {
		u.logger.Warnf("failed to bump views for video %s: %v", videoID, err)
	}
	return video, nil
}

func (u *videosUC) ListVideos(ctx context.Context, pagination *utils.Pagination) (*models.VideoList, error) {
	list, err := u.mongoRepo.ListVideos(ctx, pagination)
	if err != nil {
		return nil, errors.Wrap(err, "videosUC.ListVideos")
	}
	return list, nil
}

// DeleteVideo soft-deletes the metadata record, then queues best-effort
// cleanup of the published artifacts. The record disappears from the API
// immediately; blob removal happens whenever the workers get to it.
func (u *videosUC) DeleteVideo(ctx context.Context, videoID, uploaderID string) error {
	video, err := u.mongoRepo.GetVideoByID(ctx, videoID)
	if err != nil {
		return errors.Wrap(err, "videosUC.DeleteVideo.GetVideoByID")
	}
	if video.UploaderID != uploaderID {
		return fmt.Errorf("video %s does not belong to uploader %s", videoID, uploaderID)
	}

	if err := u.mongoRepo.SoftDeleteVideo(ctx, videoID); err != nil {
		return errors.Wrap(err, "videosUC.DeleteVideo.SoftDeleteVideo")
	}
	if err := u.redisRepo.DeleteStatus(ctx, videoID); err != nil {
		u.logger.Warnf("failed to drop cached status for video %s: %v", videoID, err)
	}

	u.queueCleanup(video)
	return nil
}

func (u *videosUC) queueCleanup(video *models.Video) {
	videoID := video.ID.Hex()
	if strings.Contains(video.PlaylistURL, "/hls/") {
		u.enqueueDeletion(models.DeletionKindTree, video.PlaylistURL, videoID)
		// the raw upload key is not recorded once the playlist URL is
		// rewritten; the raw file is removed by the worker after encoding
	} else if video.PlaylistURL != "" {
		// pipeline never finished, the playlist URL still points at the raw file
		u.enqueueDeletion(models.DeletionKindFile, video.PlaylistURL, videoID)
	}
	if video.ThumbnailURL != nil && *video.ThumbnailURL != "" {
		u.enqueueDeletion(models.DeletionKindFile, *video.ThumbnailURL, videoID)
	}
}

func (u *videosUC) enqueueDeletion(kind models.DeletionKind, location, videoID string) {
	if err := u.delQueue.Enqueue(kind, location); err != nil {
		u.logger.Warnf("failed to queue %s deletion for video %s: %v", kind, videoID, err)
	}
}

// GetProcessingState reads the cached state first and falls back to the
// metadata record, re-priming the cache on a miss.
func (u *videosUC) GetProcessingState(ctx context.Context, videoID string) (*models.ProcessingState, error) {
	state, err := u.redisRepo.GetStatus(ctx, videoID)
	if err != nil {
		u.logger.Warnf("status cache read failed for video %s: %v", videoID, err)
	}
	if state != nil {
		return state, nil
	}

	video, err := u.mongoRepo.GetVideoByID(ctx, videoID)
	if err != nil {
		return nil, errors.Wrap(err, "videosUC.GetProcessingState.GetVideoByID")
	}
	state = &models.ProcessingState{
		VideoID: videoID,
		Status:  video.ProcessingStatus,
		Error:   video.ProcessingError,
	}
	if err := u.redisRepo.SetStatus(ctx, videoID, state); err != nil {
		u.logger.Warnf("failed to re-prime status cache for video %s: %v", videoID, err)
	}
	return state, nil
}

func (u *videosUC) QueueDepth() int {
	return u.ingestQueue.Depth()
}

func sanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '_' || r == '-':
			return r
		default:
			return -1
		}
	}, name)
}
