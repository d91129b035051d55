package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/kalesh-app/video-backend/internal/config"
	"github.com/kalesh-app/video-backend/internal/models"
	"github.com/kalesh-app/video-backend/internal/videos"
	"github.com/kalesh-app/video-backend/pkg/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const videosCollection = "videos"

type videoMongoRepo struct {
	db *mongo.Database
}

func NewVideoMongoRepo(client *mongo.Client, cfg *config.Config) videos.MongoRepository {
	return &videoMongoRepo{
		db: client.Database(cfg.Mongo.DBName),
	}
}

func (r *videoMongoRepo) collection() *mongo.Collection {
	return r.db.Collection(videosCollection)
}

func (r *videoMongoRepo) CreateVideo(ctx context.Context, video *models.Video) (*models.Video, error) {
	now := time.Now().UTC()
	video.CreatedAt = now
	video.UpdatedAt = now
	video.IsActive = true

	res, err := r.collection().InsertOne(ctx, video)
	if err != nil {
		return nil, fmt.Errorf("failed to insert video: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	video.ID = oid
	return video, nil
}

func (r *videoMongoRepo) GetVideoByID(ctx context.Context, videoID string) (*models.Video, error) {
	oid, err := primitive.ObjectIDFromHex(videoID)
	if err != nil {
		return nil, fmt.Errorf("invalid video id: %w", err)
	}
	video := &models.Video{}
	if err := r.collection().FindOne(ctx, bson.M{"_id": oid, "is_active": true}).Decode(video); err != nil {
		return nil, fmt.Errorf("failed to get video by id: %w", err)
	}
	return video, nil
}

func (r *videoMongoRepo) ListVideos(ctx context.Context, pagination *utils.Pagination) (*models.VideoList, error) {
	filter := bson.M{"is_active": true}

	totalCount, err := r.collection().CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count videos: %w", err)
	}
	if totalCount == 0 {
		return &models.VideoList{
			Videos:     make([]*models.Video, 0),
			TotalCount: 0,
			Page:       pagination.GetPage(),
			PageSize:   pagination.GetSize(),
			HasMore:    false,
		}, nil
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(pagination.GetOffset())).
		SetLimit(int64(pagination.GetLimit()))

	cursor, err := r.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer cursor.Close(ctx)

	list := make([]*models.Video, 0, pagination.GetSize())
	for cursor.Next(ctx) {
		video := &models.Video{}
		if err := cursor.Decode(video); err != nil {
			return nil, fmt.Errorf("failed to decode video: %w", err)
		}
		list = append(list, video)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate videos: %w", err)
	}

	return &models.VideoList{
		Videos:     list,
		TotalCount: int(totalCount),
		Page:       pagination.GetPage(),
		PageSize:   pagination.GetSize(),
		HasMore:    utils.GetHasMore(pagination.GetPage(), int(totalCount), pagination.GetSize()),
	}, nil
}

func (r *videoMongoRepo) IncrementViews(ctx context.Context, videoID string) error {
	oid, err := primitive.ObjectIDFromHex(videoID)
	if err != nil {
		return fmt.Errorf("invalid video id: %w", err)
	}
	if _, err := r.collection().UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$inc": bson.M{"views": 1}}); err != nil {
		return fmt.Errorf("failed to increment views: %w", err)
	}
	return nil
}

func (r *videoMongoRepo) SoftDeleteVideo(ctx context.Context, videoID string) error {
	oid, err := primitive.ObjectIDFromHex(videoID)
	if err != nil {
		return fmt.Errorf("invalid video id: %w", err)
	}
	update := bson.M{"$set": bson.M{
		"is_active":  false,
		"updated_at": time.Now().UTC(),
	}}
	if _, err := r.collection().UpdateOne(ctx, bson.M{"_id": oid}, update); err != nil {
		return fmt.Errorf("failed to soft delete video: %w", err)
	}
	return nil
}

func (r *videoMongoRepo) SetProcessing(ctx context.Context, videoID string) error {
	return r.setStatusFields(ctx, videoID, bson.M{
		"processing_status": models.StatusProcessing,
	})
}

func (r *videoMongoRepo) MarkCompleted(ctx context.Context, videoID string, result *models.CompletedResult) error {
	return r.setStatusFields(ctx, videoID, bson.M{
		"processing_status": models.StatusCompleted,
		"playlist_url":      result.PlaylistURL,
		"thumbnail_url":     result.ThumbnailURL,
		"duration":          result.Duration,
		"processing_error":  "",
	})
}

func (r *videoMongoRepo) MarkFailed(ctx context.Context, videoID string, cause string) error {
	return r.setStatusFields(ctx, videoID, bson.M{
		"processing_status": models.StatusFailed,
		"processing_error":  cause,
	})
}

func (r *videoMongoRepo) setStatusFields(ctx context.Context, videoID string, fields bson.M) error {
	oid, err := primitive.ObjectIDFromHex(videoID)
	if err != nil {
		return fmt.Errorf("invalid video id: %w", err)
	}
	fields["updated_at"] = time.Now().UTC()
	res, err := r.collection().UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("failed to update video status: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("video %s not found", videoID)
	}
	return nil
}
