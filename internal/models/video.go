package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Video is the durable metadata record in the videos collection.
// PlaylistURL points at the raw upload until the pipeline publishes the
// HLS master playlist, so it is always downloadable.
type Video struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UploaderID        string             `json:"uploader_id" bson:"uploader_id" validate:"required"`
	UploaderUsername  string             `json:"uploader_username" bson:"uploader_username" validate:"required"`
	Title             string             `json:"title" bson:"title" validate:"required,lte=255"`
	Description       string             `json:"description" bson:"description" validate:"omitempty,lte=5000"`
	Tags              []string           `json:"tags" bson:"tags" validate:"omitempty,max=10"`
	PlaylistURL       string             `json:"playlist_url" bson:"playlist_url"`
	ThumbnailURL      *string            `json:"thumbnail_url" bson:"thumbnail_url"`
	Duration          *float64           `json:"duration" bson:"duration"`
	FileSize          int64              `json:"file_size" bson:"file_size"`
	Views             int64              `json:"views" bson:"views"`
	Likes             int64              `json:"likes" bson:"likes"`
	Dislikes          int64              `json:"dislikes" bson:"dislikes"`
	SavedCount        int64              `json:"saved_count" bson:"saved_count"`
	ProcessingStatus  ProcessingStatus   `json:"processing_status" bson:"processing_status"`
	ProcessingError   string             `json:"processing_error,omitempty" bson:"processing_error,omitempty"`
	CreatedAt         time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at" bson:"updated_at"`
	IsActive          bool               `json:"-" bson:"is_active"`
}

// VideoUploadInput carries the multipart form fields of an upload request.
type VideoUploadInput struct {
	UploaderID       string `json:"uploader_id" validate:"required"`
	UploaderUsername string `json:"uploader_username" validate:"required"`
	Title            string `json:"title" validate:"required,lte=255"`
	Description      string `json:"description" validate:"omitempty,lte=5000"`
	Tags             string `json:"tags" validate:"omitempty"`
	FileName         string `json:"file_name" validate:"required,lte=255"`
	ContentType      string `json:"content_type" validate:"required"`
	FileSize         int64  `json:"file_size" validate:"required,gt=0"`
}

type VideoList struct {
	Videos     []*Video `json:"videos"`
	TotalCount int      `json:"total_count"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
	HasMore    bool     `json:"has_more"`
}

// ProcessingState is the polling surface exposed to uploaders.
type ProcessingState struct {
	VideoID string           `json:"video_id"`
	Status  ProcessingStatus `json:"status"`
	Error   string           `json:"error,omitempty"`
}

// CompletedResult carries everything the worker publishes for a finished job.
type CompletedResult struct {
	PlaylistURL  string
	ThumbnailURL *string
	Duration     *float64
}
