package videos

import (
	"github.com/kalesh-app/video-backend/internal/models"
)

// IngestQueue is the surface the upload handler sees: submit a job and
// observe the backlog. The record must exist in pending state before
// Enqueue is called.
type IngestQueue interface {
	Enqueue(videoID, rawURL string) error
	Depth() int
}

// DeletionQueue accepts best-effort artifact cleanup tasks.
type DeletionQueue interface {
	Enqueue(kind models.DeletionKind, location string) error
}
