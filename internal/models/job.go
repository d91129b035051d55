package models

import "time"

// IngestJob is queue-resident only. Jobs live in process memory and are
// lost on crash; the metadata record is the durable side of the pipeline.
type IngestJob struct {
	VideoID    string    `json:"video_id"`
	RawURL     string    `json:"raw_url"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

type DeletionKind string

const (
	DeletionKindTree DeletionKind = "tree"
	DeletionKindFile DeletionKind = "file"
)

// DeletionTask asks the deletion workers to remove a published artifact
// tree or a single blob. Best effort, never retried.
type DeletionTask struct {
	Kind       DeletionKind `json:"kind"`
	Location   string       `json:"location"`
	EnqueuedAt time.Time    `json:"enqueued_at"`
}
