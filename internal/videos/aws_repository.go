package videos

import (
	"context"
	"io"
)

// AWSRepository is the narrow blob store contract the pipeline relies on:
// keyed puts, prefix listing and single-key deletes.
type AWSRepository interface {
	PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	ListObjects(ctx context.Context, prefix string) ([]string, error)
	RemoveObject(ctx context.Context, key string) error
}
