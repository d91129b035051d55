package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kalesh-app/video-backend/internal/config"
	"github.com/kalesh-app/video-backend/internal/models"
	"github.com/kalesh-app/video-backend/internal/storage"
	"github.com/kalesh-app/video-backend/pkg/logger"
)

// DeletionQueue removes published artifacts after a video is deleted.
// Unlike ingestion, tasks are independent and idempotent, so a small pool
// of workers consumes them concurrently and in no particular order.
// Failures are logged and dropped; the metadata record was already
// soft-deleted before the task was enqueued.
type DeletionQueue struct {
	cfg       *config.Config
	logger    logger.Logger
	publisher storage.Publisher

	tasks chan models.DeletionTask
	quit  chan struct{}
	wg    sync.WaitGroup
	depth int64
}

func NewDeletionQueue(cfg *config.Config, log logger.Logger, publisher storage.Publisher) *DeletionQueue {
	return &DeletionQueue{
		cfg:       cfg,
		logger:    log,
		publisher: publisher,
		tasks:     make(chan models.DeletionTask, cfg.Pipeline.QueueCapacity),
		quit:      make(chan struct{}),
	}
}

func (q *DeletionQueue) Start() {
	workers := q.cfg.Pipeline.MaxConcurrentDeletions
	q.logger.Infof("starting %d deletion workers", workers)
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
}

func (q *DeletionQueue) Stop() {
	close(q.quit)
	q.wg.Wait()
	q.logger.Info("deletion workers stopped")
}

func (q *DeletionQueue) Enqueue(kind models.DeletionKind, location string) error {
	task := models.DeletionTask{
		Kind:       kind,
		Location:   location,
		EnqueuedAt: time.Now().UTC(),
	}
	select {
	case q.tasks <- task:
		depth := atomic.AddInt64(&q.depth, 1)
		q.logger.Infof("%s queued for deletion, queue depth %d", kind, depth)
		return nil
	default:
		return fmt.Errorf("deletion queue is full")
	}
}

func (q *DeletionQueue) Depth() int {
	return int(atomic.LoadInt64(&q.depth))
}

func (q *DeletionQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.quit:
			return
		case task := <-q.tasks:
			atomic.AddInt64(&q.depth, -1)
			q.handle(task)
		}
	}
}

func (q *DeletionQueue) handle(task models.DeletionTask) {
	ctx := context.Background()
	var ok bool
	switch task.Kind {
	case models.DeletionKindTree:
		ok = q.publisher.DeleteTree(ctx, task.Location)
	case models.DeletionKindFile:
		ok = q.publisher.DeleteFile(ctx, task.Location)
	default:
		q.logger.Warnf("unknown deletion kind %q for %s", task.Kind, task.Location)
		return
	}
	if !ok {
		q.logger.Warnf("failed to delete %s %s", task.Kind, task.Location)
		return
	}
	q.logger.Infof("deleted %s %s", task.Kind, task.Location)
}
