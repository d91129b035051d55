package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kalesh-app/video-backend/internal/config"
	"github.com/kalesh-app/video-backend/internal/models"
	"github.com/kalesh-app/video-backend/internal/storage"
	"github.com/kalesh-app/video-backend/internal/transcode"
	"github.com/kalesh-app/video-backend/internal/videos"
	"github.com/kalesh-app/video-backend/pkg/logger"
	"github.com/kalesh-app/video-backend/pkg/utils"
)

// IngestQueue drives the transcoding pipeline: it accepts jobs from the
// upload handler and processes them strictly one at a time, in FIFO order.
// Single-flight is deliberate; parallel transcodes would starve the host.
//
// Jobs live in process memory only. A crash loses queued and in-flight
// jobs and leaves their records stuck in processing; there is no startup
// sweep to requeue them.
type IngestQueue struct {
	cfg         *config.Config
	logger      logger.Logger
	videoRepo   videos.MongoRepository
	statusCache videos.RedisRepository
	publisher   storage.Publisher
	inspector   transcode.Inspector
	encoder     transcode.Encoder
	httpClient  *http.Client

	jobs  chan models.IngestJob
	quit  chan struct{}
	wg    sync.WaitGroup
	depth int64

	// overridable CPU gate, defaults to utils.CheckCPUUsage
	checkCPU func(max float64) (bool, float64)
}

func NewIngestQueue(
	cfg *config.Config,
	log logger.Logger,
	videoRepo videos.MongoRepository,
	statusCache videos.RedisRepository,
	publisher storage.Publisher,
	inspector transcode.Inspector,
	encoder transcode.Encoder,
) *IngestQueue {
	return &IngestQueue{
		cfg:         cfg,
		logger:      log,
		videoRepo:   videoRepo,
		statusCache: statusCache,
		publisher:   publisher,
		inspector:   inspector,
		encoder:     encoder,
		httpClient:  &http.Client{Timeout: cfg.Pipeline.DownloadTimeout},
		jobs:        make(chan models.IngestJob, cfg.Pipeline.QueueCapacity),
		quit:        make(chan struct{}),
		checkCPU:    utils.CheckCPUUsage,
	}
}

func (q *IngestQueue) Start() {
	q.logger.Info("starting ingestion worker")
	q.wg.Add(1)
	go q.worker()
}

// Stop lets the in-flight job finish before the worker exits. Jobs still
// queued are abandoned.
func (q *IngestQueue) Stop() {
	close(q.quit)
	q.wg.Wait()
	q.logger.Info("ingestion worker stopped")
}

// Enqueue submits a job. The caller must have persisted the pending
// metadata record first; the worker assumes the record exists.
func (q *IngestQueue) Enqueue(videoID, rawURL string) error {
	job := models.IngestJob{
		VideoID:    videoID,
		RawURL:     rawURL,
		EnqueuedAt: time.Now().UTC(),
	}
	select {
	case q.jobs <- job:
		depth := atomic.AddInt64(&q.depth, 1)
		q.logger.Infof("video %s queued for processing, queue depth %d", videoID, depth)
		return nil
	default:
		return fmt.Errorf("ingestion queue is full")
	}
}

func (q *IngestQueue) Depth() int {
	return int(atomic.LoadInt64(&q.depth))
}

func (q *IngestQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.quit:
			return
		case job := <-q.jobs:
			atomic.AddInt64(&q.depth, -1)
			if !q.waitForCPU() {
				return
			}
			q.processJob(job)
		}
	}
}

// waitForCPU holds the dequeued job until host CPU drops below the
// configured ceiling. Returns false when a stop signal arrives first;
// the job has not started yet, so abandoning it leaves the record in
// pending, not processing.
func (q *IngestQueue) waitForCPU() bool {
	for {
		ok, usage := q.checkCPU(q.cfg.Worker.MaxCPUUsage)
		if ok {
			return true
		}
		q.logger.Infof("CPU usage %.2f%% too high, delaying job", usage)
		select {
		case <-q.quit:
			return false
		case <-time.After(q.cfg.Worker.PollInterval):
		}
	}
}

// processJob runs one video through download, inspection, encoding and
// publishing. Every failure is absorbed here and turned into a failed
// record; nothing propagates out of the worker loop.
func (q *IngestQueue) processJob(job models.IngestJob) {
	ctx := context.Background()
	start := time.Now()
	q.logger.Infof("processing video %s, queue remaining %d", job.VideoID, q.Depth())

	if err := q.videoRepo.SetProcessing(ctx, job.VideoID); err != nil {
		q.failJob(ctx, job.VideoID, fmt.Sprintf("failed to mark processing: %v", err))
		return
	}
	q.mirrorStatus(ctx, job.VideoID, models.StatusProcessing, "")

	rawPath, err := q.downloadRaw(ctx, job)
	if err != nil {
		q.failJob(ctx, job.VideoID, fmt.Sprintf("download failed: %v", err))
		return
	}
	defer os.Remove(rawPath)

	workDir, err := os.MkdirTemp("", "ingest_"+job.VideoID+"_")
	if err != nil {
		q.failJob(ctx, job.VideoID, fmt.Sprintf("failed to create scratch dir: %v", err))
		return
	}
	defer os.RemoveAll(workDir)

	meta := q.inspector.Inspect(ctx, rawPath)

	artifact, err := q.encoder.Encode(ctx, rawPath, workDir)
	if err != nil {
		q.failJob(ctx, job.VideoID, fmt.Sprintf("encoding failed: %v", err))
		return
	}

	masterURL, err := q.publisher.PublishTree(ctx, artifact, job.VideoID)
	if err != nil {
		q.failJob(ctx, job.VideoID, fmt.Sprintf("publish failed: %v", err))
		return
	}

	result := &models.CompletedResult{
		PlaylistURL: masterURL,
		Duration:    meta.Duration,
	}
	if len(meta.Thumbnail) > 0 {
		thumbURL, err := q.publisher.PublishFile(ctx, meta.Thumbnail, "thumb_"+job.VideoID+".jpg", "image/jpeg")
		if err != nil {
			q.failJob(ctx, job.VideoID, fmt.Sprintf("thumbnail publish failed: %v", err))
			return
		}
		result.ThumbnailURL = &thumbURL
	}

	if err := q.videoRepo.MarkCompleted(ctx, job.VideoID, result); err != nil {
		q.logger.Errorf("failed to mark video %s completed: %v", job.VideoID, err)
		return
	}
	q.mirrorStatus(ctx, job.VideoID, models.StatusCompleted, "")

	// the playlist URL now points at the HLS tree, so the raw upload is
	// unreachable from the record and can go
	if !q.publisher.DeleteFile(ctx, job.RawURL) {
		q.logger.Warnf("failed to remove raw upload for video %s", job.VideoID)
	}
	q.logger.Infof("video %s processed in %s, %d tiers", job.VideoID, time.Since(start), len(artifact.Variants))
}

func (q *IngestQueue) failJob(ctx context.Context, videoID, cause string) {
	q.logger.Errorf("video %s failed: %s", videoID, cause)
	if err := q.videoRepo.MarkFailed(ctx, videoID, cause); err != nil {
		q.logger.Errorf("failed to mark video %s failed: %v", videoID, err)
		return
	}
	q.mirrorStatus(ctx, videoID, models.StatusFailed, cause)
}

func (q *IngestQueue) mirrorStatus(ctx context.Context, videoID string, status models.ProcessingStatus, cause string) {
	state := &models.ProcessingState{VideoID: videoID, Status: status, Error: cause}
	if err := q.statusCache.SetStatus(ctx, videoID, state); err != nil {
		q.logger.Warnf("failed to cache status for video %s: %v", videoID, err)
	}
}

// downloadRaw fetches the originally uploaded bytes to a unique scratch
// file. The raw video is just another published blob, reached over plain
// HTTP.
func (q *IngestQueue) downloadRaw(ctx context.Context, job models.IngestJob) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.RawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := q.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch raw video: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d fetching raw video", resp.StatusCode)
	}

	ext := path.Ext(job.RawURL)
	if ext == "" || strings.ContainsAny(ext, "?&") {
		ext = ".mp4"
	}
	scratch, err := os.CreateTemp("", "raw_"+job.VideoID+"_*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create scratch file: %w", err)
	}
	if _, err := io.Copy(scratch, resp.Body); err != nil {
		scratch.Close()
		os.Remove(scratch.Name())
		return "", fmt.Errorf("failed to write raw video: %w", err)
	}
	if err := scratch.Close(); err != nil {
		os.Remove(scratch.Name())
		return "", fmt.Errorf("failed to close scratch file: %w", err)
	}
	return scratch.Name(), nil
}
