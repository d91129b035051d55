package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kalesh-app/video-backend/internal/config"
	"github.com/kalesh-app/video-backend/internal/models"
	"github.com/kalesh-app/video-backend/internal/transcode"
	"github.com/kalesh-app/video-backend/pkg/utils"
)

type nopLogger struct{}

func (nopLogger) InitLogger() {}
func (nopLogger) Debug(args ...interface{}) {}
func (nopLogger) Debugf(t string, args ...interface{}) {}
func (nopLogger) Info(args ...interface{}) {}
func (nopLogger) Infof(t string, args ...interface{}) {}
func (nopLogger) Warn(args ...interface{}) {}
func (nopLogger) Warnf(t string, args ...interface{}) {}
func (nopLogger) Error(args ...interface{}) {}
func (nopLogger) Errorf(t string, args ...interface{}) {}
func (nopLogger) Fatal(args ...interface{}) {}
func (nopLogger) Fatalf(t string, args ...interface{}) {}

// fakeMetaRepo records status transitions per video and signals terminal
// states on a channel.
type fakeMetaRepo struct {
	mu               sync.Mutex
	transitions      map[string][]models.ProcessingStatus
	results          map[string]*models.CompletedResult
	causes           map[string]string
	terminal         chan string
	setProcessingErr error
}

func newFakeMetaRepo() *fakeMetaRepo {
	return &fakeMetaRepo{
		transitions: make(map[string][]models.ProcessingStatus),
		results:     make(map[string]*models.CompletedResult),
		causes:      make(map[string]string),
		terminal:    make(chan string, 16),
	}
}

func (f *fakeMetaRepo) record(videoID string, s models.ProcessingStatus) {
	f.mu.Lock()
	f.transitions[videoID] = append(f.transitions[videoID], s)
	f.mu.Unlock()
}

func (f *fakeMetaRepo) statuses(videoID string) []models.ProcessingStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.ProcessingStatus, len(f.transitions[videoID]))
	copy(out, f.transitions[videoID])
	return out
}

func (f *fakeMetaRepo) SetProcessing(ctx context.Context, videoID string) error {
	if f.setProcessingErr != nil {
		return f.setProcessingErr
	}
	f.record(videoID, models.StatusProcessing)
	return nil
}

func (f *fakeMetaRepo) MarkCompleted(ctx context.Context, videoID string, result *models.CompletedResult) error {
	f.mu.Lock()
	f.results[videoID] = result
	f.mu.Unlock()
	f.record(videoID, models.StatusCompleted)
	f.terminal <- videoID
	return nil
}

func (f *fakeMetaRepo) MarkFailed(ctx context.Context, videoID string, cause string) error {
	f.mu.Lock()
	f.causes[videoID] = cause
	f.mu.Unlock()
	f.record(videoID, models.StatusFailed)
	f.terminal <- videoID
	return nil
}

func (f *fakeMetaRepo) CreateVideo(ctx context.Context, v *models.Video) (*models.Video, error) {
	return v, nil
}

func (f *fakeMetaRepo) GetVideoByID(ctx context.Context, videoID string) (*models.Video, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeMetaRepo) ListVideos(ctx context.Context, _ *utils.Pagination) (*models.VideoList, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeMetaRepo) IncrementViews(ctx context.Context, videoID string) error { return nil }

func (f *fakeMetaRepo) SoftDeleteVideo(ctx context.Context, videoID string) error { return nil }

type fakeStatusCache struct {
	mu     sync.Mutex
	states map[string]*models.ProcessingState
}

func newFakeStatusCache() *fakeStatusCache {
	return &fakeStatusCache{states: make(map[string]*models.ProcessingState)}
}

func (f *fakeStatusCache) SetStatus(ctx context.Context, videoID string, state *models.ProcessingState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[videoID] = state
	return nil
}

func (f *fakeStatusCache) GetStatus(ctx context.Context, videoID string) (*models.ProcessingState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[videoID], nil
}

func (f *fakeStatusCache) DeleteStatus(ctx context.Context, videoID string) error { return nil }

type fakePublisher struct {
	mu          sync.Mutex
	trees       []string
	files       []string
	treeErr     error
	fileErr     error
	deleteOK    bool
	treeDeletes []string
	fileDeletes []string
	inFlight    int
	maxInFlight int
	block       chan struct{}
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{deleteOK: true}
}

func (f *fakePublisher) PublishTree(ctx context.Context, artifact *transcode.Artifact, videoID string) (string, error) {
	if f.treeErr != nil {
		return "", f.treeErr
	}
	f.mu.Lock()
	f.trees = append(f.trees, videoID)
	f.mu.Unlock()
	return "https://cdn.example.com/media/hls/" + videoID + "/master.m3u8", nil
}

func (f *fakePublisher) PublishFile(ctx context.Context, data []byte, nameHint, contentType string) (string, error) {
	if f.fileErr != nil {
		return "", f.fileErr
	}
	f.mu.Lock()
	f.files = append(f.files, nameHint)
	f.mu.Unlock()
	return "https://cdn.example.com/media/" + nameHint, nil
}

func (f *fakePublisher) DeleteTree(ctx context.Context, masterURL string) bool {
	f.trackConcurrency()
	f.mu.Lock()
	f.treeDeletes = append(f.treeDeletes, masterURL)
	f.mu.Unlock()
	return f.deleteOK
}

func (f *fakePublisher) DeleteFile(ctx context.Context, fileURL string) bool {
	f.trackConcurrency()
	f.mu.Lock()
	f.fileDeletes = append(f.fileDeletes, fileURL)
	f.mu.Unlock()
	return f.deleteOK
}

func (f *fakePublisher) trackConcurrency() {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
}

type fakeInspector struct {
	meta transcode.Metadata
}

func (f *fakeInspector) Duration(ctx context.Context, path string) (float64, bool) {
	if f.meta.Duration == nil {
		return 0, false
	}
	return *f.meta.Duration, true
}

func (f *fakeInspector) Thumbnail(ctx context.Context, path string) ([]byte, bool) {
	return f.meta.Thumbnail, len(f.meta.Thumbnail) > 0
}

func (f *fakeInspector) Inspect(ctx context.Context, path string) transcode.Metadata {
	return f.meta
}

type fakeEncoder struct {
	err   error
	gate  chan struct{}
	calls chan string
}

func (f *fakeEncoder) Encode(ctx context.Context, srcPath, workDir string) (*transcode.Artifact, error) {
	if f.calls != nil {
		f.calls <- srcPath
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return &transcode.Artifact{
		MasterPlaylist: []byte("#EXTM3U\n"),
		Variants:       []transcode.Variant{{Tier: transcode.DefaultTiers[3]}},
	}, nil
}

func testPipelineConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Pipeline.QueueCapacity = 16
	cfg.Pipeline.DownloadTimeout = 5 * time.Second
	cfg.Pipeline.MaxConcurrentDeletions = 2
	cfg.Worker.PollInterval = 10 * time.Millisecond
	cfg.Worker.MaxCPUUsage = 90
	return cfg
}

func newTestQueue(repo *fakeMetaRepo, cache *fakeStatusCache, pub *fakePublisher, insp transcode.Inspector, enc transcode.Encoder) *IngestQueue {
	q := NewIngestQueue(testPipelineConfig(), nopLogger{}, repo, cache, pub, insp, enc)
	q.checkCPU = func(max float64) (bool, float64) { return true, 0 }
	return q
}

func waitTerminal(t *testing.T, repo *fakeMetaRepo, want string) {
	t.Helper()
	select {
	case got := <-repo.terminal:
		if got != want {
			t.Fatalf("terminal state for %s, want %s", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for terminal state of %s", want)
	}
}

func rawServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("raw video bytes"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIngestCompletedLifecycle(t *testing.T) {
	repo := newFakeMetaRepo()
	cache := newFakeStatusCache()
	pub := newFakePublisher()
	duration := 12.5
	insp := &fakeInspector{meta: transcode.Metadata{Duration: &duration, Thumbnail: []byte{0xff, 0xd8}}}
	q := newTestQueue(repo, cache, pub, insp, &fakeEncoder{})
	q.Start()
	defer q.Stop()

	srv := rawServer(t)
	if err := q.Enqueue("v1", srv.URL+"/raw_v1.mp4"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	waitTerminal(t, repo, "v1")

	got := repo.statuses("v1")
	want := []models.ProcessingStatus{models.StatusProcessing, models.StatusCompleted}
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", got, want)
		}
	}

	result := repo.results["v1"]
	if result == nil {
		t.Fatal("no completed result recorded")
	}
	if result.PlaylistURL != "https://cdn.example.com/media/hls/v1/master.m3u8" {
		t.Errorf("playlist url = %q", result.PlaylistURL)
	}
	if result.Duration == nil || *result.Duration != 12.5 {
		t.Errorf("duration = %v, want 12.5", result.Duration)
	}
	if result.ThumbnailURL == nil || !strings.Contains(*result.ThumbnailURL, "thumb_v1.jpg") {
		t.Errorf("thumbnail url = %v", result.ThumbnailURL)
	}

	state, _ := cache.GetStatus(context.Background(), "v1")
	if state == nil || state.Status != models.StatusCompleted {
		t.Errorf("cached state = %+v, want completed", state)
	}

	waitFor(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		return len(pub.fileDeletes) == 1
	}, "raw upload was never removed after completion")
}

func TestIngestEncodeFailure(t *testing.T) {
	repo := newFakeMetaRepo()
	q := newTestQueue(repo, newFakeStatusCache(), newFakePublisher(), &fakeInspector{}, &fakeEncoder{err: fmt.Errorf("all 4 tiers failed to encode")})
	q.Start()
	defer q.Stop()

	srv := rawServer(t)
	if err := q.Enqueue("v1", srv.URL+"/raw_v1.mp4"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	waitTerminal(t, repo, "v1")

	got := repo.statuses("v1")
	if len(got) != 2 || got[0] != models.StatusProcessing || got[1] != models.StatusFailed {
		t.Fatalf("transitions = %v, want [processing failed]", got)
	}
	if cause := repo.causes["v1"]; cause == "" || !strings.Contains(cause, "encoding failed") {
		t.Errorf("cause = %q, want non-empty encoding diagnostic", cause)
	}
}

func TestIngestDownloadFailure(t *testing.T) {
	repo := newFakeMetaRepo()
	q := newTestQueue(repo, newFakeStatusCache(), newFakePublisher(), &fakeInspector{}, &fakeEncoder{})
	q.Start()
	defer q.Stop()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if err := q.Enqueue("v1", srv.URL+"/raw_v1.mp4"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	waitTerminal(t, repo, "v1")

	if cause := repo.causes["v1"]; !strings.Contains(cause, "download failed") {
		t.Errorf("cause = %q, want download diagnostic", cause)
	}
}

func TestIngestPublishFailure(t *testing.T) {
	repo := newFakeMetaRepo()
	pub := newFakePublisher()
	pub.treeErr = fmt.Errorf("storage unavailable")
	q := newTestQueue(repo, newFakeStatusCache(), pub, &fakeInspector{}, &fakeEncoder{})
	q.Start()
	defer q.Stop()

	srv := rawServer(t)
	if err := q.Enqueue("v1", srv.URL+"/raw_v1.mp4"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	waitTerminal(t, repo, "v1")

	if cause := repo.causes["v1"]; !strings.Contains(cause, "publish failed") {
		t.Errorf("cause = %q, want publish diagnostic", cause)
	}
}

func TestIngestMissingDurationStillCompletes(t *testing.T) {
	repo := newFakeMetaRepo()
	pub := newFakePublisher()
	// probe timed out: no duration, but the thumbnail still came through
	insp := &fakeInspector{meta: transcode.Metadata{Thumbnail: []byte{0xff, 0xd8}}}
	q := newTestQueue(repo, newFakeStatusCache(), pub, insp, &fakeEncoder{})
	q.Start()
	defer q.Stop()

	srv := rawServer(t)
	if err := q.Enqueue("v1", srv.URL+"/raw_v1.mp4"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	waitTerminal(t, repo, "v1")

	got := repo.statuses("v1")
	if got[len(got)-1] != models.StatusCompleted {
		t.Fatalf("final status = %v, want completed", got[len(got)-1])
	}
	result := repo.results["v1"]
	if result.Duration != nil {
		t.Errorf("duration = %v, want absent", *result.Duration)
	}
	if result.ThumbnailURL == nil {
		t.Error("thumbnail url absent, want published")
	}
}

func TestIngestStrictOrdering(t *testing.T) {
	repo := newFakeMetaRepo()
	enc := &fakeEncoder{
		gate:  make(chan struct{}),
		calls: make(chan string, 2),
	}
	q := newTestQueue(repo, newFakeStatusCache(), newFakePublisher(), &fakeInspector{}, enc)
	q.Start()
	defer q.Stop()

	srv := rawServer(t)
	if err := q.Enqueue("v1", srv.URL+"/raw_v1.mp4"); err != nil {
		t.Fatalf("Enqueue v1 failed: %v", err)
	}
	if err := q.Enqueue("v2", srv.URL+"/raw_v2.mp4"); err != nil {
		t.Fatalf("Enqueue v2 failed: %v", err)
	}

	// first job reaches the encoder and blocks there
	select {
	case <-enc.calls:
	case <-time.After(5 * time.Second):
		t.Fatal("first job never reached the encoder")
	}

	// while the first job is in flight, the second must not have left pending
	time.Sleep(50 * time.Millisecond)
	if got := repo.statuses("v2"); len(got) != 0 {
		t.Fatalf("second job transitioned to %v while first was in flight", got)
	}

	enc.gate <- struct{}{}
	waitTerminal(t, repo, "v1")

	select {
	case <-enc.calls:
	case <-time.After(5 * time.Second):
		t.Fatal("second job never reached the encoder")
	}
	enc.gate <- struct{}{}
	waitTerminal(t, repo, "v2")

	if got := repo.statuses("v2"); got[len(got)-1] != models.StatusCompleted {
		t.Fatalf("second job final status = %v", got)
	}
}

func TestEnqueueDepth(t *testing.T) {
	repo := newFakeMetaRepo()
	enc := &fakeEncoder{gate: make(chan struct{}), calls: make(chan string, 4)}
	q := newTestQueue(repo, newFakeStatusCache(), newFakePublisher(), &fakeInspector{}, enc)

	srv := rawServer(t)
	for i := 0; i < 3; i++ {
		if err := q.Enqueue(fmt.Sprintf("v%d", i), srv.URL+"/raw.mp4"); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}
	if q.Depth() != 3 {
		t.Errorf("depth = %d, want 3 before worker starts", q.Depth())
	}
}

func TestIngestMarkProcessingFailure(t *testing.T) {
	repo := newFakeMetaRepo()
	repo.setProcessingErr = fmt.Errorf("mongo unavailable")
	q := newTestQueue(repo, newFakeStatusCache(), newFakePublisher(), &fakeInspector{}, &fakeEncoder{})
	q.Start()
	defer q.Stop()

	srv := rawServer(t)
	if err := q.Enqueue("v1", srv.URL+"/raw_v1.mp4"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	waitTerminal(t, repo, "v1")

	got := repo.statuses("v1")
	if len(got) != 1 || got[0] != models.StatusFailed {
		t.Fatalf("transitions = %v, want [failed]", got)
	}
	if cause := repo.causes["v1"]; !strings.Contains(cause, "failed to mark processing") {
		t.Errorf("cause = %q, want mark-processing diagnostic", cause)
	}
}

func TestStopWaitsForInFlightJob(t *testing.T) {
	repo := newFakeMetaRepo()
	enc := &fakeEncoder{gate: make(chan struct{}), calls: make(chan string, 1)}
	q := newTestQueue(repo, newFakeStatusCache(), newFakePublisher(), &fakeInspector{}, enc)
	q.Start()

	srv := rawServer(t)
	if err := q.Enqueue("v1", srv.URL+"/raw_v1.mp4"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	select {
	case <-enc.calls:
	case <-time.After(5 * time.Second):
		t.Fatal("job never reached the encoder")
	}

	stopped := make(chan struct{})
	go func() {
		q.Stop()
		close(stopped)
	}()

	// the worker is mid-encode, so Stop must still be waiting
	select {
	case <-stopped:
		t.Fatal("Stop returned while a job was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	enc.gate <- struct{}{}

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop never returned after the job finished")
	}

	got := repo.statuses("v1")
	if len(got) == 0 || got[len(got)-1] != models.StatusCompleted {
		t.Fatalf("transitions = %v, want the in-flight job completed", got)
	}
}

func TestStopUnblocksSaturatedHost(t *testing.T) {
	repo := newFakeMetaRepo()
	q := newTestQueue(repo, newFakeStatusCache(), newFakePublisher(), &fakeInspector{}, &fakeEncoder{})
	q.checkCPU = func(max float64) (bool, float64) { return false, 99 }
	q.Start()

	srv := rawServer(t)
	if err := q.Enqueue("v1", srv.URL+"/raw_v1.mp4"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		q.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop hung while the worker was waiting out high CPU")
	}

	// the job never started, so the record must still be untouched
	if got := repo.statuses("v1"); len(got) != 0 {
		t.Errorf("transitions = %v, want none for an abandoned pending job", got)
	}
}
