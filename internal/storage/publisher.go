package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/kalesh-app/video-backend/internal/config"
	"github.com/kalesh-app/video-backend/internal/transcode"
	"github.com/kalesh-app/video-backend/internal/videos"
	"github.com/kalesh-app/video-backend/pkg/logger"
)

const (
	treePrefix          = "hls/"
	masterPlaylistKey   = "master.m3u8"
	playlistContentType = "application/vnd.apple.mpegurl"
	segmentContentType  = "video/mp2t"
)

// Publisher moves encoded artifacts in and out of the blob store. Deletes
// are best effort and never raise; publish failures do.
type Publisher interface {
	PublishTree(ctx context.Context, artifact *transcode.Artifact, videoID string) (string, error)
	PublishFile(ctx context.Context, data []byte, nameHint, contentType string) (string, error)
	DeleteTree(ctx context.Context, masterURL string) bool
	DeleteFile(ctx context.Context, fileURL string) bool
}

type blobPublisher struct {
	cfg     *config.Config
	awsRepo videos.AWSRepository
	logger  logger.Logger
	// bounds total in-flight storage operations system-wide
	sem chan struct{}
}

func NewBlobPublisher(cfg *config.Config, awsRepo videos.AWSRepository, logger logger.Logger) Publisher {
	return &blobPublisher{
		cfg:     cfg,
		awsRepo: awsRepo,
		logger:  logger,
		sem:     make(chan struct{}, cfg.Pipeline.MaxConcurrentStorageOps),
	}
}

// PublishTree uploads the master playlist first, then every variant
// playlist and its segments, all under hls/{videoID}/. Returns the public
// URL of the master playlist.
func (p *blobPublisher) PublishTree(ctx context.Context, artifact *transcode.Artifact, videoID string) (string, error) {
	root := treePrefix + videoID + "/"

	masterKey := root + masterPlaylistKey
	if err := p.putBytes(ctx, masterKey, artifact.MasterPlaylist, playlistContentType); err != nil {
		return "", fmt.Errorf("failed to publish master playlist: %w", err)
	}

	for _, variant := range artifact.Variants {
		variantRoot := root + variant.Tier.Name + "/"
		if err := p.putLocalFile(ctx, variantRoot+path.Base(variant.PlaylistPath), variant.PlaylistPath, playlistContentType); err != nil {
			return "", fmt.Errorf("failed to publish %s playlist: %w", variant.Tier.Name, err)
		}
		for _, segment := range variant.SegmentPaths {
			if err := p.putLocalFile(ctx, variantRoot+path.Base(segment), segment, segmentContentType); err != nil {
				return "", fmt.Errorf("failed to publish %s segment %s: %w", variant.Tier.Name, path.Base(segment), err)
			}
		}
	}

	return p.publicURL(masterKey), nil
}

func (p *blobPublisher) PublishFile(ctx context.Context, data []byte, nameHint, contentType string) (string, error) {
	key := fmt.Sprintf("%s_%s", uuid.New().String(), nameHint)
	if err := p.putBytes(ctx, key, data, contentType); err != nil {
		return "", fmt.Errorf("failed to publish file %s: %w", nameHint, err)
	}
	return p.publicURL(key), nil
}

// DeleteTree derives the hls/{videoID}/ namespace from the master playlist
// URL, lists everything under it and deletes each object. Returns false on
// any failure; deletion failures are logged, never escalated.
func (p *blobPublisher) DeleteTree(ctx context.Context, masterURL string) bool {
	prefix, err := treePrefixFromURL(masterURL)
	if err != nil {
		p.logger.Warnf("delete tree: %v", err)
		return false
	}

	p.acquire()
	keys, err := p.awsRepo.ListObjects(ctx, prefix)
	p.release()
	if err != nil {
		p.logger.Warnf("delete tree: failed to list %s: %v", prefix, err)
		return false
	}
	if len(keys) == 0 {
		p.logger.Warnf("delete tree: nothing found under %s", prefix)
		return false
	}

	ok := true
	for _, key := range keys {
		p.acquire()
		err := p.awsRepo.RemoveObject(ctx, key)
		p.release()
		if err != nil {
			p.logger.Warnf("delete tree: failed to remove %s: %v", key, err)
			ok = false
		}
	}
	return ok
}

func (p *blobPublisher) DeleteFile(ctx context.Context, fileURL string) bool {
	key, err := p.keyFromURL(fileURL)
	if err != nil {
		p.logger.Warnf("delete file: %v", err)
		return false
	}

	p.acquire()
	defer p.release()
	if err := p.awsRepo.RemoveObject(ctx, key); err != nil {
		p.logger.Warnf("delete file: failed to remove %s: %v", key, err)
		return false
	}
	return true
}

func (p *blobPublisher) putBytes(ctx context.Context, key string, data []byte, contentType string) error {
	p.acquire()
	defer p.release()
	return p.awsRepo.PutObject(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
}

func (p *blobPublisher) putLocalFile(ctx context.Context, key, localPath, contentType string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	p.acquire()
	defer p.release()
	return p.awsRepo.PutObject(ctx, key, f, info.Size(), contentType)
}

func (p *blobPublisher) publicURL(key string) string {
	return p.cfg.S3.BaseURL() + "/" + key
}

// keyFromURL strips the configured public base URL; a URL outside that
// namespace falls back to its last path component, matching how single
// files are keyed.
func (p *blobPublisher) keyFromURL(fileURL string) (string, error) {
	base := p.cfg.S3.BaseURL() + "/"
	if strings.HasPrefix(fileURL, base) {
		key := strings.TrimPrefix(fileURL, base)
		if key != "" {
			return key, nil
		}
	}
	parsed, err := url.Parse(fileURL)
	if err != nil {
		return "", fmt.Errorf("unparsable file url %q: %w", fileURL, err)
	}
	key := path.Base(parsed.Path)
	if key == "" || key == "." || key == "/" {
		return "", fmt.Errorf("no object key in url %q", fileURL)
	}
	return key, nil
}

// treePrefixFromURL extracts hls/{videoID}/ from a master playlist URL.
func treePrefixFromURL(masterURL string) (string, error) {
	parsed, err := url.Parse(masterURL)
	if err != nil {
		return "", fmt.Errorf("unparsable manifest url %q: %w", masterURL, err)
	}
	idx := strings.Index(parsed.Path, "/"+treePrefix)
	if idx < 0 {
		return "", fmt.Errorf("no %s namespace in manifest url %q", treePrefix, masterURL)
	}
	rest := parsed.Path[idx+len(treePrefix)+1:]
	videoID, _, found := strings.Cut(rest, "/")
	if !found || videoID == "" {
		return "", fmt.Errorf("no video id in manifest url %q", masterURL)
	}
	return treePrefix + videoID + "/", nil
}

func (p *blobPublisher) acquire() { p.sem <- struct{}{} }
func (p *blobPublisher) release() { <-p.sem }
