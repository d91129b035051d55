package transcode

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/kalesh-app/video-backend/internal/config"
	"github.com/kalesh-app/video-backend/pkg/logger"
)

const thumbnailOffset = "00:00:01"

type mediaInspector struct {
	cfg    *config.Config
	logger logger.Logger
}

func NewInspector(cfg *config.Config, logger logger.Logger) Inspector {
	return &mediaInspector{
		cfg:    cfg,
		logger: logger,
	}
}

// Inspect extracts duration and a representative still frame. The two
// probes are independent; either can be absent without affecting the other.
func (m *mediaInspector) Inspect(ctx context.Context, path string) Metadata {
	meta := Metadata{}
	if duration, ok := m.Duration(ctx, path); ok {
		meta.Duration = &duration
	}
	if thumb, ok := m.Thumbnail(ctx, path); ok {
		meta.Thumbnail = thumb
	}
	return meta
}

func (m *mediaInspector) Duration(ctx context.Context, path string) (float64, bool) {
	output, err := runTool(ctx, m.cfg.Pipeline.ProbeTimeout, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		m.logger.Warnf("duration probe failed for %s: %v", path, err)
		return 0, false
	}
	duration, err := parseDuration(string(output))
	if err != nil {
		m.logger.Warnf("unparsable duration probe output for %s: %v", path, err)
		return 0, false
	}
	return duration, true
}

func (m *mediaInspector) Thumbnail(ctx context.Context, path string) ([]byte, bool) {
	scratch, err := os.CreateTemp("", "thumb_*.jpg")
	if err != nil {
		m.logger.Warnf("failed to create thumbnail scratch file: %v", err)
		return nil, false
	}
	scratchPath := scratch.Name()
	scratch.Close()
	defer os.Remove(scratchPath)

	_, err = runTool(ctx, m.cfg.Pipeline.ProbeTimeout, "ffmpeg",
		"-ss", thumbnailOffset,
		"-i", path,
		"-vframes", "1",
		"-q:v", "2",
		"-y", scratchPath,
	)
	if err != nil {
		m.logger.Warnf("thumbnail generation failed for %s: %v", path, err)
		return nil, false
	}

	thumb, err := os.ReadFile(scratchPath)
	if err != nil || len(thumb) == 0 {
		m.logger.Warnf("failed to read generated thumbnail for %s: %v", path, err)
		return nil, false
	}
	return thumb, true
}

func parseDuration(output string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(output), 64)
}
