package transcode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kalesh-app/video-backend/internal/config"
	"github.com/kalesh-app/video-backend/pkg/logger"
)

const (
	playlistName   = "playlist.m3u8"
	segmentPattern = "segment_%03d.ts"
	fallbackPreset = "fast"
)

type hlsEncoder struct {
	cfg    *config.Config
	logger logger.Logger
	tiers  []Tier
}

func NewHLSEncoder(cfg *config.Config, logger logger.Logger) Encoder {
	return &hlsEncoder{
		cfg:    cfg,
		logger: logger,
		tiers:  DefaultTiers,
	}
}

// Encode transforms the source into a segmented HLS ladder under workDir.
// A tier failing is tolerated as long as at least one tier succeeds; the
// master playlist is built only from the tiers that made it.
func (e *hlsEncoder) Encode(ctx context.Context, srcPath, workDir string) (*Artifact, error) {
	height, err := e.probeHeight(ctx, srcPath)
	if err != nil {
		e.logger.Warnf("resolution probe failed for %s, falling back to lowest tier: %v", srcPath, err)
		height = 0
	}

	selected := selectTiers(height, e.tiers)
	variants := make([]Variant, 0, len(selected))
	for _, tier := range selected {
		variant, err := e.encodeTier(ctx, srcPath, workDir, tier)
		if err != nil {
			e.logger.Errorf("tier %s failed for %s: %v", tier.Name, srcPath, err)
			continue
		}
		variants = append(variants, *variant)
	}

	if len(variants) == 0 {
		return nil, fmt.Errorf("all %d tiers failed to encode", len(selected))
	}

	master := buildMasterPlaylist(variants)
	if err := os.WriteFile(filepath.Join(workDir, masterPlaylistName), master, 0644); err != nil {
		return nil, fmt.Errorf("failed to write master playlist: %w", err)
	}

	return &Artifact{
		MasterPlaylist: master,
		Variants:       variants,
	}, nil
}

// selectTiers keeps every tier the source is tall enough for; a source
// below the whole ladder still gets the lowest tier. Never returns zero.
func selectTiers(sourceHeight int, tiers []Tier) []Tier {
	selected := make([]Tier, 0, len(tiers))
	for _, t := range tiers {
		if sourceHeight >= t.Height {
			selected = append(selected, t)
		}
	}
	if len(selected) == 0 {
		selected = append(selected, tiers[len(tiers)-1])
	}
	return selected
}

func (e *hlsEncoder) encodeTier(ctx context.Context, srcPath, workDir string, tier Tier) (*Variant, error) {
	tierDir := filepath.Join(workDir, tier.Name)
	if err := os.MkdirAll(tierDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create tier directory: %w", err)
	}

	preset := e.cfg.Pipeline.Preset
	if e.cfg.Pipeline.TwoPassEncoding {
		if err := e.runAnalysisPass(ctx, srcPath, tierDir, tier); err != nil {
			e.logger.Warnf("analysis pass failed for tier %s, falling back to single pass: %v", tier.Name, err)
			preset = fallbackPreset
		} else {
			if err := e.runEncodePass(ctx, srcPath, tierDir, tier, preset, 2); err != nil {
				return nil, err
			}
			return e.collectVariant(tierDir, tier)
		}
	}

	if err := e.runEncodePass(ctx, srcPath, tierDir, tier, preset, 0); err != nil {
		return nil, err
	}
	return e.collectVariant(tierDir, tier)
}

// runAnalysisPass is the video-only first pass of a two-pass encode. Its
// output is discarded; only the pass log in tierDir matters.
func (e *hlsEncoder) runAnalysisPass(ctx context.Context, srcPath, tierDir string, tier Tier) error {
	args := []string{
		"-i", srcPath,
		"-vf", scaleFilter(tier),
		"-c:v", "libx264",
		"-preset", e.cfg.Pipeline.Preset,
		"-b:v", fmt.Sprintf("%dk", tier.VideoBitrateKbps),
		"-pass", "1",
		"-passlogfile", filepath.Join(tierDir, "ffpass"),
		"-an",
	}
	args = append(args, e.threadArgs()...)
	args = append(args, "-f", "null", "-y", os.DevNull)

	_, err := runTool(ctx, e.cfg.Pipeline.EncodeTimeout, "ffmpeg", args...)
	return err
}

// runEncodePass performs the real encode. pass 0 means single-pass.
func (e *hlsEncoder) runEncodePass(ctx context.Context, srcPath, tierDir string, tier Tier, preset string, pass int) error {
	args := []string{
		"-i", srcPath,
		"-vf", scaleFilter(tier),
		"-c:v", "libx264",
		"-preset", preset,
		"-crf", strconv.Itoa(tier.CRF),
		"-b:v", fmt.Sprintf("%dk", tier.VideoBitrateKbps),
		"-maxrate", fmt.Sprintf("%dk", tier.VideoBitrateKbps),
		"-bufsize", fmt.Sprintf("%dk", tier.VideoBitrateKbps*2),
	}
	timeout := e.cfg.Pipeline.EncodeTimeout
	if pass > 0 {
		args = append(args, "-pass", strconv.Itoa(pass), "-passlogfile", filepath.Join(tierDir, "ffpass"))
		timeout = e.cfg.Pipeline.TwoPassEncodeTimeout
	}
	args = append(args,
		"-c:a", "aac",
		"-b:a", fmt.Sprintf("%dk", tier.AudioBitrateKbps),
		"-ac", "2",
		"-ar", "44100",
	)
	args = append(args, e.threadArgs()...)
	args = append(args,
		"-f", "hls",
		"-hls_time", strconv.Itoa(e.cfg.Pipeline.SegmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", filepath.Join(tierDir, segmentPattern),
		"-y", filepath.Join(tierDir, playlistName),
	)

	_, err := runTool(ctx, timeout, "ffmpeg", args...)
	return err
}

func (e *hlsEncoder) collectVariant(tierDir string, tier Tier) (*Variant, error) {
	playlistPath := filepath.Join(tierDir, playlistName)
	if _, err := os.Stat(playlistPath); err != nil {
		return nil, fmt.Errorf("tier playlist missing: %w", err)
	}
	segments, err := filepath.Glob(filepath.Join(tierDir, "segment_*.ts"))
	if err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("tier %s produced no segments", tier.Name)
	}
	return &Variant{
		Tier:         tier,
		PlaylistPath: playlistPath,
		SegmentPaths: segments,
	}, nil
}

func (e *hlsEncoder) probeHeight(ctx context.Context, path string) (int, error) {
	output, err := runTool(ctx, e.cfg.Pipeline.ProbeTimeout, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=p=0",
		path,
	)
	if err != nil {
		return 0, err
	}
	_, height, err := parseResolution(string(output))
	return height, err
}

func parseResolution(output string) (int, int, error) {
	trimmed := strings.TrimSpace(output)
	trimmed = strings.TrimRight(trimmed, ",")
	parts := strings.Split(trimmed, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("unexpected ffprobe output: %s", trimmed)
	}
	width, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid width: %w", err)
	}
	height, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid height: %w", err)
	}
	return width, height, nil
}

func scaleFilter(tier Tier) string {
	return fmt.Sprintf("scale=w=%d:h=%d:force_original_aspect_ratio=decrease", tier.Width, tier.Height)
}

func (e *hlsEncoder) threadArgs() []string {
	return []string{"-threads", strconv.Itoa(e.cfg.Pipeline.FFmpegThreads)}
}
