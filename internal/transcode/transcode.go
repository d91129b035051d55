package transcode

import (
	"context"
)

// Tier is one target quality variant of the adaptive stream ladder.
type Tier struct {
	Name             string
	Width            int
	Height           int
	VideoBitrateKbps int
	AudioBitrateKbps int
	CRF              int
}

// DefaultTiers is the fixed ladder, highest resolution first. A tier is
// encoded only when the source is at least as tall as the tier; when the
// source is smaller than every tier the last entry is used as a fallback.
var DefaultTiers = []Tier{
	{Name: "1080p", Width: 1920, Height: 1080, VideoBitrateKbps: 3500, AudioBitrateKbps: 128, CRF: 24},
	{Name: "720p", Width: 1280, Height: 720, VideoBitrateKbps: 1800, AudioBitrateKbps: 128, CRF: 25},
	{Name: "480p", Width: 854, Height: 480, VideoBitrateKbps: 900, AudioBitrateKbps: 96, CRF: 26},
	{Name: "360p", Width: 640, Height: 360, VideoBitrateKbps: 500, AudioBitrateKbps: 64, CRF: 27},
}

// Metadata is the best-effort output of the media inspector. Absent fields
// stay nil/empty; the inspector never fails a job on its own.
type Metadata struct {
	Duration  *float64
	Thumbnail []byte
}

// Variant is one successfully encoded tier: its playlist and ordered
// segment files on the local scratch filesystem.
type Variant struct {
	Tier         Tier
	PlaylistPath string
	SegmentPaths []string
}

// Artifact is the full local output of an encode: the master playlist
// bytes plus every variant, in ladder processing order.
type Artifact struct {
	MasterPlaylist []byte
	Variants       []Variant
}

type Inspector interface {
	Duration(ctx context.Context, path string) (float64, bool)
	Thumbnail(ctx context.Context, path string) ([]byte, bool)
	Inspect(ctx context.Context, path string) Metadata
}

type Encoder interface {
	Encode(ctx context.Context, srcPath, workDir string) (*Artifact, error)
}
