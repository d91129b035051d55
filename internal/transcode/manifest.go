package transcode

import (
	"fmt"
	"strings"
)

const masterPlaylistName = "master.m3u8"

// buildMasterPlaylist emits one STREAM-INF line pair per variant, in the
// order the variants were encoded. Bandwidth is the tier video+audio
// bitrate in bits per second; the variant playlist is referenced by its
// relative path under the artifact root.
func buildMasterPlaylist(variants []Variant) []byte {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	for _, v := range variants {
		bandwidth := (v.Tier.VideoBitrateKbps + v.Tier.AudioBitrateKbps) * 1000
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%dx%d\n", bandwidth, v.Tier.Width, v.Tier.Height)
		fmt.Fprintf(&b, "%s/%s\n", v.Tier.Name, playlistName)
	}
	return []byte(b.String())
}
