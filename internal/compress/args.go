// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package compress

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/ManuGH/vidlens/internal/media"
)

// evenDimensions rounds both dimensions down to even values; libx264 with yuv420p rejects odd sizes.
const evenDimensions = "scale='trunc(iw/2)*2':'trunc(ih/2)*2'"

// OutputPath returns the compressed file path for src, colocated with it.
// The container is always mp4.
func OutputPath(src string, p Plan) string {
	base := media.StripExt(filepath.Base(src))
	name := fmt.Sprintf("%s_compressed_%s_%dfps-release.mp4", base, p.Resolution(), p.FrameRate)
	return filepath.Join(filepath.Dir(src), name)
}

// BuildArgs returns the ffmpeg argument vector that transcodes in to out under plan p.
func BuildArgs(in, out string, p Plan) []string {
	filter := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,%s", p.Width, p.Height, evenDimensions)
	return []string{
		"-hide_banner",
		"-nostdin",
		"-i", in,
		"-vf", filter,
		"-r", strconv.Itoa(p.FrameRate),
		"-c:v", "libx264",
		"-preset", "slow",
		"-crf", strconv.Itoa(p.Quality),
		"-pix_fmt", "yuv420p",
		"-profile:v", "high",
		"-level", "4.2",
		"-movflags", "+faststart",
		"-c:a", "aac",
		"-b:a", "128k",
		"-y",
		out,
	}
}
