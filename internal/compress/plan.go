// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package compress

import (
	"fmt"
	"time"
)

// MiB is one mebibyte.
const MiB int64 = 1024 * 1024

const (
	// SkipThreshold is the size below which a source is passed through untouched.
	SkipThreshold = 99 * MiB
	// HardCeiling is the largest input the analysis model accepts.
	HardCeiling = 100 * MiB
	// TargetCeiling is the size every plan aims for. It stays below HardCeiling.
	TargetCeiling = 99 * MiB
)

// Plan holds the transcode parameters chosen for one source.
type Plan struct {
	Width     int
	Height    int
	FrameRate int
	// Quality is the x264 constant rate factor, 0..51. Lower is better and larger.
	Quality int
	Timeout time.Duration
	// TargetCeiling is the output size the parameters are chosen to stay under.
	TargetCeiling int64
}

// Resolution renders the plan's frame size as WxH.
func (p Plan) Resolution() string {
	return fmt.Sprintf("%dx%d", p.Width, p.Height)
}

type tier struct {
	minSize int64
	plan    Plan
}

// tiers is ordered by descending lower bound; each range is [minSize, next tier's minSize).
var tiers = []tier{
	{6000 * MiB, Plan{Width: 1280, Height: 720, FrameRate: 18, Quality: 25, Timeout: 3600 * time.Second}},
	{3000 * MiB, Plan{Width: 1280, Height: 720, FrameRate: 20, Quality: 25, Timeout: 3600 * time.Second}},
	{1000 * MiB, Plan{Width: 1280, Height: 720, FrameRate: 24, Quality: 25, Timeout: 3600 * time.Second}},
	{200 * MiB, Plan{Width: 1280, Height: 720, FrameRate: 24, Quality: 25, Timeout: 2400 * time.Second}},
	{SkipThreshold, Plan{Width: 1920, Height: 1080, FrameRate: 24, Quality: 23, Timeout: 1800 * time.Second}},
}

// NeedsTranscode reports whether a source of the given size must be compressed.
func NeedsTranscode(size int64) bool {
	return size >= SkipThreshold
}

// PlanFor maps a source size in bytes to its transcode parameters.
//
// Callers skip transcoding for sizes below SkipThreshold; PlanFor still returns
// the smallest tier for them so the function is total.
func PlanFor(size int64) Plan {
	for _, t := range tiers {
		if size >= t.minSize {
			return withCeiling(t.plan)
		}
	}
	return withCeiling(tiers[len(tiers)-1].plan)
}

func withCeiling(p Plan) Plan {
	p.TargetCeiling = TargetCeiling
	return p
}
