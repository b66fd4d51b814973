// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package compress

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ManuGH/vidlens/internal/log"
	"github.com/ManuGH/vidlens/internal/media"
	"github.com/ManuGH/vidlens/internal/metrics"
	"github.com/ManuGH/vidlens/internal/procexec"
	"github.com/rs/zerolog"
)

// DefaultBinary is the transcoder executable looked up on PATH.
const DefaultBinary = "ffmpeg"

const failureTailLines = 5

// Runner is the subset of procexec.Runner the executor needs.
type Runner interface {
	Run(ctx context.Context, name string, args []string, timeout time.Duration) (procexec.Result, error)
	Available(ctx context.Context, name string) bool
}

// Executor locates a source video and compresses it under the size ceiling when needed.
type Executor struct {
	Dir    string
	Binary string
	Runner Runner
	// Planner defaults to PlanFor.
	Planner func(size int64) Plan
	Logger  zerolog.Logger
}

// NewExecutor returns an Executor for videos stored directly in dir.
func NewExecutor(dir, binary string, runner Runner) *Executor {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Executor{
		Dir:     dir,
		Binary:  binary,
		Runner:  runner,
		Planner: PlanFor,
		Logger:  log.WithComponent("compress"),
	}
}

// Run finds the video named name and returns the file to analyse.
// It never retries a failed transcode.
func (e *Executor) Run(ctx context.Context, name string) Outcome {
	logger := log.WithContext(ctx, e.Logger).With().Str(log.FieldVideoName, name).Logger()

	out := e.run(ctx, name, logger)
	switch v := out.(type) {
	case Skipped:
		metrics.IncCompression("skipped")
	case Compressed:
		metrics.IncCompression("compressed")
		metrics.AddCompressionBytes(v.OriginalSize, v.OutputSize)
	case Failed:
		metrics.IncCompression("failed")
		logger.Error().Err(v.Err).Msg("compression failed")
	}
	return out
}

func (e *Executor) run(ctx context.Context, name string, logger zerolog.Logger) Outcome {
	if strings.TrimSpace(name) == "" {
		return Failed{Err: fmt.Errorf("%w: empty video name", ErrFileNotFound)}
	}

	src, err := media.Locate(e.Dir, name)
	if err != nil {
		return Failed{Err: err}
	}
	if src == "" {
		return Failed{Err: fmt.Errorf("%w: %q in %s", ErrFileNotFound, name, e.Dir)}
	}

	info, err := os.Stat(src)
	if err != nil {
		return Failed{Err: fmt.Errorf("%w: %v", ErrFileNotFound, err)}
	}
	size := info.Size()
	logger = logger.With().Str(log.FieldPath, src).Int64(log.FieldSizeBytes, size).Logger()

	if !NeedsTranscode(size) {
		logger.Info().Msg("source within size budget, skipping compression")
		return Skipped{Path: src, Size: size}
	}

	planner := e.Planner
	if planner == nil {
		planner = PlanFor
	}
	plan := planner(size)

	if !e.Runner.Available(ctx, e.Binary) {
		return Failed{Err: fmt.Errorf("%w: %s", ErrToolUnavailable, e.Binary)}
	}

	dst := OutputPath(src, plan)
	logger = logger.With().
		Str(log.FieldOutputPath, dst).
		Str(log.FieldResolution, plan.Resolution()).
		Int(log.FieldFPS, plan.FrameRate).
		Int(log.FieldQuality, plan.Quality).
		Logger()
	logger.Info().Dur("timeout", plan.Timeout).Msg("starting compression")

	res, err := e.Runner.Run(ctx, e.Binary, BuildArgs(src, dst, plan), plan.Timeout)
	switch {
	case errors.Is(err, procexec.ErrTimedOut):
		removePartial(dst, logger)
		return Failed{Err: fmt.Errorf("%w: %w", ErrTimedOut, err)}
	case err != nil:
		removePartial(dst, logger)
		return Failed{Err: fmt.Errorf("%w: %w", ErrTranscodeFailed, err)}
	case res.ExitCode != 0:
		removePartial(dst, logger)
		return Failed{Err: fmt.Errorf("%w: exit code %d: %s", ErrTranscodeFailed, res.ExitCode, tail(res.Output))}
	}

	outInfo, err := os.Stat(dst)
	if err != nil {
		return Failed{Err: fmt.Errorf("%w: %v", ErrOutputVerification, err)}
	}
	if outInfo.Size() == 0 {
		return Failed{Err: fmt.Errorf("%w: %s is empty", ErrOutputVerification, dst)}
	}

	c := Compressed{
		Path:         dst,
		Source:       src,
		OriginalSize: size,
		OutputSize:   outInfo.Size(),
		Plan:         plan,
		OverCeiling:  outInfo.Size() > HardCeiling,
	}
	if c.OverCeiling {
		metrics.IncCompressionOverCeiling()
		logger.Warn().Int64("output_bytes", c.OutputSize).Int64("ceiling_bytes", HardCeiling).
			Msg("compressed output still exceeds the analysis size limit, continuing")
	}
	logger.Info().
		Int64("output_bytes", c.OutputSize).
		Float64("ratio", c.Ratio()).
		Dur("elapsed", res.Elapsed).
		Msg("compression finished")
	return c
}

// removePartial deletes the output of an aborted transcode.
func removePartial(dst string, logger zerolog.Logger) {
	err := os.Remove(dst)
	switch {
	case err == nil:
		logger.Debug().Msg("removed partial compression output")
	case !errors.Is(err, os.ErrNotExist):
		logger.Debug().Err(err).Msg("could not remove partial compression output")
	}
}

func tail(lines []string) string {
	if len(lines) > failureTailLines {
		lines = lines[len(lines)-failureTailLines:]
	}
	if len(lines) == 0 {
		return "no output"
	}
	return strings.Join(lines, " | ")
}
