// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package compress

import "errors"

var (
	ErrFileNotFound       = errors.New("no matching file")
	ErrToolUnavailable    = errors.New("tool unavailable")
	ErrTimedOut           = errors.New("compression timed out")
	ErrTranscodeFailed    = errors.New("compression failed")
	ErrOutputVerification = errors.New("output verification failed")
)

// Outcome is the result of one Executor.Run. It is one of Skipped, Compressed or Failed.
type Outcome interface {
	isOutcome()
}

// Skipped means the source was already small enough and is used as is.
type Skipped struct {
	Path string
	Size int64
}

// Compressed means a transcode produced a verified output file.
type Compressed struct {
	Path         string
	Source       string
	OriginalSize int64
	OutputSize   int64
	Plan         Plan
	// OverCeiling is set when the output is still larger than HardCeiling.
	OverCeiling bool
}

// Failed carries the terminal error of a run.
type Failed struct {
	Err error
}

func (Skipped) isOutcome()    {}
func (Compressed) isOutcome() {}
func (Failed) isOutcome()     {}

// Reason is the human-readable failure text.
func (f Failed) Reason() string {
	if f.Err == nil {
		return "unknown compression failure"
	}
	return f.Err.Error()
}

// Ratio is OutputSize / OriginalSize, or 0 when the original size is unknown.
func (c Compressed) Ratio() float64 {
	if c.OriginalSize <= 0 {
		return 0
	}
	return float64(c.OutputSize) / float64(c.OriginalSize)
}

// MediaPath returns the file the analysis should read, or "" for a failed outcome.
func MediaPath(o Outcome) string {
	switch v := o.(type) {
	case Skipped:
		return v.Path
	case Compressed:
		return v.Path
	default:
		return ""
	}
}
